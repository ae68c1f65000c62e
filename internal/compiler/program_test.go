package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rindel/internal/ir"
)

const programsDir = "../../testdata/programs"

func TestCompileFile_CountClicks(t *testing.T) {
	prog, err := CompileFile(filepath.Join(programsDir, "count_clicks.cue"))
	require.NoError(t, err)

	assert.Equal(t, "count-clicks", prog.Name)
	assert.Equal(t, "main", prog.Main)
	require.Len(t, prog.Definitions, 1)

	main := prog.Definitions[0]
	require.Len(t, main.Applications, 3)
	assert.Equal(t, "clicks", main.Applications[0].Name, "applications keep declaration order")
	assert.Equal(t, "count", main.Applications[1].Name)
	assert.Equal(t, "show", main.Applications[2].Name)
	assert.Equal(t, ir.IRObject{"tempo": ir.IRString("event")}, main.Applications[0].Config)
	assert.Nil(t, main.Applications[1].Config)

	assert.Equal(t, []ir.ConnectionSpec{
		{From: "clicks.out", To: "count.events"},
		{From: "count.count", To: "show.value"},
	}, main.Connections)
}

func TestCompileFile_NestedDefinitions(t *testing.T) {
	prog, err := CompileFile(filepath.Join(programsDir, "offset_list.cue"))
	require.NoError(t, err)

	main, ok := prog.Definition("main")
	require.True(t, ok)
	assert.Equal(t, []ir.PortSpec{{Name: "offset", Tempo: "step"}}, main.Inputs)
	assert.Equal(t, []ir.PortSpec{{Name: "results", Tempo: "step"}}, main.Outputs)

	require.Len(t, main.Definitions, 1)
	shift := main.Definitions[0]
	assert.Equal(t, "shift", shift.Name)
	assert.Equal(t, []ir.PortSpec{{Name: "item", Tempo: "step"}}, shift.Inputs)
	require.Len(t, shift.Connections, 3)
	assert.Equal(t, "in.offset", shift.Connections[1].From)
}

func TestCompileFile_ConfigValues(t *testing.T) {
	prog, err := CompileFile(filepath.Join(programsDir, "follow_mouse.cue"))
	require.NoError(t, err)

	cfg := prog.Definitions[0].Applications[0].Config
	assert.Equal(t, ir.IRObject{"x": ir.IRInt(0), "y": ir.IRInt(0)}, cfg["initial"])
}

func TestCompileSource_SchemaViolation(t *testing.T) {
	src := `program: {
	name: "bad"
	main: "main"
	definitions: main: {
		inputs: [{name: "x", tempo: "sometimes"}]
	}
}`
	_, err := CompileSource("bad.cue", []byte(src))
	require.Error(t, err)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, cerr.Pos.IsValid(), "schema errors carry a source position")
}

func TestCompileSource_MissingMain(t *testing.T) {
	src := `program: {
	name: "no-main"
	main: "entry"
	definitions: main: {}
}`
	_, err := CompileSource("nomain.cue", []byte(src))
	require.Error(t, err)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "main", cerr.Field)
	assert.Contains(t, cerr.Message, `"entry"`)
}

func TestCompileSource_FloatConfigRejected(t *testing.T) {
	src := `program: {
	name: "floats"
	main: "main"
	definitions: main: applications: k: {native: "constant", config: {value: 1.5}}
}`
	_, err := CompileSource("floats.cue", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestCompileSource_MissingProgram(t *testing.T) {
	_, err := CompileSource("empty.cue", []byte(`other: 1`))
	require.Error(t, err)

	var cerr *CompileError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "program", cerr.Field)
}

func TestCompileDir_MergesFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "program.cue", `package demo

program: {
	name: "split"
	main: "main"
}
`)
	writeFile(t, dir, "main.cue", `package demo

program: definitions: main: {
	applications: k: {native: "constant", config: {value: 3}}
}
`)

	prog, err := Compile(dir)
	require.NoError(t, err)
	assert.Equal(t, "split", prog.Name)
	require.Len(t, prog.Definitions, 1)
	assert.Equal(t, "k", prog.Definitions[0].Applications[0].Name)
}

func TestCompile_NotFound(t *testing.T) {
	_, err := Compile(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program not found")
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
