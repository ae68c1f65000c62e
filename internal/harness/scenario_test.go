package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "../../testdata/scenarios"

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	prog := filepath.Join(dir, "prog.cue")
	require.NoError(t, os.WriteFile(prog, []byte("package p\n"), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario_ResolvesProgramPath(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenariosDir, "doubler.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "doubler", s.Name)
	assert.Equal(t, filepath.Join(scenariosDir, "../programs/doubler.cue"), s.Program)
	assert.Equal(t, map[string]any{"x": 4}, s.Inputs)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, map[string]any{"x": 5}, s.Steps[1].Inputs)
}

func TestLoadScenario_EmitStep(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenariosDir, "count_clicks.yaml"))
	require.NoError(t, err)

	require.NotNil(t, s.Steps[1].Emit)
	assert.Equal(t, "clicks", s.Steps[1].Emit.App)
	assert.Equal(t, true, s.Steps[1].Emit.Value)
	assert.Len(t, s.Assertions, 4)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown field",
			body: "name: x\ndescription: d\nprogram: prog.cue\nstepz: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			body: "description: d\nprogram: prog.cue\nsteps: [{expect: {out.y: 1}}]\n",
			want: "name is required",
		},
		{
			name: "missing program file",
			body: "name: x\ndescription: d\nprogram: nope.cue\nsteps: [{expect: {out.y: 1}}]\n",
			want: "program not found",
		},
		{
			name: "no steps",
			body: "name: x\ndescription: d\nprogram: prog.cue\nsteps: []\n",
			want: "steps list is required",
		},
		{
			name: "emit and inputs",
			body: "name: x\ndescription: d\nprogram: prog.cue\nsteps: [{emit: {app: a, value: 1}, inputs: {x: 1}}]\n",
			want: "mutually exclusive",
		},
		{
			name: "bad expect key",
			body: "name: x\ndescription: d\nprogram: prog.cue\nsteps: [{expect: {y: 1}}]\n",
			want: "must have the form",
		},
		{
			name: "unknown assertion",
			body: "name: x\ndescription: d\nprogram: prog.cue\nsteps: [{expect: {out.y: 1}}]\nassertions: [{type: final_state}]\n",
			want: `unknown assertion type "final_state"`,
		},
		{
			name: "trace_order without ports",
			body: "name: x\ndescription: d\nprogram: prog.cue\nsteps: [{expect: {out.y: 1}}]\nassertions: [{type: trace_order}]\n",
			want: "ports list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSplitPort(t *testing.T) {
	owner, name, err := splitPort("show.text")
	require.NoError(t, err)
	assert.Equal(t, "show", owner)
	assert.Equal(t, "text", name)

	for _, bad := range []string{"show", ".text", "show.", "a.b.c"} {
		_, _, err := splitPort(bad)
		assert.Error(t, err, bad)
	}
}
