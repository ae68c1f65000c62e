package compiler

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rindel/internal/ir"
)

//go:embed schema.cue
var schemaCUE []byte

// CompileProgram parses a CUE value into a ProgramSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value should be the program struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`program: { name: "demo", main: "main", ... }`)
//	spec, err := CompileProgram(v.LookupPath(cue.ParsePath("program")))
//
// The value is first unified with the #Program schema so that structural
// mistakes are reported with CUE positions.
func CompileProgram(v cue.Value) (*ir.ProgramSpec, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: "program", Message: "program is required"}
	}
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Program")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ProgramSpec{}
	var err error
	if spec.Name, err = unified.LookupPath(cue.ParsePath("name")).String(); err != nil {
		return nil, formatCUEError(err)
	}
	if spec.Main, err = unified.LookupPath(cue.ParsePath("main")).String(); err != nil {
		return nil, formatCUEError(err)
	}

	spec.Definitions, err = parseDefinitions(unified.LookupPath(cue.ParsePath("definitions")))
	if err != nil {
		return nil, err
	}
	if _, ok := spec.Definition(spec.Main); !ok {
		return nil, &CompileError{
			Field:   "main",
			Message: fmt.Sprintf("main definition %q is not defined", spec.Main),
			Pos:     unified.LookupPath(cue.ParsePath("main")).Pos(),
		}
	}
	return spec, nil
}

// CompileSource compiles CUE source holding a top-level "program" field.
func CompileSource(filename string, src []byte) (*ir.ProgramSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileProgram(v.LookupPath(cue.ParsePath("program")))
}

// CompileFile compiles a single .cue file.
func CompileFile(path string) (*ir.ProgramSpec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	return CompileSource(path, src)
}

// CompileDir loads every .cue file of the package in dir as one instance
// and compiles its "program" field.
func CompileDir(dir string) (*ir.ProgramSpec, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}
	v := cuecontext.New().BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileProgram(v.LookupPath(cue.ParsePath("program")))
}

// Compile compiles a program from a file or a package directory.
func Compile(path string) (*ir.ProgramSpec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("program not found: %w", err)
	}
	if info.IsDir() {
		return CompileDir(path)
	}
	return CompileFile(path)
}

// parseDefinitions reads a struct of named definitions in declaration
// order.
func parseDefinitions(v cue.Value) ([]ir.DefinitionSpec, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var defs []ir.DefinitionSpec
	for iter.Next() {
		def, err := parseDefinition(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func parseDefinition(name string, v cue.Value) (ir.DefinitionSpec, error) {
	def := ir.DefinitionSpec{Name: name}
	var err error

	if def.Inputs, err = parsePorts(v.LookupPath(cue.ParsePath("inputs"))); err != nil {
		return def, err
	}
	if def.Outputs, err = parsePorts(v.LookupPath(cue.ParsePath("outputs"))); err != nil {
		return def, err
	}
	if def.Applications, err = parseApplications(v.LookupPath(cue.ParsePath("applications"))); err != nil {
		return def, err
	}
	if def.Connections, err = parseConnections(v.LookupPath(cue.ParsePath("connections"))); err != nil {
		return def, err
	}
	if def.Definitions, err = parseDefinitions(v.LookupPath(cue.ParsePath("definitions"))); err != nil {
		return def, err
	}
	return def, nil
}

func parsePorts(v cue.Value) ([]ir.PortSpec, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var ports []ir.PortSpec
	for iter.Next() {
		var p ir.PortSpec
		if err := iter.Value().Decode(&p); err != nil {
			return nil, formatCUEError(err)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

func parseApplications(v cue.Value) ([]ir.ApplicationSpec, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var apps []ir.ApplicationSpec
	for iter.Next() {
		app := ir.ApplicationSpec{Name: iter.Label()}
		if app.Native, err = iter.Value().LookupPath(cue.ParsePath("native")).String(); err != nil {
			return nil, formatCUEError(err)
		}
		cfgVal := iter.Value().LookupPath(cue.ParsePath("config"))
		if cfgVal.Exists() {
			if app.Config, err = parseConfig(cfgVal); err != nil {
				return nil, err
			}
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// parseConfig decodes a config struct into IR values. Floats are rejected.
func parseConfig(v cue.Value) (ir.IRObject, error) {
	var raw map[string]any
	if err := v.Decode(&raw); err != nil {
		return nil, formatCUEError(err)
	}
	iv, err := ir.FromGo(raw)
	if err != nil {
		return nil, &CompileError{Field: "config", Message: err.Error(), Pos: v.Pos()}
	}
	return iv.(ir.IRObject), nil
}

func parseConnections(v cue.Value) ([]ir.ConnectionSpec, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var cxns []ir.ConnectionSpec
	for iter.Next() {
		var c ir.ConnectionSpec
		if err := iter.Value().Decode(&c); err != nil {
			return nil, formatCUEError(err)
		}
		cxns = append(cxns, c)
	}
	return cxns, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
