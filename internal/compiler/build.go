package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/rindel/internal/engine"
	"github.com/roach88/rindel/internal/ir"
	"github.com/roach88/rindel/internal/natives"
)

// Graph is a program built onto a runtime. Definitions and applications are
// addressed by scope path: "main", "main/double", "main/clicks".
type Graph struct {
	Program *ir.ProgramSpec
	Main    *engine.UserDefinition

	definitions  map[string]*engine.UserDefinition
	applications map[string]*engine.Application
	natives      map[string]natives.Native
	connections  []*engine.Connection
}

// Definition returns the definition at path.
func (g *Graph) Definition(path string) (*engine.UserDefinition, bool) {
	d, ok := g.definitions[path]
	return d, ok
}

// Application returns the application at path.
func (g *Graph) Application(path string) (*engine.Application, bool) {
	a, ok := g.applications[path]
	return a, ok
}

// Native returns the native built for the application at path.
func (g *Graph) Native(path string) (natives.Native, bool) {
	n, ok := g.natives[path]
	return n, ok
}

// Emitter returns the host-facing surface of the application at path.
func (g *Graph) Emitter(path string) (natives.Emitter, error) {
	n, ok := g.natives[path]
	if !ok {
		return nil, fmt.Errorf("no application %q", path)
	}
	e, ok := n.(natives.Emitter)
	if !ok {
		return nil, fmt.Errorf("application %q (%s) does not accept emitted values", path, n.Definition().Name)
	}
	return e, nil
}

// ApplicationPaths returns every application path in sorted order.
func (g *Graph) ApplicationPaths() []string {
	paths := make([]string, 0, len(g.applications))
	for p := range g.applications {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Connections returns the connections in the order they were made.
func (g *Graph) Connections() []*engine.Connection {
	return slices.Clone(g.connections)
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report the built program.
func WithLogger(l *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		c.logger = l
	}
}

// Build validates prog and constructs it on rt.
//
// Definitions and applications are created first, in declaration order.
// Connections follow, parents before nested definitions, so a cycle is
// reported against the connection that closes it. Runtime errors are
// wrapped and can be inspected with the engine's Is* predicates.
//
// Build does not activate anything.
func Build(rt *engine.Runtime, prog *ir.ProgramSpec, reg *natives.Registry, opts ...BuildOption) (*Graph, error) {
	cfg := buildConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if verrs := Validate(prog, reg); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("invalid program %q: %w", prog.Name, errors.Join(errs...))
	}

	g := &Graph{
		Program:      prog,
		definitions:  make(map[string]*engine.UserDefinition),
		applications: make(map[string]*engine.Application),
		natives:      make(map[string]natives.Native),
	}

	roots := newScopes(prog)
	for _, root := range roots {
		if err := g.addDefinition(rt, reg, root, nil); err != nil {
			return nil, err
		}
	}
	for _, root := range roots {
		var err error
		root.walk(func(s *scope) {
			if err == nil {
				err = g.connect(rt, s)
			}
		})
		if err != nil {
			return nil, err
		}
	}

	g.Main = g.definitions[prog.Main]
	cfg.logger.Info("program built",
		"program", prog.Name,
		"main", prog.Main,
		"definitions", len(g.definitions),
		"applications", len(g.applications),
		"connections", len(g.connections))
	return g, nil
}

func (g *Graph) addDefinition(rt *engine.Runtime, reg *natives.Registry, s *scope, parent *engine.UserDefinition) error {
	opts := []engine.DefinitionOption{
		engine.WithDefinitionName(s.def.Name),
		engine.WithSignature(engine.Signature{
			Inputs:  enginePorts(s.def.Inputs),
			Outputs: enginePorts(s.def.Outputs),
		}),
	}

	var def *engine.UserDefinition
	var err error
	if parent == nil {
		def, err = rt.AddRootUserDefinition(opts...)
	} else {
		def, err = rt.AddContainedUserDefinition(parent, opts...)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	g.definitions[s.path] = def

	for _, a := range s.def.Applications {
		path := s.path + "/" + a.Name
		native, err := reg.Build(a.Native, configMap(a.Config))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		app, err := rt.AddNativeApplication(def, native.Definition(), engine.WithApplicationName(a.Name))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		g.applications[path] = app
		g.natives[path] = native
	}

	for _, c := range s.children {
		if err := g.addDefinition(rt, reg, c, def); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) connect(rt *engine.Runtime, s *scope) error {
	for _, c := range s.def.Connections {
		out, err := g.source(s, c.From)
		if err != nil {
			return fmt.Errorf("%s: connection %s -> %s: %w", s.path, c.From, c.To, err)
		}
		in, err := g.destination(s, c.To)
		if err != nil {
			return fmt.Errorf("%s: connection %s -> %s: %w", s.path, c.From, c.To, err)
		}
		cxn, err := rt.AddConnection(out, in)
		if err != nil {
			return fmt.Errorf("%s: connection %s -> %s: %w", s.path, c.From, c.To, err)
		}
		g.connections = append(g.connections, cxn)
	}
	return nil
}

func (g *Graph) source(s *scope, raw string) (*engine.OutPort, error) {
	ref, err := parseRef(raw)
	if err != nil {
		return nil, err
	}
	owner, err := s.resolveFrom(ref)
	if err != nil {
		return nil, err
	}

	var port *engine.OutPort
	switch ref.kind {
	case refApplication:
		port = g.applications[owner.path+"/"+ref.owner].Output(ref.name)
	case refInput:
		port = g.definitions[owner.path].Input(ref.name)
	case refFunction:
		port = g.definitions[owner.path+"/"+ref.name].FunctionPort()
	}
	if port == nil {
		return nil, fmt.Errorf("%q: no such output", raw)
	}
	return port, nil
}

func (g *Graph) destination(s *scope, raw string) (*engine.InPort, error) {
	ref, err := parseRef(raw)
	if err != nil {
		return nil, err
	}
	if err := s.resolveTo(ref); err != nil {
		return nil, err
	}

	var port *engine.InPort
	switch ref.kind {
	case refApplication:
		port = g.applications[s.path+"/"+ref.owner].Input(ref.name)
	case refOutput:
		port = g.definitions[s.path].Output(ref.name)
	}
	if port == nil {
		return nil, fmt.Errorf("%q: no such input", raw)
	}
	return port, nil
}

func enginePorts(ports []ir.PortSpec) []engine.PortSpec {
	out := make([]engine.PortSpec, len(ports))
	for i, p := range ports {
		out[i] = engine.PortSpec{Name: p.Name, Tempo: engine.Tempo(p.Tempo)}
	}
	return out
}
