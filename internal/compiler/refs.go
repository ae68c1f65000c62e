package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/rindel/internal/ir"
)

// Reserved reference heads. Application names may not use them.
const (
	refHeadInput    = "in"
	refHeadOutput   = "out"
	refHeadFunction = "fn"
)

type refKind int

const (
	refApplication refKind = iota + 1
	refInput
	refOutput
	refFunction
)

// portRef is a parsed connection endpoint such as "count.events",
// "in.x", "out.y" or "fn.double".
type portRef struct {
	kind  refKind
	owner string // application name for refApplication
	name  string // port, input, output or definition name
	raw   string
}

func parseRef(raw string) (portRef, error) {
	head, name, ok := strings.Cut(raw, ".")
	if !ok || head == "" || name == "" || strings.Contains(name, ".") {
		return portRef{}, fmt.Errorf("reference %q must have the form owner.name", raw)
	}
	ref := portRef{name: name, raw: raw}
	switch head {
	case refHeadInput:
		ref.kind = refInput
	case refHeadOutput:
		ref.kind = refOutput
	case refHeadFunction:
		ref.kind = refFunction
	default:
		ref.kind = refApplication
		ref.owner = head
	}
	return ref, nil
}

// scope is one definition of a program with its lexical parent.
type scope struct {
	def      *ir.DefinitionSpec
	path     string
	parent   *scope
	children []*scope
}

// newScopes builds the scope tree of every root definition.
func newScopes(prog *ir.ProgramSpec) []*scope {
	roots := make([]*scope, 0, len(prog.Definitions))
	for i := range prog.Definitions {
		roots = append(roots, newScope(&prog.Definitions[i], nil))
	}
	return roots
}

func newScope(def *ir.DefinitionSpec, parent *scope) *scope {
	s := &scope{def: def, path: def.Name, parent: parent}
	if parent != nil {
		s.path = parent.path + "/" + def.Name
	}
	for i := range def.Definitions {
		s.children = append(s.children, newScope(&def.Definitions[i], s))
	}
	return s
}

// walk visits s and everything nested in it, parents first.
func (s *scope) walk(fn func(*scope)) {
	fn(s)
	for _, c := range s.children {
		c.walk(fn)
	}
}

func (s *scope) hasApplication(name string) bool {
	for _, a := range s.def.Applications {
		if a.Name == name {
			return true
		}
	}
	return false
}

func (s *scope) hasInput(name string) bool {
	for _, p := range s.def.Inputs {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (s *scope) hasOutput(name string) bool {
	for _, p := range s.def.Outputs {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (s *scope) child(name string) *scope {
	for _, c := range s.children {
		if c.def.Name == name {
			return c
		}
	}
	return nil
}

// resolveFrom finds the scope that owns a connection source, searching the
// declaring scope first and then each enclosing scope.
func (s *scope) resolveFrom(ref portRef) (*scope, error) {
	if ref.kind == refOutput {
		return nil, fmt.Errorf("%q: output slots cannot be connection sources", ref.raw)
	}
	for cur := s; cur != nil; cur = cur.parent {
		switch ref.kind {
		case refApplication:
			if cur.hasApplication(ref.owner) {
				return cur, nil
			}
		case refInput:
			if cur.hasInput(ref.name) {
				return cur, nil
			}
		case refFunction:
			if cur.child(ref.name) != nil {
				return cur, nil
			}
		}
	}
	return nil, fmt.Errorf("%q does not resolve in %s or any enclosing definition", ref.raw, s.path)
}

// resolveTo checks a connection destination, which always belongs to the
// declaring scope.
func (s *scope) resolveTo(ref portRef) error {
	switch ref.kind {
	case refApplication:
		if !s.hasApplication(ref.owner) {
			return fmt.Errorf("%q: no application %q in %s", ref.raw, ref.owner, s.path)
		}
	case refOutput:
		if !s.hasOutput(ref.name) {
			return fmt.Errorf("%q: no output %q in %s", ref.raw, ref.name, s.path)
		}
	default:
		return fmt.Errorf("%q: connection destinations must be application inputs or out.<name>", ref.raw)
	}
	return nil
}
