package engine

// Resolver finds the stream bound to an out port.
type Resolver interface {
	Resolve(port *OutPort) (*Stream, error)
}

// environment binds the out ports of one definition scope for one
// activation and defers to the containing activation's environment for
// ports of outer scopes.
type environment struct {
	scope    *UserDefinition
	bindings map[*OutPort]*Stream
	parent   *environment
}

func newEnvironment(scope *UserDefinition, parent *environment) *environment {
	return &environment{
		scope:    scope,
		bindings: make(map[*OutPort]*Stream),
		parent:   parent,
	}
}

func (e *environment) bind(port *OutPort, s *Stream) {
	e.bindings[port] = s
}

// Resolve implements Resolver by walking outward through containing scopes.
func (e *environment) Resolve(port *OutPort) (*Stream, error) {
	for env := e; env != nil; env = env.parent {
		if env.scope != port.scope {
			continue
		}
		if s, ok := env.bindings[port]; ok {
			return s, nil
		}
		return nil, newUnresolvedReference(port.String(), "port is not bound in its scope")
	}
	return nil, newUnresolvedReference(port.String(), "no containing activation for scope "+port.scope.name)
}
