package engine

import "fmt"

// Definition is anything that can be activated: a *UserDefinition or a
// *NativeDefinition.
type Definition interface {
	definitionName() string
}

// UserDefinition is a composite definition: an ordered set of native
// applications and contained user definitions wired by connections.
//
// A root definition has no parent. A contained definition is nested in its
// parent's scope, and every live activation of the parent exposes it as a
// closure on the definition's function port.
type UserDefinition struct {
	id           int64
	name         string
	parent       *UserDefinition
	signature    Signature
	inputs       []*OutPort
	outputs      []*InPort
	fn           *OutPort
	definitions  []*UserDefinition
	applications []*Application
	activations  []*UserActivation
}

func (d *UserDefinition) definitionName() string { return d.name }

// ID returns the runtime-assigned identifier.
func (d *UserDefinition) ID() int64 { return d.id }

// Name returns the definition label.
func (d *UserDefinition) Name() string { return d.name }

// Parent returns the containing definition, or nil for a root.
func (d *UserDefinition) Parent() *UserDefinition { return d.parent }

// Signature returns the declared inputs and outputs.
func (d *UserDefinition) Signature() Signature { return d.signature }

// Root returns the outermost containing definition.
func (d *UserDefinition) Root() *UserDefinition {
	for d.parent != nil {
		d = d.parent
	}
	return d
}

// Input returns the out port through which the definition body reads input
// name, or nil.
func (d *UserDefinition) Input(name string) *OutPort {
	for _, p := range d.inputs {
		if p.name == name {
			return p
		}
	}
	return nil
}

// Output returns the in port that feeds output name, or nil.
func (d *UserDefinition) Output(name string) *InPort {
	for _, p := range d.outputs {
		if p.name == name {
			return p
		}
	}
	return nil
}

// FunctionPort returns the step port in the parent's scope that carries a
// closure of this definition per parent activation. It is nil for roots.
func (d *UserDefinition) FunctionPort() *OutPort { return d.fn }

// Definitions returns the contained user definitions in creation order.
func (d *UserDefinition) Definitions() []*UserDefinition {
	return append([]*UserDefinition(nil), d.definitions...)
}

// Applications returns the native applications in creation order.
func (d *UserDefinition) Applications() []*Application {
	return append([]*Application(nil), d.applications...)
}

// Activations returns the live activations in creation order.
func (d *UserDefinition) Activations() []*UserActivation {
	return append([]*UserActivation(nil), d.activations...)
}

// isAncestorOf reports whether d strictly contains other.
func (d *UserDefinition) isAncestorOf(other *UserDefinition) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == d {
			return true
		}
	}
	return false
}

// Application is one use of a native definition inside a user definition.
type Application struct {
	id       int64
	name     string
	native   *NativeDefinition
	scope    *UserDefinition
	inputs   []*InPort
	outputs  []*OutPort
	priority string
	removed  bool
}

// ID returns the runtime-assigned identifier.
func (a *Application) ID() int64 { return a.id }

// Name returns the application label.
func (a *Application) Name() string { return a.name }

// Native returns the applied native definition.
func (a *Application) Native() *NativeDefinition { return a.native }

// Scope returns the containing user definition.
func (a *Application) Scope() *UserDefinition { return a.scope }

// Priority returns the topological priority string. Lexicographic order of
// priorities is a topological order of the root's application graph.
func (a *Application) Priority() string { return a.priority }

// Input returns the named input port, or nil.
func (a *Application) Input(name string) *InPort {
	for _, p := range a.inputs {
		if p.name == name {
			return p
		}
	}
	return nil
}

// Output returns the named output port, or nil.
func (a *Application) Output(name string) *OutPort {
	for _, p := range a.outputs {
		if p.name == name {
			return p
		}
	}
	return nil
}

// downstream returns the native applications fed by a's outputs, in
// connection order.
func (a *Application) downstream() []*Application {
	var out []*Application
	for _, p := range a.outputs {
		for _, c := range p.connections {
			if c.in.app != nil {
				out = append(out, c.in.app)
			}
		}
	}
	return out
}

func (a *Application) String() string { return a.name }

// Connection joins an out port to an in port in the same or a strictly
// nested scope.
type Connection struct {
	out  *OutPort
	in   *InPort
	path []*UserDefinition
}

// From returns the source port.
func (c *Connection) From() *OutPort { return c.out }

// To returns the destination port.
func (c *Connection) To() *InPort { return c.in }

// Path returns the definitions between the source scope (exclusive) and the
// destination scope (inclusive), outermost first. It is empty when both
// ports share a scope.
func (c *Connection) Path() []*UserDefinition {
	return append([]*UserDefinition(nil), c.path...)
}

func (c *Connection) String() string {
	return fmt.Sprintf("%s -> %s", c.out, c.in)
}

// connectionPath computes the containment path from out's scope down to
// in's scope. It fails when in's scope is not out's scope or nested in it.
func connectionPath(out *OutPort, in *InPort) ([]*UserDefinition, bool) {
	var rev []*UserDefinition
	for d := in.scope; d != nil; d = d.parent {
		if d == out.scope {
			path := make([]*UserDefinition, 0, len(rev))
			for i := len(rev) - 1; i >= 0; i-- {
				path = append(path, rev[i])
			}
			return path, true
		}
		rev = append(rev, d)
	}
	return nil, false
}

// Closure pairs a definition with the activation its free references
// resolve against. Containing is nil for closed definitions.
type Closure struct {
	Definition Definition
	Containing *UserActivation
}

func (c *Closure) String() string {
	if c.Containing == nil {
		return fmt.Sprintf("closure(%s)", c.Definition.definitionName())
	}
	return fmt.Sprintf("closure(%s@%d)", c.Definition.definitionName(), c.Containing.id)
}
