package engine

import "fmt"

// Tempo governs how a port's stream is observed by consumers.
type Tempo string

const (
	// TempoStep ports carry a persistent value; consumers see the latest
	// value plus whether it changed this instant.
	TempoStep Tempo = "step"

	// TempoEvent ports carry momentary values; consumers see a value only in
	// the instant it occurred.
	TempoEvent Tempo = "event"
)

// Valid reports whether t is a known tempo.
func (t Tempo) Valid() bool {
	return t == TempoStep || t == TempoEvent
}

// PortSpec names one port of a signature.
type PortSpec struct {
	Name  string
	Tempo Tempo
}

// Signature lists the named inputs and outputs of a definition, in order.
type Signature struct {
	Inputs  []PortSpec
	Outputs []PortSpec
}

// Validate rejects empty or duplicate names and unknown tempos.
func (s Signature) Validate() error {
	for _, group := range []struct {
		kind  string
		ports []PortSpec
	}{{"input", s.Inputs}, {"output", s.Outputs}} {
		seen := make(map[string]bool, len(group.ports))
		for _, p := range group.ports {
			if p.Name == "" {
				return newInvalidDefinition("%s port with empty name", group.kind)
			}
			if seen[p.Name] {
				return newInvalidDefinition("duplicate %s port %q", group.kind, p.Name)
			}
			seen[p.Name] = true
			if !p.Tempo.Valid() {
				return newInvalidDefinition("%s port %q has unknown tempo %q", group.kind, p.Name, p.Tempo)
			}
		}
	}
	return nil
}

// OutPort is a source of values inside a definition's scope.
//
// Out ports are a native application's outputs, a user definition's inputs
// as seen from inside its body, or the function value of a contained user
// definition.
type OutPort struct {
	name        string
	tempo       Tempo
	scope       *UserDefinition
	owner       string
	app         *Application
	connections []*Connection
	removed     bool
}

// Name returns the port name.
func (p *OutPort) Name() string { return p.name }

// Tempo returns the port tempo.
func (p *OutPort) Tempo() Tempo { return p.tempo }

// Scope returns the definition whose activations bind this port's stream.
func (p *OutPort) Scope() *UserDefinition { return p.scope }

// Application returns the native application owning the port, if any.
func (p *OutPort) Application() *Application { return p.app }

// Connections returns the outgoing connections in creation order.
func (p *OutPort) Connections() []*Connection {
	return append([]*Connection(nil), p.connections...)
}

func (p *OutPort) String() string {
	return fmt.Sprintf("%s.%s", p.owner, p.name)
}

// InPort is a sink of values inside a definition's scope.
//
// In ports are a native application's inputs or a user definition's outputs
// as seen from inside its body. Each accepts at most one connection.
type InPort struct {
	name       string
	tempo      Tempo
	scope      *UserDefinition
	owner      string
	app        *Application    // set for native application inputs
	slot       *UserDefinition // set for user definition outputs
	connection *Connection
	removed    bool
}

// Name returns the port name.
func (p *InPort) Name() string { return p.name }

// Tempo returns the port tempo.
func (p *InPort) Tempo() Tempo { return p.tempo }

// Scope returns the definition whose activations bind this port's stream.
func (p *InPort) Scope() *UserDefinition { return p.scope }

// Application returns the native application owning the port, if any.
func (p *InPort) Application() *Application { return p.app }

// Connection returns the incoming connection, or nil.
func (p *InPort) Connection() *Connection { return p.connection }

func (p *InPort) String() string {
	return fmt.Sprintf("%s.%s", p.owner, p.name)
}
