package engine

import "slices"

// Activation is a live instance of a definition returned to whoever
// activated it.
type Activation interface {
	// Update writes new input values. Names must be inputs of the
	// definition's signature.
	Update(inputs map[string]Value) error

	// Destroy tears the activation down, contained activations first.
	// Destroying twice is a no-op.
	Destroy()

	// Outputs returns the latest output values.
	Outputs() map[string]Value
}

// UserActivation is a live instance of a user definition.
type UserActivation struct {
	id             int64
	rt             *Runtime
	def            *UserDefinition
	containing     *UserActivation
	env            *environment
	inStreams      map[*InPort]*Stream
	natives        map[*Application]*nativeActivation
	contained      map[*UserDefinition][]*UserActivation
	onOutputChange func(map[string]Value)
	destroyed      bool
}

// ID returns the runtime-assigned identifier.
func (a *UserActivation) ID() int64 { return a.id }

// Definition returns the activated definition.
func (a *UserActivation) Definition() *UserDefinition { return a.def }

// Containing returns the activation this one was activated in, or nil.
func (a *UserActivation) Containing() *UserActivation { return a.containing }

// Destroyed reports whether Destroy has run.
func (a *UserActivation) Destroyed() bool { return a.destroyed }

// Resolver returns the activation's scope chain.
func (a *UserActivation) Resolver() Resolver { return a.env }

// ContainedActivations returns the live activations of def in this
// activation, in creation order.
func (a *UserActivation) ContainedActivations(def *UserDefinition) []*UserActivation {
	return slices.Clone(a.contained[def])
}

// OutputStream returns the stream bound to an out port of this activation's
// scope, or nil.
func (a *UserActivation) OutputStream(port *OutPort) *Stream {
	return a.env.bindings[port]
}

// InputStream returns the stream bound to an in port of this activation's
// scope, or nil.
func (a *UserActivation) InputStream(port *InPort) *Stream {
	return a.inStreams[port]
}

// Update implements Activation. Each value is written to the definition's
// input and flowed; when the scheduler is idle the runtime then pumps.
func (a *UserActivation) Update(inputs map[string]Value) error {
	if a.destroyed {
		return newDestroyedActivation(a.id)
	}
	for name := range inputs {
		if a.def.Input(name) == nil {
			return newUnknownPort(a.def.name, name)
		}
	}
	for _, port := range a.def.inputs {
		v, ok := inputs[port.name]
		if !ok {
			continue
		}
		a.rt.setFlowOutPort(port, a, v)
	}
	a.rt.pumpIfIdle()
	return nil
}

// Outputs implements Activation.
func (a *UserActivation) Outputs() map[string]Value {
	out := make(map[string]Value, len(a.def.outputs))
	for _, port := range a.def.outputs {
		if s := a.inStreams[port]; s != nil {
			out[port.name] = s.latest
		}
	}
	return out
}

// Destroy implements Activation.
func (a *UserActivation) Destroy() {
	if a.destroyed {
		return
	}
	for _, d := range a.def.definitions {
		for _, child := range slices.Clone(a.contained[d]) {
			child.Destroy()
		}
	}
	apps := a.rt.byPriority(a.def.applications)
	for i := len(apps) - 1; i >= 0; i-- {
		if na := a.natives[apps[i]]; na != nil {
			na.destroy()
		}
	}
	a.destroyed = true
	a.def.activations = slices.DeleteFunc(a.def.activations, func(x *UserActivation) bool { return x == a })
	if a.containing != nil {
		a.containing.contained[a.def] = slices.DeleteFunc(a.containing.contained[a.def], func(x *UserActivation) bool { return x == a })
	}
	a.rt.logger.Debug("activation destroyed", "activation", a.id, "definition", a.def.name)
}

// reportOutput forwards a change of an output slot to the activator.
func (a *UserActivation) reportOutput(port *InPort) {
	if a.onOutputChange == nil {
		return
	}
	a.onOutputChange(map[string]Value{port.name: a.inStreams[port].latest})
}
