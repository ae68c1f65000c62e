package engine

import (
	"log/slog"
	"maps"
)

// NativeDefinition is an externally supplied primitive.
//
// Create runs once per activation before any update. When the signature has
// inputs, Update runs once more with every input marked changed (the initial
// update). Outputs written during Create or the initial update are stored
// but not flowed; downstream activations pull them as they are created.
// After that, Update runs whenever any input changed in the current
// instant. Destroy runs once when the activation is torn down.
type NativeDefinition struct {
	Name      string
	Signature Signature
	Create    func(ctx *NativeContext)
	Update    func(ctx *NativeContext, inputs Inputs)
	Destroy   func(ctx *NativeContext)
}

func (d *NativeDefinition) definitionName() string { return d.Name }

// Validate checks the definition once at registration time.
func (d *NativeDefinition) Validate() error {
	if d == nil {
		return newInvalidDefinition("native definition is nil")
	}
	if d.Name == "" {
		return newInvalidDefinition("native definition has no name")
	}
	if err := d.Signature.Validate(); err != nil {
		return newInvalidDefinition("native %s: %s", d.Name, err.(*Error).Message)
	}
	if len(d.Signature.Inputs) > 0 && d.Update == nil {
		return newInvalidDefinition("native %s has inputs but no update", d.Name)
	}
	return nil
}

func (d *NativeDefinition) hasOutput(name string) bool {
	for _, p := range d.Signature.Outputs {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Input is the view a native update has of one input port.
//
// Step inputs always carry the latest value; Changed reports whether it was
// written this instant. Event inputs carry a value only when Present.
type Input struct {
	Value   Value
	Changed bool
	Present bool
}

// Inputs maps port names to their views for one update.
type Inputs map[string]Input

// Step returns a step input's latest value and whether it changed.
func (in Inputs) Step(name string) (Value, bool) {
	i := in[name]
	return i.Value, i.Changed
}

// Event returns an event input's value and whether it occurred.
func (in Inputs) Event(name string) (Value, bool) {
	i := in[name]
	return i.Value, i.Present
}

// NativeContext is handed to every native callback of one activation.
type NativeContext struct {
	rt         *Runtime
	native     *NativeDefinition
	app        *Application
	activation *UserActivation
	logger     *slog.Logger
	state      any
	emit       func(outputs map[string]Value)
	creating   bool
	destroyed  bool

	// Transient holds per-activation values that are not observable state,
	// such as the closure activations a higher-order native owns.
	Transient any
}

// SetOutputs reports new output values. Unknown port names panic with an
// UNKNOWN_PORT error. Calls after destroy are ignored.
//
// Outside of creation the values flow downstream immediately; when the
// scheduler is idle the runtime then pumps until quiescent.
func (c *NativeContext) SetOutputs(outputs map[string]Value) {
	if c.destroyed {
		c.logger.Debug("outputs ignored after destroy")
		return
	}
	for name := range outputs {
		if !c.native.hasOutput(name) {
			panic(newUnknownPort(c.native.Name, name))
		}
	}
	c.emit(outputs)
}

// State returns the observable per-activation state.
func (c *NativeContext) State() any { return c.state }

// SetState replaces the per-activation state.
func (c *NativeContext) SetState(s any) { c.state = s }

// Instant returns the instant being prepared or processed.
func (c *NativeContext) Instant() Instant { return c.rt.clock.Current() }

// Logger returns a logger tagged with the application and activation.
func (c *NativeContext) Logger() *slog.Logger { return c.logger }

// Activation returns the containing user activation, or nil when the native
// was activated from a closed closure.
func (c *NativeContext) Activation() *UserActivation { return c.activation }

// ActivateClosure activates a closure on behalf of this native. Higher-order
// natives use it to own child activations; the caller is responsible for
// destroying them.
func (c *NativeContext) ActivateClosure(cl *Closure, inputs map[string]Value, onOutputChange func(map[string]Value)) (Activation, error) {
	return c.rt.ActivateClosure(cl, inputs, onOutputChange)
}

// nativeActivation is the internal lifecycle of one native instance.
type nativeActivation struct {
	ctx *NativeContext
}

func (n *nativeActivation) create() {
	if n.ctx.native.Create != nil {
		n.ctx.native.Create(n.ctx)
	}
}

func (n *nativeActivation) update(inputs Inputs) {
	if n.ctx.destroyed {
		return
	}
	if n.ctx.native.Update != nil {
		n.ctx.native.Update(n.ctx, inputs)
	}
}

func (n *nativeActivation) destroy() {
	if n.ctx.destroyed {
		return
	}
	n.ctx.destroyed = true
	if n.ctx.native.Destroy != nil {
		n.ctx.native.Destroy(n.ctx)
	}
}

// nativeHandle exposes a native activated from a closure.
type nativeHandle struct {
	na      *nativeActivation
	native  *NativeDefinition
	last    map[string]Value
	outputs map[string]Value
}

// Update implements Activation.
func (h *nativeHandle) Update(inputs map[string]Value) error {
	if h.na.ctx.destroyed {
		return newDestroyedActivation(0)
	}
	for name := range inputs {
		if !hasPort(h.native.Signature.Inputs, name) {
			return newUnknownPort(h.native.Name, name)
		}
	}
	h.na.update(h.view(inputs, false))
	h.na.ctx.rt.pumpIfIdle()
	return nil
}

// view builds the inputs a native sees for raw values; step inputs that
// were not supplied keep their previous value.
func (h *nativeHandle) view(inputs map[string]Value, initial bool) Inputs {
	view := make(Inputs, len(h.native.Signature.Inputs))
	for _, p := range h.native.Signature.Inputs {
		v, ok := inputs[p.Name]
		switch p.Tempo {
		case TempoStep:
			if ok {
				h.last[p.Name] = v
			}
			view[p.Name] = Input{Value: h.last[p.Name], Changed: ok || initial}
		case TempoEvent:
			if ok {
				view[p.Name] = Input{Value: v, Present: true}
			} else {
				view[p.Name] = Input{}
			}
		}
	}
	return view
}

// Destroy implements Activation.
func (h *nativeHandle) Destroy() { h.na.destroy() }

// Outputs implements Activation.
func (h *nativeHandle) Outputs() map[string]Value { return maps.Clone(h.outputs) }

func hasPort(ports []PortSpec, name string) bool {
	for _, p := range ports {
		if p.Name == name {
			return true
		}
	}
	return false
}
