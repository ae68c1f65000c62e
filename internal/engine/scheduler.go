package engine

import (
	"maps"

	"github.com/roach88/rindel/internal/ir"
)

// Pump drains the task queue, updating native applications in priority
// order until quiescent, then ends the instant.
//
// Tasks for the same application and activation are collapsed into one
// update. A pump with an empty queue does nothing and leaves the clock
// alone. Calling Pump while draining panics with a ReentrantMutation error.
func (r *Runtime) Pump() {
	if r.state == draining {
		panic(newReentrantMutation("Pump"))
	}
	if r.queue.Len() == 0 {
		return
	}

	instant := r.clock.Current()
	r.state = draining
	updates := r.drain()
	r.clock.Advance()
	r.state = idle

	r.logger.Debug("instant completed", "instant", int64(instant), "updates", updates)
	r.observer.InstantCompleted(ir.InstantRecord{Instant: int64(instant), Tasks: updates})
}

func (r *Runtime) drain() (updates int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.queue.Clear()
			r.state = idle
			panic(rec)
		}
	}()

	for r.queue.Len() > 0 {
		t := r.queue.Pop()
		for {
			next, ok := r.queue.Peek()
			if !ok || next != t {
				break
			}
			r.queue.Pop()
			r.logger.Debug("discarding duplicate task", "application", t.app.name, "activation", t.activation.id)
		}
		if t.activation.destroyed {
			continue
		}
		na := t.activation.natives[t.app]
		if na == nil {
			continue
		}
		r.logger.Debug("updating application",
			"application", t.app.name,
			"activation", t.activation.id,
			"priority", t.app.priority,
		)
		na.update(r.gatherInputs(t.app, t.activation, false))
		updates++
	}
	return updates
}

func (r *Runtime) pumpIfIdle() {
	if r.state == idle {
		r.Pump()
	}
}

// gatherInputs builds the update view of app's inputs in act. The initial
// update after creation reports every step input as changed.
func (r *Runtime) gatherInputs(app *Application, act *UserActivation, initial bool) Inputs {
	now := r.clock.Current()
	inputs := make(Inputs, len(app.inputs))
	for _, in := range app.inputs {
		s := act.inStreams[in]
		switch in.tempo {
		case TempoStep:
			inputs[in.name] = Input{Value: s.latest, Changed: initial || s.ChangedAt(now)}
		case TempoEvent:
			if s.ChangedAt(now) {
				inputs[in.name] = Input{Value: s.latest, Present: true}
			} else {
				inputs[in.name] = Input{}
			}
		}
	}
	return inputs
}

// setFlowOutPort writes v to port's stream in act and flows it along every
// outgoing connection.
func (r *Runtime) setFlowOutPort(port *OutPort, act *UserActivation, v Value) {
	act.env.bindings[port].set(v, r.clock.Current())
	for _, c := range port.connections {
		r.flowConnection(c, act, v)
	}
}

// flowConnection delivers v from source activation act to every live
// activation of the destination scope reachable along the connection path.
func (r *Runtime) flowConnection(c *Connection, act *UserActivation, v Value) {
	targets := []*UserActivation{act}
	for _, d := range c.path {
		var next []*UserActivation
		for _, t := range targets {
			next = append(next, t.contained[d]...)
		}
		targets = next
	}

	now := r.clock.Current()
	for _, t := range targets {
		s := t.inStreams[c.in]
		if s == nil {
			continue
		}
		s.set(v, now)
		r.notify(c.in, t)
	}
}

func (r *Runtime) notify(in *InPort, act *UserActivation) {
	switch {
	case in.app != nil:
		r.queue.Push(task{app: in.app, activation: act})
	case in.slot != nil:
		act.reportOutput(in)
	}
}

// flowIn pulls the current value of c's source into act, an activation of
// the destination scope, without notifying.
func (r *Runtime) flowIn(c *Connection, act *UserActivation) error {
	src, err := act.env.Resolve(c.out)
	if err != nil {
		return err
	}
	if _, ok := src.LastChanged(); !ok {
		return nil
	}
	act.inStreams[c.in].set(src.latest, r.clock.Current())
	return nil
}

// ActivateRoot activates a user definition with no containing activation.
func (r *Runtime) ActivateRoot(def *UserDefinition, inputs map[string]Value, onOutputChange func(map[string]Value)) (*UserActivation, error) {
	return r.activateUser(def, nil, inputs, onOutputChange)
}

// ActivateClosedDefinition activates a user or native definition that has
// no free references to containing scopes.
func (r *Runtime) ActivateClosedDefinition(def Definition, inputs map[string]Value, onOutputChange func(map[string]Value)) (Activation, error) {
	return r.ActivateClosure(&Closure{Definition: def}, inputs, onOutputChange)
}

// ActivateClosure activates the closure's definition inside its containing
// activation. Outputs written after activation are reported through
// onOutputChange; initial outputs are available from Outputs.
func (r *Runtime) ActivateClosure(cl *Closure, inputs map[string]Value, onOutputChange func(map[string]Value)) (Activation, error) {
	if cl == nil {
		return nil, newInvalidDefinition("closure is nil")
	}
	switch d := cl.Definition.(type) {
	case *UserDefinition:
		a, err := r.activateUser(d, cl.Containing, inputs, onOutputChange)
		if err != nil {
			return nil, err
		}
		return a, nil
	case *NativeDefinition:
		h, err := r.activateNative(d, cl.Containing, inputs, onOutputChange)
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, newInvalidDefinition("unsupported definition %T", cl.Definition)
	}
}

func (r *Runtime) activateUser(def *UserDefinition, containing *UserActivation, inputs map[string]Value, onOutputChange func(map[string]Value)) (*UserActivation, error) {
	if def == nil {
		return nil, newInvalidDefinition("definition is nil")
	}
	if containing != nil {
		if containing.destroyed {
			return nil, newUnresolvedReference(def.name, "containing activation has been destroyed")
		}
		if containing.def != def.parent {
			return nil, newUnresolvedReference(def.name, "containing activation is not of the parent definition")
		}
	}
	for name := range inputs {
		if def.Input(name) == nil {
			return nil, newUnknownPort(def.name, name)
		}
	}
	if err := checkFreeReferences(def, containing); err != nil {
		return nil, err
	}

	r.actSeq++
	a := &UserActivation{
		id:             r.actSeq,
		rt:             r,
		def:            def,
		containing:     containing,
		inStreams:      make(map[*InPort]*Stream),
		natives:        make(map[*Application]*nativeActivation),
		contained:      make(map[*UserDefinition][]*UserActivation),
		onOutputChange: onOutputChange,
	}
	var parentEnv *environment
	if containing != nil {
		parentEnv = containing.env
	}
	a.env = newEnvironment(def, parentEnv)

	now := r.clock.Current()
	for _, port := range def.inputs {
		s := newStream()
		if v, ok := inputs[port.name]; ok {
			s.set(v, now)
		}
		a.env.bind(port, s)
	}
	for _, d := range def.definitions {
		r.bindFunction(a, d)
	}
	for _, app := range r.byPriority(def.applications) {
		if err := r.activateNativeApplication(app, a); err != nil {
			a.Destroy()
			return nil, err
		}
	}
	for _, port := range def.outputs {
		a.inStreams[port] = newStream()
		if c := port.connection; c != nil && port.tempo == TempoStep {
			if err := r.flowIn(c, a); err != nil {
				a.Destroy()
				return nil, err
			}
		}
	}

	def.activations = append(def.activations, a)
	if containing != nil {
		containing.contained[def] = append(containing.contained[def], a)
	}
	r.logger.Debug("activation created", "activation", a.id, "definition", def.name)
	return a, nil
}

// checkFreeReferences verifies that every connection entering def's scope
// from an outer scope resolves through containing.
func checkFreeReferences(def *UserDefinition, containing *UserActivation) error {
	var env *environment
	if containing != nil {
		env = containing.env
	}
	check := func(c *Connection) error {
		if c == nil || c.out.scope == def {
			return nil
		}
		if env == nil {
			return newUnresolvedReference(c.out.String(), "no containing activation for scope "+c.out.scope.name)
		}
		_, err := env.Resolve(c.out)
		return err
	}
	for _, app := range def.applications {
		for _, in := range app.inputs {
			if err := check(in.connection); err != nil {
				return err
			}
		}
	}
	for _, out := range def.outputs {
		if err := check(out.connection); err != nil {
			return err
		}
	}
	return nil
}

// bindFunction exposes d as a closure over act on d's function port.
func (r *Runtime) bindFunction(act *UserActivation, d *UserDefinition) {
	s := newStream()
	s.set(&Closure{Definition: d, Containing: act}, r.clock.Current())
	act.env.bind(d.fn, s)
}

// activateNativeApplication creates app's streams and native instance in
// act. Step inputs pull their current values; outputs written during
// creation are stored without flowing.
func (r *Runtime) activateNativeApplication(app *Application, act *UserActivation) error {
	for _, in := range app.inputs {
		act.inStreams[in] = newStream()
		if c := in.connection; c != nil && in.tempo == TempoStep {
			if err := r.flowIn(c, act); err != nil {
				return err
			}
		}
	}
	for _, out := range app.outputs {
		act.env.bind(out, newStream())
	}

	ctx := r.newNativeContext(app.native, app, act)
	ctx.emit = func(outputs map[string]Value) {
		r.emitApplication(ctx, app, act, outputs)
	}
	na := &nativeActivation{ctx: ctx}
	act.natives[app] = na

	ctx.creating = true
	na.create()
	if len(app.inputs) > 0 {
		na.update(r.gatherInputs(app, act, true))
	}
	ctx.creating = false

	now := r.clock.Current()
	for _, out := range app.outputs {
		s := act.env.bindings[out]
		if _, ok := s.LastChanged(); !ok {
			s.set(nil, now)
		}
	}
	return nil
}

func (r *Runtime) emitApplication(ctx *NativeContext, app *Application, act *UserActivation, outputs map[string]Value) {
	now := r.clock.Current()
	for _, out := range app.outputs {
		v, ok := outputs[out.name]
		if !ok {
			continue
		}
		r.writeSeq++
		r.observer.StreamWritten(ir.StreamWrite{
			Instant:     int64(now),
			Seq:         r.writeSeq,
			Activation:  act.id,
			Application: app.name,
			Port:        out.name,
			Value:       TraceValue(v),
		})
		if ctx.creating {
			act.env.bindings[out].set(v, now)
			continue
		}
		r.setFlowOutPort(out, act, v)
	}
	if !ctx.creating {
		r.pumpIfIdle()
	}
}

// activateNative activates a native definition outside of any application.
// Its outputs go only to onOutputChange.
func (r *Runtime) activateNative(def *NativeDefinition, containing *UserActivation, inputs map[string]Value, onOutputChange func(map[string]Value)) (*nativeHandle, error) {
	if err := r.validateNative(def); err != nil {
		return nil, err
	}
	if containing != nil && containing.destroyed {
		return nil, newUnresolvedReference(def.Name, "containing activation has been destroyed")
	}
	for name := range inputs {
		if !hasPort(def.Signature.Inputs, name) {
			return nil, newUnknownPort(def.Name, name)
		}
	}

	ctx := r.newNativeContext(def, nil, containing)
	h := &nativeHandle{
		na:      &nativeActivation{ctx: ctx},
		native:  def,
		last:    make(map[string]Value),
		outputs: make(map[string]Value),
	}
	ctx.emit = func(outputs map[string]Value) {
		maps.Copy(h.outputs, outputs)
		if !ctx.creating && onOutputChange != nil {
			onOutputChange(maps.Clone(outputs))
		}
	}

	ctx.creating = true
	h.na.create()
	if len(def.Signature.Inputs) > 0 {
		h.na.update(h.view(inputs, true))
	}
	ctx.creating = false
	return h, nil
}

func (r *Runtime) newNativeContext(native *NativeDefinition, app *Application, act *UserActivation) *NativeContext {
	logger := r.logger.With("native", native.Name)
	if app != nil {
		logger = logger.With("application", app.name)
	}
	if act != nil {
		logger = logger.With("activation", act.id)
	}
	return &NativeContext{
		rt:         r,
		native:     native,
		app:        app,
		activation: act,
		logger:     logger,
	}
}
