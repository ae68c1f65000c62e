package natives

import (
	"fmt"

	"github.com/roach88/rindel/internal/engine"
)

// hosted tracks the native contexts of a host-driven native per containing
// activation. Closed closures are keyed by a nil activation.
type hosted struct {
	contexts map[*engine.UserActivation]*engine.NativeContext
}

func newHosted() hosted {
	return hosted{contexts: make(map[*engine.UserActivation]*engine.NativeContext)}
}

func (h hosted) track(ctx *engine.NativeContext) {
	h.contexts[ctx.Activation()] = ctx
}

func (h hosted) forget(ctx *engine.NativeContext) {
	delete(h.contexts, ctx.Activation())
}

func (h hosted) lookup(name string, act *engine.UserActivation) (*engine.NativeContext, error) {
	ctx, ok := h.contexts[act]
	if !ok {
		if act == nil {
			return nil, fmt.Errorf("%s: no closed activation", name)
		}
		return nil, fmt.Errorf("%s: not active in activation %d", name, act.ID())
	}
	return ctx, nil
}

// Source is a host-driven native with a single output "out". It stands in
// for input devices such as pointer position, button state or frame time.
//
// Config: tempo ("step" or "event", default "step"), initial (step only,
// written on creation).
type Source struct {
	hosted
	def *engine.NativeDefinition
}

// NewSource is the "source" factory.
func NewSource(config map[string]any) (Native, error) {
	if err := checkKeys(config, "tempo", "initial"); err != nil {
		return nil, err
	}
	tempo, err := configTempo(config, engine.TempoStep)
	if err != nil {
		return nil, err
	}
	initial, hasInitial := config["initial"]
	if hasInitial && tempo == engine.TempoEvent {
		return nil, fmt.Errorf("config \"initial\" is only valid for step sources")
	}

	s := &Source{hosted: newHosted()}
	s.def = &engine.NativeDefinition{
		Name: "source",
		Signature: engine.Signature{
			Outputs: []engine.PortSpec{{Name: "out", Tempo: tempo}},
		},
		Create: func(ctx *engine.NativeContext) {
			s.track(ctx)
			if hasInitial {
				ctx.SetOutputs(map[string]engine.Value{"out": initial})
			}
		},
		Destroy: s.forget,
	}
	return s, nil
}

// Definition implements Native.
func (s *Source) Definition() *engine.NativeDefinition { return s.def }

// Emit writes v to the source's output in act and propagates it.
func (s *Source) Emit(act *engine.UserActivation, v engine.Value) error {
	ctx, err := s.lookup("source", act)
	if err != nil {
		return err
	}
	ctx.SetOutputs(map[string]engine.Value{"out": v})
	return nil
}

// Counter is a host-driven native whose event output "tick" carries an
// incrementing count, one per poke.
type Counter struct {
	hosted
	def *engine.NativeDefinition
}

// NewCounter is the "counter" factory. It takes no config.
func NewCounter(config map[string]any) (Native, error) {
	if err := checkKeys(config); err != nil {
		return nil, err
	}
	c := &Counter{hosted: newHosted()}
	c.def = &engine.NativeDefinition{
		Name: "counter",
		Signature: engine.Signature{
			Outputs: []engine.PortSpec{{Name: "tick", Tempo: engine.TempoEvent}},
		},
		Create: func(ctx *engine.NativeContext) {
			c.track(ctx)
			ctx.SetState(int64(0))
		},
		Destroy: c.forget,
	}
	return c, nil
}

// Definition implements Native.
func (c *Counter) Definition() *engine.NativeDefinition { return c.def }

// Poke increments the count in act and emits it.
func (c *Counter) Poke(act *engine.UserActivation) error {
	ctx, err := c.lookup("counter", act)
	if err != nil {
		return err
	}
	n := ctx.State().(int64) + 1
	ctx.SetState(n)
	ctx.SetOutputs(map[string]engine.Value{"tick": n})
	return nil
}

// Emit implements Emitter; the value is ignored.
func (c *Counter) Emit(act *engine.UserActivation, _ engine.Value) error {
	return c.Poke(act)
}
