package natives

import (
	"fmt"

	"github.com/roach88/rindel/internal/engine"
)

// NewDisplay is the "display" factory: input "value" rendered as step
// output "text". Config: tempo of the input (default "event").
func NewDisplay(config map[string]any) (Native, error) {
	if err := checkKeys(config, "tempo"); err != nil {
		return nil, err
	}
	tempo, err := configTempo(config, engine.TempoEvent)
	if err != nil {
		return nil, err
	}
	return static{&engine.NativeDefinition{
		Name: "display",
		Signature: engine.Signature{
			Inputs:  []engine.PortSpec{{Name: "value", Tempo: tempo}},
			Outputs: []engine.PortSpec{{Name: "text", Tempo: engine.TempoStep}},
		},
		Update: func(ctx *engine.NativeContext, in engine.Inputs) {
			i := in["value"]
			if !i.Present && !i.Changed {
				return
			}
			if i.Value == nil {
				return
			}
			ctx.SetOutputs(map[string]engine.Value{"text": fmt.Sprint(i.Value)})
		},
	}}, nil
}

// NewConstant is the "constant" factory: step output "out" fixed to
// config "value".
func NewConstant(config map[string]any) (Native, error) {
	if err := checkKeys(config, "value"); err != nil {
		return nil, err
	}
	v, ok := config["value"]
	if !ok {
		return nil, fmt.Errorf("config \"value\" is required")
	}
	return static{&engine.NativeDefinition{
		Name: "constant",
		Signature: engine.Signature{
			Outputs: []engine.PortSpec{{Name: "out", Tempo: engine.TempoStep}},
		},
		Create: func(ctx *engine.NativeContext) {
			ctx.SetOutputs(map[string]engine.Value{"out": v})
		},
	}}, nil
}

// NewAdd is the "add" factory: step output "sum" of step inputs "a" and
// "b". Undefined inputs count as zero; non-integers leave the sum alone.
func NewAdd(config map[string]any) (Native, error) {
	if err := checkKeys(config); err != nil {
		return nil, err
	}
	return static{&engine.NativeDefinition{
		Name: "add",
		Signature: engine.Signature{
			Inputs: []engine.PortSpec{
				{Name: "a", Tempo: engine.TempoStep},
				{Name: "b", Tempo: engine.TempoStep},
			},
			Outputs: []engine.PortSpec{{Name: "sum", Tempo: engine.TempoStep}},
		},
		Update: func(ctx *engine.NativeContext, in engine.Inputs) {
			a, okA := toInt(in["a"].Value)
			b, okB := toInt(in["b"].Value)
			if !okA || !okB {
				ctx.Logger().Warn("add ignored non-integer input", "a", in["a"].Value, "b", in["b"].Value)
				return
			}
			ctx.SetOutputs(map[string]engine.Value{"sum": a + b})
		},
	}}, nil
}

// NewEventCount is the "event_count" factory: step output "count" of how
// many events arrived on input "events".
func NewEventCount(config map[string]any) (Native, error) {
	if err := checkKeys(config); err != nil {
		return nil, err
	}
	return static{&engine.NativeDefinition{
		Name: "event_count",
		Signature: engine.Signature{
			Inputs:  []engine.PortSpec{{Name: "events", Tempo: engine.TempoEvent}},
			Outputs: []engine.PortSpec{{Name: "count", Tempo: engine.TempoStep}},
		},
		Create: func(ctx *engine.NativeContext) {
			ctx.SetState(int64(0))
			ctx.SetOutputs(map[string]engine.Value{"count": int64(0)})
		},
		Update: func(ctx *engine.NativeContext, in engine.Inputs) {
			if _, ok := in.Event("events"); !ok {
				return
			}
			n := ctx.State().(int64) + 1
			ctx.SetState(n)
			ctx.SetOutputs(map[string]engine.Value{"count": n})
		},
	}}, nil
}

// NewHold is the "hold" factory: step output "latest" keeps the most
// recent event from input "value".
func NewHold(config map[string]any) (Native, error) {
	if err := checkKeys(config); err != nil {
		return nil, err
	}
	return static{&engine.NativeDefinition{
		Name: "hold",
		Signature: engine.Signature{
			Inputs:  []engine.PortSpec{{Name: "value", Tempo: engine.TempoEvent}},
			Outputs: []engine.PortSpec{{Name: "latest", Tempo: engine.TempoStep}},
		},
		Update: func(ctx *engine.NativeContext, in engine.Inputs) {
			if v, ok := in.Event("value"); ok {
				ctx.SetOutputs(map[string]engine.Value{"latest": v})
			}
		},
	}}, nil
}
