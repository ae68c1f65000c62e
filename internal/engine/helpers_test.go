package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// probe is a configurable native that records every callback.
type probe struct {
	def       *NativeDefinition
	contexts  []*NativeContext
	updates   []Inputs
	destroyed []int64
}

func newProbe(name string, sig Signature, onUpdate func(ctx *NativeContext, in Inputs)) *probe {
	p := &probe{}
	p.def = &NativeDefinition{
		Name:      name,
		Signature: sig,
		Create: func(ctx *NativeContext) {
			p.contexts = append(p.contexts, ctx)
		},
		Update: func(ctx *NativeContext, in Inputs) {
			p.updates = append(p.updates, in)
			if onUpdate != nil {
				onUpdate(ctx, in)
			}
		},
		Destroy: func(ctx *NativeContext) {
			var id int64
			if a := ctx.Activation(); a != nil {
				id = a.ID()
			}
			p.destroyed = append(p.destroyed, id)
		},
	}
	return p
}

// emit writes out from the i-th activation of the probe.
func (p *probe) emit(i int, v Value) {
	p.contexts[i].SetOutputs(map[string]Value{"out": v})
}

func (p *probe) last() Inputs {
	return p.updates[len(p.updates)-1]
}

func sourceProbe(tempo Tempo) *probe {
	return newProbe("source", Signature{Outputs: []PortSpec{{Name: "out", Tempo: tempo}}}, nil)
}

// sinkProbe records inputs and writes nothing.
func sinkProbe(ins ...PortSpec) *probe {
	return newProbe("sink", Signature{Inputs: ins}, nil)
}

// relayProbe copies in to out whenever in changed or occurred.
func relayProbe(tempo Tempo) *probe {
	sig := Signature{
		Inputs:  []PortSpec{{Name: "in", Tempo: tempo}},
		Outputs: []PortSpec{{Name: "out", Tempo: tempo}},
	}
	return newProbe("relay", sig, func(ctx *NativeContext, in Inputs) {
		i := in["in"]
		if i.Changed || i.Present {
			ctx.SetOutputs(map[string]Value{"out": i.Value})
		}
	})
}

// displayProbe turns an event value into step text.
func displayProbe() *probe {
	sig := Signature{
		Inputs:  []PortSpec{{Name: "value", Tempo: TempoEvent}},
		Outputs: []PortSpec{{Name: "text", Tempo: TempoStep}},
	}
	return newProbe("display", sig, func(ctx *NativeContext, in Inputs) {
		if v, ok := in.Event("value"); ok {
			ctx.SetOutputs(map[string]Value{"text": fmt.Sprint(v)})
		}
	})
}

func mustRoot(t *testing.T, rt *Runtime, opts ...DefinitionOption) *UserDefinition {
	t.Helper()
	def, err := rt.AddRootUserDefinition(opts...)
	require.NoError(t, err)
	return def
}

func mustContained(t *testing.T, rt *Runtime, parent *UserDefinition, opts ...DefinitionOption) *UserDefinition {
	t.Helper()
	def, err := rt.AddContainedUserDefinition(parent, opts...)
	require.NoError(t, err)
	return def
}

func mustApp(t *testing.T, rt *Runtime, def *UserDefinition, p *probe, name string) *Application {
	t.Helper()
	app, err := rt.AddNativeApplication(def, p.def, WithApplicationName(name))
	require.NoError(t, err)
	return app
}

func mustConnect(t *testing.T, rt *Runtime, out *OutPort, in *InPort) *Connection {
	t.Helper()
	c, err := rt.AddConnection(out, in)
	require.NoError(t, err)
	return c
}

func mustActivate(t *testing.T, rt *Runtime, def *UserDefinition, inputs map[string]Value) *UserActivation {
	t.Helper()
	act, err := rt.ActivateRoot(def, inputs, nil)
	require.NoError(t, err)
	return act
}

// closureOf returns the closure exposed for def by act.
func closureOf(t *testing.T, act *UserActivation, def *UserDefinition) *Closure {
	t.Helper()
	s := act.OutputStream(def.FunctionPort())
	require.NotNil(t, s)
	cl, ok := s.Latest().(*Closure)
	require.True(t, ok, "function port should carry a closure")
	return cl
}

// recoverPanic runs fn and returns whatever it panicked with.
func recoverPanic(fn func()) (got any) {
	defer func() { got = recover() }()
	fn()
	return nil
}
