package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rindel/internal/testutil"
)

func buildCounterDisplay(t *testing.T, rt *Runtime) (*probe, *Application, *UserActivation) {
	t.Helper()
	root := mustRoot(t, rt, WithDefinitionName("main"))
	counter := sourceProbe(TempoEvent)
	display := displayProbe()
	c := mustApp(t, rt, root, counter, "counter")
	d := mustApp(t, rt, root, display, "display")
	mustConnect(t, rt, c.Output("out"), d.Input("value"))
	return counter, d, mustActivate(t, rt, root, nil)
}

func TestRuntime_CounterDisplay(t *testing.T) {
	rt := New()
	counter, display, act := buildCounterDisplay(t, rt)
	text := act.OutputStream(display.Output("text"))

	for i := 1; i <= 3; i++ {
		counter.emit(0, i)
		assert.Equal(t, fmt.Sprint(i), text.Latest())

		in, err := rt.Inputs(display, act)
		require.NoError(t, err)
		assert.False(t, in["value"].Present, "event must not be visible after its instant")
	}
	assert.Equal(t, Instant(4), rt.CurrentInstant())
}

func TestRuntime_PumpWithEmptyQueueKeepsClock(t *testing.T) {
	rt := New()
	rt.Pump()
	assert.Equal(t, Instant(1), rt.CurrentInstant())

	buildCounterDisplay(t, rt)
	rt.Pump()
	assert.Equal(t, Instant(1), rt.CurrentInstant(), "activation alone must not advance the clock")
}

func TestRuntime_WithStartInstant(t *testing.T) {
	rt := New(WithStartInstant(10))
	counter, _, _ := buildCounterDisplay(t, rt)
	counter.emit(0, 1)
	assert.Equal(t, Instant(11), rt.CurrentInstant())
}

func TestRuntime_EventDoesNotLeakIntoLaterInstants(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	ev := sourceProbe(TempoEvent)
	st := sourceProbe(TempoStep)
	sink := sinkProbe(PortSpec{Name: "in", Tempo: TempoEvent}, PortSpec{Name: "trigger", Tempo: TempoStep})
	evApp := mustApp(t, rt, root, ev, "ev")
	stApp := mustApp(t, rt, root, st, "st")
	sinkApp := mustApp(t, rt, root, sink, "sink")
	mustConnect(t, rt, evApp.Output("out"), sinkApp.Input("in"))
	mustConnect(t, rt, stApp.Output("out"), sinkApp.Input("trigger"))
	mustActivate(t, rt, root, nil)

	ev.emit(0, "x")
	assert.Equal(t, Input{Value: "x", Present: true}, sink.last()["in"])

	st.emit(0, 1)
	assert.Equal(t, Input{}, sink.last()["in"])
	assert.Equal(t, Input{Value: 1, Changed: true}, sink.last()["trigger"])

	ev.emit(0, "y")
	assert.Equal(t, Input{Value: "y", Present: true}, sink.last()["in"])
	assert.Equal(t, Input{Value: 1, Changed: false}, sink.last()["trigger"])
}

func TestRuntime_StepChangedFlag(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	a := sourceProbe(TempoStep)
	b := sourceProbe(TempoStep)
	sink := sinkProbe(PortSpec{Name: "a", Tempo: TempoStep}, PortSpec{Name: "b", Tempo: TempoStep})
	aApp := mustApp(t, rt, root, a, "a")
	bApp := mustApp(t, rt, root, b, "b")
	sinkApp := mustApp(t, rt, root, sink, "sink")
	mustConnect(t, rt, aApp.Output("out"), sinkApp.Input("a"))
	mustConnect(t, rt, bApp.Output("out"), sinkApp.Input("b"))
	mustActivate(t, rt, root, nil)

	require.Len(t, sink.updates, 1)
	assert.True(t, sink.updates[0]["a"].Changed, "initial update reports every step input as changed")
	assert.True(t, sink.updates[0]["b"].Changed)

	a.emit(0, 1)
	assert.Equal(t, Input{Value: 1, Changed: true}, sink.last()["a"])

	b.emit(0, 2)
	assert.Equal(t, Input{Value: 1, Changed: false}, sink.last()["a"])
	assert.Equal(t, Input{Value: 2, Changed: true}, sink.last()["b"])

	a.emit(0, 3)
	assert.Equal(t, Input{Value: 3, Changed: true}, sink.last()["a"])
	assert.Equal(t, Input{Value: 2, Changed: false}, sink.last()["b"])
}

func TestRuntime_CycleRejected(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	a := mustApp(t, rt, root, relayProbe(TempoStep), "a")
	b := mustApp(t, rt, root, relayProbe(TempoStep), "b")
	mustConnect(t, rt, a.Output("out"), b.Input("in"))
	pa, pb := a.Priority(), b.Priority()

	err := rt.IsValidConnection(b.Output("out"), a.Input("in"))
	assert.True(t, IsCycleError(err))

	_, err = rt.AddConnection(b.Output("out"), a.Input("in"))
	require.Error(t, err)
	assert.True(t, IsCycleError(err))
	assert.Contains(t, err.Error(), "a -> b -> a")

	assert.Equal(t, pa, a.Priority(), "priorities must be unchanged after a rejected edit")
	assert.Equal(t, pb, b.Priority())
	assert.Nil(t, a.Input("in").Connection())
	assert.Empty(t, b.Output("out").Connections())
}

func TestRuntime_SelfLoopRejected(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	a := mustApp(t, rt, root, relayProbe(TempoEvent), "a")

	_, err := rt.AddConnection(a.Output("out"), a.Input("in"))
	assert.True(t, IsCycleError(err))
	assert.Contains(t, err.Error(), "a -> a")
}

func TestRuntime_PrioritiesArePaddedTopologicalOrder(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)

	apps := make([]*Application, 11)
	for i := range apps {
		apps[i] = mustApp(t, rt, root, relayProbe(TempoStep), fmt.Sprintf("r%d", i))
	}
	for i := 0; i+1 < len(apps); i++ {
		mustConnect(t, rt, apps[i].Output("out"), apps[i+1].Input("in"))
	}

	assert.Equal(t, "00", apps[0].Priority())
	assert.Equal(t, "10", apps[10].Priority())
	for i := 0; i+1 < len(apps); i++ {
		assert.Len(t, apps[i].Priority(), 2)
		assert.Less(t, apps[i].Priority(), apps[i+1].Priority())
	}
}

func TestRuntime_PrioritiesFollowEdgesNotCreationOrder(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	z := make([]*Application, 4)
	for i := range z {
		z[i] = mustApp(t, rt, root, relayProbe(TempoStep), fmt.Sprintf("z%d", i))
	}
	for i := len(z) - 1; i > 0; i-- {
		mustConnect(t, rt, z[i].Output("out"), z[i-1].Input("in"))
	}

	assert.Equal(t, "0", z[3].Priority())
	assert.Equal(t, "3", z[0].Priority())
}

func TestRuntime_InvalidConnections(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt, WithDefinitionName("root"))
	inner := mustContained(t, rt, root, WithDefinitionName("inner"))

	step1 := mustApp(t, rt, root, sourceProbe(TempoStep), "step1")
	step2 := mustApp(t, rt, root, sourceProbe(TempoStep), "step2")
	display := mustApp(t, rt, root, displayProbe(), "display")
	outerSink := mustApp(t, rt, root, sinkProbe(PortSpec{Name: "in", Tempo: TempoStep}), "outer-sink")
	innerRelay := mustApp(t, rt, inner, relayProbe(TempoStep), "inner-relay")

	tests := []struct {
		name string
		out  *OutPort
		in   *InPort
	}{
		{"tempo mismatch", step1.Output("out"), display.Input("value")},
		{"inner to outer", innerRelay.Output("out"), outerSink.Input("in")},
		{"nil output", nil, outerSink.Input("in")},
		{"nil input", step1.Output("out"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsInvalidConnection(rt.IsValidConnection(tt.out, tt.in)))
			_, err := rt.AddConnection(tt.out, tt.in)
			assert.True(t, IsInvalidConnection(err))
		})
	}

	t.Run("already connected", func(t *testing.T) {
		mustConnect(t, rt, step1.Output("out"), outerSink.Input("in"))
		_, err := rt.AddConnection(step2.Output("out"), outerSink.Input("in"))
		assert.True(t, IsInvalidConnection(err))
	})

	t.Run("outer to inner is valid", func(t *testing.T) {
		assert.NoError(t, rt.IsValidConnection(step2.Output("out"), innerRelay.Input("in")))
		assert.Nil(t, innerRelay.Input("in").Connection(), "validation must not connect")
	})
}

func TestRuntime_FanOutIntoNestedActivations(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	src := sourceProbe(TempoStep)
	srcApp := mustApp(t, rt, root, src, "src")
	inner := mustContained(t, rt, root, WithDefinitionName("inner"))
	sink := sinkProbe(PortSpec{Name: "in", Tempo: TempoStep})
	sinkApp := mustApp(t, rt, inner, sink, "sink")

	c := mustConnect(t, rt, srcApp.Output("out"), sinkApp.Input("in"))
	assert.Equal(t, []*UserDefinition{inner}, c.Path())

	act := mustActivate(t, rt, root, nil)
	src.emit(0, 1)
	assert.Equal(t, Instant(1), rt.CurrentInstant(), "no reachable activations means nothing to pump")

	cl := closureOf(t, act, inner)
	for i := 0; i < 3; i++ {
		_, err := rt.ActivateClosure(cl, nil, nil)
		require.NoError(t, err)
	}
	require.Len(t, sink.updates, 3)
	for _, u := range sink.updates {
		assert.Equal(t, Input{Value: 1, Changed: true}, u["in"])
	}

	src.emit(0, 5)
	require.Len(t, sink.updates, 6, "each nested activation updates exactly once")
	for _, u := range sink.updates[3:] {
		assert.Equal(t, Input{Value: 5, Changed: true}, u["in"])
	}
	assert.Equal(t, Instant(2), rt.CurrentInstant())
	assert.Len(t, act.ContainedActivations(inner), 3)
}

func TestRuntime_DuplicateTasksCollapse(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	rt := New(WithObserver(rec))
	root := mustRoot(t, rt)
	pair := newProbe("pair", Signature{Outputs: []PortSpec{{Name: "x", Tempo: TempoStep}, {Name: "y", Tempo: TempoStep}}}, nil)
	sink := sinkProbe(PortSpec{Name: "x", Tempo: TempoStep}, PortSpec{Name: "y", Tempo: TempoStep})
	pairApp := mustApp(t, rt, root, pair, "pair")
	sinkApp := mustApp(t, rt, root, sink, "sink")
	mustConnect(t, rt, pairApp.Output("x"), sinkApp.Input("x"))
	mustConnect(t, rt, pairApp.Output("y"), sinkApp.Input("y"))
	mustActivate(t, rt, root, nil)

	pair.contexts[0].SetOutputs(map[string]Value{"x": 1, "y": 2})

	require.Len(t, sink.updates, 2, "initial update plus one collapsed update")
	assert.Equal(t, Input{Value: 1, Changed: true}, sink.last()["x"])
	assert.Equal(t, Input{Value: 2, Changed: true}, sink.last()["y"])

	instants := rec.Instants()
	require.Len(t, instants, 1)
	assert.Equal(t, int64(1), instants[0].Instant)
	assert.Equal(t, 1, instants[0].Tasks)
}

func TestRuntime_UnresolvedReference(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	srcApp := mustApp(t, rt, root, sourceProbe(TempoStep), "src")
	inner := mustContained(t, rt, root, WithDefinitionName("inner"))
	sinkApp := mustApp(t, rt, inner, sinkProbe(PortSpec{Name: "in", Tempo: TempoStep}), "sink")
	mustConnect(t, rt, srcApp.Output("out"), sinkApp.Input("in"))

	_, err := rt.ActivateClosedDefinition(inner, nil, nil)
	assert.True(t, IsUnresolvedReference(err))

	act := mustActivate(t, rt, root, nil)
	cl := closureOf(t, act, inner)
	act.Destroy()
	_, err = rt.ActivateClosure(cl, nil, nil)
	assert.True(t, IsUnresolvedReference(err))
}

func TestRuntime_ClosureMustMatchParent(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	other := mustRoot(t, rt)
	inner := mustContained(t, rt, root)
	otherAct := mustActivate(t, rt, other, nil)

	_, err := rt.ActivateClosure(&Closure{Definition: inner, Containing: otherAct}, nil, nil)
	assert.True(t, IsUnresolvedReference(err))
}

func TestRuntime_ClosedContainedDefinitionActivates(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	inner := mustContained(t, rt, root)
	mustApp(t, rt, inner, sourceProbe(TempoStep), "src")

	a, err := rt.ActivateClosedDefinition(inner, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestRuntime_MutationWhileDrainingPanics(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	src := sourceProbe(TempoStep)
	mutator := newProbe("mutator", Signature{Inputs: []PortSpec{{Name: "in", Tempo: TempoStep}}}, func(ctx *NativeContext, in Inputs) {
		if in["in"].Value != nil {
			_, _ = rt.AddRootUserDefinition()
		}
	})
	srcApp := mustApp(t, rt, root, src, "src")
	mutApp := mustApp(t, rt, root, mutator, "mutator")
	mustConnect(t, rt, srcApp.Output("out"), mutApp.Input("in"))
	mustActivate(t, rt, root, nil)

	got := recoverPanic(func() { src.emit(0, 1) })
	err, ok := got.(*Error)
	require.True(t, ok, "expected *Error panic, got %v", got)
	assert.True(t, IsReentrantMutation(err))
	assert.Equal(t, "AddRootUserDefinition", err.Details["operation"])

	assert.False(t, rt.Pumping())
	assert.Equal(t, 0, rt.QueueLen())
	assert.Len(t, rt.Roots(), 1)
}

func TestRuntime_PumpWhileDrainingPanics(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	src := sourceProbe(TempoEvent)
	pumper := newProbe("pumper", Signature{Inputs: []PortSpec{{Name: "in", Tempo: TempoEvent}}}, func(ctx *NativeContext, in Inputs) {
		if _, ok := in.Event("in"); ok {
			rt.Pump()
		}
	})
	srcApp := mustApp(t, rt, root, src, "src")
	pApp := mustApp(t, rt, root, pumper, "pumper")
	mustConnect(t, rt, srcApp.Output("out"), pApp.Input("in"))
	mustActivate(t, rt, root, nil)

	got := recoverPanic(func() { src.emit(0, "go") })
	err, ok := got.(*Error)
	require.True(t, ok)
	assert.True(t, IsReentrantMutation(err))
	assert.False(t, rt.Pumping())
}

func TestRuntime_UserDefinitionSignature(t *testing.T) {
	rt := New()
	def := mustRoot(t, rt, WithDefinitionName("inc"), WithSignature(Signature{
		Inputs:  []PortSpec{{Name: "x", Tempo: TempoStep}},
		Outputs: []PortSpec{{Name: "y", Tempo: TempoStep}},
	}))
	add := newProbe("add1", Signature{
		Inputs:  []PortSpec{{Name: "in", Tempo: TempoStep}},
		Outputs: []PortSpec{{Name: "out", Tempo: TempoStep}},
	}, func(ctx *NativeContext, in Inputs) {
		if v, ok := in["in"].Value.(int); ok {
			ctx.SetOutputs(map[string]Value{"out": v + 1})
		}
	})
	addApp := mustApp(t, rt, def, add, "add1")
	mustConnect(t, rt, def.Input("x"), addApp.Input("in"))
	mustConnect(t, rt, addApp.Output("out"), def.Output("y"))

	var changes []map[string]Value
	act, err := rt.ActivateRoot(def, map[string]Value{"x": 1}, func(o map[string]Value) {
		changes = append(changes, o)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, act.Outputs()["y"])
	assert.Empty(t, changes, "initial outputs are read, not reported")

	require.NoError(t, act.Update(map[string]Value{"x": 5}))
	assert.Equal(t, []map[string]Value{{"y": 6}}, changes)
	assert.Equal(t, 6, act.Outputs()["y"])

	assert.True(t, IsUnknownPort(act.Update(map[string]Value{"nope": 1})))

	act.Destroy()
	assert.True(t, IsDestroyedActivation(act.Update(map[string]Value{"x": 2})))
}

func TestRuntime_InvalidSignatureRejected(t *testing.T) {
	rt := New()
	_, err := rt.AddRootUserDefinition(WithSignature(Signature{Inputs: []PortSpec{{Name: "x", Tempo: "sometimes"}}}))
	assert.True(t, IsInvalidDefinition(err))

	_, err = rt.AddRootUserDefinition(WithSignature(Signature{Outputs: []PortSpec{{Name: "y", Tempo: TempoStep}, {Name: "y", Tempo: TempoEvent}}}))
	assert.True(t, IsInvalidDefinition(err))
}

func TestRuntime_InvalidNativeRejected(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)

	_, err := rt.AddNativeApplication(root, &NativeDefinition{})
	assert.True(t, IsInvalidDefinition(err))

	_, err = rt.AddNativeApplication(root, &NativeDefinition{
		Name:      "no-update",
		Signature: Signature{Inputs: []PortSpec{{Name: "in", Tempo: TempoStep}}},
	})
	assert.True(t, IsInvalidDefinition(err))
}

func TestRuntime_UnknownOutputPanics(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	src := sourceProbe(TempoStep)
	mustApp(t, rt, root, src, "src")
	mustActivate(t, rt, root, nil)

	got := recoverPanic(func() { src.contexts[0].SetOutputs(map[string]Value{"bogus": 1}) })
	err, ok := got.(*Error)
	require.True(t, ok)
	assert.True(t, IsUnknownPort(err))
}

func TestRuntime_DisconnectFlowsUndefined(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	src := sourceProbe(TempoStep)
	sink := sinkProbe(PortSpec{Name: "in", Tempo: TempoStep})
	srcApp := mustApp(t, rt, root, src, "src")
	sinkApp := mustApp(t, rt, root, sink, "sink")
	c := mustConnect(t, rt, srcApp.Output("out"), sinkApp.Input("in"))
	mustActivate(t, rt, root, nil)

	src.emit(0, 3)
	assert.Equal(t, Input{Value: 3, Changed: true}, sink.last()["in"])

	require.NoError(t, rt.Disconnect(c))
	assert.Equal(t, Input{Value: nil, Changed: true}, sink.last()["in"])
	assert.Nil(t, sinkApp.Input("in").Connection())
	assert.Equal(t, Instant(3), rt.CurrentInstant())

	assert.True(t, IsInvalidConnection(rt.Disconnect(c)))
}

func TestRuntime_RemoveApplication(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	src := sourceProbe(TempoStep)
	sink := sinkProbe(PortSpec{Name: "in", Tempo: TempoStep})
	srcApp := mustApp(t, rt, root, src, "src")
	sinkApp := mustApp(t, rt, root, sink, "sink")
	mustConnect(t, rt, srcApp.Output("out"), sinkApp.Input("in"))
	act := mustActivate(t, rt, root, nil)

	require.NoError(t, rt.RemoveApplication(sinkApp))
	assert.Equal(t, []int64{act.ID()}, sink.destroyed)
	assert.Equal(t, []*Application{srcApp}, root.Applications())
	assert.Empty(t, srcApp.Output("out").Connections())

	before := rt.CurrentInstant()
	src.emit(0, 1)
	assert.Equal(t, before, rt.CurrentInstant(), "removed applications receive no tasks")

	assert.True(t, IsInvalidDefinition(rt.RemoveApplication(sinkApp)))
	_, err := rt.AddConnection(srcApp.Output("out"), sinkApp.Input("in"))
	assert.True(t, IsInvalidConnection(err))
}

func TestRuntime_AddConnectionFlowsCurrentStepValue(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	src := sourceProbe(TempoStep)
	sink := sinkProbe(PortSpec{Name: "in", Tempo: TempoStep})
	srcApp := mustApp(t, rt, root, src, "src")
	sinkApp := mustApp(t, rt, root, sink, "sink")
	mustActivate(t, rt, root, nil)

	src.emit(0, 9)
	require.Len(t, sink.updates, 1)

	mustConnect(t, rt, srcApp.Output("out"), sinkApp.Input("in"))
	require.Len(t, sink.updates, 2)
	assert.Equal(t, Input{Value: 9, Changed: true}, sink.last()["in"])
}

func TestRuntime_AddEventConnectionDoesNotFlow(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	src := sourceProbe(TempoEvent)
	sink := sinkProbe(PortSpec{Name: "in", Tempo: TempoEvent})
	srcApp := mustApp(t, rt, root, src, "src")
	sinkApp := mustApp(t, rt, root, sink, "sink")
	mustActivate(t, rt, root, nil)

	src.emit(0, "gone")
	mustConnect(t, rt, srcApp.Output("out"), sinkApp.Input("in"))
	assert.Len(t, sink.updates, 1, "past events are never replayed")
}

func TestRuntime_AddApplicationToLiveActivation(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	mustActivate(t, rt, root, nil)
	mustActivate(t, rt, root, nil)

	src := sourceProbe(TempoStep)
	mustApp(t, rt, root, src, "late")
	assert.Len(t, src.contexts, 2, "every live activation activates the new application")
	assert.Equal(t, 0, rt.QueueLen())
	assert.Equal(t, Instant(1), rt.CurrentInstant())
}

func TestRuntime_ContainedDefinitionExposedToLiveActivations(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	act := mustActivate(t, rt, root, nil)

	inner := mustContained(t, rt, root, WithDefinitionName("inner"))
	cl := closureOf(t, act, inner)
	assert.Same(t, act, cl.Containing)
	assert.Same(t, inner, cl.Definition)
	assert.Empty(t, act.ContainedActivations(inner))
}

func TestRuntime_DestroyTearsDownNestedActivations(t *testing.T) {
	rt := New()
	root := mustRoot(t, rt)
	outer := sourceProbe(TempoStep)
	mustApp(t, rt, root, outer, "outer")
	inner := mustContained(t, rt, root)
	innerSrc := sourceProbe(TempoStep)
	mustApp(t, rt, inner, innerSrc, "inner")

	act := mustActivate(t, rt, root, nil)
	child, err := rt.ActivateClosure(closureOf(t, act, inner), nil, nil)
	require.NoError(t, err)
	childAct := child.(*UserActivation)
	assert.Len(t, rt.Activations(), 2)

	act.Destroy()
	assert.True(t, childAct.Destroyed())
	assert.Equal(t, []int64{childAct.ID()}, innerSrc.destroyed)
	assert.Equal(t, []int64{act.ID()}, outer.destroyed)
	assert.Empty(t, root.Activations())
	assert.Empty(t, inner.Activations())
	assert.Empty(t, rt.Activations())

	act.Destroy()
	assert.Len(t, outer.destroyed, 1, "destroying twice is a no-op")
}

func TestRuntime_NativeClosure(t *testing.T) {
	rt := New()
	double := newProbe("double", Signature{
		Inputs:  []PortSpec{{Name: "in", Tempo: TempoStep}},
		Outputs: []PortSpec{{Name: "out", Tempo: TempoStep}},
	}, func(ctx *NativeContext, in Inputs) {
		if v, ok := in["in"].Value.(int); ok {
			ctx.SetOutputs(map[string]Value{"out": v * 2})
		}
	})

	var got []map[string]Value
	h, err := rt.ActivateClosedDefinition(double.def, map[string]Value{"in": 2}, func(o map[string]Value) {
		got = append(got, o)
	})
	require.NoError(t, err)
	assert.Equal(t, 4, h.Outputs()["out"])
	assert.Empty(t, got)

	require.NoError(t, h.Update(map[string]Value{"in": 5}))
	assert.Equal(t, []map[string]Value{{"out": 10}}, got)
	assert.True(t, IsUnknownPort(h.Update(map[string]Value{"x": 1})))

	h.Destroy()
	assert.Len(t, double.destroyed, 1)
	assert.True(t, IsDestroyedActivation(h.Update(map[string]Value{"in": 1})))
}

func TestRuntime_DeterministicTrace(t *testing.T) {
	run := func() string {
		rec := testutil.NewTraceRecorder()
		rt := New(WithObserver(rec))
		counter, _, _ := buildCounterDisplay(t, rt)
		for i := 1; i <= 3; i++ {
			counter.emit(0, i)
		}
		return rec.Digest()
	}
	assert.Equal(t, run(), run())
}

func TestRuntime_TraceRecordsWrites(t *testing.T) {
	rec := testutil.NewTraceRecorder()
	rt := New(WithObserver(rec))
	counter, _, _ := buildCounterDisplay(t, rt)
	counter.emit(0, 7)

	writes := rec.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "counter", writes[0].Application)
	assert.Equal(t, "display", writes[1].Application)
	assert.Equal(t, "text", writes[1].Port)
	assert.Equal(t, int64(1), writes[1].Instant)
	assert.Equal(t, int64(2), writes[1].Seq)
}

func TestRuntime_OutputValue(t *testing.T) {
	rt := New()
	counter, display, act := buildCounterDisplay(t, rt)
	counter.emit(0, 5)

	v, err := rt.OutputValue(display, "text", act)
	require.NoError(t, err)
	assert.Equal(t, "5", v)

	_, err = rt.OutputValue(display, "nope", act)
	assert.True(t, IsUnknownPort(err))
}
