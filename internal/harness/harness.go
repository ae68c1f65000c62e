package harness

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/roach88/rindel/internal/compiler"
	"github.com/roach88/rindel/internal/engine"
	"github.com/roach88/rindel/internal/ir"
	"github.com/roach88/rindel/internal/natives"
	"github.com/roach88/rindel/internal/testutil"
)

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	logger    *slog.Logger
	registry  *natives.Registry
	observers engine.Observers
}

// WithLogger sets the logger handed to the runtime. Default: discard.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRegistry sets the native registry. Default: natives.DefaultRegistry().
func WithRegistry(reg *natives.Registry) RunOption {
	return func(c *runConfig) {
		if reg != nil {
			c.registry = reg
		}
	}
}

// WithObserver adds an observer that sees the trace as it is produced,
// e.g. a store.Recorder.
func WithObserver(o engine.Observer) RunOption {
	return func(c *runConfig) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// Harness executes one scenario on a fresh runtime.
type Harness struct {
	rt       *engine.Runtime
	graph    *compiler.Graph
	act      *engine.UserActivation
	trace    *testutil.TraceRecorder
	logger   *slog.Logger
	scenario *Scenario
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs on its own runtime, so scenarios are independent and
// may run concurrently. The runtime's clock and sequence numbers start
// fresh, which makes traces reproducible for golden comparison.
//
// Execution flow:
//  1. Compile the program and build it onto a new runtime
//  2. Activate main with the scenario's inputs
//  3. Execute steps, checking expect clauses after each
//  4. Evaluate assertions against the full trace
//
// An error is returned only when the scenario cannot be executed (bad
// program, unknown application); mismatches are reported in the Result.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		registry: natives.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	prog, err := compiler.Compile(scenario.Program)
	if err != nil {
		return nil, fmt.Errorf("compile program: %w", err)
	}

	trace := testutil.NewTraceRecorder()
	rt := engine.New(
		engine.WithLogger(cfg.logger),
		engine.WithObserver(append(engine.Observers{trace}, cfg.observers...)),
	)
	g, err := compiler.Build(rt, prog, cfg.registry, compiler.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("build program: %w", err)
	}

	act, err := rt.ActivateRoot(g.Main, scenario.Inputs, nil)
	if err != nil {
		return nil, fmt.Errorf("activate %s: %w", prog.Main, err)
	}
	defer act.Destroy()

	h := &Harness{
		rt:       rt,
		graph:    g,
		act:      act,
		trace:    trace,
		logger:   cfg.logger,
		scenario: scenario,
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step, result); err != nil {
			return nil, err
		}
	}

	result.Trace = trace.Writes()
	result.Instants = trace.Instants()
	if result.Digest, err = ir.TraceDigest(result.Trace); err != nil {
		return nil, fmt.Errorf("digest trace: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeStep performs one host action and checks the step's expectations.
func (h *Harness) executeStep(i int, step Step, result *Result) error {
	switch {
	case step.Emit != nil:
		path := h.graph.Program.Main + "/" + step.Emit.App
		em, err := h.graph.Emitter(path)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if err := em.Emit(h.act, step.Emit.Value); err != nil {
			return fmt.Errorf("steps[%d]: emit %s: %w", i, step.Emit.App, err)
		}
	case step.Inputs != nil:
		if err := h.act.Update(step.Inputs); err != nil {
			return fmt.Errorf("steps[%d]: update inputs: %w", i, err)
		}
	}
	h.logger.Debug("scenario step executed", "scenario", h.scenario.Name, "step", i, "instant", int64(h.rt.CurrentInstant()))

	sr := StepResult{Step: i, Instant: int64(h.rt.CurrentInstant())}
	if len(step.Expect) > 0 {
		sr.Outputs = make(map[string]ir.IRValue, len(step.Expect))
	}
	for _, key := range sortedKeys(step.Expect) {
		got, err := h.observe(key)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		sr.Outputs[key] = got

		want, err := ir.FromGo(step.Expect[key])
		if err != nil {
			return fmt.Errorf("steps[%d].expect[%s]: %w", i, key, err)
		}
		if !valuesEqual(got, want) {
			result.AddError(fmt.Sprintf("steps[%d]: %s = %s, want %s", i, key, formatValue(got), formatValue(want)))
		}
	}
	result.Steps = append(result.Steps, sr)
	return nil
}

// observe reads the current value behind an expect key.
func (h *Harness) observe(key string) (ir.IRValue, error) {
	owner, name, err := splitPort(key)
	if err != nil {
		return nil, err
	}
	if owner == "out" {
		outputs := h.act.Outputs()
		v, ok := outputs[name]
		if !ok {
			return nil, fmt.Errorf("%s: %s has no output %q", key, h.graph.Program.Main, name)
		}
		return engine.TraceValue(v), nil
	}

	app, ok := h.graph.Application(h.graph.Program.Main + "/" + owner)
	if !ok {
		return nil, fmt.Errorf("%s: no application %q in %s", key, owner, h.graph.Program.Main)
	}
	v, err := h.rt.OutputValue(app, name, h.act)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return engine.TraceValue(v), nil
}

// valuesEqual compares IR values, treating a missing value as null.
func valuesEqual(a, b ir.IRValue) bool {
	if a == nil {
		a = ir.IRNull{}
	}
	if b == nil {
		b = ir.IRNull{}
	}
	return reflect.DeepEqual(a, b)
}

// formatValue renders a value as canonical JSON for messages.
func formatValue(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
