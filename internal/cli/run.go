package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rindel/internal/engine"
	"github.com/roach88/rindel/internal/harness"
	"github.com/roach88/rindel/internal/ir"
	"github.com/roach88/rindel/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// RunIDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator
}

// RunResult is the outcome of one run command.
type RunResult struct {
	RunID  string          `json:"run_id,omitempty"` // Set when recorded
	Result *harness.Result `json:"result"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Drive a program through a scenario",
		Long: `Drive a program through the steps of a scenario and print what it produced.

With --db the stream writes and instants are recorded in a SQLite trace
database under a fresh run id, which the trace command reads back.

Example:
  rindel run ./scenarios/count_clicks.yaml
  rindel run --db ./rindel.db ./scenarios/count_clicks.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (optional)")

	return cmd
}

func runScenarioCommand(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeScenarioError, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	runOpts := []harness.RunOption{harness.WithLogger(logger)}
	var rec *store.Recorder
	if opts.Database != "" {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		rec, err = newRunRecorder(ctx, opts, st, scenario, logger)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to start run", err)
		}
		runOpts = append(runOpts, harness.WithObserver(rec))
	}

	logger.Info("scenario starting", "scenario", scenario.Name, "program", scenario.Program)
	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeScenarioError, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scenario execution failed", err)
	}
	logger.Info("scenario finished", "scenario", scenario.Name, "instants", len(result.Instants), "writes", len(result.Trace), "pass", result.Pass)

	out := RunResult{Result: result}
	if rec != nil {
		out.RunID = rec.Run().ID
		if err := rec.Err(); err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), map[string]int{"failures": rec.Failures()})
			return WrapExitError(ExitFailure, "trace recording incomplete", err)
		}
	}

	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{Status: validateStatus(result.Pass), Data: out, RunID: out.RunID}); err != nil {
			return err
		}
	} else {
		outputRunText(formatter.Writer, scenario, out)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed with %d error(s)", scenario.Name, len(result.Errors)))
	}
	return nil
}

// newRunRecorder registers a run for the scenario's program and returns
// the observer that stores its trace.
func newRunRecorder(ctx context.Context, opts *RunOptions, st *store.Store, scenario *harness.Scenario, logger *slog.Logger) (*store.Recorder, error) {
	prog, err := LoadProgram(scenario.Program)
	if err != nil {
		return nil, err
	}
	hash, err := ir.ProgramHash(*prog)
	if err != nil {
		return nil, fmt.Errorf("hash program: %w", err)
	}

	gen := opts.RunIDGenerator
	if gen == nil {
		gen = engine.UUIDv7Generator{}
	}
	run := ir.RunRecord{ID: gen.Generate(), Program: prog.Name, ProgramHash: hash}
	rec, err := store.NewRecorder(ctx, st, run, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("recording run", "run", run.ID, "db", opts.Database, "seq", rec.Run().Seq)
	return rec, nil
}

func outputRunText(w io.Writer, scenario *harness.Scenario, out RunResult) {
	result := out.Result
	for _, step := range result.Steps {
		fmt.Fprintf(w, "step %d (instant %d)\n", step.Step, step.Instant)
		keys := make([]string, 0, len(step.Outputs))
		for k := range step.Outputs {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %s\n", k, canonicalString(step.Outputs[k]))
		}
	}
	fmt.Fprintf(w, "\n%d instant(s), %d write(s), digest %s\n", len(result.Instants), len(result.Trace), result.Digest)
	if out.RunID != "" {
		fmt.Fprintf(w, "Recorded run %s\n", out.RunID)
	}

	if result.Pass {
		fmt.Fprintf(w, "✓ %s\n", scenario.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", scenario.Name)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// canonicalString renders a value as canonical JSON.
func canonicalString(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
