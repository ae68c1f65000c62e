package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/rindel/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
	Parallel int    // scenarios run at once
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Digest string   `json:"digest,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario tests",
		Long: `Run every scenario file in a directory.

Each scenario runs on its own runtime, so --parallel runs several at once.
When <scenarios-dir>/golden/<name>.golden exists the trace must match it
byte for byte; --update rewrites the golden files from the current traces.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  rindel test ./scenarios
  rindel test ./scenarios --filter "show_*"
  rindel test ./scenarios --update
  rindel test ./scenarios --parallel 4 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "number of scenarios to run at once")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", scenariosDir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	paths, err := harness.DiscoverScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(paths) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(formatter, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}
	formatter.VerboseLog("Running %d scenario(s) from %s", len(paths), scenariosDir)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	suite, err := harness.RunSuite(ctx, paths, opts.Parallel, harness.WithLogger(newLogger(opts.RootOptions, cmd)))
	if err != nil {
		return WrapExitError(ExitCommandError, "test run interrupted", err)
	}

	goldenDir := filepath.Join(scenariosDir, "golden")
	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(suite.Scenarios)),
		Total:     len(suite.Scenarios),
	}
	for _, sr := range suite.Scenarios {
		scen := checkScenario(opts, formatter, goldenDir, sr)
		result.Scenarios = append(result.Scenarios, scen)
		if scen.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// checkScenario turns one suite result into a ScenarioResult, comparing
// against or updating its golden file.
func checkScenario(opts *TestOptions, formatter *OutputFormatter, goldenDir string, sr harness.ScenarioResult) ScenarioResult {
	w := formatter.Writer
	text := opts.Format != "json"

	name := sr.Name
	if name == "" {
		name = filepath.Base(sr.Path)
	}
	fail := func(errs ...string) ScenarioResult {
		if text {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		res := ScenarioResult{Name: name, Errors: errs}
		if sr.Result != nil {
			res.Digest = sr.Result.Digest
		}
		return res
	}

	if sr.Err != "" {
		return fail(sr.Err)
	}
	result := sr.Result

	if opts.Update {
		path, err := harness.WriteGolden(goldenDir, sr.Name, result)
		if err != nil {
			return fail(fmt.Sprintf("failed to update golden file: %v", err))
		}
		formatter.VerboseLog("Wrote %s", path)
		if !result.Pass {
			return fail(result.Errors...)
		}
		if text {
			fmt.Fprintf(w, "✓ %s (golden updated)\n", name)
		}
		return ScenarioResult{Name: name, Pass: true, Digest: result.Digest}
	}

	goldenPath := filepath.Join(goldenDir, sr.Name+".golden")
	if _, err := os.Stat(goldenPath); err == nil {
		match, err := harness.CompareGolden(goldenDir, sr.Name, result)
		if err != nil {
			return fail(fmt.Sprintf("golden comparison failed: %v", err))
		}
		if !match {
			return fail(append([]string{"trace does not match golden file (run with --update to regenerate)"}, result.Errors...)...)
		}
	}

	if !result.Pass {
		return fail(result.Errors...)
	}
	if text {
		fmt.Fprintf(w, "✓ %s\n", name)
	}
	return ScenarioResult{Name: name, Pass: true, Digest: result.Digest}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := formatter.encode(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(formatter *OutputFormatter, result TestResult) error {
	w := formatter.Writer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
