package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rindel/internal/compiler"
	"github.com/roach88/rindel/internal/engine"
	"github.com/roach88/rindel/internal/natives"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
	Cycles []compiler.Cycle           `json:"cycles,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <program>",
		Short: "Check a program without running it",
		Long: `Check a CUE program without running it.

Names, native configs and connection references are checked first, then
connection cycles. A program that passes both is built on a scratch
runtime, which rejects tempo mismatches and unknown native ports.

Exit codes:
  0 - Program is valid
  1 - Program is invalid
  2 - Program could not be loaded`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	prog, err := LoadProgram(path)
	if err != nil {
		code, message := loadErrorParts(err)
		_ = formatter.Error(code, message, nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
	}

	result := ValidationResult{Valid: true}
	reg := natives.DefaultRegistry()

	result.Errors = compiler.Validate(prog, reg)
	result.Cycles = compiler.AnalyzeCycles(prog)
	formatter.VerboseLog("Checked %s: %d error(s), %d cycle(s)", prog.Name, len(result.Errors), len(result.Cycles))

	if len(result.Errors) == 0 && len(result.Cycles) == 0 {
		rt := engine.New(engine.WithLogger(newLogger(opts, cmd)))
		if _, err := compiler.Build(rt, prog, reg, compiler.WithLogger(newLogger(opts, cmd))); err != nil {
			code := ErrCodeInvalidGraph
			if engine.IsCycleError(err) {
				code = ErrCodeCycle
			}
			result.Errors = append(result.Errors, compiler.ValidationError{
				Field:   "build",
				Message: err.Error(),
				Code:    code,
			})
		}
	}
	result.Valid = len(result.Errors) == 0 && len(result.Cycles) == 0

	if formatter.Format == "json" {
		if err := formatter.encode(CLIResponse{Status: validateStatus(result.Valid), Data: result}); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter.Writer, prog.Name, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)+len(result.Cycles)))
	}
	return nil
}

func validateStatus(valid bool) string {
	if valid {
		return "ok"
	}
	return "error"
}

func outputValidateText(w io.Writer, name string, result ValidationResult) {
	if result.Valid {
		fmt.Fprintf(w, "✓ %s is valid\n", name)
		return
	}

	fmt.Fprintf(w, "✗ %s is invalid\n\n", name)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s: %s: %s\n", e.Code, e.Field, e.Message)
	}
	for _, c := range result.Cycles {
		fmt.Fprintf(w, "  %s: %s\n", ErrCodeCycle, c.Message)
	}
}
