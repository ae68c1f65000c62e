package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rindel/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds a compiled program and its content hash.
type CompilationResult struct {
	IRVersion string          `json:"ir_version"`
	Program   *ir.ProgramSpec `json:"program"`
	Hash      string          `json:"hash"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Definitions  int
	Applications int
	Connections  int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <program>",
		Short: "Compile a CUE program to canonical IR",
		Long: `Compile a CUE program (a .cue file or a package directory) to canonical IR.

The compiler checks the program against the schema and prints its
definitions. With --output the canonical JSON is written to a file; the
printed hash identifies the program in stored runs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	prog, err := LoadProgram(path)
	if err != nil {
		code, message := loadErrorParts(err)
		return outputCompileError(formatter, code, message)
	}
	formatter.VerboseLog("Compiled program %s from %s", prog.Name, path)

	hash, err := ir.ProgramHash(*prog)
	if err != nil {
		return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing program: %v", err))
	}
	result := &CompilationResult{IRVersion: ir.IRVersion, Program: prog, Hash: hash}

	if opts.Output != "" {
		if err := writeIRToFile(prog, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, calculateStats(prog), opts.Output)
}

// calculateStats counts everything declared in the program, nested
// definitions included.
func calculateStats(prog *ir.ProgramSpec) CompilationStats {
	var stats CompilationStats
	var walk func(defs []ir.DefinitionSpec)
	walk = func(defs []ir.DefinitionSpec) {
		for _, d := range defs {
			stats.Definitions++
			stats.Applications += len(d.Applications)
			stats.Connections += len(d.Connections)
			walk(d.Definitions)
		}
	}
	walk(prog.Definitions)
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s: %d definition(s), %d application(s), %d connection(s)\n\n",
		result.Program.Name, stats.Definitions, stats.Applications, stats.Connections)

	fmt.Fprintln(w, "Definitions:")
	var show func(defs []ir.DefinitionSpec, indent string)
	show = func(defs []ir.DefinitionSpec, indent string) {
		for _, d := range defs {
			marker := ""
			if indent == "  " && d.Name == result.Program.Main {
				marker = " (main)"
			}
			fmt.Fprintf(w, "%s%s%s: %d input(s), %d output(s)\n", indent, d.Name, marker, len(d.Inputs), len(d.Outputs))
			for _, a := range d.Applications {
				fmt.Fprintf(w, "%s  %s = %s\n", indent, a.Name, a.Native)
			}
			for _, c := range d.Connections {
				fmt.Fprintf(w, "%s  %s → %s\n", indent, c.From, c.To)
			}
			show(d.Definitions, indent+"  ")
		}
	}
	show(result.Program.Definitions, "  ")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Hash: %s\n", result.Hash)
	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical IR to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// writeIRToFile writes the program to a file in canonical JSON format.
func writeIRToFile(prog *ir.ProgramSpec, filename string) error {
	data, err := ir.MarshalCanonical(prog.Object())
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
