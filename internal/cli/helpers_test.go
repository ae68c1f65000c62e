package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

var (
	programsDir  = filepath.Join("..", "..", "testdata", "programs")
	scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")
)

// execute runs a subcommand built by newCmd with the given format and
// arguments, returning stdout, stderr and the command error.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, format string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newCmd(&RootOptions{Format: format})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func program(name string) string {
	return filepath.Join(programsDir, name+".cue")
}

func scenario(name string) string {
	return filepath.Join(scenariosDir, name+".yaml")
}
