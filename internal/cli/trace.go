package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/rindel/internal/ir"
	"github.com/roach88/rindel/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database    string
	RunID       string // optional - defaults to the latest run
	Application string // optional - filter writes to one application
	List        bool   // list runs instead of printing one
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      ir.RunRecord       `json:"run"`
	Instants []ir.InstantRecord `json:"instants"`
	Writes   []ir.StreamWrite   `json:"writes"`
	Stats    TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Instants      int    `json:"instants"`
	Writes        int    `json:"writes"`
	Tasks         int    `json:"tasks"`
	PendingWrites int    `json:"pending_writes"`
	Digest        string `json:"digest"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a recorded run",
		Long: `Show the instants and stream writes recorded for a run.

Writes are grouped by the instant they were stamped with. Writes made
while activating carry the instant of the next pump; a group whose instant
never completed is marked "not pumped". The digest printed is the trace digest of every write in
the run; it matches the digest reported by run and test for the same
scenario.

Examples:
  rindel trace --db ./rindel.db
  rindel trace --db ./rindel.db --run 01929b9c-...
  rindel trace --db ./rindel.db --app show --format json
  rindel trace --db ./rindel.db --list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show (default: latest)")
	cmd.Flags().StringVar(&opts.Application, "app", "", "filter writes to one application")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// store.Open would create a missing database; reading one never should.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.List {
		return listRuns(ctx, formatter, st)
	}

	runID := opts.RunID
	if runID == "" {
		latest, err := st.ReadLatestRun(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return outputNoRuns(formatter)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read latest run", err)
		}
		runID = latest.ID
	}

	state, err := st.GetRunState(ctx, runID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no run %q", runID), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("no run %q", runID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to get run state", err)
	}

	result := buildTraceResult(state, opts.Application)
	if opts.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: state.Run.ID})
	}
	outputTraceText(formatter.Writer, result)
	return nil
}

// buildTraceResult summarizes a run; the stats always cover the whole run
// even when writes are filtered.
func buildTraceResult(state store.RunState, application string) TraceResult {
	result := TraceResult{
		Run:      state.Run,
		Instants: state.Instants,
		Writes:   []ir.StreamWrite{},
		Stats: TraceStats{
			Instants:      len(state.Instants),
			Writes:        len(state.Writes),
			PendingWrites: state.PendingWrites,
			Digest:        state.Digest,
		},
	}
	for _, rec := range state.Instants {
		result.Stats.Tasks += rec.Tasks
	}
	for _, w := range state.Writes {
		if application == "" || w.Application == application {
			result.Writes = append(result.Writes, w)
		}
	}
	return result
}

func listRuns(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: runs})
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(formatter.Writer, "%4d  %s  %s\n", r.Seq, r.ID, r.Program)
	}
	return nil
}

func outputNoRuns(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		return formatter.encode(CLIResponse{Status: "ok", Data: TraceResult{
			Instants: []ir.InstantRecord{},
			Writes:   []ir.StreamWrite{},
		}})
	}
	fmt.Fprintln(formatter.Writer, "No runs recorded.")
	return nil
}

// outputTraceText prints writes grouped by the instant they were stamped
// with.
func outputTraceText(w io.Writer, result TraceResult) {
	fmt.Fprintf(w, "Run %s (%s, seq %d)\n", result.Run.ID, result.Run.Program, result.Run.Seq)
	fmt.Fprintf(w, "Program hash: %s\n\n", result.Run.ProgramHash)

	completed := make(map[int64]int, len(result.Instants))
	for _, rec := range result.Instants {
		completed[rec.Instant] = rec.Tasks
	}

	var current int64 = -1
	for _, wr := range result.Writes {
		if wr.Instant != current {
			current = wr.Instant
			if tasks, ok := completed[current]; ok {
				fmt.Fprintf(w, "instant %d (%d update(s))\n", current, tasks)
			} else {
				fmt.Fprintf(w, "instant %d (not pumped)\n", current)
			}
		}
		fmt.Fprintf(w, "  [%d] act %d  %s.%s = %s\n", wr.Seq, wr.Activation, wr.Application, wr.Port, canonicalString(wr.Value))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d instant(s), %d update(s), %d write(s)", result.Stats.Instants, result.Stats.Tasks, result.Stats.Writes)
	if result.Stats.PendingWrites > 0 {
		fmt.Fprintf(w, ", %d after the last instant", result.Stats.PendingWrites)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Digest: %s\n", result.Stats.Digest)
}
