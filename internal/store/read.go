package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rindel/internal/ir"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.RunRecord, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, program, program_hash, seq FROM runs WHERE id = ?
	`, id))
	if err != nil {
		return ir.RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ReadLatestRun returns the most recently created run.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) ReadLatestRun(ctx context.Context) (ir.RunRecord, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `
		SELECT id, program, program_hash, seq FROM runs ORDER BY seq DESC LIMIT 1
	`))
	if err != nil {
		return ir.RunRecord{}, fmt.Errorf("read latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns every run ordered by creation.
// Returns an empty slice (not nil) if the store has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, program, program_hash, seq FROM runs ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadWrites returns every stream write of a run in write order.
// Returns an empty slice (not nil) if the run has no writes.
func (s *Store) ReadWrites(ctx context.Context, runID string) ([]ir.StreamWrite, error) {
	return s.queryWrites(ctx, `
		SELECT instant, seq, activation, application, port, value
		FROM stream_writes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
}

// ReadWritesTo returns the writes of a run to one application port.
func (s *Store) ReadWritesTo(ctx context.Context, runID, application, port string) ([]ir.StreamWrite, error) {
	return s.queryWrites(ctx, `
		SELECT instant, seq, activation, application, port, value
		FROM stream_writes
		WHERE run_id = ? AND application = ? AND port = ?
		ORDER BY seq ASC
	`, runID, application, port)
}

func (s *Store) queryWrites(ctx context.Context, query string, args ...any) ([]ir.StreamWrite, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stream writes: %w", err)
	}
	defer rows.Close()

	writes := []ir.StreamWrite{}
	for rows.Next() {
		var (
			w     ir.StreamWrite
			value string
		)
		if err := rows.Scan(&w.Instant, &w.Seq, &w.Activation, &w.Application, &w.Port, &value); err != nil {
			return nil, fmt.Errorf("scan stream write: %w", err)
		}
		if w.Value, err = unmarshalValue(value); err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream writes: %w", err)
	}
	return writes, nil
}

// ReadInstants returns the completed instants of a run in order.
// Returns an empty slice (not nil) if none completed.
func (s *Store) ReadInstants(ctx context.Context, runID string) ([]ir.InstantRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instant, tasks FROM instants WHERE run_id = ? ORDER BY instant ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query instants: %w", err)
	}
	defer rows.Close()

	instants := []ir.InstantRecord{}
	for rows.Next() {
		var rec ir.InstantRecord
		if err := rows.Scan(&rec.Instant, &rec.Tasks); err != nil {
			return nil, fmt.Errorf("scan instant: %w", err)
		}
		instants = append(instants, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instants: %w", err)
	}
	return instants, nil
}

func scanRun(row rowScanner) (ir.RunRecord, error) {
	var run ir.RunRecord
	if err := row.Scan(&run.ID, &run.Program, &run.ProgramHash, &run.Seq); err != nil {
		if err == sql.ErrNoRows {
			return run, err
		}
		return run, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}
