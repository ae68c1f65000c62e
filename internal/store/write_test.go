package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rindel/internal/ir"
)

func TestCreateRun_AssignsSequence(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a, err := s.CreateRun(ctx, ir.RunRecord{ID: "run-a", Program: "p", ProgramHash: "h1"})
	require.NoError(t, err)
	b, err := s.CreateRun(ctx, ir.RunRecord{ID: "run-b", Program: "p", ProgramHash: "h1"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)
}

func TestCreateRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, ir.RunRecord{ID: "run-a", Program: "p", ProgramHash: "h1"})
	require.NoError(t, err)
	again, err := s.CreateRun(ctx, ir.RunRecord{ID: "run-a", Program: "other", ProgramHash: "h2"})
	require.NoError(t, err)

	assert.Equal(t, first, again, "existing run is returned unchanged")
	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestWriteStreamWrite_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.CreateRun(ctx, ir.RunRecord{ID: "run", Program: "p", ProgramHash: "h"})
	require.NoError(t, err)

	writes := []ir.StreamWrite{
		createTestWrite(1, 1, "count", "count", ir.IRInt(0)),
		createTestWrite(2, 1, "show", "text", ir.IRString("0")),
		createTestWrite(3, 2, "pointer", "out", ir.IRObject{"x": ir.IRInt(3), "y": ir.IRInt(1 << 60)}),
		createTestWrite(4, 2, "each", "results", ir.IRArray{ir.IRBool(true), ir.IRNull{}}),
		createTestWrite(5, 3, "down", "out", nil),
	}
	for _, w := range writes {
		require.NoError(t, s.WriteStreamWrite(ctx, "run", w))
	}

	got, err := s.ReadWrites(ctx, "run")
	require.NoError(t, err)
	require.Len(t, got, len(writes))
	for i := range writes[:4] {
		assert.Equal(t, writes[i], got[i])
	}
	assert.Equal(t, ir.IRNull{}, got[4].Value, "nil values are stored as null")

	assert.Equal(t, ir.MustTraceDigest(writes), ir.MustTraceDigest(got))
}

func TestWriteStreamWrite_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.CreateRun(ctx, ir.RunRecord{ID: "run", Program: "p", ProgramHash: "h"})
	require.NoError(t, err)

	w := createTestWrite(1, 1, "count", "count", ir.IRInt(1))
	require.NoError(t, s.WriteStreamWrite(ctx, "run", w))
	require.NoError(t, s.WriteStreamWrite(ctx, "run", w))

	got, err := s.ReadWrites(ctx, "run")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriteStreamWrite_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteStreamWrite(context.Background(), "missing", createTestWrite(1, 1, "a", "b", ir.IRInt(1)))
	assert.Error(t, err, "foreign key enforcement rejects writes to unknown runs")
}

func TestWriteInstant_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.CreateRun(ctx, ir.RunRecord{ID: "run", Program: "p", ProgramHash: "h"})
	require.NoError(t, err)

	require.NoError(t, s.WriteInstant(ctx, "run", ir.InstantRecord{Instant: 2, Tasks: 1}))
	require.NoError(t, s.WriteInstant(ctx, "run", ir.InstantRecord{Instant: 1, Tasks: 3}))
	require.NoError(t, s.WriteInstant(ctx, "run", ir.InstantRecord{Instant: 1, Tasks: 9}))

	got, err := s.ReadInstants(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, []ir.InstantRecord{{Instant: 1, Tasks: 3}, {Instant: 2, Tasks: 1}}, got)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))

	_, err = s.ReadLatestRun(context.Background())
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestReads_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.NotNil(t, runs)

	writes, err := s.ReadWrites(ctx, "none")
	require.NoError(t, err)
	assert.NotNil(t, writes)

	instants, err := s.ReadInstants(ctx, "none")
	require.NoError(t, err)
	assert.NotNil(t, instants)
}

func TestReadWritesTo_FiltersByPort(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.CreateRun(ctx, ir.RunRecord{ID: "run", Program: "p", ProgramHash: "h"})
	require.NoError(t, err)

	require.NoError(t, s.WriteStreamWrite(ctx, "run", createTestWrite(1, 1, "show", "text", ir.IRString("0"))))
	require.NoError(t, s.WriteStreamWrite(ctx, "run", createTestWrite(2, 2, "count", "count", ir.IRInt(1))))
	require.NoError(t, s.WriteStreamWrite(ctx, "run", createTestWrite(3, 2, "show", "text", ir.IRString("1"))))

	got, err := s.ReadWritesTo(ctx, "run", "show", "text")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ir.IRString("0"), got[0].Value)
	assert.Equal(t, ir.IRString("1"), got[1].Value)
}

func TestReadLatestRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		_, err := s.CreateRun(ctx, ir.RunRecord{ID: id, Program: "p", ProgramHash: "h"})
		require.NoError(t, err)
	}

	latest, err := s.ReadLatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r3", latest.ID)
}
