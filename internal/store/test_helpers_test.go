package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rindel/internal/ir"
)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestWrite creates a stream write with minimal required fields.
func createTestWrite(seq, instant int64, app, port string, v ir.IRValue) ir.StreamWrite {
	return ir.StreamWrite{
		Instant:     instant,
		Seq:         seq,
		Activation:  1,
		Application: app,
		Port:        port,
		Value:       v,
	}
}
