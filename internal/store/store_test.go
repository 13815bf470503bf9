package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testKey(input string) Key {
	return Key{InputHash: input, ConfigHash: "cfg", CompilerVersion: "0.1.0", IRVersion: "1"}
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.RecordRun(context.Background(), "m", testKey("in"), "u1", []byte("{}"), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.Runs(context.Background(), "m")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run, err := s.RecordRun(ctx, "m", testKey("in"), "u1", []byte(`{"module":"m"}`), "host-a")
	require.NoError(t, err)
	id, err := uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, int64(1), run.Seq)

	first, ok, err := s.First(ctx, testKey("in"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, run, first)

	data, err := s.Unit(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, `{"module":"m"}`, string(data))
}

func TestFirstMissing(t *testing.T) {
	s := createTestStore(t)
	_, ok, err := s.First(context.Background(), testKey("nothing"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnitMissing(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Unit(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnitsAreStoredOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for range 3 {
		_, err := s.RecordRun(ctx, "m", testKey("in"), "u1", []byte("{}"), "")
		require.NoError(t, err)
	}
	rows, err := s.Query(ctx, `SELECT COUNT(*) FROM units`)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRunsOrderAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	for _, mod := range []string{"a", "b", "a"} {
		_, err := s.RecordRun(ctx, mod, testKey(mod), "u-"+mod, []byte("{}"), "")
		require.NoError(t, err)
	}

	a, err := s.Runs(ctx, "a")
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Less(t, a[0].Seq, a[1].Seq)

	all, err := s.Runs(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.Runs(ctx, "c")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestConflicts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	record := func(input, unit string) {
		_, err := s.RecordRun(ctx, "m", testKey(input), unit, []byte(unit), "")
		require.NoError(t, err)
	}
	record("stable", "u1")
	record("stable", "u1")
	record("flaky", "u2")
	record("flaky", "u3")
	record("flaky", "u2")

	conflicts, err := s.Conflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "flaky", conflicts[0].InputHash)
	assert.Equal(t, []string{"u2", "u3"}, conflicts[0].UnitHashes)
}
