package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tierc/internal/store"
)

func TestCheckDeterministic(t *testing.T) {
	stdout, _, err := execute(t, "check", collectModule, divModule)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ collect: 4 runs")
	assert.Contains(t, stdout, "✓ div: 4 runs")
}

func TestCheckJSON(t *testing.T) {
	stdout, _, err := execute(t, "check", collectModule, "--runs", "3", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.True(t, resp.Data.AllDeterministic)
	require.Len(t, resp.Data.Modules, 1)
	assert.Equal(t, 3, resp.Data.Modules[0].Runs)
	assert.Len(t, resp.Data.Modules[0].Fingerprint, 64)
}

func TestCheckRecordsLedger(t *testing.T) {
	db := filepath.Join(t.TempDir(), "tierc.db")
	for range 2 {
		_, _, err := execute(t, "check", collectModule, "--ledger", db, "--label", "test")
		require.NoError(t, err)
	}

	s, err := store.Open(db)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Runs(context.Background(), "collect")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, runs[0].UnitHash, runs[1].UnitHash)
	assert.Equal(t, "test", runs[1].Label)

	conflicts, err := s.Conflicts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestCheckCompileErrorIsCommandError(t *testing.T) {
	_, _, err := execute(t, "check", strayModule)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
