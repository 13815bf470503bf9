package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedbackValidate(t *testing.T) {
	stdout, _, err := execute(t, "feedback", "validate", feedbackFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Valid feedback artifact (schema 1.0.0, 1 site(s))")
	assert.Contains(t, stdout, "* collect.n: int 10/10")
}

func TestFeedbackValidateThresholds(t *testing.T) {
	stdout, _, err := execute(t, "feedback", "validate", feedbackFile, "--min-samples", "20", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data FeedbackResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Sites, 1)
	assert.False(t, resp.Data.Sites[0].Stable)
}

func TestFeedbackValidateRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	body := `{"schema_version": "2.0.0", "kind": "runtime_feedback", "sites": {}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	stdout, _, err := execute(t, "feedback", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E402]")
}
