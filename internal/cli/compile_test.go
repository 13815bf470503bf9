package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileText(t *testing.T) {
	stdout, _, err := execute(t, "compile", collectModule)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Compiled collect")
	assert.Contains(t, stdout, "guarded 1")
}

func TestCompileJSON(t *testing.T) {
	stdout, _, err := execute(t, "compile", collectModule, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "collect", resp.Data.Module)
	assert.Len(t, resp.Data.Fingerprint, 64)
	require.Len(t, resp.Data.Functions, 2)
	assert.Equal(t, "collect", resp.Data.Functions[1].Function)
	assert.Equal(t, 1, resp.Data.Functions[1].Guarded)
}

func TestCompileDynamicLimit(t *testing.T) {
	stdout, _, err := execute(t, "compile", collectModule, "--limit", "dynamic", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Zero(t, resp.Data.Functions[1].Guarded)
	assert.Zero(t, resp.Data.Functions[1].Static)
}

func TestCompileOutputToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "collect.ir.json")
	stdout, _, err := execute(t, "compile", collectModule, "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote canonical IR to "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(data, &v))
	assert.Equal(t, "collect", v["module"])

	// Output is byte-stable.
	again := filepath.Join(t.TempDir(), "again.json")
	_, _, err = execute(t, "compile", collectModule, "-o", again)
	require.NoError(t, err)
	second, err := os.ReadFile(again)
	require.NoError(t, err)
	assert.Equal(t, data, second)
}

func TestCompileListing(t *testing.T) {
	stdout, _, err := execute(t, "compile", collectModule, "--listing")
	require.NoError(t, err)
	assert.Contains(t, stdout, "func collect(n):")
	assert.Contains(t, stdout, "counted_for guarded")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing module", []string{"compile", "nope.json"}, ErrCodeNotFound},
		{"unsupported construct", []string{"compile", strayModule}, "E202"},
		{"bad limit", []string{"compile", collectModule, "--limit", "fast"}, "E504"},
		{"bad width", []string{"compile", collectModule, "--width", "48"}, "E504"},
		{"missing config", []string{"compile", collectModule, "--config", "nope.cue"}, "E501"},
		{"bad feedback", []string{"compile", collectModule, "--feedback", collectModule}, "E40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stdout, "Error ["+tt.code)
		})
	}
}

func TestCompileErrorJSON(t *testing.T) {
	stdout, _, err := execute(t, "compile", strayModule, "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E202", resp.Error.Code)
}
