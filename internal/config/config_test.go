package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tierc/internal/config"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/tier"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tierc.cue", `
width:       32
hint_policy: "trust"
limit:       "guarded"
feedback: min_samples: 2
`)
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, c.Tier.Width)
	assert.Equal(t, tier.PolicyTrust, c.Tier.HintPolicy)
	assert.Equal(t, ir.TierGuarded, c.Tier.Limit)
	assert.True(t, c.Tier.Analytic, "unset fields keep their default")
	assert.Equal(t, 2, c.Thresholds.MinSamples)
	assert.Equal(t, 95, c.Thresholds.StablePercent)
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", "package tierc\n\nwidth: 32\n")
	writeFile(t, dir, "b.cue", "package tierc\n\nanalytic: false\n")

	c, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 32, c.Tier.Width)
	assert.False(t, c.Tier.Analytic)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{"bad width", "width: 16\n", config.ErrCodeSchema},
		{"bad policy", `hint_policy: "always"` + "\n", config.ErrCodeSchema},
		{"unknown field", "speed: 3\n", config.ErrCodeSchema},
		{"syntax", "width: \n", config.ErrCodeLoad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "tierc.cue", tt.content)
			_, err := config.Load(path)
			var ce *config.Error
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.code, ce.Code)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.cue"))
	var ce *config.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, config.ErrCodeNotFound, ce.Code)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tierc.cue", "width: 32\nworkers: 2\n")
	t.Setenv(config.EnvWidth, "64")
	t.Setenv(config.EnvLimit, "dynamic")
	t.Setenv(config.EnvAnalytic, "false")
	t.Setenv(config.EnvWorkers, "4")

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, c.Tier.Width)
	assert.Equal(t, ir.TierDynamic, c.Tier.Limit)
	assert.False(t, c.Tier.Analytic)
	assert.Equal(t, 4, c.Workers)
}

func TestEnvironmentIsValidated(t *testing.T) {
	t.Setenv(config.EnvHintPolicy, "sometimes")
	_, err := config.Load("")
	var ce *config.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, config.ErrCodeInvalid, ce.Code)
}

func TestEnvironmentReadOnEveryLoad(t *testing.T) {
	_, err := config.Load("")
	require.NoError(t, err)

	t.Setenv(config.EnvWidth, "32")
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 32, c.Tier.Width)

	t.Setenv(config.EnvWidth, "64")
	c, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 64, c.Tier.Width)
}

func TestEnvironmentRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"width", config.EnvWidth, "abc"},
		{"workers", config.EnvWorkers, "x"},
		{"analytic", config.EnvAnalytic, "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load("")
			var ce *config.Error
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, config.ErrCodeInvalid, ce.Code)
			assert.Contains(t, ce.Message, tt.key)
		})
	}
}
