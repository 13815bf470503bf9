package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	collectModule = filepath.Join("..", "harness", "testdata", "modules", "collect.json")
	divModule     = filepath.Join("..", "harness", "testdata", "modules", "div.json")
	strayModule   = filepath.Join("..", "harness", "testdata", "modules", "stray.json")
	scenariosDir  = filepath.Join("..", "harness", "testdata", "scenarios")
	feedbackFile  = filepath.Join("..", "harness", "testdata", "feedback.json")
)

// execute runs the root command and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tierc", cmd.Use)
	assert.Contains(t, cmd.Long, "canonical IR")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, path := range [][]string{{"compile"}, {"check"}, {"run"}, {"diff"}, {"watch"}, {"feedback", "validate"}} {
		t.Run(path[len(path)-1], func(t *testing.T) {
			sub, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCompileFlagsShared(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"compile", "check", "run", "watch"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		for _, flag := range []string{"config", "feedback", "width", "hint-policy", "limit"} {
			assert.NotNil(t, sub.Flags().Lookup(flag), "%s --%s", name, flag)
		}
	}
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "compile", collectModule, "--format", "xml")
	assert.ErrorContains(t, err, `invalid format "xml"`)
}

func TestVerboseLogsToStderr(t *testing.T) {
	stdout, stderr, err := execute(t, "compile", collectModule, "--verbose", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, stderr, "lowered construct")
	assert.NotContains(t, stdout, "lowered construct")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
