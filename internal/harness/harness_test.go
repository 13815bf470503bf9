package harness

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tierc/internal/vm"
)

func TestScenarios(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 5)

	h := New(nil)
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := h.Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
			assert.Len(t, result.Outcomes, len(Limits))
		})
	}
}

func TestLoadDirSorted(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"collect", "collect_bool", "div_zero", "stray", "total"}, names)
}

func TestLoadDirEmpty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no scenarios")
}

func TestLoadScenarioResolvesPaths(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/collect.yaml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "modules", "collect.json"), s.Module)
	assert.Equal(t, filepath.Join("testdata", "feedback.json"), s.Feedback)
	require.NotNil(t, s.Node)
	assert.Equal(t, "collect", s.Node.Name)
}

func TestLoadScenarioRejects(t *testing.T) {
	module, err := filepath.Abs("testdata/modules/collect.json")
	require.NoError(t, err)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "surprise: 1\n", "field surprise not found"},
		{"missing description", "name: x\nmodule: MOD\nassertions: [{type: deopts, count: 0}]\n", "description is required"},
		{"missing module file", "name: x\ndescription: d\nmodule: nope.json\nassertions: [{type: deopts, count: 0}]\n", "module file not found"},
		{"no assertions", "name: x\ndescription: d\nmodule: MOD\n", "assertions list is required"},
		{"args without entry", "name: x\ndescription: d\nmodule: MOD\nargs: [1]\nassertions: [{type: deopts, count: 0}]\n", "args given without entry"},
		{"unknown assertion", "name: x\ndescription: d\nmodule: MOD\nassertions: [{type: vibes}]\n", `unknown assertion type "vibes"`},
		{"deopts without count", "name: x\ndescription: d\nmodule: MOD\nassertions: [{type: deopts}]\n", "count is required"},
		{"output without lines", "name: x\ndescription: d\nmodule: MOD\nassertions: [{type: output}]\n", "lines is required"},
		{"construct without tier", "name: x\ndescription: d\nmodule: MOD\nassertions: [{type: construct, function: f, pattern: p}]\n", "tier are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "s.yaml")
			require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(tt.body, "MOD", module)), 0o644))
			_, err := LoadScenario(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestFailedAssertionsAreReported(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/collect.yaml")
	require.NoError(t, err)
	two := 2
	s.Assertions = []Assertion{
		{Type: AssertResult, Value: "[]"},
		{Type: AssertDeopts, Count: &two},
		{Type: AssertConstruct, Function: "collect", Pattern: "counted_for", Tier: "static"},
		{Type: AssertException, Class: "ValueError"},
		{Type: AssertCompileError, Code: "E201"},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "expected: []")
	assert.Contains(t, result.Errors[0], "actual: [0, 1, 2, 3, 4]")
	assert.Contains(t, result.Errors[1], "expected: 2 deopts")
	assert.Contains(t, result.Errors[2], "actual: guarded")
	assert.Contains(t, result.Errors[3], "actual: no exception")
	assert.Contains(t, result.Errors[4], "actual: compiled")
}

func TestAssertionOnUnknownFunction(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/collect.yaml")
	require.NoError(t, err)
	s.Assertions = []Assertion{{Type: AssertConstruct, Function: "missing", Pattern: "counted_for", Tier: "guarded"}}

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "not in unit")
}

func TestCompareReportsDivergence(t *testing.T) {
	r := NewResult("r")
	r.Outcomes = []*Outcome{
		{Limit: "static", Output: []string{"1"}, Result: "2"},
		{Limit: "guarded", Output: []string{"1"}, Result: "3", Exception: "ValueError: x"},
		{Limit: "dynamic", Output: []string{"1"}, Result: "2"},
	}
	compare(r)
	assert.False(t, r.Pass)
	require.Len(t, r.Errors, 2)
	assert.Contains(t, r.Errors[0], "limit guarded: result 3, dynamic 2")
	assert.Contains(t, r.Errors[1], "limit guarded: exception")
}

func TestCompareSkipsExhaustedRuns(t *testing.T) {
	r := NewResult("r")
	r.Outcomes = []*Outcome{
		{Limit: "static", Result: "2"},
		{Limit: "guarded", StepsExceeded: true},
		{Limit: "dynamic", Result: "2"},
	}
	compare(r)
	assert.True(t, r.Pass)

	r = NewResult("r")
	r.Outcomes = []*Outcome{
		{Limit: "static", Result: "2"},
		{Limit: "dynamic", StepsExceeded: true},
	}
	compare(r)
	assert.True(t, r.Pass)
}

func TestCompareReportsTraps(t *testing.T) {
	r := NewResult("r")
	r.Outcomes = []*Outcome{
		{Limit: "static", Trap: "trap guard_range_step_zero"},
		{Limit: "dynamic"},
	}
	compare(r)
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0], "limit static: trap")
}

func TestStepBudgetMarksOutcome(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/collect.yaml")
	require.NoError(t, err)
	s.MaxSteps = 1

	result, err := Run(s)
	require.NoError(t, err)
	for _, o := range result.Outcomes {
		assert.True(t, o.StepsExceeded, "limit %s", o.Limit)
	}
}

func TestOverrides(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/collect.yaml")
	require.NoError(t, err)
	s.Config.HintPolicy = "sometimes"
	_, err = Run(s)
	assert.Error(t, err)

	s.Config = Overrides{Width: 48}
	_, err = Run(s)
	assert.Error(t, err)

	s.Config = Overrides{Width: 32, HintPolicy: "ignore"}
	result, err := Run(s)
	require.NoError(t, err)
	// Ignored hints leave only the feedback evidence.
	assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
}

func TestConvertArgs(t *testing.T) {
	got, err := convertArgs([]any{1, true, "s", nil, []any{2, "t"}})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 0, got[0].(*big.Int).Cmp(big.NewInt(1)))
	assert.Equal(t, vm.Bool(true), got[1])
	assert.Equal(t, vm.Str("s"), got[2])
	assert.Equal(t, vm.None, got[3])
	assert.Equal(t, "[2, 't']", vm.Repr(got[4]))

	_, err = convertArgs([]any{1.5})
	assert.ErrorContains(t, err, "args[0]")
}

func TestCloneArgsCopiesLists(t *testing.T) {
	inner := &vm.List{Items: []vm.Value{big.NewInt(1)}}
	args := []vm.Value{inner}
	cloned := cloneArgs(args)
	cloned[0].(*vm.List).Items[0] = vm.None
	assert.Equal(t, "[1]", vm.Repr(inner))
}

func TestSnapshotIsStable(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/collect_bool.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(first)
	require.NoError(t, err)
	b, err := Snapshot(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, string(a), `"reason":"guard_tag_type_mismatch"`)
}

func TestAssertGolden(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/total.yml")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)

	dir := t.TempDir()
	data, err := Snapshot(result)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "total.golden"), data, 0o644))
	AssertGolden(t, dir, "total", result)
}
