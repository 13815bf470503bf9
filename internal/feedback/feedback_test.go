package feedback_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tierc/internal/feedback"
)

const valid = `{
  "schema_version": "1.2.0",
  "kind": "runtime_feedback",
  "sites": {
    "m.py:3:9": {"type": "int", "samples": 20, "hits": 20},
    "m.py:4:9": {"type": "int", "samples": 20, "hits": 15},
    "m.py:5:9": {"type": "str", "samples": 20, "hits": 20},
    "m.py:6:9": {"type": "int", "samples": 3, "hits": 3}
  },
  "deopt_reasons": {"guard_tag_type_mismatch": 2}
}`

func TestParseValid(t *testing.T) {
	a, err := feedback.Parse([]byte(valid), "fb.json")
	require.NoError(t, err)
	assert.Equal(t, feedback.Kind, a.Kind)
	assert.Len(t, a.Sites, 4)
	assert.Equal(t, 2, a.DeoptReasons["guard_tag_type_mismatch"])
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{"not json", `{`, feedback.ErrCodeParse},
		{"missing version", `{"kind": "runtime_feedback", "sites": {}}`, feedback.ErrCodeVersion},
		{"major too new", `{"schema_version": "2.0.0", "kind": "runtime_feedback", "sites": {}}`, feedback.ErrCodeVersion},
		{"not semver", `{"schema_version": "one", "kind": "runtime_feedback", "sites": {}}`, feedback.ErrCodeVersion},
		{"wrong kind", `{"schema_version": "1.0.0", "kind": "profile", "sites": {}}`, feedback.ErrCodeSchema},
		{"hits above samples", `{"schema_version": "1.0.0", "kind": "runtime_feedback",
			"sites": {"s": {"type": "int", "samples": 1, "hits": 2}}}`, feedback.ErrCodeSchema},
		{"unknown field", `{"schema_version": "1.0.0", "kind": "runtime_feedback", "sites": {}, "extra": 1}`, feedback.ErrCodeSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := feedback.Parse([]byte(tt.doc), "fb.json")
			require.Error(t, err)
			var ve *feedback.ValidationError
			require.True(t, errors.As(err, &ve), "got %T: %v", err, err)
			assert.Equal(t, tt.code, ve.Code)
		})
	}
}

func TestSignalsApplyThresholds(t *testing.T) {
	a, err := feedback.Parse([]byte(valid), "fb.json")
	require.NoError(t, err)

	sig := a.Signals(feedback.DefaultThresholds())
	assert.True(t, sig["m.py:3:9"].Stable)
	assert.False(t, sig["m.py:4:9"].Stable, "75% is below the threshold")
	assert.False(t, sig["m.py:5:9"].Stable, "only int signals are stable")
	assert.False(t, sig["m.py:6:9"].Stable, "too few samples")

	loose := a.Signals(feedback.Thresholds{MinSamples: 1, StablePercent: 75})
	assert.True(t, loose["m.py:4:9"].Stable)
	assert.True(t, loose["m.py:6:9"].Stable)
}

func TestRecorderMajorityType(t *testing.T) {
	r := feedback.NewRecorder()
	for range 3 {
		r.Observe("a", "int")
	}
	r.Observe("a", "str")
	r.Observe("b", "str")
	r.Observe("b", "int")
	r.Deopt("guard_tag_type_mismatch", "a")
	r.Deopt("guard_tag_type_mismatch", "a")

	a := r.Artifact()
	assert.Equal(t, feedback.Site{Type: "int", Samples: 4, Hits: 3}, a.Sites["a"])
	assert.Equal(t, feedback.Site{Type: "int", Samples: 2, Hits: 1}, a.Sites["b"], "ties go to the smaller name")
	assert.Equal(t, map[string]int{"guard_tag_type_mismatch": 2}, a.DeoptReasons)
}

func TestRecordedArtifactRoundTripsThroughValidation(t *testing.T) {
	r := feedback.NewRecorder()
	r.Observe("m.py:1:1", "int")
	data, err := r.Artifact().Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "fb.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	a, err := feedback.Load(path)
	require.NoError(t, err)
	assert.Equal(t, feedback.Site{Type: "int", Samples: 1, Hits: 1}, a.Sites["m.py:1:1"])
}

func TestMerge(t *testing.T) {
	a := &feedback.Artifact{Sites: map[string]feedback.Site{"s": {Type: "int", Samples: 4, Hits: 4}}}
	b := &feedback.Artifact{
		Sites:        map[string]feedback.Site{"s": {Type: "int", Samples: 2, Hits: 1}, "t": {Type: "str", Samples: 1, Hits: 1}},
		DeoptReasons: map[string]int{"guard_sum_overflow": 1},
	}
	a.Merge(b)
	assert.Equal(t, feedback.Site{Type: "int", Samples: 6, Hits: 5}, a.Sites["s"])
	assert.Equal(t, feedback.Site{Type: "str", Samples: 1, Hits: 1}, a.Sites["t"])
	assert.Equal(t, 1, a.DeoptReasons["guard_sum_overflow"])
}
