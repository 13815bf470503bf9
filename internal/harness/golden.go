package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tierc/internal/ir"
)

// Snapshot is the canonical encoding of a result: every outcome with its
// output, result, exception, deopts and unit fingerprint. Step counts are
// included; they are deterministic for a given unit.
func Snapshot(r *Result) ([]byte, error) {
	outcomes := make(ir.IRArray, len(r.Outcomes))
	for i, o := range r.Outcomes {
		deopts := make(ir.IRArray, len(o.Deopts))
		for j, d := range o.Deopts {
			deopts[j] = ir.IRObject{
				"label":  ir.IRString(d.Label),
				"reason": ir.IRString(d.Reason),
				"site":   ir.IRString(d.Site),
			}
		}
		outcomes[i] = ir.IRObject{
			"limit":          ir.IRString(o.Limit),
			"compile_error":  ir.IRString(o.CompileError),
			"output":         ir.Strings(o.Output),
			"result":         ir.IRString(o.Result),
			"exception":      ir.IRString(o.Exception),
			"deopts":         deopts,
			"steps":          ir.IRInt(o.Steps),
			"steps_exceeded": ir.IRBool(o.StepsExceeded),
			"trap":           ir.IRString(o.Trap),
			"fingerprint":    ir.IRString(o.Fingerprint),
		}
	}
	return ir.MarshalCanonical(ir.IRObject{
		"name":     ir.IRString(r.Name),
		"outcomes": outcomes,
	})
}

// AssertGolden compares the snapshot of result against dir/{name}.golden.
//
// To regenerate golden files, run the test with -update.
func AssertGolden(t *testing.T, dir, name string, result *Result) {
	t.Helper()
	data, err := Snapshot(result)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
