package determinism

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tierc/internal/ir"
)

// AssertGolden compares the listing of u against dir/{name}.golden.
//
// To regenerate golden files, run the test with -update.
func AssertGolden(t *testing.T, dir, name string, u *ir.Unit) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(ir.Format(u)))
}

// AssertGoldenCanonical compares the canonical bytes of u against a
// golden file in dir.
func AssertGoldenCanonical(t *testing.T, dir, name string, u *ir.Unit) {
	t.Helper()
	data, err := u.Canonical()
	if err != nil {
		t.Fatalf("canonical %s: %v", name, err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".json"),
	)
	g.Assert(t, name, data)
}

// RecordGolden writes the canonical bytes of u as the golden file
// dir/{name}.json.
func RecordGolden(t *testing.T, dir, name string, u *ir.Unit) {
	t.Helper()
	data, err := u.Canonical()
	if err != nil {
		t.Fatalf("canonical %s: %v", name, err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".json"),
	)
	if err := g.Update(t, name, data); err != nil {
		t.Fatalf("record golden %s: %v", name, err)
	}
}
