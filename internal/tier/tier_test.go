package tier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/pattern"
	tu "github.com/roach88/tierc/internal/testutil"
	"github.com/roach88/tierc/internal/tier"
)

type moduleScope struct{}

func (moduleScope) Builtin(string) bool { return true }
func (moduleScope) Local(string) bool   { return true }

type stable map[string]bool

func (s stable) StableInt(site string) bool { return s[site] }

func classifier(mutate ...func(*tier.Config)) *tier.Classifier {
	cfg := tier.DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	return &tier.Classifier{Config: cfg, Signals: stable{}, Scope: moduleScope{}}
}

func classify(c *tier.Classifier, n *ast.Node) tier.Decision {
	return c.Classify(pattern.Match(n, c.Scope))
}

func kinds(needs []tier.Need) []ir.GuardKind {
	var out []ir.GuardKind
	for _, n := range needs {
		out = append(out, n.Kind)
	}
	return out
}

func TestClassifyTiers(t *testing.T) {
	tests := []struct {
		name string
		node *ast.Node
		want ir.Tier
	}{
		{"literal range", tu.For(tu.Name("x"), tu.Range(tu.Int(10)), tu.Pass()), ir.TierStatic},
		{"folded stop", tu.CallName("sum", tu.Range(tu.Bin(tu.Int(2), "*", tu.Int(50)))), ir.TierStatic},
		{"trusted constant", tu.CallName("len", tu.Range(tu.KnownConst(tu.Name("n"), 7))), ir.TierStatic},
		{"hinted stop", tu.For(tu.Name("x"), tu.Range(tu.IntHint(tu.Name("n"))), tu.Pass()), ir.TierGuarded},
		{"unknown stop", tu.For(tu.Name("x"), tu.Range(tu.Name("n")), tu.Pass()), ir.TierDynamic},
		{"advisory hint", tu.For(tu.Name("x"), tu.Range(tu.Typed(tu.Name("n"), "int", ast.TrustAdvisory)), tu.Pass()), ir.TierDynamic},
		{"bool literal", tu.For(tu.Name("x"), tu.Range(tu.Bool(true)), tu.Pass()), ir.TierDynamic},
		{"unrecognized", tu.Print(tu.Int(1)), ir.TierDynamic},
		{"len of call", tu.For(tu.Name("x"), tu.Range(tu.CallName("len", tu.Name("xs"))), tu.Pass()), ir.TierGuarded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := classify(classifier(), tt.node)
			assert.Equal(t, tt.want, d.Tier, d.Reason)
			if d.Tier != ir.TierGuarded {
				assert.Empty(t, d.Needs)
			}
		})
	}
}

func TestClassifyDynamicReasons(t *testing.T) {
	d := classify(classifier(), tu.For(tu.Name("x"), tu.Range(tu.Name("n")), tu.Pass()))
	assert.Contains(t, d.Reason, "stop operand")
	assert.Contains(t, d.Reason, "no int evidence")

	d = classify(classifier(func(c *tier.Config) { c.Limit = ir.TierDynamic }),
		tu.For(tu.Name("x"), tu.Range(tu.Int(3)), tu.Pass()))
	assert.Equal(t, ir.TierDynamic, d.Tier)
	assert.Equal(t, "tier limit is dynamic", d.Reason)

	d = classify(classifier(func(c *tier.Config) { c.Width = 32 }),
		tu.For(tu.Name("x"), tu.Range(tu.BigInt("4294967296")), tu.Pass()))
	assert.Equal(t, ir.TierDynamic, d.Tier)
	assert.Contains(t, d.Reason, "does not fit 32 bits")
}

func TestClassifyGuardNeeds(t *testing.T) {
	n := tu.IntHint(tu.Name("n"))
	loop := tu.For(tu.Name("x"), tu.Range(tu.Int(0), n, tu.IntHint(tu.Name("s"))), tu.Pass())
	d := classify(classifier(), loop)
	require.Equal(t, ir.TierGuarded, d.Tier)
	assert.Equal(t, []ir.GuardKind{ir.GuardIsInt, ir.GuardIsInt, ir.GuardNonZero, ir.GuardLenFits}, kinds(d.Needs))
	assert.Equal(t, 1, d.Needs[0].Operand)
	assert.Equal(t, 2, d.Needs[2].Operand)
}

func TestClassifyFeedbackSignal(t *testing.T) {
	n := tu.WithSite(tu.Name("n"), "m.n")
	loop := tu.For(tu.Name("x"), tu.Range(n), tu.Pass())
	c := classifier()
	assert.Equal(t, ir.TierDynamic, classify(c, loop).Tier)

	c.Signals = stable{"m.n": true}
	assert.Equal(t, ir.TierGuarded, classify(c, loop).Tier)
}

func TestClassifyHintPolicies(t *testing.T) {
	loop := func() *ast.Node {
		return tu.For(tu.Name("x"), tu.Range(tu.TrustedInt(tu.Name("n"))), tu.Pass())
	}
	d := classify(classifier(), loop())
	assert.Equal(t, []ir.GuardKind{ir.GuardIsInt, ir.GuardLenFits}, kinds(d.Needs))

	d = classify(classifier(func(c *tier.Config) { c.HintPolicy = tier.PolicyTrust }), loop())
	assert.Equal(t, []ir.GuardKind{ir.GuardLenFits}, kinds(d.Needs), "representation guard elided")

	d = classify(classifier(func(c *tier.Config) { c.HintPolicy = tier.PolicyIgnore }), loop())
	assert.Equal(t, ir.TierDynamic, d.Tier)
}

func TestClassifyGuardedLimitEmitsFullSet(t *testing.T) {
	c := classifier(func(c *tier.Config) { c.Limit = ir.TierGuarded })
	d := classify(c, tu.CallName("sum", tu.Range(tu.Int(1), tu.Int(10), tu.Int(2))))
	require.Equal(t, ir.TierGuarded, d.Tier)
	assert.Equal(t, []ir.GuardKind{
		ir.GuardIsInt, ir.GuardIsInt, ir.GuardIsInt, ir.GuardNonZero, ir.GuardLenFits, ir.GuardSumFits,
	}, kinds(d.Needs))
	assert.True(t, d.Analytic)
}

func TestClassifyZeroStep(t *testing.T) {
	c := classifier()
	call := tu.Range(tu.Int(0), tu.Int(5), tu.Bin(tu.Int(1), "-", tu.Int(1)))
	assert.True(t, c.KnownZeroStep(call))
	assert.False(t, c.KnownZeroStep(tu.Range(tu.Int(0), tu.Int(5), tu.Name("s"))))
	assert.False(t, c.KnownZeroStep(tu.Range(tu.Int(5))))
}

func TestClassifySums(t *testing.T) {
	t.Run("analytic fits", func(t *testing.T) {
		d := classify(classifier(), tu.CallName("sum", tu.Range(tu.Int(1000000))))
		assert.Equal(t, ir.TierStatic, d.Tier)
		assert.True(t, d.Analytic)
	})
	t.Run("analytic off", func(t *testing.T) {
		d := classify(classifier(func(c *tier.Config) { c.Analytic = false }), tu.CallName("sum", tu.Range(tu.Int(100))))
		assert.Equal(t, ir.TierStatic, d.Tier)
		assert.False(t, d.Analytic)
	})
	t.Run("overflowing sum", func(t *testing.T) {
		d := classify(classifier(func(c *tier.Config) { c.Width = 32 }), tu.CallName("sum", tu.Range(tu.Int(100000))))
		assert.Equal(t, ir.TierDynamic, d.Tier)
		assert.Contains(t, d.Reason, "sum overflows")
	})
	t.Run("unknown stop", func(t *testing.T) {
		d := classify(classifier(), tu.CallName("sum", tu.Range(tu.IntHint(tu.Name("n")))))
		assert.Equal(t, ir.TierGuarded, d.Tier)
		assert.Equal(t, []ir.GuardKind{ir.GuardIsInt, ir.GuardLenFits, ir.GuardSumFits}, kinds(d.Needs))
	})
	t.Run("element sum", func(t *testing.T) {
		x := func() *ast.Node { return tu.Name("x") }
		d := classify(classifier(), tu.CallName("sum", tu.GenExp(tu.Bin(x(), "*", x()), tu.Gen(x(), tu.Range(tu.IntHint(tu.Name("n")))))))
		assert.Equal(t, ir.TierGuarded, d.Tier)
		assert.Equal(t, []ir.GuardKind{ir.GuardIsInt, ir.GuardLenFits, ir.GuardBoundsFit, ir.GuardAccumFits}, kinds(d.Needs))
		assert.False(t, d.Analytic)
	})
	t.Run("accumulate", func(t *testing.T) {
		loop := tu.For(tu.Name("x"), tu.Range(tu.Int(10)), tu.Aug(tu.IntHint(tu.Name("acc")), "+", tu.Name("x")))
		d := classify(classifier(), loop)
		assert.Equal(t, ir.TierGuarded, d.Tier)
		assert.Equal(t, []ir.GuardKind{ir.GuardIsInt, ir.GuardAccumFits}, kinds(d.Needs))
	})
}

func TestClassifyElementBounds(t *testing.T) {
	x := func() *ast.Node { return tu.Name("x") }
	comp := func(stop *ast.Node) *ast.Node {
		return tu.ListComp(tu.Bin(x(), "*", x()), tu.Gen(x(), tu.Range(stop)))
	}
	d := classify(classifier(), comp(tu.Int(1000)))
	assert.Equal(t, ir.TierStatic, d.Tier)

	d = classify(classifier(func(c *tier.Config) { c.Width = 32 }), comp(tu.Int(100000)))
	assert.Equal(t, ir.TierDynamic, d.Tier)
	assert.Contains(t, d.Reason, "element (x * x) overflows 32 bits")

	// A free name with a known value folds into the bound proof.
	k := tu.KnownConst(tu.Name("k"), 3)
	d = classify(classifier(), tu.ListComp(tu.Bin(x(), "+", k), tu.Gen(x(), tu.Range(tu.Int(5)))))
	assert.Equal(t, ir.TierStatic, d.Tier)
}

func TestClassifyEnumerate(t *testing.T) {
	c := classifier(func(c *tier.Config) { c.Width = 32 })
	loop := func(start *ast.Node) *ast.Node {
		return tu.For(tu.Tuple(tu.Name("i"), tu.Name("v")), tu.CallName("enumerate", tu.Range(tu.Int(10)), start), tu.Pass())
	}
	assert.Equal(t, ir.TierStatic, classify(c, loop(tu.Int(5))).Tier)

	d := classify(c, loop(tu.Int(2147483640)))
	assert.Equal(t, ir.TierDynamic, d.Tier)
	assert.Contains(t, d.Reason, "enumerate counter")

	d = classify(c, loop(tu.IntHint(tu.Name("s"))))
	assert.Equal(t, []ir.GuardKind{ir.GuardIsInt, ir.GuardEnumFits}, kinds(d.Needs))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, tier.DefaultConfig().Validate())

	cfg := tier.DefaultConfig()
	cfg.Width = 16
	assert.Error(t, cfg.Validate())

	cfg = tier.DefaultConfig()
	cfg.HintPolicy = "maybe"
	assert.Error(t, cfg.Validate())

	_, err := tier.ParseHintPolicy("trust")
	assert.NoError(t, err)
}
