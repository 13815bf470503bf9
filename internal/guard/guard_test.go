package guard_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/guard"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/pattern"
	tu "github.com/roach88/tierc/internal/testutil"
	"github.com/roach88/tierc/internal/tier"
)

type scope struct{}

func (scope) Builtin(string) bool { return true }
func (scope) Local(string) bool   { return true }

// frame maps binding names to ints; strings stand for non-int values.
type frame map[string]any

func (f frame) Int(o ir.Operand) (*big.Int, bool) {
	if v, ok := o.BigValue(); ok {
		return v, true
	}
	if !o.IsVar() {
		return nil, false
	}
	switch v := f[o.Text].(type) {
	case int:
		return big.NewInt(int64(v)), true
	case *big.Int:
		return v, true
	}
	return nil, false
}

func synthesize(t *testing.T, n *ast.Node) []ir.Guard {
	t.Helper()
	c := &tier.Classifier{Config: tier.DefaultConfig(), Scope: scope{}}
	p := pattern.Match(n, scope{})
	d := c.Classify(p)
	require.Equal(t, ir.TierGuarded, d.Tier, d.Reason)

	ops := make([]ir.Operand, len(p.Operands()))
	for i, op := range p.Operands() {
		if k, ok := d.Known(i); ok {
			ops[i] = ir.BigInt(k)
		} else {
			ops[i] = ir.Var(op.Node.Name)
		}
	}
	v, _ := pattern.Elems(p)
	return guard.Synthesize(guard.Input{
		Pattern:  p,
		Needs:    d.Needs,
		Operands: ops,
		Expr:     func(e *ast.Node) *ir.Expr { return c.ElemExpr(e, v) },
		Target:   "r0.deopt",
	})
}

func TestSynthesizeOrdersAndTargets(t *testing.T) {
	x := func() *ast.Node { return tu.Name("x") }
	call := tu.CallName("sum",
		tu.GenExp(tu.Bin(x(), "*", tu.IntHint(tu.Name("k"))), tu.Gen(x(), tu.Range(tu.Int(0), tu.IntHint(tu.Name("n")), tu.IntHint(tu.Name("s"))))))
	guards := synthesize(t, call)

	var got []ir.GuardKind
	for _, g := range guards {
		got = append(got, g.Kind)
		assert.Equal(t, "r0.deopt", g.Target)
		assert.Equal(t, ir.ReasonFor(g.Kind), g.Reason)
	}
	assert.Equal(t, []ir.GuardKind{
		ir.GuardIsInt, ir.GuardIsInt, ir.GuardIsInt, ir.GuardNonZero, ir.GuardLenFits, ir.GuardBoundsFit, ir.GuardAccumFits,
	}, got)

	assert.Equal(t, []ir.Operand{ir.Var("n")}, guards[0].Args)
	assert.Equal(t, []ir.Operand{ir.Int(0), ir.Var("n"), ir.Var("s")}, guards[4].Args)
	assert.Equal(t, "x", guards[5].Var)
	assert.Equal(t, "(x * k)", ir.FormatExpr(guards[5].Expr))
	assert.Equal(t, []ir.Operand{ir.Int(0), ir.Int(0), ir.Var("n"), ir.Var("s")}, guards[6].Args)
}

func TestSynthesizeDeduplicates(t *testing.T) {
	n := func() *ast.Node { return tu.IntHint(tu.Name("n")) }
	loop := tu.For(tu.Tuple(tu.Name("a"), tu.Name("b")), tu.CallName("zip", tu.Range(n()), tu.Range(n())), tu.Pass())
	guards := synthesize(t, loop)
	assert.Len(t, guards, 2, "one is_int and one len_fits for the shared bound")
}

func TestCheck(t *testing.T) {
	expr := &ir.Expr{Op: ir.ExprMul, L: &ir.Expr{Op: ir.ExprVar, Var: "x"}, R: &ir.Expr{Op: ir.ExprVar, Var: "k"}}
	tests := []struct {
		name  string
		guard ir.Guard
		frame frame
		want  bool
	}{
		{"is_int", ir.Guard{Kind: ir.GuardIsInt, Args: []ir.Operand{ir.Var("n")}}, frame{"n": 5}, true},
		{"is_int on a string", ir.Guard{Kind: ir.GuardIsInt, Args: []ir.Operand{ir.Var("n")}}, frame{"n": "5"}, false},
		{"is_int unbound", ir.Guard{Kind: ir.GuardIsInt, Args: []ir.Operand{ir.Var("n")}}, frame{}, false},
		{"is_int too wide", ir.Guard{Kind: ir.GuardIsInt, Args: []ir.Operand{ir.Var("n")}}, frame{"n": new(big.Int).Lsh(big.NewInt(1), 70)}, false},
		{"nonzero", ir.Guard{Kind: ir.GuardNonZero, Args: []ir.Operand{ir.Var("s")}}, frame{"s": -1}, true},
		{"zero", ir.Guard{Kind: ir.GuardNonZero, Args: []ir.Operand{ir.Var("s")}}, frame{"s": 0}, false},
		{"len_fits", ir.Guard{Kind: ir.GuardLenFits, Args: []ir.Operand{ir.Int(0), ir.Var("n"), ir.Int(1)}}, frame{"n": 10}, true},
		{"len_fits zero step", ir.Guard{Kind: ir.GuardLenFits, Args: []ir.Operand{ir.Int(0), ir.Var("n"), ir.Int(0)}}, frame{"n": 10}, false},
		{
			name:  "enum_fits at the edge",
			guard: ir.Guard{Kind: ir.GuardEnumFits, Args: []ir.Operand{ir.Var("s"), ir.Int(0), ir.Int(2), ir.Int(1)}},
			frame: frame{"s": big.NewInt(1<<63 - 2)},
			want:  true,
		},
		{
			name:  "enum_fits past the edge",
			guard: ir.Guard{Kind: ir.GuardEnumFits, Args: []ir.Operand{ir.Var("s"), ir.Int(0), ir.Int(3), ir.Int(1)}},
			frame: frame{"s": big.NewInt(1<<63 - 2)},
			want:  false,
		},
		{
			name:  "bounds_fit",
			guard: ir.Guard{Kind: ir.GuardBoundsFit, Args: []ir.Operand{ir.Int(0), ir.Int(10), ir.Int(1)}, Var: "x", Expr: expr},
			frame: frame{"k": 1000},
			want:  true,
		},
		{
			name:  "bounds_fit overflow",
			guard: ir.Guard{Kind: ir.GuardBoundsFit, Args: []ir.Operand{ir.Int(0), ir.Int(10), ir.Int(1)}, Var: "x", Expr: expr},
			frame: frame{"k": big.NewInt(1 << 62)},
			want:  false,
		},
		{
			name:  "accum_fits",
			guard: ir.Guard{Kind: ir.GuardAccumFits, Args: []ir.Operand{ir.Var("acc"), ir.Int(0), ir.Int(100), ir.Int(1)}},
			frame: frame{"acc": 7},
			want:  true,
		},
		{
			name:  "accum_fits empty range still checks base",
			guard: ir.Guard{Kind: ir.GuardAccumFits, Args: []ir.Operand{ir.Var("acc"), ir.Int(0), ir.Int(0), ir.Int(1)}},
			frame: frame{"acc": "x"},
			want:  false,
		},
		{
			name:  "sum_fits",
			guard: ir.Guard{Kind: ir.GuardSumFits, Args: []ir.Operand{ir.Int(0), ir.Int(0), ir.Var("n"), ir.Int(1)}},
			frame: frame{"n": 1000000},
			want:  true,
		},
		{
			name:  "sum_fits overflow",
			guard: ir.Guard{Kind: ir.GuardSumFits, Args: []ir.Operand{ir.Int(0), ir.Int(0), ir.Var("n"), ir.Int(1)}},
			frame: frame{"n": big.NewInt(1 << 40)},
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guard.Check(&tt.guard, 64, tt.frame))
		})
	}
}
