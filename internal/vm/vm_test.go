package vm_test

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/compiler"
	"github.com/roach88/tierc/internal/feedback"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/tier"
	tu "github.com/roach88/tierc/internal/testutil"
	"github.com/roach88/tierc/internal/vm"
)

var limits = []ir.Tier{ir.TierStatic, ir.TierGuarded, ir.TierDynamic}

func compile(t *testing.T, mod *ast.Node, cfg tier.Config) *ir.Unit {
	t.Helper()
	u, err := compiler.Compile(context.Background(), mod, compiler.Options{Config: cfg})
	require.NoError(t, err)
	return u
}

func run(t *testing.T, mod *ast.Node, cfg tier.Config, opts vm.Options) *vm.Outcome {
	t.Helper()
	out, err := vm.Run(context.Background(), compile(t, mod, cfg), opts)
	require.NoError(t, err)
	return out
}

// runAll runs mod under every tier limit, requires the observable
// outcomes to agree and returns the outcome of the static limit.
func runAll(t *testing.T, build func() *ast.Node, opts vm.Options) *vm.Outcome {
	t.Helper()
	var first *vm.Outcome
	for _, limit := range limits {
		cfg := tier.DefaultConfig()
		cfg.Limit = limit
		out := run(t, build(), cfg, opts)
		if first == nil {
			first = out
			continue
		}
		assert.Equal(t, first.Output, out.Output, "output under limit %s", limit)
		assert.Equal(t, vm.Repr(first.Result), vm.Repr(out.Result), "result under limit %s", limit)
		assert.Equal(t, first.Exception, out.Exception, "exception under limit %s", limit)
	}
	return first
}

func intArgs(ns ...int64) []vm.Value {
	out := make([]vm.Value, len(ns))
	for i, n := range ns {
		out[i] = big.NewInt(n)
	}
	return out
}

func TestCountedForCollects(t *testing.T) {
	out := runAll(t, func() *ast.Node {
		return tu.Module("m",
			tu.Set("out", tu.List()),
			tu.For(tu.Name("i"), tu.Range(tu.Int(5)),
				tu.Expr(tu.Method(tu.Name("out"), "append", tu.Name("i")))),
			tu.Print(tu.Name("out")))
	}, vm.Options{})
	assert.Equal(t, []string{"[0, 1, 2, 3, 4]"}, out.Output)
}

func TestMaterializeNegativeStep(t *testing.T) {
	out := runAll(t, func() *ast.Node {
		return tu.Module("m", tu.Print(tu.CallName("list", tu.Range(tu.Int(5), tu.Int(0), tu.Int(-2)))))
	}, vm.Options{})
	assert.Equal(t, []string{"[5, 3, 1]"}, out.Output)
}

func TestMaterializeAtWordEdge(t *testing.T) {
	out := runAll(t, func() *ast.Node {
		return tu.Module("m", tu.Print(tu.CallName("list", tu.Range(
			tu.BigInt("9223372036854775804"), tu.BigInt("9223372036854775807"), tu.Int(2)))))
	}, vm.Options{})
	assert.Equal(t, []string{"[9223372036854775804, 9223372036854775806]"}, out.Output)
}

func TestRuntimeZeroStepRaises(t *testing.T) {
	for _, hinted := range []bool{false, true} {
		build := func() *ast.Node {
			step := tu.Name("s")
			if hinted {
				step = tu.IntHint(step)
			}
			return tu.Module("m",
				tu.Func("f", []string{"s"}, tu.Return(tu.CallName("list", tu.Range(tu.Int(0), tu.Int(10), step)))))
		}
		out := runAll(t, build, vm.Options{Entry: "f", Args: intArgs(0)})
		require.NotNil(t, out.Exception)
		assert.Equal(t, vm.ExcValue, out.Exception.Class)
		assert.Equal(t, "range() arg 3 must not be zero", out.Exception.Msg)
		if hinted {
			require.Len(t, out.Deopts, 1)
			assert.Equal(t, ir.ReasonFor(ir.GuardNonZero), out.Deopts[0].Reason)
		}
	}
}

func TestAnalyticSumMatchesAccumulation(t *testing.T) {
	build := func() *ast.Node {
		return tu.Module("m",
			tu.Func("f", []string{"n"}, tu.Return(tu.CallName("sum", tu.Range(tu.IntHint(tu.Name("n")))))))
	}
	analytic := run(t, build(), tier.DefaultConfig(), vm.Options{Entry: "f", Args: intArgs(1_000_000)})
	assert.Equal(t, "499999500000", vm.Repr(analytic.Result))
	assert.Empty(t, analytic.Deopts)

	cfg := tier.DefaultConfig()
	cfg.Analytic = false
	for _, n := range []int64{0, 1, 7, 10_000} {
		want := run(t, build(), tier.DefaultConfig(), vm.Options{Entry: "f", Args: intArgs(n)})
		got := run(t, build(), cfg, vm.Options{Entry: "f", Args: intArgs(n)})
		assert.Equal(t, vm.Repr(want.Result), vm.Repr(got.Result), "n=%d", n)
	}
}

func TestListComprehensionOfSquares(t *testing.T) {
	out := runAll(t, func() *ast.Node {
		x := tu.Name("x")
		return tu.Module("m",
			tu.Print(tu.ListComp(tu.Bin(x, "*", tu.Name("x")), tu.Gen(tu.Name("x"), tu.Range(tu.Int(4))))))
	}, vm.Options{})
	assert.Equal(t, []string{"[0, 1, 4, 9]"}, out.Output)
}

func TestZipStopsAtShortest(t *testing.T) {
	out := runAll(t, func() *ast.Node {
		return tu.Module("m",
			tu.Print(tu.CallName("list", tu.CallName("zip", tu.Range(tu.Int(3)), tu.Range(tu.Int(5))))))
	}, vm.Options{})
	assert.Equal(t, []string{"[(0, 0), (1, 1), (2, 2)]"}, out.Output)
}

func TestEnumerateAndDictComprehension(t *testing.T) {
	out := runAll(t, func() *ast.Node {
		return tu.Module("m",
			tu.For(tu.Tuple(tu.Name("i"), tu.Name("v")), tu.CallName("enumerate", tu.Range(tu.Int(10), tu.Int(13)), tu.Int(1)),
				tu.Print(tu.Name("i"), tu.Name("v"))),
			tu.Print(tu.DictComp(tu.Name("k"), tu.Bin(tu.Name("k"), "%", tu.Int(2)), tu.Gen(tu.Name("k"), tu.Range(tu.Int(3))))))
	}, vm.Options{})
	assert.Equal(t, []string{"1 10", "2 11", "3 12", "{0: 0, 1: 1, 2: 0}"}, out.Output)
}

func TestGuardFailureDeoptsWithSameOutcome(t *testing.T) {
	build := func() *ast.Node {
		return tu.Module("m",
			tu.Func("f", []string{"n"},
				tu.Set("out", tu.List()),
				tu.For(tu.Name("i"), tu.Range(tu.IntHint(tu.Name("n"))),
					tu.Expr(tu.Method(tu.Name("out"), "append", tu.Name("i")))),
				tu.Return(tu.Name("out"))))
	}
	// A bool passes for an int in the object protocol but fails is_int.
	out := runAll(t, build, vm.Options{Entry: "f", Args: []vm.Value{vm.Bool(true)}})
	assert.Equal(t, "[0]", vm.Repr(out.Result))
	require.Len(t, out.Deopts, 1)
	assert.Equal(t, ir.ReasonFor(ir.GuardIsInt), out.Deopts[0].Reason)

	ok := runAll(t, build, vm.Options{Entry: "f", Args: intArgs(3)})
	assert.Equal(t, "[0, 1, 2]", vm.Repr(ok.Result))
	assert.Empty(t, ok.Deopts)
}

func TestGuardReadsComprehensionBinding(t *testing.T) {
	nested := func(outer bool, y *ast.Node) func() *ast.Node {
		return func() *ast.Node {
			var body []*ast.Node
			if outer {
				body = append(body, tu.Set("y", tu.Int(1)))
			}
			inner := tu.CallName("sum", tu.GenExp(
				tu.Bin(tu.Name("x"), "*", tu.IntHint(tu.Name("y"))),
				tu.Gen(tu.Name("x"), tu.Range(tu.Int(3)))))
			body = append(body, tu.Print(tu.ListComp(inner, tu.Gen(tu.Name("y"), tu.List(y)))))
			return tu.Module("m", body...)
		}
	}
	guarded := tier.DefaultConfig()
	guarded.Limit = ir.TierGuarded

	// The outer y fits; the comprehension's y overflows the element bound.
	overflow := nested(true, tu.BigInt("4611686018427387904"))
	out := runAll(t, overflow, vm.Options{})
	assert.Equal(t, []string{"[13835058055282163712]"}, out.Output)
	g := run(t, overflow(), guarded, vm.Options{})
	assert.Equal(t, out.Output, g.Output)
	assert.NotEmpty(t, g.Deopts)

	// Without an outer y the guard still sees the comprehension's y.
	small := nested(false, tu.Int(2))
	out = runAll(t, small, vm.Options{})
	assert.Equal(t, []string{"[6]"}, out.Output)
	g = run(t, small(), guarded, vm.Options{})
	assert.Equal(t, []string{"[6]"}, g.Output)
	assert.Empty(t, g.Deopts)
}

func TestWidth32FallsBackWithoutChangingResult(t *testing.T) {
	build := func() *ast.Node {
		return tu.Module("m", tu.Print(tu.CallName("sum", tu.Range(tu.Int(100_000)))))
	}
	cfg := tier.DefaultConfig()
	cfg.Width = 32
	narrow := run(t, build(), cfg, vm.Options{})
	wide := run(t, build(), tier.DefaultConfig(), vm.Options{})
	assert.Equal(t, []string{"4999950000"}, narrow.Output)
	assert.Equal(t, wide.Output, narrow.Output)
}

func TestExceptions(t *testing.T) {
	tests := []struct {
		name  string
		body  func() []*ast.Node
		class string
		msg   string
	}{
		{
			name:  "division by zero",
			body:  func() []*ast.Node { return []*ast.Node{tu.Set("x", tu.Int(0)), tu.Print(tu.Bin(tu.Int(10), "//", tu.Name("x")))} },
			class: vm.ExcZeroDivision,
			msg:   "integer division or modulo by zero",
		},
		{
			name:  "unbound name",
			body:  func() []*ast.Node { return []*ast.Node{tu.Print(tu.Name("y"))} },
			class: vm.ExcName,
			msg:   "name 'y' is not defined",
		},
		{
			name:  "explicit raise",
			body:  func() []*ast.Node { return []*ast.Node{tu.Raise(tu.CallName("KeyError", tu.Str("k")))} },
			class: "KeyError",
			msg:   "k",
		},
		{
			name: "output before the exception is kept",
			body: func() []*ast.Node {
				return []*ast.Node{tu.Print(tu.Int(1)), tu.Expr(tu.CallName("len", tu.Int(3)))}
			},
			class: vm.ExcTypeError,
			msg:   "object of type 'int' has no len()",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runAll(t, func() *ast.Node { return tu.Module("m", tt.body()...) }, vm.Options{})
			require.NotNil(t, out.Exception)
			assert.Equal(t, tt.class, out.Exception.Class)
			assert.Equal(t, tt.msg, out.Exception.Msg)
		})
	}
}

func TestRecursionLimit(t *testing.T) {
	mod := tu.Module("m", tu.Func("f", []string{"n"}, tu.Return(tu.CallName("f", tu.Name("n")))))
	out := run(t, mod, tier.DefaultConfig(), vm.Options{Entry: "f", Args: intArgs(1), MaxDepth: 20})
	require.NotNil(t, out.Exception)
	assert.Equal(t, vm.ExcRecursion, out.Exception.Class)
}

func TestStepBudget(t *testing.T) {
	mod := tu.Module("m", tu.While(tu.Bool(true), tu.Pass()))
	_, err := vm.Run(context.Background(), compile(t, mod, tier.DefaultConfig()), vm.Options{MaxSteps: 1000})
	require.Error(t, err)
	assert.True(t, vm.IsStepsExceeded(err))
	assert.False(t, vm.IsTrap(err))
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mod := tu.Module("m", tu.While(tu.Bool(true), tu.Pass()))
	_, err := vm.Run(ctx, compile(t, mod, tier.DefaultConfig()), vm.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStdoutMirrorsOutput(t *testing.T) {
	var sb strings.Builder
	mod := tu.Module("m", tu.Print(tu.Str("a"), tu.Int(1)), tu.Print(tu.Tuple(tu.Str("b"))))
	out := run(t, mod, tier.DefaultConfig(), vm.Options{Stdout: &sb})
	assert.Equal(t, []string{"a 1", "('b',)"}, out.Output)
	assert.Equal(t, "a 1\n('b',)\n", sb.String())
}

func TestProfilingFeedsRecorder(t *testing.T) {
	mod := tu.Module("m",
		tu.Func("f", []string{"n"},
			tu.Return(tu.CallName("sum", tu.Range(tu.WithSite(tu.Name("n"), "site:n"))))))
	cfg := tier.DefaultConfig()
	cfg.Profile = true

	rec := feedback.NewRecorder()
	u := compile(t, mod, cfg)
	for range 3 {
		_, err := vm.Run(context.Background(), u, vm.Options{Entry: "f", Args: intArgs(4), Observer: rec})
		require.NoError(t, err)
	}
	a := rec.Artifact()
	assert.Equal(t, feedback.Site{Type: "int", Samples: 3, Hits: 3}, a.Sites["site:n"])

	// Feeding the signal back makes the construct guarded.
	sig := a.Signals(feedback.Thresholds{MinSamples: 3, StablePercent: 100})
	guarded, err := compiler.Compile(context.Background(), mod, compiler.Options{Config: tier.DefaultConfig(), Signals: sig})
	require.NoError(t, err)
	assert.Equal(t, 1, compiler.Summarize(guarded)[1].Guarded)
}
