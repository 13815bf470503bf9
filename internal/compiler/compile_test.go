package compiler_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/compiler"
	"github.com/roach88/tierc/internal/ir"
	tu "github.com/roach88/tierc/internal/testutil"
)

func sample() *ast.Node {
	var funcs []*ast.Node
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		funcs = append(funcs, tu.Func(name, []string{"n"},
			tu.Set("acc", tu.Int(0)),
			tu.For(tu.Name("x"), tu.Range(tu.Name("n")), tu.Aug(tu.Name("acc"), "+", tu.Name("x"))),
			tu.Return(tu.Name("acc"))))
	}
	body := append(funcs, tu.Print(tu.CallName("sum", tu.Range(tu.Int(10)))))
	return tu.Module("m", body...)
}

func canonical(t *testing.T, u *ir.Unit) []byte {
	t.Helper()
	data, err := ir.MarshalCanonical(u.Value())
	require.NoError(t, err)
	return data
}

func TestCompileOrdersFunctions(t *testing.T) {
	u, err := compiler.Compile(context.Background(), sample(), compiler.DefaultOptions())
	require.NoError(t, err)

	var names []string
	for _, fn := range u.Functions {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{ir.ModuleFunc, "a", "b", "c", "d", "e", "f"}, names)
	assert.Equal(t, ir.IRVersion, u.IRVersion)
	assert.Equal(t, 64, u.Width)
}

func TestCompileIsIndependentOfWorkers(t *testing.T) {
	opts := compiler.DefaultOptions()
	opts.Workers = 1
	serial, err := compiler.Compile(context.Background(), sample(), opts)
	require.NoError(t, err)

	for range 5 {
		opts.Workers = 8
		parallel, err := compiler.Compile(context.Background(), sample(), opts)
		require.NoError(t, err)
		assert.Equal(t, canonical(t, serial), canonical(t, parallel))
	}
}

func TestCompileReportsEarliestError(t *testing.T) {
	zeroStep := func(name string) *ast.Node {
		return tu.Func(name, nil, tu.Expr(tu.CallName("list", tu.Range(tu.Int(0), tu.Int(3), tu.Int(0)))))
	}
	stray := func(name string) *ast.Node {
		return tu.Func(name, nil, tu.Break())
	}

	_, err := compiler.Compile(context.Background(), tu.Module("m", stray("f"), zeroStep("g")), compiler.DefaultOptions())
	var unsup *compiler.UnsupportedError
	assert.ErrorAs(t, err, &unsup)

	_, err = compiler.Compile(context.Background(), tu.Module("m", zeroStep("f"), stray("g")), compiler.DefaultOptions())
	var trap *compiler.TrapError
	require.ErrorAs(t, err, &trap)
	assert.Equal(t, compiler.CodeTrap, trap.Code())
}

func TestCompileRejectsBadConfig(t *testing.T) {
	opts := compiler.DefaultOptions()
	opts.Config.Width = 48
	_, err := compiler.Compile(context.Background(), sample(), opts)
	assert.Error(t, err)
}

func TestCompileHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := compiler.Compile(ctx, sample(), compiler.DefaultOptions())
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSummarize(t *testing.T) {
	mod := tu.Module("m",
		tu.Print(tu.CallName("sum", tu.Range(tu.Int(10)))),
		tu.Func("f", []string{"n"}, tu.Return(tu.CallName("sum", tu.Range(tu.IntHint(tu.Name("n")))))),
		tu.Func("g", []string{"xs"}, tu.Return(tu.CallName("len", tu.Name("xs")))))
	u, err := compiler.Compile(context.Background(), mod, compiler.DefaultOptions())
	require.NoError(t, err)

	sums := compiler.Summarize(u)
	require.Len(t, sums, 3)
	assert.Equal(t, compiler.Summary{Function: ir.ModuleFunc, Static: 1, Generic: 1}, sums[0])
	assert.Equal(t, 1, sums[1].Guarded)
	assert.Equal(t, compiler.Summary{Function: "g", Generic: 1}, sums[2])
}

func TestAnalyzeRecursion(t *testing.T) {
	call := func(name string) *ast.Node { return tu.Expr(tu.CallName(name)) }
	mod := tu.Module("m",
		tu.Func("a", nil, call("b")),
		tu.Func("b", nil, call("a")),
		tu.Func("c", nil, call("c")),
		tu.Func("d", nil, call("a")),
		call("d"))
	u, err := compiler.Compile(context.Background(), mod, compiler.DefaultOptions())
	require.NoError(t, err)

	warnings := compiler.AnalyzeRecursion(u)
	require.Len(t, warnings, 2)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, []string{"c", "c"}, warnings[1].Path)
}
