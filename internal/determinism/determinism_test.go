package determinism_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/compiler"
	"github.com/roach88/tierc/internal/determinism"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/store"
	tu "github.com/roach88/tierc/internal/testutil"
)

func module() *ast.Node {
	return tu.Module("m",
		tu.Func("f", []string{"n"},
			tu.Set("out", tu.List()),
			tu.For(tu.Name("i"), tu.Range(tu.IntHint(tu.Name("n"))),
				tu.Expr(tu.Method(tu.Name("out"), "append", tu.Name("i")))),
			tu.Return(tu.Name("out"))),
		tu.Func("g", nil, tu.Return(tu.CallName("sum", tu.Range(tu.Int(100))))),
		tu.Print(tu.CallName("list", tu.Range(tu.Int(5), tu.Int(0), tu.Int(-2)))))
}

func TestGoldenCompareIsStable(t *testing.T) {
	res, err := determinism.GoldenCompare(context.Background(), module(), compiler.DefaultOptions(), 6)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Runs)

	fp, err := ir.UnitFingerprint(res.Unit)
	require.NoError(t, err)
	assert.Equal(t, fp, res.Fingerprint)
}

func TestGoldenCompareSurfacesCompileErrors(t *testing.T) {
	mod := tu.Module("m", tu.Break())
	_, err := determinism.GoldenCompare(context.Background(), mod, compiler.DefaultOptions(), 2)
	var unsup *compiler.UnsupportedError
	assert.ErrorAs(t, err, &unsup)
}

func TestFirstDifference(t *testing.T) {
	assert.Equal(t, -1, determinism.FirstDifference([]byte("abc"), []byte("abc")))
	assert.Equal(t, 1, determinism.FirstDifference([]byte("abc"), []byte("axc")))
	assert.Equal(t, 2, determinism.FirstDifference([]byte("ab"), []byte("abc")))
}

func TestConfigHashSeparatesConfigs(t *testing.T) {
	base := compiler.DefaultOptions().Config
	a, err := determinism.ConfigHash(base, nil)
	require.NoError(t, err)

	narrow := base
	narrow.Width = 32
	b, err := determinism.ConfigHash(narrow, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	again, err := determinism.ConfigHash(base, nil)
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestCheckLedger(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer s.Close()

	opts := compiler.DefaultOptions()
	key, err := determinism.LedgerKey(module(), opts.Config, nil)
	require.NoError(t, err)

	res, err := determinism.GoldenCompare(ctx, module(), opts, 2)
	require.NoError(t, err)
	_, err = determinism.CheckLedger(ctx, s, key, res, "first")
	require.NoError(t, err)
	_, err = determinism.CheckLedger(ctx, s, key, res, "second")
	require.NoError(t, err)

	// A different unit under the same key is a divergence.
	forged := *res
	forged.Canonical = append([]byte(nil), res.Canonical...)
	forged.Canonical[len(forged.Canonical)-2] = ' '
	forged.Fingerprint = ir.FingerprintBytes(ir.DomainUnit, forged.Canonical)
	_, err = determinism.CheckLedger(ctx, s, key, &forged, "third")
	var nd *determinism.NondeterminismError
	require.True(t, errors.As(err, &nd))
	assert.Equal(t, determinism.CodeNondeterminism, nd.Code())
	assert.Equal(t, res.Fingerprint, nd.Want)
	assert.Equal(t, len(res.Canonical)-2, nd.Offset)

	conflicts, err := s.Conflicts(ctx)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
}

func TestGoldenFiles(t *testing.T) {
	dir := t.TempDir()
	res, err := determinism.GoldenCompare(context.Background(), module(), compiler.DefaultOptions(), 2)
	require.NoError(t, err)

	determinism.RecordGolden(t, dir, "m", res.Unit)
	data, err := os.ReadFile(filepath.Join(dir, "m.json"))
	require.NoError(t, err)
	assert.Equal(t, res.Canonical, data)

	again, err := compiler.Compile(context.Background(), module(), compiler.DefaultOptions())
	require.NoError(t, err)
	determinism.AssertGoldenCanonical(t, dir, "m", again)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "m.golden"), []byte(ir.Format(res.Unit)), 0o644))
	determinism.AssertGolden(t, dir, "m", again)
}
