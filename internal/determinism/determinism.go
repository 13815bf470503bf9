// Package determinism checks that compilation is reproducible: the same
// module, configuration and feedback must always produce byte-identical
// canonical IR, within one process and across runs recorded in the
// fingerprint ledger.
package determinism

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/compiler"
	"github.com/roach88/tierc/internal/ir"
)

// CodeNondeterminism is the error code of NondeterminismError.
const CodeNondeterminism = "E301"

// NondeterminismError reports two compilations of the same input that
// produced different IR. It is always fatal.
type NondeterminismError struct {
	Module string
	// Run is the 1-based run that diverged. Zero means the divergence was
	// against the ledger.
	Run int
	// LedgerRun is the ID of the recorded run compared against.
	LedgerRun string
	Want, Got string
	// Offset is the first differing byte of the canonical encodings, or
	// -1 when only fingerprints were compared.
	Offset int
}

func (e *NondeterminismError) Error() string {
	var against string
	if e.LedgerRun != "" {
		against = "ledger run " + e.LedgerRun
	} else {
		against = fmt.Sprintf("run %d", e.Run)
	}
	msg := fmt.Sprintf("[%s] module %s: unit %s differs from %s (%s)", CodeNondeterminism, e.Module, e.Got, against, e.Want)
	if e.Offset >= 0 {
		msg += fmt.Sprintf(", first difference at byte %d", e.Offset)
	}
	return msg
}

// Code returns the error code.
func (e *NondeterminismError) Code() string { return CodeNondeterminism }

// Result is the outcome of a successful comparison.
type Result struct {
	Module      string
	Runs        int
	Fingerprint string
	Canonical   []byte
	Unit        *ir.Unit
}

// GoldenCompare compiles mod runs times and requires every canonical
// encoding to equal the first. Runs alternate between serial and
// parallel lowering so that scheduling cannot hide in the output.
func GoldenCompare(ctx context.Context, mod *ast.Node, opts compiler.Options, runs int) (*Result, error) {
	if runs < 2 {
		runs = 2
	}
	var res *Result
	for i := 1; i <= runs; i++ {
		o := opts
		if i%2 == 1 {
			o.Workers = 1
		}
		u, err := compiler.Compile(ctx, mod, o)
		if err != nil {
			return nil, err
		}
		canonical, err := u.Canonical()
		if err != nil {
			return nil, fmt.Errorf("canonical %s: %w", mod.Name, err)
		}
		fp := ir.FingerprintBytes(ir.DomainUnit, canonical)
		if res == nil {
			res = &Result{Module: mod.Name, Fingerprint: fp, Canonical: canonical, Unit: u}
		} else if !bytes.Equal(res.Canonical, canonical) {
			return nil, &NondeterminismError{
				Module: mod.Name,
				Run:    i,
				Want:   res.Fingerprint,
				Got:    fp,
				Offset: FirstDifference(res.Canonical, canonical),
			}
		}
		res.Runs = i
	}
	return res, nil
}

// FirstDifference returns the index of the first byte at which a and b
// differ, or -1 if they are equal.
func FirstDifference(a, b []byte) int {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}
