package determinism

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/store"
	"github.com/roach88/tierc/internal/tier"
	"github.com/roach88/tierc/internal/world"
)

// InputHash fingerprints a decoded module.
func InputHash(mod *ast.Node) (string, error) {
	data, err := json.Marshal(mod)
	if err != nil {
		return "", fmt.Errorf("input hash: %w", err)
	}
	return ir.FingerprintBytes(ir.DomainInput, data), nil
}

// ConfigHash fingerprints everything besides the module that can change
// the IR: the tier configuration and the feedback signals.
func ConfigHash(cfg tier.Config, signals map[string]world.Signal) (string, error) {
	sites := make(ir.IRArray, 0, len(signals))
	for _, site := range slices.Sorted(maps.Keys(signals)) {
		s := signals[site]
		sites = append(sites, ir.IRObject{
			"site":    ir.IRString(site),
			"type":    ir.IRString(s.Type),
			"samples": ir.IRInt(s.Samples),
			"hits":    ir.IRInt(s.Hits),
			"stable":  ir.IRBool(s.Stable),
		})
	}
	return ir.Fingerprint(ir.DomainConfig, ir.IRObject{
		"width":       ir.IRInt(cfg.Width),
		"hint_policy": ir.IRString(cfg.HintPolicy),
		"limit":       ir.IRString(cfg.Limit.String()),
		"analytic":    ir.IRBool(cfg.Analytic),
		"profile":     ir.IRBool(cfg.Profile),
		"signals":     sites,
	})
}

// LedgerKey builds the ledger key of a compilation.
func LedgerKey(mod *ast.Node, cfg tier.Config, signals map[string]world.Signal) (store.Key, error) {
	in, err := InputHash(mod)
	if err != nil {
		return store.Key{}, err
	}
	c, err := ConfigHash(cfg, signals)
	if err != nil {
		return store.Key{}, err
	}
	return store.Key{
		InputHash:       in,
		ConfigHash:      c,
		CompilerVersion: ir.CompilerVersion,
		IRVersion:       ir.IRVersion,
	}, nil
}

// CheckLedger compares res against the first run recorded under key and
// records res as a new run. A mismatch is still recorded, so the ledger
// keeps the evidence, and is returned as a NondeterminismError.
func CheckLedger(ctx context.Context, s *store.Store, key store.Key, res *Result, label string) (store.Run, error) {
	first, found, err := s.First(ctx, key)
	if err != nil {
		return store.Run{}, err
	}
	run, err := s.RecordRun(ctx, res.Module, key, res.Fingerprint, res.Canonical, label)
	if err != nil {
		return store.Run{}, err
	}
	if !found || first.UnitHash == res.Fingerprint {
		return run, nil
	}

	offset := -1
	if want, err := s.Unit(ctx, first.UnitHash); err == nil {
		offset = FirstDifference(want, res.Canonical)
	}
	return run, &NondeterminismError{
		Module:    res.Module,
		LedgerRun: first.ID,
		Want:      first.UnitHash,
		Got:       res.Fingerprint,
		Offset:    offset,
	}
}
