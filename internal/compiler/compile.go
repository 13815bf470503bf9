// Package compiler drives the pipeline for one module: world snapshot,
// per-function lowering in parallel, canonical merge and structural
// validation.
package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/lower"
	"github.com/roach88/tierc/internal/pattern"
	"github.com/roach88/tierc/internal/tier"
	"github.com/roach88/tierc/internal/world"
)

// Options configures Compile.
type Options struct {
	Config tier.Config
	// Signals is the runtime feedback keyed by operand site. May be nil.
	Signals map[string]world.Signal
	// Workers bounds concurrent function lowering; 0 means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// DefaultOptions returns options with the default tier configuration.
func DefaultOptions() Options {
	return Options{Config: tier.DefaultConfig()}
}

// Compile lowers mod into a unit. Functions are lowered concurrently, but
// the unit lists them in declaration order with ir.ModuleFunc first, and
// when several fail the error of the earliest one is returned. The result
// therefore does not depend on Workers.
func Compile(ctx context.Context, mod *ast.Node, opts Options) (*ir.Unit, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", mod.Name, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	snap := world.New(mod, opts.Signals)
	l := lower.New(mod, opts.Config, snap, logger)
	defs := mod.Funcs()

	fns := make([]ir.Function, len(defs)+1)
	errs := make([]error, len(defs)+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		fns[0], errs[0] = l.Module(mod)
		return nil
	})
	for i, def := range defs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fns[i+1], errs[i+1] = l.Function(def)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", mod.Name, err)
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	u := &ir.Unit{
		Module:    mod.Name,
		IRVersion: ir.IRVersion,
		Width:     opts.Config.Width,
		Functions: fns,
	}
	if verrs := ir.Validate(u); len(verrs) > 0 {
		return nil, &InvalidIRError{Module: mod.Name, Errors: verrs}
	}

	for _, s := range Summarize(u) {
		logger.Debug("lowered function",
			"module", mod.Name,
			"function", s.Function,
			"static", s.Static,
			"guarded", s.Guarded,
			"dynamic", s.Dynamic,
			"generic", s.Generic)
	}
	return u, nil
}

// Summary counts the recognized idioms of one function by tier. Generic
// counts the statements lowered entirely through the object protocol.
type Summary struct {
	Function string `json:"function"`
	Static   int    `json:"static"`
	Guarded  int    `json:"guarded"`
	Dynamic  int    `json:"dynamic"`
	Generic  int    `json:"generic"`
}

// Summarize counts the constructs of every function. Deopt blocks are
// not counted.
func Summarize(u *ir.Unit) []Summary {
	out := make([]Summary, 0, len(u.Functions))
	for _, fn := range u.Functions {
		s := Summary{Function: fn.Name}
		s.count(fn.Body)
		out = append(out, s)
	}
	return out
}

func (s *Summary) count(body []ir.Instr) {
	for i := range body {
		in := &body[i]
		if r := in.Region; r != nil {
			switch {
			case r.Pattern == string(pattern.KindUnrecognized):
				s.Generic++
			case r.Pattern == lower.PatternOperands:
			case r.Tier == ir.TierStatic:
				s.Static++
			case r.Tier == ir.TierGuarded:
				s.Guarded++
			default:
				s.Dynamic++
			}
			s.count(r.Body)
		}
		s.count(in.Body)
		s.count(in.Else)
	}
}
