package guard

import (
	"math/big"

	"github.com/roach88/tierc/internal/bounds"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/ranges"
	"github.com/roach88/tierc/internal/tier"
)

// Check evaluates g. Any operand that is unbound or not an int makes the
// guard fail, whatever its kind.
func Check(g *ir.Guard, width int, vals Values) bool {
	args := make([]*big.Int, len(g.Args))
	for i, a := range g.Args {
		v, ok := vals.Int(a)
		if !ok {
			return false
		}
		args[i] = v
	}

	switch g.Kind {
	case ir.GuardIsInt:
		return len(args) == 1 && ranges.Fits(args[0], width)
	case ir.GuardNonZero:
		return len(args) == 1 && args[0].Sign() != 0
	case ir.GuardLenFits:
		b, ok := progression(args)
		return ok && b.FitsWidth(width)
	case ir.GuardEnumFits:
		if len(args) != 4 {
			return false
		}
		b, ok := progression(args[1:])
		return ok && tier.EnumFits(args[0], b, width)
	case ir.GuardBoundsFit:
		b, ok := progression(args)
		return ok && g.Expr != nil && bounds.FitsOver(g.Expr, g.Var, b, env(g, vals), width)
	case ir.GuardAccumFits:
		if len(args) != 4 {
			return false
		}
		b, ok := progression(args[1:])
		if !ok {
			return false
		}
		lo, hi, nonEmpty := b.Bounds()
		if !nonEmpty {
			return ranges.Fits(args[0], width)
		}
		if g.Expr != nil {
			iv, ok := bounds.EvalOver(g.Expr, g.Var, b, env(g, vals))
			if !ok {
				return false
			}
			lo, hi = iv.Lo, iv.Hi
		}
		return b.AccumFits(args[0], lo, hi, width)
	case ir.GuardSumFits:
		if len(args) != 4 {
			return false
		}
		b, ok := progression(args[1:])
		return ok && b.AnalyticSumFits(args[0], width)
	}
	return false
}

func progression(args []*big.Int) (ranges.Big, bool) {
	if len(args) != 3 {
		return ranges.Big{}, false
	}
	b, err := ranges.NormalizeBig(args[0], args[1], args[2])
	return b, err == nil
}

// env binds the free names of g's expression to their current values.
func env(g *ir.Guard, vals Values) bounds.Env {
	return func(name string) (bounds.Interval, bool) {
		if name == g.Var {
			return bounds.Interval{}, false
		}
		v, ok := vals.Int(ir.Var(name))
		if !ok {
			return bounds.Interval{}, false
		}
		return bounds.Point(v), true
	}
}
