// Package guard turns classifier needs into ordered runtime guards and
// evaluates them.
//
// Guards are pure: Check reads operand values and never changes state, so
// the runtime may evaluate them in order and stop at the first failure.
package guard

import (
	"math/big"
	"slices"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/pattern"
	"github.com/roach88/tierc/internal/tier"
)

// Input is what the synthesizer needs to know about a lowered pattern.
type Input struct {
	Pattern pattern.Pattern
	Needs   []tier.Need
	// Operands holds the lowered operand for each pattern operand.
	Operands []ir.Operand
	// Expr converts an element expression of the pattern.
	Expr func(*ast.Node) *ir.Expr
	// Target is the deopt label every guard branches to.
	Target string
}

// Synthesize returns the guards for in, in fail-fast order: representation
// checks before the checks that read values. Equal guards are emitted once.
func Synthesize(in Input) []ir.Guard {
	ops := in.Pattern.Operands()
	var out []ir.Guard
	for _, n := range in.Needs {
		g := ir.Guard{Kind: n.Kind, Target: in.Target, Reason: ir.ReasonFor(n.Kind)}
		switch n.Kind {
		case ir.GuardIsInt, ir.GuardNonZero:
			g.Args = []ir.Operand{in.Operands[n.Operand]}
			g.Site = ops[n.Operand].Node.Site()
		case ir.GuardLenFits:
			g.Args = triplet(in, n.Range)
		case ir.GuardEnumFits:
			g.Args = append([]ir.Operand{in.Operands[n.Operand]}, triplet(in, n.Range)...)
			g.Site = ops[n.Operand].Node.Site()
		case ir.GuardBoundsFit:
			g.Args = triplet(in, n.Range)
			g.Var, g.Expr = elemVar(in.Pattern), in.Expr(n.Expr)
		case ir.GuardAccumFits, ir.GuardSumFits:
			g.Args = append([]ir.Operand{operandOr(in, n.Operand, 0)}, triplet(in, n.Range)...)
			if n.Expr != nil {
				g.Var, g.Expr = elemVar(in.Pattern), in.Expr(n.Expr)
			}
			if n.Operand != pattern.Default {
				g.Site = ops[n.Operand].Node.Site()
			}
		}
		if !slices.ContainsFunc(out, func(o ir.Guard) bool { return equal(o, g) }) {
			out = append(out, g)
		}
	}
	slices.SortStableFunc(out, func(a, b ir.Guard) int {
		return ir.GuardRank(a.Kind) - ir.GuardRank(b.Kind)
	})
	return out
}

func operandOr(in Input, i int, def int64) ir.Operand {
	if i == pattern.Default {
		return ir.Int(def)
	}
	return in.Operands[i]
}

// triplet returns the start, stop and step operands of range ri with the
// defaults filled in.
func triplet(in Input, ri int) []ir.Operand {
	r := in.Pattern.Ranges()[ri]
	return []ir.Operand{operandOr(in, r.Start, 0), operandOr(in, r.Stop, 0), operandOr(in, r.Step, 1)}
}

func elemVar(p pattern.Pattern) string {
	v, _ := pattern.Elems(p)
	return v
}

func equal(a, b ir.Guard) bool {
	if a.Kind != b.Kind || a.Var != b.Var || !slices.Equal(a.Args, b.Args) {
		return false
	}
	if (a.Expr == nil) != (b.Expr == nil) {
		return false
	}
	return a.Expr == nil || ir.FormatExpr(a.Expr) == ir.FormatExpr(b.Expr)
}

// Values resolves guard operands at run time.
type Values interface {
	// Int returns the value of o when it is bound to an int. Booleans are
	// not ints for guard purposes.
	Int(o ir.Operand) (*big.Int, bool)
}
