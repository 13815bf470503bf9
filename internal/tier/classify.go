package tier

import (
	"fmt"
	"math/big"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/bounds"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/pattern"
	"github.com/roach88/tierc/internal/ranges"
)

// Need is a precondition of the fast path that must be checked at run
// time. Operand and Range index the pattern's operands and ranges, or are
// pattern.Default when the guard kind does not use them.
type Need struct {
	Kind    ir.GuardKind
	Operand int
	Range   int
	// Expr is the element expression for bounds_fit and accum_fits.
	Expr *ast.Node
}

// Decision is the classification of one pattern.
type Decision struct {
	Tier   ir.Tier
	Reason string
	// Values holds the evidence for each pattern operand.
	Values []Value
	// Needs is empty unless Tier is TierGuarded.
	Needs []Need
	// Analytic selects the closed-form sum for a range reduction.
	Analytic bool
}

// Known returns the constant of operand i, if it has one.
func (d *Decision) Known(i int) (*big.Int, bool) {
	if i == pattern.Default || d.Values[i].Evidence != EvidenceKnown {
		return nil, false
	}
	return d.Values[i].Const, true
}

func dynamic(d Decision, format string, args ...any) Decision {
	d.Tier = ir.TierDynamic
	d.Reason = fmt.Sprintf(format, args...)
	d.Needs = nil
	d.Analytic = false
	return d
}

// Classify decides the tier of p.
func (c *Classifier) Classify(p pattern.Pattern) Decision {
	ops := p.Operands()
	d := Decision{Values: make([]Value, len(ops))}
	for i, op := range ops {
		d.Values[i] = c.Evidence(op.Node)
	}
	if p.Kind() == pattern.KindUnrecognized {
		d.Tier = ir.TierDynamic
		return d
	}
	if c.Config.Limit == ir.TierDynamic {
		return dynamic(d, "tier limit is dynamic")
	}
	for i, v := range d.Values {
		if v.Evidence == EvidenceNone {
			return dynamic(d, "%s operand at %s has no int evidence", ops[i].Role, v.Site)
		}
		if v.Evidence == EvidenceKnown && !ranges.Fits(v.Const, c.Config.Width) {
			return dynamic(d, "%s operand %s does not fit %d bits", ops[i].Role, v.Const, c.Config.Width)
		}
	}

	a := &analysis{c: c, p: p, d: &d, full: c.Config.Limit == ir.TierGuarded}
	if reason := a.run(); reason != "" {
		return dynamic(d, "%s", reason)
	}
	if len(d.Needs) == 0 {
		d.Tier = ir.TierStatic
	} else {
		d.Tier = ir.TierGuarded
	}
	return d
}

// analysis proves what the known operands allow and records the rest as
// needs. full records every need even when it is proved, which is how a
// guarded limit forces the complete guard set.
type analysis struct {
	c    *Classifier
	p    pattern.Pattern
	d    *Decision
	full bool
}

func (a *analysis) need(n Need) {
	a.d.Needs = append(a.d.Needs, n)
}

func (a *analysis) width() int { return a.c.Config.Width }

// known returns the value of operand i, applying def for an omitted one.
func (a *analysis) known(i int, def int64) (*big.Int, bool) {
	if i == pattern.Default {
		return big.NewInt(def), true
	}
	return a.d.Known(i)
}

func (a *analysis) rangeOf(r pattern.Range) (ranges.Big, bool) {
	start, ok1 := a.known(r.Start, 0)
	stop, ok2 := a.known(r.Stop, 0)
	step, ok3 := a.known(r.Step, 1)
	if !ok1 || !ok2 || !ok3 || step.Sign() == 0 {
		return ranges.Big{}, false
	}
	b, err := ranges.NormalizeBig(start, stop, step)
	return b, err == nil
}

// noEnv resolves nothing. ElemExpr already replaced free names with known
// values by constants, so a closed expression reads only its iteration
// variable, which FitsOver and EvalOver bind.
func noEnv(string) (bounds.Interval, bool) { return bounds.Interval{}, false }

// closedOver reports whether expr reads no binding other than v.
func closedOver(expr *ir.Expr, v string) bool {
	for _, name := range bounds.Vars(expr) {
		if name != v {
			return false
		}
	}
	return true
}

func (a *analysis) run() string {
	rs := a.p.Ranges()
	for i, v := range a.d.Values {
		if v.Evidence == EvidenceTyped || a.full {
			a.need(Need{Kind: ir.GuardIsInt, Operand: i, Range: pattern.Default})
		}
	}
	for ri, r := range rs {
		if r.Step == pattern.Default {
			continue
		}
		step, ok := a.d.Known(r.Step)
		if ok && step.Sign() == 0 {
			return "range step is zero"
		}
		if !ok || a.full {
			a.need(Need{Kind: ir.GuardNonZero, Operand: r.Step, Range: ri})
		}
	}
	for ri, r := range rs {
		b, ok := a.rangeOf(r)
		if ok && !b.FitsWidth(a.width()) {
			return fmt.Sprintf("range(%s, %s, %s) does not fit %d bits", b.Start, b.Stop, b.Step, a.width())
		}
		if !ok || a.full {
			a.need(Need{Kind: ir.GuardLenFits, Operand: pattern.Default, Range: ri})
		}
	}
	if reason := a.enumerate(rs); reason != "" {
		return reason
	}
	if reason := a.elements(rs); reason != "" {
		return reason
	}
	return a.sums(rs)
}

func enumStart(p pattern.Pattern) int {
	switch p := p.(type) {
	case *pattern.Materialize:
		return p.EnumStart
	case *pattern.Enumerate:
		return p.EnumStart
	}
	return pattern.Default
}

// EnumFits reports whether every enumerate counter start..start+n-1 fits.
func EnumFits(start *big.Int, b ranges.Big, width int) bool {
	if !ranges.Fits(start, width) {
		return false
	}
	n := b.Len()
	if n.Sign() == 0 {
		return true
	}
	last := new(big.Int).Add(start, n)
	return ranges.Fits(last.Sub(last, big.NewInt(1)), width)
}

func (a *analysis) enumerate(rs []pattern.Range) string {
	es := enumStart(a.p)
	if es == pattern.Default {
		return ""
	}
	start, ok1 := a.d.Known(es)
	b, ok2 := a.rangeOf(rs[0])
	if ok1 && ok2 && !EnumFits(start, b, a.width()) {
		return fmt.Sprintf("enumerate counter from %s overflows %d bits", start, a.width())
	}
	if !ok1 || !ok2 || a.full {
		a.need(Need{Kind: ir.GuardEnumFits, Operand: es, Range: 0})
	}
	return ""
}

func (a *analysis) elements(rs []pattern.Range) string {
	v, elems := pattern.Elems(a.p)
	for _, e := range elems {
		expr := a.c.ElemExpr(e, v)
		b, ok := a.rangeOf(rs[0])
		closed := ok && closedOver(expr, v)
		if closed && !bounds.FitsOver(expr, v, b, noEnv, a.width()) {
			return fmt.Sprintf("element %s overflows %d bits", ir.FormatExpr(expr), a.width())
		}
		if !closed || a.full {
			a.need(Need{Kind: ir.GuardBoundsFit, Operand: pattern.Default, Range: 0, Expr: e})
		}
	}
	return ""
}

func (a *analysis) sums(rs []pattern.Range) string {
	switch p := a.p.(type) {
	case *pattern.Accumulate:
		return a.accumulate(p.AccOperand, rs[0], "", nil)
	case *pattern.Reduction:
		if p.Func != "sum" {
			return ""
		}
		if p.Elt != nil || !a.c.Config.Analytic {
			return a.accumulate(p.SumStart, rs[0], p.Var, p.Elt)
		}
		base, ok1 := a.known(p.SumStart, 0)
		b, ok2 := a.rangeOf(rs[0])
		if !ok1 || !ok2 {
			a.d.Analytic = true
			a.need(Need{Kind: ir.GuardSumFits, Operand: p.SumStart, Range: 0})
			return ""
		}
		if b.AnalyticSumFits(base, a.width()) {
			a.d.Analytic = true
			if a.full {
				a.need(Need{Kind: ir.GuardSumFits, Operand: p.SumStart, Range: 0})
			}
			return ""
		}
		return a.accumulate(p.SumStart, rs[0], "", nil)
	}
	return ""
}

// accumulate proves or requires that every partial sum of the elements,
// starting from the base operand, fits.
func (a *analysis) accumulate(baseOp int, r pattern.Range, v string, elt *ast.Node) string {
	base, ok1 := a.known(baseOp, 0)
	b, ok2 := a.rangeOf(r)
	closed := ok1 && ok2
	var expr *ir.Expr
	if elt != nil {
		expr = a.c.ElemExpr(elt, v)
		closed = closed && closedOver(expr, v)
	}
	if closed {
		lo, hi, nonEmpty := b.Bounds()
		if nonEmpty && expr != nil {
			iv, _ := bounds.EvalOver(expr, v, b, noEnv)
			lo, hi = iv.Lo, iv.Hi
		}
		if nonEmpty && !b.AccumFits(base, lo, hi, a.width()) {
			return fmt.Sprintf("sum overflows %d bits", a.width())
		}
	}
	if !closed || a.full {
		a.need(Need{Kind: ir.GuardAccumFits, Operand: baseOp, Range: 0, Expr: elt})
	}
	return ""
}
