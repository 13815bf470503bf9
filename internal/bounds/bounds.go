// Package bounds does interval arithmetic over element expressions.
//
// An element expression is integer arithmetic over one varying binding
// (the iteration variable) and fixed bindings. Fits answers whether every
// intermediate value stays within a machine width for every value of the
// varying binding; the classifier uses it with known values and the
// runtime uses it to evaluate bounds_fit guards.
package bounds

import (
	"math/big"

	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/ranges"
)

// Interval is a closed integer interval.
type Interval struct {
	Lo, Hi *big.Int
}

// Point is the interval holding only v.
func Point(v *big.Int) Interval {
	return Interval{Lo: v, Hi: v}
}

// Span is the interval [lo, hi].
func Span(lo, hi *big.Int) Interval {
	return Interval{Lo: lo, Hi: hi}
}

// Env resolves the interval of a binding.
type Env func(name string) (Interval, bool)

// Eval returns an interval containing every value e can take. ok is false
// when a binding is unresolved or a constant is malformed.
func Eval(e *ir.Expr, env Env) (Interval, bool) {
	var iv Interval
	ok := walk(e, env, func(Interval) bool { return true }, &iv)
	return iv, ok
}

// Fits reports whether every subexpression of e stays within width.
func Fits(e *ir.Expr, env Env, width int) bool {
	var iv Interval
	return walk(e, env, func(i Interval) bool {
		return ranges.Fits(i.Lo, width) && ranges.Fits(i.Hi, width)
	}, &iv)
}

func walk(e *ir.Expr, env Env, check func(Interval) bool, out *Interval) bool {
	var l, r Interval
	switch e.Op {
	case ir.ExprVar:
		iv, ok := env(e.Var)
		if !ok {
			return false
		}
		*out = iv
		return check(iv)
	case ir.ExprConst:
		v, ok := new(big.Int).SetString(e.Const, 10)
		if !ok {
			return false
		}
		*out = Point(v)
		return check(*out)
	case ir.ExprNeg:
		if !walk(e.L, env, check, &l) {
			return false
		}
		*out = Span(new(big.Int).Neg(l.Hi), new(big.Int).Neg(l.Lo))
		return check(*out)
	}

	if !walk(e.L, env, check, &l) || !walk(e.R, env, check, &r) {
		return false
	}
	switch e.Op {
	case ir.ExprAdd:
		*out = Span(new(big.Int).Add(l.Lo, r.Lo), new(big.Int).Add(l.Hi, r.Hi))
	case ir.ExprSub:
		*out = Span(new(big.Int).Sub(l.Lo, r.Hi), new(big.Int).Sub(l.Hi, r.Lo))
	case ir.ExprMul:
		*out = mulInterval(l, r)
	case ir.ExprFloorDiv:
		*out = divInterval(l, r)
	case ir.ExprMod:
		*out = modInterval(r)
	default:
		return false
	}
	return check(*out)
}

func mulInterval(l, r Interval) Interval {
	products := []*big.Int{
		new(big.Int).Mul(l.Lo, r.Lo),
		new(big.Int).Mul(l.Lo, r.Hi),
		new(big.Int).Mul(l.Hi, r.Lo),
		new(big.Int).Mul(l.Hi, r.Hi),
	}
	lo, hi := products[0], products[0]
	for _, p := range products[1:] {
		if p.Cmp(lo) < 0 {
			lo = p
		}
		if p.Cmp(hi) > 0 {
			hi = p
		}
	}
	return Span(lo, hi)
}

// divInterval bounds l // r. A fixed nonzero divisor gives the exact image
// since floor division is monotonic in the dividend. Otherwise |a // b| is
// at most |a| for any nonzero b. A zero divisor raises before the quotient
// exists, so its interval is irrelevant.
func divInterval(l, r Interval) Interval {
	if r.Lo.Cmp(r.Hi) == 0 {
		d := r.Lo
		switch d.Sign() {
		case 0:
			return Point(new(big.Int))
		case 1:
			return Span(FloorDiv(l.Lo, d), FloorDiv(l.Hi, d))
		default:
			return Span(FloorDiv(l.Hi, d), FloorDiv(l.Lo, d))
		}
	}
	m := maxAbs(l)
	return Span(new(big.Int).Neg(m), m)
}

// modInterval bounds a % b: the result has the sign of b and magnitude
// below |b|.
func modInterval(r Interval) Interval {
	if r.Lo.Cmp(r.Hi) == 0 {
		d := r.Lo
		switch d.Sign() {
		case 0:
			return Point(new(big.Int))
		case 1:
			return Span(new(big.Int), new(big.Int).Sub(d, big.NewInt(1)))
		default:
			return Span(new(big.Int).Add(d, big.NewInt(1)), new(big.Int))
		}
	}
	m := maxAbs(r)
	if m.Sign() > 0 {
		m.Sub(m, big.NewInt(1))
	}
	return Span(new(big.Int).Neg(m), m)
}

func maxAbs(i Interval) *big.Int {
	lo := new(big.Int).Abs(i.Lo)
	hi := new(big.Int).Abs(i.Hi)
	if lo.Cmp(hi) > 0 {
		return lo
	}
	return hi
}

// FloorDiv returns floor(a / b). b must be nonzero.
func FloorDiv(a, b *big.Int) *big.Int {
	q, m := new(big.Int).QuoRem(a, b, new(big.Int))
	if m.Sign() != 0 && m.Sign() != b.Sign() {
		q.Sub(q, big.NewInt(1))
	}
	return q
}

// FloorMod returns a - b*floor(a/b), which has the sign of b. b must be
// nonzero.
func FloorMod(a, b *big.Int) *big.Int {
	m := new(big.Int).Rem(a, b)
	if m.Sign() != 0 && m.Sign() != b.Sign() {
		m.Add(m, b)
	}
	return m
}

// Vars returns the bindings e reads, in first-use order.
func Vars(e *ir.Expr) []string {
	var out []string
	seen := make(map[string]bool)
	var visit func(*ir.Expr)
	visit = func(x *ir.Expr) {
		if x == nil {
			return
		}
		if x.Op == ir.ExprVar && !seen[x.Var] {
			seen[x.Var] = true
			out = append(out, x.Var)
		}
		visit(x.L)
		visit(x.R)
	}
	visit(e)
	return out
}

// FitsOver reports whether e fits width for every element of b bound to v,
// with other bindings resolved by rest. An empty progression evaluates e
// zero times and always fits.
func FitsOver(e *ir.Expr, v string, b ranges.Big, rest Env, width int) bool {
	lo, hi, ok := b.Bounds()
	if !ok {
		return true
	}
	elem := Span(lo, hi)
	return Fits(e, func(name string) (Interval, bool) {
		if name == v {
			return elem, true
		}
		return rest(name)
	}, width)
}

// EvalOver returns the interval of e over the elements of b bound to v.
// ok is false for an empty progression or an unresolved binding.
func EvalOver(e *ir.Expr, v string, b ranges.Big, rest Env) (Interval, bool) {
	lo, hi, ok := b.Bounds()
	if !ok {
		return Interval{}, false
	}
	elem := Span(lo, hi)
	return Eval(e, func(name string) (Interval, bool) {
		if name == v {
			return elem, true
		}
		return rest(name)
	})
}
