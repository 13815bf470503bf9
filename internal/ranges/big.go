package ranges

import "math/big"

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
	bigTwo  = big.NewInt(2)
)

// Big is a normalized progression over arbitrary precision integers.
// The fields are never mutated after normalization.
type Big struct {
	Start, Stop, Step *big.Int
}

// NormalizeBig builds a Big, rejecting a zero step.
func NormalizeBig(start, stop, step *big.Int) (Big, error) {
	if step.Sign() == 0 {
		return Big{}, ErrInvalidStep
	}
	return Big{
		Start: new(big.Int).Set(start),
		Stop:  new(big.Int).Set(stop),
		Step:  new(big.Int).Set(step),
	}, nil
}

// FromTriplet widens t.
func FromTriplet(t Triplet) Big {
	return Big{Start: big.NewInt(t.Start), Stop: big.NewInt(t.Stop), Step: big.NewInt(t.Step)}
}

// Len returns the number of elements.
func (b Big) Len() *big.Int {
	dist := new(big.Int)
	step := new(big.Int)
	switch {
	case b.Step.Sign() > 0 && b.Start.Cmp(b.Stop) < 0:
		dist.Sub(b.Stop, b.Start)
		step.Set(b.Step)
	case b.Step.Sign() < 0 && b.Start.Cmp(b.Stop) > 0:
		dist.Sub(b.Start, b.Stop)
		step.Neg(b.Step)
	default:
		return new(big.Int)
	}
	dist.Sub(dist, bigOne)
	dist.Quo(dist, step)
	return dist.Add(dist, bigOne)
}

// At returns start + i*step.
func (b Big) At(i *big.Int) *big.Int {
	v := new(big.Int).Mul(i, b.Step)
	return v.Add(v, b.Start)
}

// Empty reports whether the progression has no elements.
func (b Big) Empty() bool {
	return b.Len().Sign() == 0
}

// Bounds returns the smallest and largest element. ok is false for an
// empty progression.
func (b Big) Bounds() (lo, hi *big.Int, ok bool) {
	n := b.Len()
	if n.Sign() == 0 {
		return nil, nil, false
	}
	first := new(big.Int).Set(b.Start)
	last := b.At(new(big.Int).Sub(n, bigOne))
	if first.Cmp(last) > 0 {
		first, last = last, first
	}
	return first, last, true
}

// Contains reports whether x is an element.
func (b Big) Contains(x *big.Int) bool {
	switch {
	case b.Step.Sign() > 0:
		if x.Cmp(b.Start) < 0 || x.Cmp(b.Stop) >= 0 {
			return false
		}
	default:
		if x.Cmp(b.Start) > 0 || x.Cmp(b.Stop) <= 0 {
			return false
		}
	}
	off := new(big.Int).Sub(x, b.Start)
	return off.Rem(off, b.Step).Sign() == 0
}

// AnalyticSum returns base plus the sum of all elements, computed with the
// arithmetic-series closed form, together with every intermediate the
// closed form materializes (first, last, first+last, the halved factor and
// the product). Generated code computes exactly these values, so fitting
// them is what makes the closed form safe at a fixed width.
func (b Big) AnalyticSum(base *big.Int) (sum *big.Int, intermediates []*big.Int) {
	n := b.Len()
	if n.Sign() == 0 {
		return new(big.Int).Set(base), nil
	}
	first := new(big.Int).Set(b.Start)
	last := b.At(new(big.Int).Sub(n, bigOne))
	s := new(big.Int).Add(first, last)
	var half, prod *big.Int
	if new(big.Int).Rem(n, bigTwo).Sign() == 0 {
		half = new(big.Int).Quo(n, bigTwo)
		prod = new(big.Int).Mul(half, s)
	} else {
		// n odd: first+last = 2*start + (n-1)*step is even.
		half = new(big.Int).Quo(s, bigTwo)
		prod = new(big.Int).Mul(n, half)
	}
	sum = new(big.Int).Add(base, prod)
	return sum, []*big.Int{first, last, s, half, prod}
}

// Sum returns the sum of all elements.
func (b Big) Sum() *big.Int {
	s, _ := b.AnalyticSum(bigZero)
	return s
}

// AnalyticSumFits reports whether base, the result and every intermediate
// of the closed-form sum fit width.
func (b Big) AnalyticSumFits(base *big.Int, width int) bool {
	if !Fits(base, width) {
		return false
	}
	sum, inter := b.AnalyticSum(base)
	for _, v := range inter {
		if !Fits(v, width) {
			return false
		}
	}
	return Fits(sum, width)
}

// AccumFits reports whether every partial sum of an element-wise
// accumulation starting at base fits width, given that each of the Len()
// accumulated values lies in [lo, hi]. Partial sums after k steps lie in
// [base + k*lo, base + k*hi], so the extremes over all k are bounded by
// base + n*min(lo, 0) and base + n*max(hi, 0).
func (b Big) AccumFits(base, lo, hi *big.Int, width int) bool {
	if !Fits(base, width) {
		return false
	}
	n := b.Len()
	if n.Sign() == 0 {
		return true
	}
	low := new(big.Int).Set(lo)
	if low.Sign() > 0 {
		low.SetInt64(0)
	}
	high := new(big.Int).Set(hi)
	if high.Sign() < 0 {
		high.SetInt64(0)
	}
	low.Mul(low, n).Add(low, base)
	high.Mul(high, n).Add(high, base)
	return Fits(low, width) && Fits(high, width)
}

// FitsWidth reports whether start, stop, step and the length all fit width.
// Elements then fit too, since they lie between start and stop.
func (b Big) FitsWidth(width int) bool {
	return Fits(b.Start, width) && Fits(b.Stop, width) && Fits(b.Step, width) && Fits(b.Len(), width)
}

// Triplet narrows b. ok is false unless b fits 64 bits.
func (b Big) Triplet() (Triplet, bool) {
	if !b.FitsWidth(64) {
		return Triplet{}, false
	}
	return Triplet{Start: b.Start.Int64(), Stop: b.Stop.Int64(), Step: b.Step.Int64()}, true
}
