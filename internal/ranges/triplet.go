package ranges

import (
	"errors"
	"math"
)

// ErrInvalidStep is returned when a progression is requested with step 0.
// The text matches the ValueError the source language raises.
var ErrInvalidStep = errors.New("range() arg 3 must not be zero")

// ErrLenOverflow is returned when a progression has more than MaxInt64
// elements.
var ErrLenOverflow = errors.New("range length exceeds the target width")

// Triplet is a normalized progression over int64. Step is never zero.
type Triplet struct {
	Start, Stop, Step int64
}

// Normalize builds a Triplet, rejecting a zero step before any iteration
// can be constructed.
func Normalize(start, stop, step int64) (Triplet, error) {
	if step == 0 {
		return Triplet{}, ErrInvalidStep
	}
	return Triplet{Start: start, Stop: stop, Step: step}, nil
}

// Len returns the number of elements: max(0, ceil((stop-start)/step)).
// The distance is computed in uint64 so ranges spanning the whole int64
// domain are measured exactly.
func (t Triplet) Len() (int64, error) {
	var n uint64
	switch {
	case t.Step > 0 && t.Start < t.Stop:
		dist := uint64(t.Stop) - uint64(t.Start)
		n = (dist-1)/uint64(t.Step) + 1
	case t.Step < 0 && t.Start > t.Stop:
		dist := uint64(t.Start) - uint64(t.Stop)
		n = (dist-1)/(0-uint64(t.Step)) + 1
	default:
		return 0, nil
	}
	if n > math.MaxInt64 {
		return 0, ErrLenOverflow
	}
	return int64(n), nil
}

// At returns start + i*step. Callers guarantee 0 <= i < Len; every such
// element lies between start and stop, so the wrapping arithmetic yields
// the exact value.
func (t Triplet) At(i int64) int64 {
	return int64(uint64(t.Start) + uint64(i)*uint64(t.Step))
}
