package ranges

import "math/big"

var (
	min64 = new(big.Int).Lsh(big.NewInt(-1), 63)
	max64 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 63), big.NewInt(1))
	min32 = big.NewInt(-1 << 31)
	max32 = big.NewInt(1<<31 - 1)
)

// ValidWidth reports whether width is a supported machine word size.
func ValidWidth(width int) bool {
	return width == 32 || width == 64
}

// Limits returns the signed range of width. Unsupported widths get the
// 64-bit limits.
func Limits(width int) (lo, hi *big.Int) {
	if width == 32 {
		return min32, max32
	}
	return min64, max64
}

// Fits reports whether x is representable as a signed width-bit integer.
func Fits(x *big.Int, width int) bool {
	lo, hi := Limits(width)
	return x.Cmp(lo) >= 0 && x.Cmp(hi) <= 0
}
