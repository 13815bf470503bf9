// Package ranges normalizes (start, stop, step) triples into arithmetic
// progressions and answers length, indexing and overflow questions about
// them.
//
// Two representations are provided. Triplet works on int64 with the exact
// wrapping arithmetic generated code performs; Big works on arbitrary
// precision integers and backs compile-time proofs, runtime guards and the
// reference runtime. Both agree wherever Triplet is defined.
package ranges
