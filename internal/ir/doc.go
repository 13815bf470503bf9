// Package ir defines the canonical intermediate representation emitted by
// the lowerer: the closed primitive set, constructs tagged with their tier
// and guards, and the canonical encoding used for fingerprints.
//
// This package imports nothing internal. Every other internal package may
// import ir; ir never imports them.
//
// Key design constraints:
//   - the primitive set is closed (see Op); only the lowerer produces IR
//   - call_dyn appears only in dynamic constructs and deopt blocks
//   - no hidden allocation: every allocation is an alloc_* primitive
//   - no floats and no wall-clock values anywhere in the encoding
package ir
