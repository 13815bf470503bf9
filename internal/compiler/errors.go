package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/lower"
)

// Compile-time errors. They are produced by the lowerer and surface here
// unchanged, so callers need only import compiler.
type (
	TrapError        = lower.TrapError
	UnsupportedError = lower.UnsupportedError
)

// Error codes.
const (
	CodeTrap        = lower.CodeTrap
	CodeUnsupported = lower.CodeUnsupported
	CodeInvalidIR   = "E203"
)

// InvalidIRError reports IR that breaks a structural invariant. It means
// the lowerer is wrong, not the input.
type InvalidIRError struct {
	Module string
	Errors []ir.ValidationError
}

func (e *InvalidIRError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("[%s] module %s: invalid IR: %s", CodeInvalidIR, e.Module, strings.Join(msgs, "; "))
}

// Code returns the error code.
func (e *InvalidIRError) Code() string { return CodeInvalidIR }
