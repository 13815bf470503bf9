package vm

import (
	"errors"
	"fmt"
)

// Exception classes raised by the runtime.
const (
	ExcException     = "Exception"
	ExcArithmetic    = "ArithmeticError"
	ExcAssertion     = "AssertionError"
	ExcAttribute     = "AttributeError"
	ExcIndex         = "IndexError"
	ExcKey           = "KeyError"
	ExcLookup        = "LookupError"
	ExcMemory        = "MemoryError"
	ExcName          = "NameError"
	ExcOverflow      = "OverflowError"
	ExcRecursion     = "RecursionError"
	ExcRuntime       = "RuntimeError"
	ExcStopIteration = "StopIteration"
	ExcTypeError     = "TypeError"
	ExcUnboundLocal  = "UnboundLocalError"
	ExcValue         = "ValueError"
	ExcZeroDivision  = "ZeroDivisionError"
)

var excClasses = []string{
	ExcException, ExcArithmetic, ExcAssertion, ExcAttribute, ExcIndex, ExcKey,
	ExcLookup, ExcMemory, ExcName, ExcOverflow, ExcRecursion, ExcRuntime,
	ExcStopIteration, ExcTypeError, ExcUnboundLocal, ExcValue, ExcZeroDivision,
}

// Exception is a source-level exception. It is part of a program's
// observable behavior, unlike a trap.
type Exception struct {
	Class string
	Msg   string
}

func (e *Exception) Error() string {
	if e.Msg == "" {
		return e.Class
	}
	return e.Class + ": " + e.Msg
}

func newExc(class, format string, args ...any) *Exception {
	return &Exception{Class: class, Msg: fmt.Sprintf(format, args...)}
}

// TrapError is a violated specialization assumption: typed code saw a
// value it was promised could not occur. It always means miscompilation.
type TrapError struct {
	Func   string
	Reason string
	Detail string
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("trap %s in %s: %s", e.Reason, e.Func, e.Detail)
}

// StepsExceededError is returned when execution exceeds its step budget.
type StepsExceededError struct {
	Steps int
	Limit int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("exceeded max steps: %d steps > %d limit", e.Steps, e.Limit)
}

// IsTrap reports whether err is a TrapError.
func IsTrap(err error) bool {
	var te *TrapError
	return errors.As(err, &te)
}

// IsStepsExceeded reports whether err is a StepsExceededError.
func IsStepsExceeded(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
