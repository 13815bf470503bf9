package harness

import (
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/vm"
)

// Outcome is what one tier limit produced.
type Outcome struct {
	Limit string `json:"limit"`

	// CompileError is the code of a compile-time error; nothing ran.
	CompileError string `json:"compile_error,omitempty"`

	Output []string `json:"output"`
	Result string   `json:"result"`
	// Exception is "Class: message" for an uncaught exception.
	Exception     string          `json:"exception,omitempty"`
	Deopts        []vm.DeoptEvent `json:"deopts,omitempty"`
	Steps         int             `json:"steps"`
	Trap          string          `json:"trap,omitempty"`
	StepsExceeded bool            `json:"steps_exceeded,omitempty"`

	Fingerprint string   `json:"fingerprint,omitempty"`
	Unit        *ir.Unit `json:"-"`

	exc *vm.Exception
}

// Result is the outcome of a scenario.
type Result struct {
	Name string `json:"name"`
	// Pass is true when the outcomes are equivalent and every assertion
	// holds.
	Pass     bool       `json:"pass"`
	Errors   []string   `json:"errors,omitempty"`
	Outcomes []*Outcome `json:"outcomes"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{Name: name, Pass: true, Errors: []string{}}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Outcome returns the outcome of the named limit.
func (r *Result) Outcome(limit string) (*Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Limit == limit {
			return o, true
		}
	}
	return nil, false
}
