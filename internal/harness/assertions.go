package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tierc/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Limit    string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s", e.Type)
	if e.Limit != "" {
		fmt.Fprintf(&buf, " (limit %s)", e.Limit)
	}
	fmt.Fprintf(&buf, "\n  expected: %s\n  actual: %s", e.Expected, e.Actual)
	return buf.String()
}

func check(r *Result, a *Assertion) error {
	limit := a.Limit
	if limit == "" {
		limit = ir.TierStatic.String()
	}
	o, ok := r.Outcome(limit)
	if !ok {
		return &AssertionError{Type: a.Type, Expected: "limit " + limit, Actual: "no such limit"}
	}
	if o.CompileError != "" && a.Type != AssertCompileError {
		return &AssertionError{Type: a.Type, Limit: limit, Expected: "successful compilation", Actual: "compile error " + o.CompileError}
	}

	switch a.Type {
	case AssertOutput:
		return assertOutput(o, a)
	case AssertResult:
		return assertResult(o, a)
	case AssertException:
		return assertException(o, a)
	case AssertDeopts:
		return assertDeopts(o, a)
	case AssertConstruct:
		return assertConstruct(o, a)
	case AssertCompileError:
		return assertCompileError(o, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertOutput(o *Outcome, a *Assertion) error {
	if slices.Equal(o.Output, a.Lines) {
		return nil
	}
	return &AssertionError{Type: a.Type, Limit: o.Limit, Expected: fmt.Sprintf("%q", a.Lines), Actual: fmt.Sprintf("%q", o.Output)}
}

func assertResult(o *Outcome, a *Assertion) error {
	if o.Exception == "" && o.Result == a.Value {
		return nil
	}
	actual := o.Result
	if o.Exception != "" {
		actual = "exception " + o.Exception
	}
	return &AssertionError{Type: a.Type, Limit: o.Limit, Expected: a.Value, Actual: actual}
}

func assertException(o *Outcome, a *Assertion) error {
	expected := a.Class
	if a.Message != "" {
		expected += ": " + a.Message
	}
	if o.exc != nil && o.exc.Class == a.Class && (a.Message == "" || o.exc.Msg == a.Message) {
		return nil
	}
	actual := "no exception"
	if o.Exception != "" {
		actual = o.Exception
	}
	return &AssertionError{Type: a.Type, Limit: o.Limit, Expected: expected, Actual: actual}
}

func assertDeopts(o *Outcome, a *Assertion) error {
	n := 0
	for _, d := range o.Deopts {
		if a.Reason == "" || d.Reason == a.Reason {
			n++
		}
	}
	if n == *a.Count {
		return nil
	}
	what := "deopts"
	if a.Reason != "" {
		what = a.Reason + " deopts"
	}
	return &AssertionError{Type: a.Type, Limit: o.Limit, Expected: fmt.Sprintf("%d %s", *a.Count, what), Actual: fmt.Sprintf("%d", n)}
}

// assertConstruct looks for the pattern outside deopt blocks.
func assertConstruct(o *Outcome, a *Assertion) error {
	fn, ok := o.Unit.Function(a.Function)
	if !ok {
		return &AssertionError{Type: a.Type, Limit: o.Limit, Expected: "function " + a.Function, Actual: "not in unit"}
	}
	var found []string
	var visit func(body []ir.Instr)
	visit = func(body []ir.Instr) {
		for i := range body {
			in := &body[i]
			if r := in.Region; r != nil {
				if r.Pattern == a.Pattern {
					found = append(found, r.Tier.String())
				}
				visit(r.Body)
			}
			visit(in.Body)
			visit(in.Else)
		}
	}
	visit(fn.Body)
	if slices.Contains(found, a.Tier) {
		return nil
	}
	actual := "none"
	if len(found) > 0 {
		actual = strings.Join(found, ", ")
	}
	return &AssertionError{
		Type:     a.Type,
		Limit:    o.Limit,
		Expected: fmt.Sprintf("%s construct at %s in %s", a.Pattern, a.Tier, a.Function),
		Actual:   actual,
	}
}

func assertCompileError(o *Outcome, a *Assertion) error {
	if o.CompileError == a.Code {
		return nil
	}
	actual := "compiled"
	if o.CompileError != "" {
		actual = o.CompileError
	}
	return &AssertionError{Type: a.Type, Limit: o.Limit, Expected: a.Code, Actual: actual}
}
