// Package deopt is the state machine every guarded construct shares.
//
// A construct is Entered with a snapshot of its live bindings. If every
// guard passes it moves to FastPath and the snapshot is dropped. If a
// guard fails it moves to Deopting, and Resume hands the snapshot to the
// dynamic equivalent of the construct exactly once.
//
// Guards are checked once per construct, before it starts. There is no
// per-iteration re-guarding, so a record never holds more than the
// construct's initial bindings.
package deopt

import (
	"errors"
	"fmt"

	"github.com/roach88/tierc/internal/ir"
)

// State of a guarded construct.
type State int

const (
	Entering State = iota
	FastPath
	Deopting
	Resumed
)

func (s State) String() string {
	switch s {
	case Entering:
		return "entering"
	case FastPath:
		return "fast_path"
	case Deopting:
		return "deopting"
	case Resumed:
		return "resumed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ErrConsumed is returned when a record is resumed a second time.
var ErrConsumed = errors.New("deopt record already consumed")

// TransitionError reports an illegal state change.
type TransitionError struct {
	Label    string
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("deopt %s: illegal transition %s -> %s", e.Label, e.From, e.To)
}

// Binding is one live binding captured on entry. Bound is false when the
// name had no value yet.
type Binding struct {
	Name  string
	Value any
	Bound bool
}

// Record is the state handed from a failed guard to the dynamic path.
type Record struct {
	// Label is the deopt block the record resumes into.
	Label string
	Live  []Binding
	// Guard is the kind of the first failing guard, Reason its feedback
	// reason and Site the operand site it protected.
	Guard  ir.GuardKind
	Reason string
	Site   string
}

// Controller drives one execution of one guarded construct. It is not
// safe for concurrent use; a controller never outlives the invocation
// that entered it.
type Controller struct {
	state    State
	record   *Record
	consumed bool
}

// Enter starts a guarded construct whose deopt block is label.
func Enter(label string, live []Binding) *Controller {
	return &Controller{
		state:  Entering,
		record: &Record{Label: label, Live: live},
	}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Pass records that every guard held. The snapshot is discarded.
func (c *Controller) Pass() error {
	if c.state != Entering {
		return c.illegal(FastPath)
	}
	c.state = FastPath
	c.record = nil
	return nil
}

// Fail records the first guard that did not hold.
func (c *Controller) Fail(g *ir.Guard) error {
	if c.state != Entering {
		return c.illegal(Deopting)
	}
	c.state = Deopting
	c.record.Guard = g.Kind
	c.record.Reason = g.Reason
	if c.record.Reason == "" {
		c.record.Reason = ir.ReasonFor(g.Kind)
	}
	c.record.Site = g.Site
	return nil
}

// Resume consumes the record and moves to Resumed.
func (c *Controller) Resume() (*Record, error) {
	if c.consumed {
		return nil, fmt.Errorf("deopt %s: %w", c.label(), ErrConsumed)
	}
	if c.state != Deopting {
		return nil, c.illegal(Resumed)
	}
	rec := c.record
	c.state = Resumed
	c.record = nil
	c.consumed = true
	return rec, nil
}

func (c *Controller) label() string {
	if c.record == nil {
		return "?"
	}
	return c.record.Label
}

func (c *Controller) illegal(to State) error {
	return &TransitionError{Label: c.label(), From: c.state, To: to}
}
