// Package vm is the reference evaluator of canonical IR. It gives every
// primitive its runtime meaning: typed primitives trap when an
// assumption is violated, call_dyn runs the object protocol, and guarded
// regions evaluate their guards and deopt through the deopt controller.
//
// The evaluator exists to check lowering, not to be fast. Outcomes of
// the same source under different tier limits must be identical.
package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/roach88/tierc/internal/deopt"
	"github.com/roach88/tierc/internal/guard"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/ranges"
)

// Defaults for Options.
const (
	DefaultMaxSteps = 10_000_000
	DefaultMaxDepth = 200
)

// Observer receives runtime feedback.
type Observer interface {
	// Observe records the type of the value at an instrumented site.
	Observe(site, typ string)
	// Deopt records a guard failure.
	Deopt(reason, site string)
}

// Options configure a run.
type Options struct {
	// Entry names a function to call after the module body; empty runs
	// the module body only.
	Entry    string
	Args     []Value
	MaxSteps int
	MaxDepth int
	// Stdout receives print output as it happens, in addition to
	// Outcome.Output.
	Stdout   io.Writer
	Observer Observer
}

// DeoptEvent is one guard failure.
type DeoptEvent struct {
	Label  string
	Reason string
	Site   string
}

// Outcome is the observable behavior of a run.
type Outcome struct {
	// Result is the entry function's return value, or None.
	Result Value
	Output []string
	// Exception is the uncaught exception, if any.
	Exception *Exception
	Deopts    []DeoptEvent
	Steps     int
}

// Machine executes one unit. It is single-use and not safe for concurrent
// use.
type Machine struct {
	ctx     context.Context
	unit    *ir.Unit
	funcs   map[string]*ir.Function
	width   int
	opts    Options
	globals map[string]Value
	out     *Outcome
	depth   int
	fn      string
}

// Run executes the module body of u and then the entry function, if any.
// Source-level exceptions are part of the outcome; traps, step
// exhaustion and cancellation are errors.
func Run(ctx context.Context, u *ir.Unit, opts Options) (*Outcome, error) {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	m := &Machine{
		ctx:     ctx,
		unit:    u,
		funcs:   make(map[string]*ir.Function),
		width:   u.Width,
		opts:    opts,
		globals: make(map[string]Value),
		out:     &Outcome{Result: None},
	}
	for i := range u.Functions {
		m.funcs[u.Functions[i].Name] = &u.Functions[i]
	}
	mod, ok := m.funcs[ir.ModuleFunc]
	if !ok {
		return nil, fmt.Errorf("unit %s has no %s function", u.Module, ir.ModuleFunc)
	}

	err := m.runModule(mod)
	if err == nil && opts.Entry != "" {
		var v Value
		v, err = m.callEntry(opts.Entry, opts.Args)
		if err == nil {
			m.out.Result = v
		}
	}
	var exc *Exception
	if errors.As(err, &exc) {
		m.out.Exception = exc
		return m.out, nil
	}
	if err != nil {
		return m.out, err
	}
	return m.out, nil
}

func (m *Machine) runModule(mod *ir.Function) error {
	fr := &frame{fn: mod, vars: m.globals, module: true}
	m.fn = mod.Name
	_, err := m.exec(fr, mod.Body)
	return err
}

func (m *Machine) callEntry(name string, args []Value) (Value, error) {
	v, ok := m.globals[name]
	if !ok {
		return nil, newExc(ExcName, "name '%s' is not defined", name)
	}
	return m.call(v, args)
}

// tick charges one step.
func (m *Machine) tick() error {
	m.out.Steps++
	if m.out.Steps > m.opts.MaxSteps {
		return &StepsExceededError{Steps: m.out.Steps, Limit: m.opts.MaxSteps}
	}
	if m.out.Steps%4096 == 0 && m.ctx != nil {
		if err := m.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) emit(line string) {
	m.out.Output = append(m.out.Output, line)
	if m.opts.Stdout != nil {
		fmt.Fprintln(m.opts.Stdout, line)
	}
}

func (m *Machine) trap(reason, detail string) error {
	return &TrapError{Func: m.fn, Reason: reason, Detail: detail}
}

func (m *Machine) global(name string) (Value, error) {
	if v, ok := m.globals[name]; ok {
		return v, nil
	}
	if v, ok := lookupBuiltin(name); ok {
		return v, nil
	}
	return nil, newExc(ExcName, "name '%s' is not defined", name)
}

// call invokes a callable value.
func (m *Machine) call(callee Value, args []Value) (Value, error) {
	switch c := callee.(type) {
	case *Function:
		return m.callFunction(c.Fn, args)
	case *Builtin:
		return builtins[c.Name](m, args)
	case *BoundMethod:
		return m.method(c.Obj, c.Name, args)
	case *ExcClass:
		switch len(args) {
		case 0:
			return &Exception{Class: c.Name}, nil
		case 1:
			return &Exception{Class: c.Name, Msg: String(args[0])}, nil
		}
		return &Exception{Class: c.Name, Msg: Repr(newTuple(args))}, nil
	}
	return nil, newExc(ExcTypeError, "'%s' object is not callable", TypeName(callee))
}

func (m *Machine) callFunction(fn *ir.Function, args []Value) (Value, error) {
	if err := checkArgs(fn, args); err != nil {
		return nil, err
	}
	if m.depth >= m.opts.MaxDepth {
		return nil, newExc(ExcRecursion, "maximum recursion depth exceeded")
	}
	fr := &frame{fn: fn, vars: make(map[string]Value, len(fn.Params))}
	for i, p := range fn.Params {
		fr.vars[p] = args[i]
	}
	m.depth++
	caller := m.fn
	m.fn = fn.Name
	c, err := m.exec(fr, fn.Body)
	m.fn = caller
	m.depth--
	if err != nil {
		return nil, err
	}
	if c == ctlReturn {
		return fr.ret, nil
	}
	return None, nil
}

func checkArgs(fn *ir.Function, args []Value) error {
	want, got := len(fn.Params), len(args)
	switch {
	case got > want:
		noun := "arguments"
		if want == 1 {
			noun = "argument"
		}
		verb := "were"
		if got == 1 {
			verb = "was"
		}
		return newExc(ExcTypeError, "%s() takes %d positional %s but %d %s given", fn.Name, want, noun, got, verb)
	case got < want:
		missing := fn.Params[got:]
		noun := "argument"
		if len(missing) > 1 {
			noun = "arguments"
		}
		return newExc(ExcTypeError, "%s() missing %d required positional %s: %s",
			fn.Name, len(missing), noun, quoteNames(missing))
	}
	return nil
}

func quoteNames(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = "'" + n + "'"
	}
	switch len(q) {
	case 1:
		return q[0]
	case 2:
		return q[0] + " and " + q[1]
	}
	out := ""
	for i, s := range q[:len(q)-1] {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out + ", and " + q[len(q)-1]
}

type ctl int

const (
	ctlNext ctl = iota
	ctlBreak
	ctlContinue
	ctlReturn
)

// frame holds the bindings of one activation. The module frame's
// bindings are the globals.
type frame struct {
	fn     *ir.Function
	vars   map[string]Value
	module bool
	ret    Value
}

// lookup reads a binding without raising.
func (fr *frame) lookup(name string) (Value, bool) {
	v, ok := fr.vars[name]
	return v, ok
}

// val evaluates an operand.
func (m *Machine) val(fr *frame, o ir.Operand) (Value, error) {
	switch o.Kind {
	case ir.OperandVar:
		if v, ok := fr.vars[o.Text]; ok {
			return v, nil
		}
		switch {
		case o.IsTemp():
			return nil, m.trap(ir.TrapUnbound, "temp "+o.Text)
		case fr.module:
			if v, ok := lookupBuiltin(o.Text); ok {
				return v, nil
			}
			return nil, newExc(ExcName, "name '%s' is not defined", o.Text)
		}
		return nil, newExc(ExcUnboundLocal, "cannot access local variable '%s' where it is not associated with a value", o.Text)
	case ir.OperandInt:
		x, ok := o.BigValue()
		if !ok {
			return nil, m.trap(ir.TrapType, "malformed int immediate "+o.Text)
		}
		return x, nil
	case ir.OperandBool:
		return Bool(o.Text == "true"), nil
	case ir.OperandNone:
		return None, nil
	case ir.OperandStr:
		return Str(o.Text), nil
	}
	return nil, m.trap(ir.TrapType, "operand kind "+string(o.Kind))
}

func (m *Machine) vals(fr *frame, ops []ir.Operand) ([]Value, error) {
	out := make([]Value, len(ops))
	for i, o := range ops {
		v, err := m.val(fr, o)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// exec runs a body until it completes or transfers control.
func (m *Machine) exec(fr *frame, body []ir.Instr) (ctl, error) {
	for i := range body {
		c, err := m.instr(fr, &body[i])
		if err != nil || c != ctlNext {
			return c, err
		}
	}
	return ctlNext, nil
}

func (m *Machine) instr(fr *frame, in *ir.Instr) (ctl, error) {
	if err := m.tick(); err != nil {
		return ctlNext, err
	}
	switch in.Op {
	case ir.OpRegion:
		return m.region(fr, in.Region)
	case ir.OpLoop:
		return m.loop(fr, in)
	case ir.OpIf:
		c, err := m.boolean(fr, in.Args[0])
		if err != nil {
			return ctlNext, err
		}
		if c {
			return m.exec(fr, in.Body)
		}
		return m.exec(fr, in.Else)
	case ir.OpBreak:
		return ctlBreak, nil
	case ir.OpContinue:
		return ctlContinue, nil
	case ir.OpReturn:
		fr.ret = None
		if len(in.Args) == 1 {
			v, err := m.val(fr, in.Args[0])
			if err != nil {
				return ctlNext, err
			}
			fr.ret = v
		}
		return ctlReturn, nil
	case ir.OpRaise:
		return ctlNext, m.raise(fr, in)
	case ir.OpTrap:
		return ctlNext, m.trap(in.Target, "trap instruction")
	}

	args, err := m.vals(fr, in.Args)
	if err != nil {
		return ctlNext, err
	}
	var v Value
	switch in.Op {
	case ir.OpCallDyn:
		v, err = m.dispatch(in.Target, args)
	case ir.OpCallKnown:
		fn, ok := m.funcs[in.Target]
		if !ok {
			return ctlNext, m.trap(ir.TrapUnbound, "no function "+in.Target)
		}
		v, err = m.callFunction(fn, args)
	default:
		v, err = m.typed(in, args)
	}
	if err != nil {
		return ctlNext, err
	}
	if in.Dst != "" {
		fr.vars[in.Dst] = v
	}
	return ctlNext, nil
}

func (m *Machine) boolean(fr *frame, o ir.Operand) (bool, error) {
	v, err := m.val(fr, o)
	if err != nil {
		return false, err
	}
	b, ok := v.(Bool)
	if !ok {
		return false, m.trap(ir.TrapType, "condition is "+TypeName(v))
	}
	return bool(b), nil
}

func (m *Machine) raise(fr *frame, in *ir.Instr) error {
	if in.Target != "" {
		exc := &Exception{Class: in.Target}
		if len(in.Args) == 1 {
			v, err := m.val(fr, in.Args[0])
			if err != nil {
				return err
			}
			exc.Msg = String(v)
		}
		return exc
	}
	if len(in.Args) == 0 {
		return newExc(ExcRuntime, "No active exception to reraise")
	}
	v, err := m.val(fr, in.Args[0])
	if err != nil {
		return err
	}
	switch e := v.(type) {
	case *Exception:
		return e
	case *ExcClass:
		return &Exception{Class: e.Name}
	}
	return newExc(ExcTypeError, "exceptions must derive from BaseException")
}

func (m *Machine) loop(fr *frame, in *ir.Instr) (ctl, error) {
	if len(in.Args) == 0 {
		for {
			c, err := m.exec(fr, in.Body)
			if err != nil || c == ctlReturn {
				return c, err
			}
			if c == ctlBreak {
				return ctlNext, nil
			}
			if err := m.tick(); err != nil {
				return ctlNext, err
			}
		}
	}
	nv, err := m.val(fr, in.Args[0])
	if err != nil {
		return ctlNext, err
	}
	n, err := m.word(nv)
	if err != nil {
		return ctlNext, err
	}
	for k := int64(0); k < n.Int64(); k++ {
		fr.vars[in.Dst] = big.NewInt(k)
		c, err := m.exec(fr, in.Body)
		if err != nil || c == ctlReturn {
			return c, err
		}
		if c == ctlBreak {
			break
		}
		if err := m.tick(); err != nil {
			return ctlNext, err
		}
	}
	return ctlNext, nil
}

// region runs one construct according to its tier.
func (m *Machine) region(fr *frame, r *ir.LoweringResult) (ctl, error) {
	switch r.Tier {
	case ir.TierDynamic:
		m.probe(fr, r.Probes)
		return m.exec(fr, r.Body)
	case ir.TierStatic:
		return m.exec(fr, r.Body)
	}

	if r.Deopt == nil {
		return ctlNext, m.trap(ir.TrapType, "guarded region "+r.Label+" without deopt block")
	}
	live := make([]deopt.Binding, len(r.Deopt.Live))
	for i, name := range r.Deopt.Live {
		v, ok := fr.lookup(name)
		live[i] = deopt.Binding{Name: name, Value: v, Bound: ok}
	}
	c := deopt.Enter(r.Deopt.Label, live)
	vals := values{m: m, fr: fr}
	for i := range r.Guards {
		g := &r.Guards[i]
		if guard.Check(g, m.width, vals) {
			continue
		}
		if err := c.Fail(g); err != nil {
			return ctlNext, err
		}
		rec, err := c.Resume()
		if err != nil {
			return ctlNext, err
		}
		m.resume(fr, rec)
		return m.exec(fr, r.Deopt.Body)
	}
	if err := c.Pass(); err != nil {
		return ctlNext, err
	}
	return m.exec(fr, r.Body)
}

// resume restores the snapshot and reports the deopt.
func (m *Machine) resume(fr *frame, rec *deopt.Record) {
	for _, b := range rec.Live {
		if b.Bound {
			fr.vars[b.Name] = b.Value
		} else {
			delete(fr.vars, b.Name)
		}
	}
	m.out.Deopts = append(m.out.Deopts, DeoptEvent{Label: rec.Label, Reason: rec.Reason, Site: rec.Site})
	if m.opts.Observer != nil {
		m.opts.Observer.Deopt(rec.Reason, rec.Site)
	}
}

func (m *Machine) probe(fr *frame, probes []ir.Probe) {
	if m.opts.Observer == nil {
		return
	}
	for _, p := range probes {
		if p.Arg.IsVar() {
			v, ok := fr.lookup(p.Arg.Text)
			if !ok {
				continue
			}
			m.opts.Observer.Observe(p.Site, TypeName(v))
		}
	}
}

// values adapts a frame for guard evaluation. Bools are not ints.
type values struct {
	m  *Machine
	fr *frame
}

func (v values) Int(o ir.Operand) (*big.Int, bool) {
	switch o.Kind {
	case ir.OperandInt:
		return o.BigValue()
	case ir.OperandVar:
		x, ok := v.fr.lookup(o.Text)
		if !ok {
			return nil, false
		}
		n, ok := x.(*big.Int)
		return n, ok
	}
	return nil, false
}

// word checks that v is an int that fits the unit's width.
func (m *Machine) word(v Value) (*big.Int, error) {
	x, ok := v.(*big.Int)
	if !ok {
		return nil, m.trap(ir.TrapType, "typed operand is "+TypeName(v))
	}
	if !ranges.Fits(x, m.width) {
		return nil, m.trap(ir.TrapOverflow, x.String()+" does not fit")
	}
	return x, nil
}

func (m *Machine) fit(x *big.Int) (Value, error) {
	if !ranges.Fits(x, m.width) {
		return nil, m.trap(ir.TrapOverflow, x.String()+" does not fit")
	}
	return x, nil
}
