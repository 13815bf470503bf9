// Package lower is the canonical lowerer. It turns one function of an
// annotated module into IR: every statement becomes a region, recognized
// idioms become regions tagged with their tier, and everything else is
// lowered through the generic object protocol.
//
// A Lowerer is immutable once built and may lower functions of the same
// module concurrently. All mutable state lives in a per-function frame.
package lower

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/ranges"
	"github.com/roach88/tierc/internal/tier"
	"github.com/roach88/tierc/internal/world"
)

// Lowerer lowers the functions of one module.
type Lowerer struct {
	cfg    tier.Config
	world  *world.Snapshot
	logger *slog.Logger
	// defPos is the module body position of each top-level def.
	defPos map[string]int
}

// New returns a lowerer for mod. A nil logger uses slog.Default.
func New(mod *ast.Node, cfg tier.Config, snap *world.Snapshot, logger *slog.Logger) *Lowerer {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Lowerer{cfg: cfg, world: snap, logger: logger, defPos: make(map[string]int)}
	for i, st := range mod.Body {
		if st.Kind == ast.KindFunc {
			l.defPos[st.Name] = i
		}
	}
	return l
}

// Module lowers the top-level statements of mod into ir.ModuleFunc.
func (l *Lowerer) Module(mod *ast.Node) (ir.Function, error) {
	f := l.newFrame(ir.ModuleFunc, nil, true)
	if err := f.checkZeroSteps(mod.Body); err != nil {
		return ir.Function{}, err
	}
	fn := ir.Function{Name: ir.ModuleFunc}
	for i, st := range mod.Body {
		f.stmtIndex = i
		fn.Body = append(fn.Body, f.stmt(st))
	}
	if f.err != nil {
		return ir.Function{}, f.err
	}
	return fn, nil
}

// Function lowers one top-level def.
func (l *Lowerer) Function(def *ast.Node) (ir.Function, error) {
	f := l.newFrame(def.Name, def, false)
	if err := f.checkZeroSteps(def.Body); err != nil {
		return ir.Function{}, err
	}
	fn := ir.Function{Name: def.Name, Params: def.Params}
	for _, st := range def.Body {
		fn.Body = append(fn.Body, f.stmt(st))
	}
	if f.err != nil {
		return ir.Function{}, f.err
	}
	return fn, nil
}

// frame is the lowering state of one function.
type frame struct {
	l      *Lowerer
	name   string
	module bool
	// index is the declaration index of the function being lowered.
	index int
	// stmtIndex is the module body position of the statement being
	// lowered, for the module frame.
	stmtIndex int
	locals    map[string]bool
	cls       *tier.Classifier

	temps  int
	labels int
	// loops holds the break flag of each enclosing loop, or "" when the
	// loop has no else clause.
	loops  []string
	rename map[string]ir.Operand
	subst  map[*ast.Node]ir.Operand
	err    error
}

func (l *Lowerer) newFrame(name string, def *ast.Node, module bool) *frame {
	f := &frame{
		l:      l,
		name:   name,
		module: module,
		locals: make(map[string]bool),
		rename: make(map[string]ir.Operand),
		subst:  make(map[*ast.Node]ir.Operand),
	}
	if def != nil {
		for _, p := range def.Params {
			f.locals[p] = true
		}
		for name := range ast.AssignedNames(def.Body) {
			f.locals[name] = true
		}
		if info, ok := l.world.Func(def.Name); ok {
			f.index = info.Index
		}
	}
	f.cls = &tier.Classifier{Config: l.cfg, Signals: l.world, Scope: f}
	return f
}

// Builtin reports whether name still refers to the builtin.
func (f *frame) Builtin(name string) bool {
	if _, ok := f.rename[name]; ok {
		return false
	}
	return !f.locals[name] && !f.l.world.IsGlobal(name)
}

// Local reports whether name is readable without a global lookup.
func (f *frame) Local(name string) bool {
	if _, ok := f.rename[name]; ok {
		return true
	}
	return f.module || f.locals[name]
}

func (f *frame) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

func (f *frame) unsupported(n *ast.Node, construct string) {
	f.fail(&UnsupportedError{Pos: n.Pos, Construct: construct})
}

// checkZeroSteps rejects any range call whose step folds to zero. Nested
// defs are checked by their own frame.
func (f *frame) checkZeroSteps(body []*ast.Node) error {
	var trap error
	for _, st := range body {
		ast.Walk(st, func(n *ast.Node) bool {
			if trap != nil || n.Kind == ast.KindFunc {
				return false
			}
			if f.cls.KnownZeroStep(n) {
				trap = &TrapError{Pos: n.Pos, Reason: ir.TrapStepZero, Message: ranges.ErrInvalidStep.Error()}
			}
			return true
		})
	}
	return trap
}

func (f *frame) temp() string {
	t := fmt.Sprintf("%%%d", f.temps)
	f.temps++
	return t
}

func (f *frame) label() string {
	n := f.labels
	f.labels++
	if f.module {
		return fmt.Sprintf("r%d", n)
	}
	return fmt.Sprintf("%s.r%d", f.name, n)
}

// withSubst runs fn with extra operand substitutions in effect.
func (f *frame) withSubst(extra map[*ast.Node]ir.Operand, fn func()) {
	saved := f.subst
	merged := make(map[*ast.Node]ir.Operand, len(saved)+len(extra))
	for k, v := range saved {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	f.subst = merged
	fn()
	f.subst = saved
}

// withRename runs fn with the names bound to fresh temps.
func (f *frame) withRename(names []string, fn func()) {
	saved := f.rename
	merged := make(map[string]ir.Operand, len(saved)+len(names))
	for k, v := range saved {
		merged[k] = v
	}
	for _, name := range names {
		merged[name] = ir.Var(f.temp())
	}
	f.rename = merged
	fn()
	f.rename = saved
}

func (f *frame) pushLoop(brk string) { f.loops = append(f.loops, brk) }
func (f *frame) popLoop()            { f.loops = f.loops[:len(f.loops)-1] }

// block accumulates instructions.
type block struct {
	instrs []ir.Instr
}

func (b *block) add(in ir.Instr) { b.instrs = append(b.instrs, in) }

// op emits a value-producing primitive into a fresh temp.
func (f *frame) op(b *block, op ir.Op, args ...ir.Operand) ir.Operand {
	dst := f.temp()
	b.add(ir.Instr{Op: op, Dst: dst, Args: args})
	return ir.Var(dst)
}

// opTo emits a value-producing primitive into dst.
func (f *frame) opTo(b *block, dst string, op ir.Op, args ...ir.Operand) {
	b.add(ir.Instr{Op: op, Dst: dst, Args: args})
}

// dyn emits an object-protocol call.
func (f *frame) dyn(b *block, target string, args ...ir.Operand) ir.Operand {
	dst := f.temp()
	b.add(ir.Instr{Op: ir.OpCallDyn, Dst: dst, Target: target, Args: args})
	return ir.Var(dst)
}

func (f *frame) dynTo(b *block, dst, target string, args ...ir.Operand) {
	b.add(ir.Instr{Op: ir.OpCallDyn, Dst: dst, Target: target, Args: args})
}

func ifThen(cond ir.Operand, body ...ir.Instr) ir.Instr {
	return ir.Instr{Op: ir.OpIf, Args: []ir.Operand{cond}, Body: body}
}

func region(r *ir.LoweringResult) ir.Instr {
	return ir.Instr{Op: ir.OpRegion, Region: r}
}
