package lower

import (
	"math/big"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/pattern"
)

// Object-protocol operations behind call_dyn.
const (
	DynAdd        = "add"
	DynSub        = "sub"
	DynMul        = "mul"
	DynFloorDiv   = "floordiv"
	DynMod        = "mod"
	DynNeg        = "neg"
	DynInplaceAdd = "iadd"
	DynLt         = "lt"
	DynLe         = "le"
	DynGt         = "gt"
	DynGe         = "ge"
	DynEq         = "eq"
	DynNe         = "ne"
	DynContains   = "contains"
	DynTruth      = "truth"
	DynIter       = "iter"
	DynNext       = "next"
	DynIsStop     = "is_stop"
	DynUnpack     = "unpack"
	DynGetItem    = "getitem"
	DynSetItem    = "setitem"
	DynGetAttr    = "getattr"
	DynMethod     = "method"
	DynBuiltin    = "builtin"
	DynLoadGlobal = "load_global"
	DynCall       = "call"
	DynFunction   = "function"
	DynList       = "list"
	DynTuple      = "tuple"
	DynDict       = "dict"
)

var binTargets = map[string]string{
	"+":  DynAdd,
	"-":  DynSub,
	"*":  DynMul,
	"//": DynFloorDiv,
	"%":  DynMod,
}

var augTargets = map[string]string{
	"+":  DynInplaceAdd,
	"-":  DynSub,
	"*":  DynMul,
	"//": DynFloorDiv,
	"%":  DynMod,
}

var cmpTargets = map[string]string{
	"<":  DynLt,
	"<=": DynLe,
	">":  DynGt,
	">=": DynGe,
	"==": DynEq,
	"!=": DynNe,
}

// stmt lowers one statement into a region.
func (f *frame) stmt(n *ast.Node) ir.Instr {
	if p := f.stmtIdiom(n); p != nil {
		return f.stmtRegion(p)
	}
	r := &ir.LoweringResult{
		Label:   f.label(),
		Pattern: string(pattern.KindUnrecognized),
		Tier:    ir.TierDynamic,
		Pos:     n.Pos.String(),
	}
	b := &block{}
	f.stmtGeneric(b, n)
	r.Body = b.instrs
	return region(r)
}

func (f *frame) stmtIdiom(n *ast.Node) pattern.Pattern {
	switch n.Kind {
	case ast.KindFor, ast.KindWhile:
	default:
		return nil
	}
	p := pattern.Match(n, f)
	if p.Kind() == pattern.KindUnrecognized {
		return nil
	}
	return p
}

func (f *frame) exprIdiom(n *ast.Node) pattern.Pattern {
	switch n.Kind {
	case ast.KindCall, ast.KindListComp, ast.KindDictComp:
	default:
		return nil
	}
	p := pattern.Match(n, f)
	switch p.Kind() {
	case pattern.KindMaterialize, pattern.KindReduction, pattern.KindAnyAll, pattern.KindComprehension:
		return p
	}
	return nil
}

// stmtGeneric lowers a statement through the object protocol. Nested
// statements become regions of their own.
func (f *frame) stmtGeneric(b *block, n *ast.Node) {
	switch n.Kind {
	case ast.KindExpr:
		f.expr(b, n.Value)
	case ast.KindAssign:
		v := f.expr(b, n.Value)
		f.bind(b, n.Target, v)
	case ast.KindAugAssign:
		f.augAssign(b, n)
	case ast.KindPass:
	case ast.KindBreak:
		if len(f.loops) == 0 {
			f.unsupported(n, "break outside a loop")
			return
		}
		if brk := f.loops[len(f.loops)-1]; brk != "" {
			f.opTo(b, brk, ir.OpCopy, ir.Bool(true))
		}
		b.add(ir.Instr{Op: ir.OpBreak})
	case ast.KindContinue:
		if len(f.loops) == 0 {
			f.unsupported(n, "continue outside a loop")
			return
		}
		b.add(ir.Instr{Op: ir.OpContinue})
	case ast.KindReturn:
		if f.module {
			f.unsupported(n, "return outside a function")
			return
		}
		v := ir.None()
		if n.Value != nil {
			v = f.expr(b, n.Value)
		}
		b.add(ir.Instr{Op: ir.OpReturn, Args: []ir.Operand{v}})
	case ast.KindRaise:
		if n.Value == nil {
			b.add(ir.Instr{Op: ir.OpRaise})
			return
		}
		v := f.expr(b, n.Value)
		b.add(ir.Instr{Op: ir.OpRaise, Args: []ir.Operand{v}})
	case ast.KindIf:
		c := f.truth(b, f.expr(b, n.Test))
		b.add(ir.Instr{Op: ir.OpIf, Args: []ir.Operand{c}, Body: f.stmts(n.Body), Else: f.stmts(n.Orelse)})
	case ast.KindWhile:
		f.whileStmt(b, n)
	case ast.KindFor:
		f.forStmt(b, n)
	case ast.KindFunc:
		if !f.module {
			f.unsupported(n, "nested function definition")
			return
		}
		fn := f.dyn(b, DynFunction, ir.Str(n.Name))
		f.opTo(b, n.Name, ir.OpCopy, fn)
	default:
		f.unsupported(n, string(n.Kind)+" statement")
	}
}

func (f *frame) stmts(body []*ast.Node) []ir.Instr {
	var out []ir.Instr
	for _, st := range body {
		out = append(out, f.stmt(st))
	}
	return out
}

// loopBody lowers the statements of a loop body with brk as the loop's
// break flag.
func (f *frame) loopBody(b *block, brk string, body []*ast.Node) {
	f.pushLoop(brk)
	for _, st := range body {
		b.add(f.stmt(st))
	}
	f.popLoop()
}

func (f *frame) breakFlag(b *block, orelse []*ast.Node) string {
	if len(orelse) == 0 {
		return ""
	}
	brk := f.temp()
	f.opTo(b, brk, ir.OpCopy, ir.Bool(false))
	return brk
}

// orElse runs the else clause when the loop ended without break.
func (f *frame) orElse(b *block, brk string, orelse []*ast.Node) {
	if brk == "" {
		return
	}
	ran := f.op(b, ir.OpNot, ir.Var(brk))
	b.add(ifThen(ran, f.stmts(orelse)...))
}

func (f *frame) whileStmt(b *block, n *ast.Node) {
	brk := f.breakFlag(b, n.Orelse)
	loop := &block{}
	c := f.truth(loop, f.expr(loop, n.Test))
	done := f.op(loop, ir.OpNot, c)
	loop.add(ifThen(done, ir.Instr{Op: ir.OpBreak}))
	f.loopBody(loop, brk, n.Body)
	b.add(ir.Instr{Op: ir.OpLoop, Body: loop.instrs})
	f.orElse(b, brk, n.Orelse)
}

func (f *frame) forStmt(b *block, n *ast.Node) {
	src := f.expr(b, n.Iter)
	it := f.dyn(b, DynIter, src)
	brk := f.breakFlag(b, n.Orelse)
	loop := &block{}
	v := f.next(loop, it)
	f.bind(loop, n.Target, v)
	f.loopBody(loop, brk, n.Body)
	b.add(ir.Instr{Op: ir.OpLoop, Body: loop.instrs})
	f.orElse(b, brk, n.Orelse)
}

// next advances it and leaves the enclosing loop when it is exhausted.
func (f *frame) next(b *block, it ir.Operand) ir.Operand {
	v := f.dyn(b, DynNext, it)
	stop := f.dyn(b, DynIsStop, v)
	b.add(ifThen(stop, ir.Instr{Op: ir.OpBreak}))
	return v
}

func (f *frame) truth(b *block, v ir.Operand) ir.Operand {
	return f.dyn(b, DynTruth, v)
}

// bind assigns v to an assignment target.
func (f *frame) bind(b *block, target *ast.Node, v ir.Operand) {
	switch target.Kind {
	case ast.KindName:
		if r, ok := f.rename[target.Name]; ok {
			f.opTo(b, r.Text, ir.OpCopy, v)
			return
		}
		f.opTo(b, target.Name, ir.OpCopy, v)
	case ast.KindTuple, ast.KindList:
		u := f.dyn(b, DynUnpack, v, ir.Int(int64(len(target.Elts))))
		for i, e := range target.Elts {
			x := f.dyn(b, DynGetItem, u, ir.Int(int64(i)))
			f.bind(b, e, x)
		}
	case ast.KindSubscript:
		obj := f.expr(b, target.Obj)
		idx := f.expr(b, target.Index)
		f.dyn(b, DynSetItem, obj, idx, v)
	default:
		f.unsupported(target, "assignment to "+string(target.Kind))
	}
}

func (f *frame) augAssign(b *block, n *ast.Node) {
	target := augTargets[n.Op]
	switch n.Target.Kind {
	case ast.KindName:
		cur := f.load(b, n.Target.Name)
		v := f.expr(b, n.Value)
		f.bind(b, n.Target, f.dyn(b, target, cur, v))
	case ast.KindSubscript:
		obj := f.expr(b, n.Target.Obj)
		idx := f.expr(b, n.Target.Index)
		cur := f.dyn(b, DynGetItem, obj, idx)
		v := f.expr(b, n.Value)
		f.dyn(b, DynSetItem, obj, idx, f.dyn(b, target, cur, v))
	default:
		f.unsupported(n.Target, "augmented assignment to "+string(n.Target.Kind))
	}
}

// load reads a name. Module-level names are frame bindings; a function
// reads its locals directly and everything else through a global lookup.
func (f *frame) load(b *block, name string) ir.Operand {
	if r, ok := f.rename[name]; ok {
		return r
	}
	if f.module || f.locals[name] {
		return ir.Var(name)
	}
	return f.dyn(b, DynLoadGlobal, ir.Str(name))
}

func literal(n *ast.Node) (ir.Operand, bool) {
	switch n.Lit.Type {
	case "int":
		v, ok := new(big.Int).SetString(n.Lit.Text, 10)
		if !ok {
			return ir.Operand{}, false
		}
		return ir.BigInt(v), true
	case "bool":
		return ir.Bool(n.Lit.Text == "true"), true
	case "none":
		return ir.None(), true
	case "str":
		return ir.Str(n.Lit.Text), true
	}
	return ir.Operand{}, false
}

// expr lowers an expression and returns the operand holding its value.
// Expression idioms become nested regions.
func (f *frame) expr(b *block, n *ast.Node) ir.Operand {
	if op, ok := f.subst[n]; ok {
		return op
	}
	if p := f.exprIdiom(n); p != nil {
		return f.exprRegion(b, p)
	}
	return f.exprGeneric(b, n)
}

// exprGeneric lowers n itself through the object protocol.
func (f *frame) exprGeneric(b *block, n *ast.Node) ir.Operand {
	switch n.Kind {
	case ast.KindConst:
		if op, ok := literal(n); ok {
			return op
		}
	case ast.KindName:
		return f.load(b, n.Name)
	case ast.KindBinOp:
		l := f.expr(b, n.Left)
		r := f.expr(b, n.Right)
		return f.dyn(b, binTargets[n.Op], l, r)
	case ast.KindUnary:
		x := f.expr(b, n.Operand)
		if n.Op == "-" {
			return f.dyn(b, DynNeg, x)
		}
		return f.op(b, ir.OpNot, f.truth(b, x))
	case ast.KindBoolOp:
		res := f.temp()
		f.opTo(b, res, ir.OpCopy, f.expr(b, n.Values[0]))
		f.boolRest(b, n.Op, res, n.Values[1:])
		return ir.Var(res)
	case ast.KindCompare:
		res := f.temp()
		f.compareRest(b, res, f.expr(b, n.Left), n.Ops, n.Comparators)
		return ir.Var(res)
	case ast.KindCall:
		return f.call(b, n)
	case ast.KindAttr:
		obj := f.expr(b, n.Obj)
		return f.dyn(b, DynGetAttr, obj, ir.Str(n.Name))
	case ast.KindSubscript:
		obj := f.expr(b, n.Obj)
		idx := f.expr(b, n.Index)
		return f.dyn(b, DynGetItem, obj, idx)
	case ast.KindTuple:
		return f.dyn(b, DynTuple, f.exprs(b, n.Elts)...)
	case ast.KindList:
		return f.dyn(b, DynList, f.exprs(b, n.Elts)...)
	case ast.KindDict:
		var kv []ir.Operand
		for i := range n.Keys {
			kv = append(kv, f.expr(b, n.Keys[i]), f.expr(b, n.Values[i]))
		}
		return f.dyn(b, DynDict, kv...)
	case ast.KindListComp:
		return f.listComp(b, n)
	case ast.KindDictComp:
		return f.dictComp(b, n)
	case ast.KindGenExp:
		f.unsupported(n, "generator expression outside sum, any, all, list or tuple")
		return ir.None()
	}
	f.unsupported(n, string(n.Kind)+" expression")
	return ir.None()
}

func (f *frame) exprs(b *block, ns []*ast.Node) []ir.Operand {
	out := make([]ir.Operand, len(ns))
	for i, n := range ns {
		out[i] = f.expr(b, n)
	}
	return out
}

// boolRest evaluates the remaining operands of and/or only while the
// result so far does not decide the outcome.
func (f *frame) boolRest(b *block, op, res string, rest []*ast.Node) {
	if len(rest) == 0 {
		return
	}
	c := f.truth(b, ir.Var(res))
	if op == "or" {
		c = f.op(b, ir.OpNot, c)
	}
	inner := &block{}
	f.opTo(inner, res, ir.OpCopy, f.expr(inner, rest[0]))
	f.boolRest(inner, op, res, rest[1:])
	b.add(ifThen(c, inner.instrs...))
}

// compareRest lowers a comparison chain; each middle operand is evaluated
// once and the chain stops at the first false link.
func (f *frame) compareRest(b *block, res string, left ir.Operand, ops []string, comps []*ast.Node) {
	right := f.expr(b, comps[0])
	var v ir.Operand
	switch ops[0] {
	case "in":
		v = f.dyn(b, DynContains, right, left)
	case "not in":
		v = f.op(b, ir.OpNot, f.dyn(b, DynContains, right, left))
	default:
		v = f.dyn(b, cmpTargets[ops[0]], left, right)
	}
	f.opTo(b, res, ir.OpCopy, v)
	if len(ops) == 1 {
		return
	}
	c := f.truth(b, ir.Var(res))
	inner := &block{}
	f.compareRest(inner, res, right, ops[1:], comps[1:])
	b.add(ifThen(c, inner.instrs...))
}

var genFuncs = map[string]bool{"sum": true, "any": true, "all": true, "list": true, "tuple": true}

func (f *frame) call(b *block, n *ast.Node) ir.Operand {
	if fn := n.Func; fn.Kind == ast.KindName {
		name := fn.Name
		if genFuncs[name] && f.Builtin(name) && len(n.Args) >= 1 && n.Args[0].Kind == ast.KindGenExp &&
			(len(n.Args) == 1 || (name == "sum" && len(n.Args) == 2)) {
			return f.genCall(b, name, n)
		}
		if f.boundFunc(name) {
			dst := f.temp()
			b.add(ir.Instr{Op: ir.OpCallKnown, Dst: dst, Target: name, Args: f.exprs(b, n.Args)})
			return ir.Var(dst)
		}
	}
	if fn := n.Func; fn.Kind == ast.KindAttr {
		obj := f.expr(b, fn.Obj)
		args := append([]ir.Operand{obj, ir.Str(fn.Name)}, f.exprs(b, n.Args)...)
		return f.dyn(b, DynMethod, args...)
	}
	callee := f.expr(b, n.Func)
	args := append([]ir.Operand{callee}, f.exprs(b, n.Args)...)
	return f.dyn(b, DynCall, args...)
}

// boundFunc reports whether a call to name can bind directly to the
// module function of that name: it is the name's only binding and its
// def has certainly executed by the time the call runs.
func (f *frame) boundFunc(name string) bool {
	if _, ok := f.rename[name]; ok || f.locals[name] {
		return false
	}
	info, ok := f.l.world.Func(name)
	if !ok {
		return false
	}
	if f.module {
		return f.l.defPos[name] < f.stmtIndex
	}
	return info.Index <= f.index
}

// comprehension iterates gens, the first generator's iterator already
// created, and runs body for every element. done, when set, is a flag
// body raises before breaking out of the innermost loop.
func (f *frame) comprehension(b *block, gens []*ast.Node, first ir.Operand, done string, body func(*block)) {
	var names []string
	for _, g := range gens {
		names = append(names, ast.TargetNames(g.Target)...)
	}
	f.withRename(names, func() {
		f.genLevel(b, gens, 0, first, done, body)
	})
}

func (f *frame) genLevel(b *block, gens []*ast.Node, i int, it ir.Operand, done string, body func(*block)) {
	g := gens[i]
	if i > 0 {
		it = f.dyn(b, DynIter, f.expr(b, g.Iter))
	}
	loop := &block{}
	v := f.next(loop, it)
	f.bind(loop, g.Target, v)
	for _, cond := range g.Ifs {
		skip := f.op(loop, ir.OpNot, f.truth(loop, f.expr(loop, cond)))
		loop.add(ifThen(skip, ir.Instr{Op: ir.OpContinue}))
	}
	if i+1 < len(gens) {
		f.genLevel(loop, gens, i+1, ir.Operand{}, done, body)
		if done != "" {
			loop.add(ifThen(ir.Var(done), ir.Instr{Op: ir.OpBreak}))
		}
	} else {
		body(loop)
	}
	b.add(ir.Instr{Op: ir.OpLoop, Body: loop.instrs})
}

// firstIter evaluates the outermost iterable in the enclosing scope.
func (f *frame) firstIter(b *block, gens []*ast.Node) ir.Operand {
	return f.dyn(b, DynIter, f.expr(b, gens[0].Iter))
}

func (f *frame) listComp(b *block, n *ast.Node) ir.Operand {
	it := f.firstIter(b, n.Generators)
	res := f.dyn(b, DynList)
	f.comprehension(b, n.Generators, it, "", func(body *block) {
		e := f.expr(body, n.Elt)
		f.dyn(body, DynMethod, res, ir.Str("append"), e)
	})
	return res
}

func (f *frame) dictComp(b *block, n *ast.Node) ir.Operand {
	it := f.firstIter(b, n.Generators)
	res := f.dyn(b, DynDict)
	f.comprehension(b, n.Generators, it, "", func(body *block) {
		k := f.expr(body, n.Key)
		v := f.expr(body, n.Value)
		f.dyn(body, DynSetItem, res, k, v)
	})
	return res
}

// genCall lowers a builtin consuming a generator expression as an inline
// loop.
func (f *frame) genCall(b *block, name string, n *ast.Node) ir.Operand {
	gen := n.Args[0]
	it := f.firstIter(b, gen.Generators)
	switch name {
	case "sum":
		start := ir.Int(0)
		if len(n.Args) == 2 {
			start = f.expr(b, n.Args[1])
		}
		acc := f.temp()
		f.opTo(b, acc, ir.OpCopy, start)
		f.comprehension(b, gen.Generators, it, "", func(body *block) {
			e := f.expr(body, gen.Elt)
			f.dynTo(body, acc, DynAdd, ir.Var(acc), e)
		})
		return ir.Var(acc)
	case "any", "all":
		res := f.temp()
		f.opTo(b, res, ir.OpCopy, ir.Bool(name == "all"))
		done := ""
		if len(gen.Generators) > 1 {
			done = f.temp()
			f.opTo(b, done, ir.OpCopy, ir.Bool(false))
		}
		f.comprehension(b, gen.Generators, it, done, func(body *block) {
			c := f.truth(body, f.expr(body, gen.Elt))
			if name == "all" {
				c = f.op(body, ir.OpNot, c)
			}
			hit := []ir.Instr{{Op: ir.OpCopy, Dst: res, Args: []ir.Operand{ir.Bool(name == "any")}}}
			if done != "" {
				hit = append(hit, ir.Instr{Op: ir.OpCopy, Dst: done, Args: []ir.Operand{ir.Bool(true)}})
			}
			body.add(ifThen(c, append(hit, ir.Instr{Op: ir.OpBreak})...))
		})
		return ir.Var(res)
	}
	res := f.dyn(b, DynList)
	f.comprehension(b, gen.Generators, it, "", func(body *block) {
		e := f.expr(body, gen.Elt)
		f.dyn(body, DynMethod, res, ir.Str("append"), e)
	})
	if name == "tuple" {
		tf := f.dyn(b, DynBuiltin, ir.Str("tuple"))
		return f.dyn(b, DynCall, tf, res)
	}
	return res
}
