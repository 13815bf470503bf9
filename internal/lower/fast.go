package lower

import (
	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/pattern"
	"github.com/roach88/tierc/internal/tier"
)

// fastPath emits the specialized body of p. Every operation is a typed
// primitive; the guards, or the proof behind a static tier, make traps
// unreachable.
func (f *frame) fastPath(b *block, p pattern.Pattern, d tier.Decision, ops []ir.Operand, result string) {
	fp := &fastPath{f: f, b: b, p: p, ops: ops, result: result}
	switch p := p.(type) {
	case *pattern.CountedFor:
		t, n := fp.progression(0)
		fp.loop(n, func(body *block, k ir.Operand) {
			f.opTo(body, p.Var, ir.OpRangeAt, t, k)
			f.loopBody(body, "", p.Body)
		})
	case *pattern.Accumulate:
		t, n := fp.progression(0)
		fp.loop(n, func(body *block, k ir.Operand) {
			f.opTo(body, p.Var, ir.OpRangeAt, t, k)
			f.opTo(body, p.Acc, ir.OpAdd, ir.Var(p.Acc), ir.Var(p.Var))
		})
	case *pattern.Enumerate:
		t, n := fp.progression(0)
		start := fp.operand(p.EnumStart, 0)
		fp.loop(n, func(body *block, k ir.Operand) {
			f.opTo(body, p.Index, ir.OpAdd, start, k)
			f.opTo(body, p.Value, ir.OpRangeAt, t, k)
			f.loopBody(body, "", p.Body)
		})
	case *pattern.Zip:
		ts, n := fp.zip()
		fp.loop(n, func(body *block, k ir.Operand) {
			for i, v := range p.Vars {
				f.opTo(body, v, ir.OpRangeAt, ts[i], k)
			}
			f.loopBody(body, "", p.Body)
		})
	case *pattern.CountedWhile:
		t, n := fp.progression(0)
		fp.loop(n, func(body *block, k ir.Operand) {
			f.opTo(body, p.Var, ir.OpRangeAt, t, k)
			f.loopBody(body, "", p.Body)
			f.opTo(body, p.Var, ir.OpAdd, ir.Var(p.Var), ir.Int(1))
		})
	case *pattern.Materialize:
		fp.materialize(p)
	case *pattern.Reduction:
		fp.reduction(p, d.Analytic)
	case *pattern.AnyAll:
		fp.anyAll(p)
	case *pattern.Comprehension:
		fp.comprehension(p)
	}
}

type fastPath struct {
	f      *frame
	b      *block
	p      pattern.Pattern
	ops    []ir.Operand
	result string
}

func (fp *fastPath) operand(i int, def int64) ir.Operand {
	if i == pattern.Default {
		return ir.Int(def)
	}
	return fp.ops[i]
}

// progression emits the triplet and length of range ri.
func (fp *fastPath) progression(ri int) (t, n ir.Operand) {
	r := fp.p.Ranges()[ri]
	t = fp.f.op(fp.b, ir.OpRangeTriplet, fp.operand(r.Start, 0), fp.operand(r.Stop, 0), fp.operand(r.Step, 1))
	n = fp.f.op(fp.b, ir.OpRangeLen, t)
	return t, n
}

// zip emits every progression and the shortest length.
func (fp *fastPath) zip() ([]ir.Operand, ir.Operand) {
	var ts []ir.Operand
	var n ir.Operand
	for ri := range fp.p.Ranges() {
		t, l := fp.progression(ri)
		ts = append(ts, t)
		if ri == 0 {
			n = l
		} else {
			n = fp.f.op(fp.b, ir.OpMin, n, l)
		}
	}
	return ts, n
}

// loop emits a counted loop over 0..n-1.
func (fp *fastPath) loop(n ir.Operand, body func(*block, ir.Operand)) {
	k := fp.f.temp()
	inner := &block{}
	body(inner, ir.Var(k))
	fp.b.add(ir.Instr{Op: ir.OpLoop, Dst: k, Args: []ir.Operand{n}, Body: inner.instrs})
}

// elemEnv binds the iteration variable and the free names of p.
func (fp *fastPath) elemEnv(v string, x ir.Operand) map[string]ir.Operand {
	env := map[string]ir.Operand{v: x}
	for i, op := range fp.p.Operands() {
		if op.Role == pattern.RoleFree {
			env[op.Node.Name] = fp.ops[i]
		}
	}
	return env
}

// elem emits a pure element expression with typed arithmetic.
func (fp *fastPath) elem(b *block, n *ast.Node, env map[string]ir.Operand) ir.Operand {
	f := fp.f
	switch n.Kind {
	case ast.KindName:
		return env[n.Name]
	case ast.KindConst:
		op, _ := literal(n)
		return op
	case ast.KindUnary:
		return f.op(b, ir.OpNeg, fp.elem(b, n.Operand, env))
	case ast.KindCompare:
		l := fp.elem(b, n.Left, env)
		r := fp.elem(b, n.Comparators[0], env)
		return f.op(b, cmpOps[n.Ops[0]], l, r)
	}
	l := fp.elem(b, n.Left, env)
	r := fp.elem(b, n.Right, env)
	switch n.Op {
	case "+":
		return f.op(b, ir.OpAdd, l, r)
	case "-":
		return f.op(b, ir.OpSub, l, r)
	case "*":
		return f.op(b, ir.OpMul, l, r)
	case "//":
		fp.zeroCheck(b, r, ir.MsgFloorDivZero)
		return f.op(b, ir.OpFloorDiv, l, r)
	default:
		fp.zeroCheck(b, r, ir.MsgModZero)
		return f.op(b, ir.OpMod, l, r)
	}
}

var cmpOps = map[string]ir.Op{
	"<":  ir.OpLt,
	"<=": ir.OpLe,
	">":  ir.OpGt,
	">=": ir.OpGe,
	"==": ir.OpEq,
	"!=": ir.OpNe,
}

// zeroCheck raises ZeroDivisionError when d is zero, exactly as the
// dynamic division does.
func (fp *fastPath) zeroCheck(b *block, d ir.Operand, msg string) {
	if v, ok := d.BigValue(); ok && v.Sign() != 0 {
		return
	}
	z := fp.f.op(b, ir.OpEq, d, ir.Int(0))
	b.add(ifThen(z, ir.Instr{Op: ir.OpRaise, Target: ir.ExcZeroDivision, Args: []ir.Operand{ir.Str(msg)}}))
}

func (fp *fastPath) materialize(p *pattern.Materialize) {
	f, res := fp.f, fp.result
	var ts []ir.Operand
	var n ir.Operand
	if p.Source == pattern.SourceZip {
		ts, n = fp.zip()
	} else {
		t, l := fp.progression(0)
		ts, n = []ir.Operand{t}, l
	}
	elem := ir.ElemI64
	if p.Source != pattern.SourceRange {
		elem = ir.ElemObj
	}
	set := ir.OpVecSet
	if p.Container == "tuple" {
		fp.b.add(ir.Instr{Op: ir.OpAllocTuple, Dst: res, Args: []ir.Operand{n}})
		set = ir.OpTupleSet
	} else {
		fp.b.add(ir.Instr{Op: ir.OpAllocVec, Dst: res, Args: []ir.Operand{n}, Elem: elem})
	}
	start := fp.operand(p.EnumStart, 0)
	fp.loop(n, func(body *block, k ir.Operand) {
		var x ir.Operand
		switch p.Source {
		case pattern.SourceRange:
			x = f.op(body, ir.OpRangeAt, ts[0], k)
		case pattern.SourceEnumerate:
			x = f.op(body, ir.OpAllocTuple, ir.Int(2))
			i := f.op(body, ir.OpAdd, start, k)
			body.add(ir.Instr{Op: ir.OpTupleSet, Args: []ir.Operand{x, ir.Int(0), i}})
			v := f.op(body, ir.OpRangeAt, ts[0], k)
			body.add(ir.Instr{Op: ir.OpTupleSet, Args: []ir.Operand{x, ir.Int(1), v}})
		case pattern.SourceZip:
			x = f.op(body, ir.OpAllocTuple, ir.Int(int64(len(ts))))
			for i, t := range ts {
				v := f.op(body, ir.OpRangeAt, t, k)
				body.add(ir.Instr{Op: ir.OpTupleSet, Args: []ir.Operand{x, ir.Int(int64(i)), v}})
			}
		}
		body.add(ir.Instr{Op: set, Args: []ir.Operand{ir.Var(res), k, x}})
	})
}

func (fp *fastPath) reduction(p *pattern.Reduction, analytic bool) {
	f, res := fp.f, fp.result
	t, n := fp.progression(0)
	if p.Func == "len" {
		f.opTo(fp.b, res, ir.OpCopy, n)
		return
	}
	base := fp.operand(p.SumStart, 0)
	f.opTo(fp.b, res, ir.OpCopy, base)
	if analytic {
		fp.analyticSum(t, n, base)
		return
	}
	fp.loop(n, func(body *block, k ir.Operand) {
		x := f.op(body, ir.OpRangeAt, t, k)
		if p.Elt != nil {
			x = fp.elem(body, p.Elt, fp.elemEnv(p.Var, x))
		}
		f.opTo(body, res, ir.OpAdd, ir.Var(res), x)
	})
}

// analyticSum computes base + n*(first+last)/2, halving whichever factor
// is even so that no intermediate exceeds what the sum_fits guard checks.
func (fp *fastPath) analyticSum(t, n, base ir.Operand) {
	f, res := fp.f, fp.result
	empty := f.op(fp.b, ir.OpEq, n, ir.Int(0))
	some := f.op(fp.b, ir.OpNot, empty)

	b := &block{}
	m := f.op(b, ir.OpSub, n, ir.Int(1))
	first := f.op(b, ir.OpRangeAt, t, ir.Int(0))
	last := f.op(b, ir.OpRangeAt, t, m)
	s := f.op(b, ir.OpAdd, first, last)
	q := f.op(b, ir.OpMod, n, ir.Int(2))
	even := f.op(b, ir.OpEq, q, ir.Int(0))
	h, prod := f.temp(), f.temp()
	b.add(ir.Instr{
		Op:   ir.OpIf,
		Args: []ir.Operand{even},
		Body: []ir.Instr{
			{Op: ir.OpFloorDiv, Dst: h, Args: []ir.Operand{n, ir.Int(2)}},
			{Op: ir.OpMul, Dst: prod, Args: []ir.Operand{ir.Var(h), s}},
		},
		Else: []ir.Instr{
			{Op: ir.OpFloorDiv, Dst: h, Args: []ir.Operand{s, ir.Int(2)}},
			{Op: ir.OpMul, Dst: prod, Args: []ir.Operand{n, ir.Var(h)}},
		},
	})
	f.opTo(b, res, ir.OpAdd, base, ir.Var(prod))
	fp.b.add(ifThen(some, b.instrs...))
}

func (fp *fastPath) anyAll(p *pattern.AnyAll) {
	f, res := fp.f, fp.result
	isAny := p.Func == "any"
	t, n := fp.progression(0)
	f.opTo(fp.b, res, ir.OpCopy, ir.Bool(!isAny))
	fp.loop(n, func(body *block, k ir.Operand) {
		x := f.op(body, ir.OpRangeAt, t, k)
		var c ir.Operand
		switch {
		case p.Elt == nil:
			c = f.op(body, ir.OpNe, x, ir.Int(0))
		case p.Elt.Kind == ast.KindCompare:
			c = fp.elem(body, p.Elt, fp.elemEnv(p.Var, x))
		default:
			c = f.op(body, ir.OpNe, fp.elem(body, p.Elt, fp.elemEnv(p.Var, x)), ir.Int(0))
		}
		if !isAny {
			c = f.op(body, ir.OpNot, c)
		}
		body.add(ifThen(c,
			ir.Instr{Op: ir.OpCopy, Dst: res, Args: []ir.Operand{ir.Bool(isAny)}},
			ir.Instr{Op: ir.OpBreak}))
	})
}

func (fp *fastPath) comprehension(p *pattern.Comprehension) {
	f, res := fp.f, fp.result
	t, n := fp.progression(0)
	if p.Dict {
		fp.b.add(ir.Instr{Op: ir.OpAllocDict, Dst: res})
	} else {
		fp.b.add(ir.Instr{Op: ir.OpAllocVec, Dst: res, Args: []ir.Operand{n}, Elem: ir.ElemI64})
	}
	fp.loop(n, func(body *block, k ir.Operand) {
		x := f.op(body, ir.OpRangeAt, t, k)
		env := fp.elemEnv(p.Var, x)
		if p.Dict {
			key := fp.elem(body, p.Key, env)
			val := fp.elem(body, p.Value, env)
			body.add(ir.Instr{Op: ir.OpDictSet, Args: []ir.Operand{ir.Var(res), key, val}})
			return
		}
		body.add(ir.Instr{Op: ir.OpVecSet, Args: []ir.Operand{ir.Var(res), k, fp.elem(body, p.Elt, env)}})
	})
}
