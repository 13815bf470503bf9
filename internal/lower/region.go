package lower

import (
	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/guard"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/pattern"
	"github.com/roach88/tierc/internal/tier"
)

// PatternOperands tags the dynamic region that evaluates the operands of
// a statement idiom ahead of its guards.
const PatternOperands = "operands"

func isExprPattern(p pattern.Pattern) bool {
	switch p.Kind() {
	case pattern.KindMaterialize, pattern.KindReduction, pattern.KindAnyAll, pattern.KindComprehension:
		return true
	}
	return false
}

// stmtRegion lowers a statement idiom. Operands that must be evaluated
// first go into an enclosing dynamic region, since call_dyn may not
// appear in specialized code.
func (f *frame) stmtRegion(p pattern.Pattern) ir.Instr {
	d := f.cls.Classify(p)
	if d.Tier == ir.TierDynamic || !f.needsHoist(p, &d) {
		return region(f.idiom(&block{}, p, d))
	}
	outer := &ir.LoweringResult{
		Label:   f.label(),
		Pattern: PatternOperands,
		Tier:    ir.TierDynamic,
		Pos:     p.Node().Pos.String(),
	}
	b := &block{}
	inner := f.idiom(b, p, d)
	b.add(region(inner))
	outer.Body = b.instrs
	return region(outer)
}

// exprRegion lowers an expression idiom into b and returns its result.
func (f *frame) exprRegion(b *block, p pattern.Pattern) ir.Operand {
	r := f.idiom(b, p, f.cls.Classify(p))
	b.add(region(r))
	return ir.Var(r.Result)
}

// idiom builds the region of a classified pattern. Operands evaluated
// ahead of the region are emitted into pre.
func (f *frame) idiom(pre *block, p pattern.Pattern, d tier.Decision) *ir.LoweringResult {
	n := p.Node()
	r := &ir.LoweringResult{
		Label:   f.label(),
		Pattern: string(p.Kind()),
		Tier:    d.Tier,
		Pos:     n.Pos.String(),
		Reason:  d.Reason,
	}
	if isExprPattern(p) {
		r.Result = f.temp()
	}
	defer func() {
		f.l.logger.Debug("lowered construct",
			"func", f.name, "label", r.Label, "pattern", r.Pattern, "tier", r.Tier.String(), "pos", r.Pos)
	}()

	if d.Tier == ir.TierDynamic {
		if f.l.cfg.Profile {
			r.Probes = f.probes(p, d)
		}
		body := &block{}
		f.generic(body, n, r.Result)
		r.Body = body.instrs
		return r
	}

	ops := f.operands(pre, p, d)
	fast := &block{}
	f.fastPath(fast, p, d, ops, r.Result)
	r.Body = fast.instrs
	if d.Tier != ir.TierGuarded {
		return r
	}

	target := r.Label + ".deopt"
	v, _ := pattern.Elems(p)
	r.Guards = guard.Synthesize(guard.Input{
		Pattern:  p,
		Needs:    d.Needs,
		Operands: ops,
		Expr:     func(e *ast.Node) *ir.Expr { return rebind(f.cls.ElemExpr(e, v), v, freeOperands(p, ops)) },
		Target:   target,
	})
	deopt := &block{}
	f.withSubst(substitution(p, ops), func() {
		f.generic(deopt, n, r.Result)
	})
	r.Deopt = &ir.DeoptBlock{Label: target, Live: live(p, ops), Body: deopt.instrs}
	return r
}

// freeOperands maps each free name of p to the operand the fast path reads
// for it.
func freeOperands(p pattern.Pattern, ops []ir.Operand) map[string]ir.Operand {
	out := make(map[string]ir.Operand)
	for i, op := range p.Operands() {
		if op.Role == pattern.RoleFree {
			out[op.Node.Name] = ops[i]
		}
	}
	return out
}

// rebind returns e with every free name other than v replaced by its
// lowered operand, so guards read the same bindings as the fast path.
func rebind(e *ir.Expr, v string, names map[string]ir.Operand) *ir.Expr {
	if e == nil {
		return nil
	}
	out := *e
	switch e.Op {
	case ir.ExprVar:
		o, ok := names[e.Var]
		if !ok || e.Var == v || o.Text == "" {
			return &out
		}
		if o.Kind == ir.OperandInt {
			return &ir.Expr{Op: ir.ExprConst, Const: o.Text}
		}
		out.Var = o.Text
		return &out
	case ir.ExprConst:
		return &out
	}
	out.L = rebind(e.L, v, names)
	out.R = rebind(e.R, v, names)
	return &out
}

// generic lowers n itself through the object protocol, storing an
// expression's value in result.
func (f *frame) generic(b *block, n *ast.Node, result string) {
	if result == "" {
		f.stmtGeneric(b, n)
		return
	}
	f.opTo(b, result, ir.OpCopy, f.exprGeneric(b, n))
}

// direct returns the operand for a pattern operand that needs no
// evaluation: a known constant or a readable name.
func (f *frame) direct(i int, op pattern.Operand, d *tier.Decision) (ir.Operand, bool) {
	if k, ok := d.Known(i); ok {
		return ir.BigInt(k), true
	}
	if op.Node.Kind != ast.KindName {
		return ir.Operand{}, false
	}
	if r, ok := f.rename[op.Node.Name]; ok {
		return r, true
	}
	if f.module || f.locals[op.Node.Name] {
		return ir.Var(op.Node.Name), true
	}
	return ir.Operand{}, false
}

func (f *frame) needsHoist(p pattern.Pattern, d *tier.Decision) bool {
	for i, op := range p.Operands() {
		if _, ok := f.direct(i, op, d); !ok {
			return true
		}
	}
	return false
}

// operands lowers the pattern operands. When any of them needs
// evaluation, every unknown operand of the first range is evaluated into
// a temp in source order, so reads keep their relative order.
func (f *frame) operands(pre *block, p pattern.Pattern, d tier.Decision) []ir.Operand {
	src := p.Operands()
	ops := make([]ir.Operand, len(src))
	if !f.needsHoist(p, &d) {
		for i, op := range src {
			ops[i], _ = f.direct(i, op, &d)
		}
		return ops
	}
	first := map[int]bool{}
	if rs := p.Ranges(); len(rs) > 0 {
		for _, i := range []int{rs[0].Start, rs[0].Stop, rs[0].Step} {
			if i != pattern.Default {
				first[i] = true
			}
		}
	}
	for i, op := range src {
		if k, ok := d.Known(i); ok {
			ops[i] = ir.BigInt(k)
			continue
		}
		if !first[i] {
			ops[i], _ = f.direct(i, op, &d)
			continue
		}
		v := f.expr(pre, op.Node)
		if !v.IsTemp() {
			v = f.op(pre, ir.OpCopy, v)
		}
		ops[i] = v
	}
	return ops
}

// substitution maps operand nodes to the values already computed for
// them, so the deopt path does not evaluate them again.
func substitution(p pattern.Pattern, ops []ir.Operand) map[*ast.Node]ir.Operand {
	out := make(map[*ast.Node]ir.Operand)
	for i, op := range p.Operands() {
		if !ops[i].IsVar() || ops[i].IsTemp() {
			out[op.Node] = ops[i]
		}
	}
	return out
}

// live lists the bindings a guarded region reads before it commits.
func live(p pattern.Pattern, ops []ir.Operand) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, op := range ops {
		if op.IsVar() {
			add(op.Text)
		}
	}
	switch p := p.(type) {
	case *pattern.Accumulate:
		add(p.Acc)
	case *pattern.CountedWhile:
		add(p.Var)
	}
	return out
}

// probes samples the readable name operands of a dynamic idiom.
func (f *frame) probes(p pattern.Pattern, d tier.Decision) []ir.Probe {
	var out []ir.Probe
	seen := make(map[string]bool)
	for i, op := range p.Operands() {
		if op.Node.Kind != ast.KindName || d.Values[i].Evidence == tier.EvidenceKnown {
			continue
		}
		arg, ok := f.direct(i, op, &d)
		site := op.Node.Site()
		if !ok || seen[site] {
			continue
		}
		seen[site] = true
		out = append(out, ir.Probe{Site: site, Arg: arg})
	}
	return out
}
