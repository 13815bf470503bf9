package ir

import (
	"fmt"
	"strings"
)

// Format renders a unit as an indented listing. The listing is for humans
// and golden files; fingerprints always use the canonical encoding.
func Format(u *Unit) string {
	var p printer
	fmt.Fprintf(&p.b, "unit %s (ir %s, width %d)\n", u.Module, u.IRVersion, u.Width)
	for _, fn := range u.Functions {
		p.b.WriteByte('\n')
		fmt.Fprintf(&p.b, "func %s(%s):\n", fn.Name, strings.Join(fn.Params, ", "))
		p.instrs(fn.Body, 1)
	}
	return p.b.String()
}

// FormatResult renders a single construct.
func FormatResult(r *LoweringResult) string {
	var p printer
	p.region(r, 0)
	return p.b.String()
}

type printer struct {
	b strings.Builder
}

func (p *printer) line(depth int, format string, args ...any) {
	p.b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&p.b, format, args...)
	p.b.WriteByte('\n')
}

func (p *printer) instrs(body []Instr, depth int) {
	for i := range body {
		p.instr(&body[i], depth)
	}
}

func (p *printer) instr(in *Instr, depth int) {
	switch in.Op {
	case OpRegion:
		p.region(in.Region, depth)
	case OpLoop:
		if len(in.Args) == 0 {
			p.line(depth, "loop:")
		} else {
			p.line(depth, "loop %s < %s:", in.Dst, in.Args[0])
		}
		p.instrs(in.Body, depth+1)
	case OpIf:
		p.line(depth, "if %s:", in.Args[0])
		p.instrs(in.Body, depth+1)
		if len(in.Else) > 0 {
			p.line(depth, "else:")
			p.instrs(in.Else, depth+1)
		}
	case OpTrap:
		p.line(depth, "trap %s", in.Target)
	case OpRaise:
		p.line(depth, "raise %s(%s)", in.Target, joinOperands(in.Args))
	case OpCallKnown, OpCallDyn:
		p.line(depth, "%s = %s %s(%s)", in.Dst, in.Op, in.Target, joinOperands(in.Args))
	case OpAllocVec:
		p.line(depth, "%s = alloc_vec %s %s", in.Dst, joinOperands(in.Args), in.Elem)
	default:
		if in.Dst != "" {
			p.line(depth, "%s = %s %s", in.Dst, in.Op, joinOperands(in.Args))
		} else {
			p.line(depth, "%s %s", in.Op, joinOperands(in.Args))
		}
	}
}

func (p *printer) region(r *LoweringResult, depth int) {
	head := fmt.Sprintf("region %s %s %s", r.Label, r.Pattern, r.Tier)
	if r.Pos != "" {
		head += " @" + r.Pos
	}
	if r.Result != "" {
		head += " -> " + r.Result
	}
	if r.Reason != "" {
		head += " (" + r.Reason + ")"
	}
	p.line(depth, "%s:", head)
	for _, pr := range r.Probes {
		p.line(depth+1, "probe %s %s", pr.Site, pr.Arg)
	}
	for i := range r.Guards {
		g := &r.Guards[i]
		args := joinOperands(g.Args)
		if g.Expr != nil {
			args = fmt.Sprintf("%s for %s in %s", FormatExpr(g.Expr), g.Var, args)
		}
		p.line(depth+1, "guard %s(%s) -> %s [%s]", g.Kind, args, g.Target, g.Reason)
	}
	p.instrs(r.Body, depth+1)
	if r.Deopt != nil {
		p.line(depth, "deopt %s live(%s):", r.Deopt.Label, strings.Join(r.Deopt.Live, ", "))
		p.instrs(r.Deopt.Body, depth+1)
	}
}

func joinOperands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i, o := range ops {
		parts[i] = o.String()
	}
	return strings.Join(parts, ", ")
}

var exprSymbols = map[ExprOp]string{
	ExprAdd:      "+",
	ExprSub:      "-",
	ExprMul:      "*",
	ExprFloorDiv: "//",
	ExprMod:      "%",
}

// FormatExpr renders e fully parenthesized.
func FormatExpr(e *Expr) string {
	switch e.Op {
	case ExprVar:
		return e.Var
	case ExprConst:
		return e.Const
	case ExprNeg:
		return "-" + FormatExpr(e.L)
	}
	return "(" + FormatExpr(e.L) + " " + exprSymbols[e.Op] + " " + FormatExpr(e.R) + ")"
}
