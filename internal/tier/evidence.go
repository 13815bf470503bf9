package tier

import (
	"math/big"

	"github.com/roach88/tierc/internal/ast"
	"github.com/roach88/tierc/internal/bounds"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/pattern"
)

// Evidence grades what is known about an operand being an int.
type Evidence int

const (
	// EvidenceNone: nothing usable; the construct stays Dynamic.
	EvidenceNone Evidence = iota
	// EvidenceTyped: probably an int; needs an is_int guard.
	EvidenceTyped
	// EvidenceTrusted: an int by a trusted fact; no representation guard.
	EvidenceTrusted
	// EvidenceKnown: a compile-time constant.
	EvidenceKnown
)

func (e Evidence) String() string {
	switch e {
	case EvidenceTyped:
		return "typed"
	case EvidenceTrusted:
		return "trusted"
	case EvidenceKnown:
		return "known"
	}
	return "none"
}

// Value is the graded evidence for one operand.
type Value struct {
	Evidence Evidence
	// Const is set for EvidenceKnown.
	Const *big.Int
	Site  string
}

// Signals reports runtime feedback; world.Snapshot implements it.
type Signals interface {
	StableInt(site string) bool
}

// Classifier grades operands and classifies patterns for one frame.
type Classifier struct {
	Config  Config
	Signals Signals
	Scope   pattern.Scope
}

// Evidence grades n.
func (c *Classifier) Evidence(n *ast.Node) Value {
	v := Value{Site: n.Site()}
	if k, ok := c.Fold(n); ok {
		v.Evidence, v.Const = EvidenceKnown, k
		return v
	}
	if c.Config.HintPolicy != PolicyIgnore && n.Facts != nil && n.Facts.Type == "int" {
		switch n.Facts.TrustLevel() {
		case ast.TrustTrusted:
			if c.Config.HintPolicy == PolicyTrust {
				v.Evidence = EvidenceTrusted
			} else {
				v.Evidence = EvidenceTyped
			}
			return v
		case ast.TrustGuarded:
			v.Evidence = EvidenceTyped
			return v
		}
	}
	if n.Kind == ast.KindCall && n.Func.IsName("len") && len(n.Args) == 1 && c.Scope != nil && c.Scope.Builtin("len") {
		v.Evidence = EvidenceTyped
		return v
	}
	if c.Signals != nil && c.Signals.StableInt(v.Site) {
		v.Evidence = EvidenceTyped
	}
	return v
}

// Fold evaluates n at compile time: integer literals, trusted constant
// facts and integer arithmetic over them. Division or modulo by zero does
// not fold.
func (c *Classifier) Fold(n *ast.Node) (*big.Int, bool) {
	if text, ok := n.IntLiteral(); ok {
		return new(big.Int).SetString(text, 10)
	}
	if f := n.Facts; c.Config.HintPolicy != PolicyIgnore && f != nil && f.Const != "" &&
		f.TrustLevel() == ast.TrustTrusted && (f.Type == "" || f.Type == "int") {
		if v, ok := new(big.Int).SetString(f.Const, 10); ok {
			return v, true
		}
	}
	switch n.Kind {
	case ast.KindUnary:
		if n.Op != "-" {
			return nil, false
		}
		v, ok := c.Fold(n.Operand)
		if !ok {
			return nil, false
		}
		return new(big.Int).Neg(v), true
	case ast.KindBinOp:
		l, ok := c.Fold(n.Left)
		if !ok {
			return nil, false
		}
		r, ok := c.Fold(n.Right)
		if !ok {
			return nil, false
		}
		switch n.Op {
		case "+":
			return new(big.Int).Add(l, r), true
		case "-":
			return new(big.Int).Sub(l, r), true
		case "*":
			return new(big.Int).Mul(l, r), true
		case "//":
			if r.Sign() == 0 {
				return nil, false
			}
			return bounds.FloorDiv(l, r), true
		case "%":
			if r.Sign() == 0 {
				return nil, false
			}
			return bounds.FloorMod(l, r), true
		}
	}
	return nil, false
}

// KnownZeroStep reports whether call is a three-argument range call whose
// step folds to zero.
func (c *Classifier) KnownZeroStep(call *ast.Node) bool {
	if call.Kind != ast.KindCall || len(call.Args) != 3 {
		return false
	}
	if !call.Func.IsName("range") || (c.Scope != nil && !c.Scope.Builtin("range")) {
		return false
	}
	step, ok := c.Fold(call.Args[2])
	return ok && step.Sign() == 0
}

var exprOps = map[string]ir.ExprOp{
	"+":  ir.ExprAdd,
	"-":  ir.ExprSub,
	"*":  ir.ExprMul,
	"//": ir.ExprFloorDiv,
	"%":  ir.ExprMod,
}

// ElemExpr converts a pure element expression over v. Free names with a
// known value become constants; every other name stays a binding.
func (c *Classifier) ElemExpr(n *ast.Node, v string) *ir.Expr {
	switch n.Kind {
	case ast.KindName:
		if n.Name != v {
			if k, ok := c.Fold(n); ok {
				return &ir.Expr{Op: ir.ExprConst, Const: k.String()}
			}
		}
		return &ir.Expr{Op: ir.ExprVar, Var: n.Name}
	case ast.KindConst:
		return &ir.Expr{Op: ir.ExprConst, Const: n.Lit.Text}
	case ast.KindUnary:
		return &ir.Expr{Op: ir.ExprNeg, L: c.ElemExpr(n.Operand, v)}
	}
	return &ir.Expr{Op: exprOps[n.Op], L: c.ElemExpr(n.Left, v), R: c.ElemExpr(n.Right, v)}
}
