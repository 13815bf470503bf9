package ir

import (
	"math/big"
	"strconv"
	"strings"
)

// OperandKind tags an Operand.
type OperandKind string

const (
	OperandVar  OperandKind = "var"
	OperandInt  OperandKind = "int"
	OperandBool OperandKind = "bool"
	OperandNone OperandKind = "none"
	OperandStr  OperandKind = "str"
)

// Operand is either a binding name or an immediate. Integer immediates are
// decimal text so arbitrary-precision source literals survive unchanged.
type Operand struct {
	Kind OperandKind
	Text string
}

// Var references a binding. Names starting with '%' are lowering temps.
func Var(name string) Operand { return Operand{Kind: OperandVar, Text: name} }

// Int is an integer immediate.
func Int(n int64) Operand { return Operand{Kind: OperandInt, Text: strconv.FormatInt(n, 10)} }

// BigInt is an arbitrary-precision integer immediate.
func BigInt(n *big.Int) Operand { return Operand{Kind: OperandInt, Text: n.String()} }

// Bool is a boolean immediate.
func Bool(b bool) Operand { return Operand{Kind: OperandBool, Text: strconv.FormatBool(b)} }

// None is the none immediate.
func None() Operand { return Operand{Kind: OperandNone} }

// Str is a string immediate.
func Str(s string) Operand { return Operand{Kind: OperandStr, Text: s} }

// IsVar reports whether o references a binding.
func (o Operand) IsVar() bool { return o.Kind == OperandVar }

// IsTemp reports whether o references a lowering temp.
func (o Operand) IsTemp() bool { return o.Kind == OperandVar && strings.HasPrefix(o.Text, "%") }

// BigValue returns the value of an integer immediate.
func (o Operand) BigValue() (*big.Int, bool) {
	if o.Kind != OperandInt {
		return nil, false
	}
	return new(big.Int).SetString(o.Text, 10)
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandVar, OperandInt:
		return o.Text
	case OperandBool:
		if o.Text == "true" {
			return "True"
		}
		return "False"
	case OperandNone:
		return "None"
	case OperandStr:
		return strconv.Quote(o.Text)
	}
	return "?" + o.Text
}

// Instr is one canonical primitive.
//
// Field use by op:
//   - loop: Dst is the index binding, Args[0] the trip count (absent only in
//     dynamic code), Body the iteration.
//   - if: Args[0] is a bool, Body the then-branch, Else the else-branch.
//   - call_known: Target is the callee function; call_dyn: Target is the
//     object-protocol operation.
//   - trap: Target is the reason. raise: Target is the exception class with
//     an optional message in Args[0], or empty with an exception object in
//     Args[0].
//   - region: Region holds the nested construct.
type Instr struct {
	Op     Op
	Dst    string
	Args   []Operand
	Target string
	Elem   ElemKind
	Body   []Instr
	Else   []Instr
	Region *LoweringResult
}

// Guard is a pure runtime predicate plus the deopt target taken when it
// does not hold.
type Guard struct {
	Kind GuardKind
	Args []Operand
	// Var and Expr are set for bounds_fit and accum_fits over an element
	// expression: Expr is evaluated with Var ranging over the progression
	// given by the range operands in Args.
	Var    string
	Expr   *Expr
	Target string
	Reason string
	// Site is the feedback key of the operand the guard protects, if any.
	Site string
}

// ExprOp tags an Expr node.
type ExprOp string

const (
	ExprVar      ExprOp = "var"
	ExprConst    ExprOp = "const"
	ExprAdd      ExprOp = "add"
	ExprSub      ExprOp = "sub"
	ExprMul      ExprOp = "mul"
	ExprFloorDiv ExprOp = "floordiv"
	ExprMod      ExprOp = "mod"
	ExprNeg      ExprOp = "neg"
)

// Expr is the integer arithmetic a bound guard reasons about.
type Expr struct {
	Op    ExprOp
	Var   string
	Const string
	L, R  *Expr
}

// DeoptBlock is the dynamic-tier equivalent of a guarded construct.
// Live lists the bindings the DeoptRecord must capture on entry.
type DeoptBlock struct {
	Label string
	Live  []string
	Body  []Instr
}

// Probe asks the runtime to sample the type of Arg under Site.
type Probe struct {
	Site string
	Arg  Operand
}

// LoweringResult is the output for one construct.
type LoweringResult struct {
	Label   string
	Pattern string
	Tier    Tier
	Pos     string
	// Reason explains a dynamic classification of a recognized pattern.
	Reason string
	// Result names the binding holding the construct's value, if it has one.
	Result string
	Guards []Guard
	Probes []Probe
	Body   []Instr
	Deopt  *DeoptBlock
}

// Function is the lowered body of one source function. The module's
// top-level statements lower to a Function named ModuleFunc.
type Function struct {
	Name   string
	Params []string
	Body   []Instr
}

// ModuleFunc names the function holding a module's top-level code.
const ModuleFunc = "<module>"

// Unit is the IR for one compilation unit, in declaration order.
type Unit struct {
	Module    string
	IRVersion string
	Width     int
	Functions []Function
}

// Function returns the named function.
func (u *Unit) Function(name string) (*Function, bool) {
	for i := range u.Functions {
		if u.Functions[i].Name == name {
			return &u.Functions[i], true
		}
	}
	return nil, false
}

// Walk calls fn for every instruction in body, depth first, descending
// into loop and if bodies, regions and deopt blocks.
func Walk(body []Instr, fn func(*Instr)) {
	for i := range body {
		in := &body[i]
		fn(in)
		Walk(in.Body, fn)
		Walk(in.Else, fn)
		if in.Region != nil {
			Walk(in.Region.Body, fn)
			if in.Region.Deopt != nil {
				Walk(in.Region.Deopt.Body, fn)
			}
		}
	}
}

// Regions returns every region in body in pre-order.
func Regions(body []Instr) []*LoweringResult {
	var out []*LoweringResult
	Walk(body, func(in *Instr) {
		if in.Op == OpRegion && in.Region != nil {
			out = append(out, in.Region)
		}
	})
	return out
}
