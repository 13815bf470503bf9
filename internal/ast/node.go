package ast

import "fmt"

// Kind tags a Node.
type Kind string

// Statement kinds.
const (
	KindModule    Kind = "module"
	KindFunc      Kind = "func"
	KindFor       Kind = "for"
	KindWhile     Kind = "while"
	KindIf        Kind = "if"
	KindAssign    Kind = "assign"
	KindAugAssign Kind = "augassign"
	KindExpr      Kind = "expr"
	KindReturn    Kind = "return"
	KindBreak     Kind = "break"
	KindContinue  Kind = "continue"
	KindPass      Kind = "pass"
	KindRaise     Kind = "raise"
)

// Expression kinds.
const (
	KindConst     Kind = "const"
	KindName      Kind = "name"
	KindBinOp     Kind = "binop"
	KindUnary     Kind = "unary"
	KindBoolOp    Kind = "boolop"
	KindCompare   Kind = "compare"
	KindCall      Kind = "call"
	KindAttr      Kind = "attr"
	KindSubscript Kind = "subscript"
	KindTuple     Kind = "tuple"
	KindList      Kind = "list"
	KindDict      Kind = "dict"
	KindListComp  Kind = "listcomp"
	KindDictComp  Kind = "dictcomp"
	KindGenExp    Kind = "genexp"
	// KindComprehension is one "for target in iter if ..." clause.
	KindComprehension Kind = "comprehension"
)

// Pos is a source location.
type Pos struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Literal is a constant. Type is one of int, bool, none, str; Text holds
// the decimal digits of an int (any size), "true"/"false", or the string.
type Literal struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Trust levels of a static fact.
const (
	TrustAdvisory = "advisory"
	TrustGuarded  = "guarded"
	TrustTrusted  = "trusted"
)

// Facts are the static facts attached to a node upstream.
type Facts struct {
	// Type is the inferred primitive type (int, bool, str, list, ...).
	Type string `json:"type,omitempty"`
	// Trust qualifies Type and Const. Empty means guarded.
	Trust string `json:"trust,omitempty"`
	// Const is the decimal value of a known integer constant.
	Const string `json:"const,omitempty"`
	// Site overrides the feedback key of the node.
	Site string `json:"site,omitempty"`
}

// TrustLevel returns Trust with the default applied.
func (f *Facts) TrustLevel() string {
	if f == nil || f.Trust == "" {
		return TrustGuarded
	}
	return f.Trust
}

// Node is one AST node. Which fields are populated depends on Kind:
//
//	module     Name, Body
//	func       Name, Params, Body
//	for        Target, Iter, Body, Orelse
//	while      Test, Body, Orelse
//	if         Test, Body, Orelse
//	assign     Target, Value
//	augassign  Target, Op, Value
//	expr       Value
//	return     Value (optional)
//	raise      Value (optional)
//	const      Lit
//	name       Name
//	binop      Left, Op, Right
//	unary      Op, Operand
//	boolop     Op, Values
//	compare    Left, Ops, Comparators
//	call       Func, Args
//	attr       Obj, Name
//	subscript  Obj, Index
//	tuple      Elts
//	list       Elts
//	dict       Keys, Values
//	listcomp   Elt, Generators
//	genexp     Elt, Generators
//	dictcomp   Key, Value, Generators
//	comprehension Target, Iter, Ifs
type Node struct {
	Kind        Kind     `json:"kind"`
	Pos         Pos      `json:"pos"`
	Name        string   `json:"name,omitempty"`
	Op          string   `json:"op,omitempty"`
	Ops         []string `json:"ops,omitempty"`
	Lit         *Literal `json:"lit,omitempty"`
	Params      []string `json:"params,omitempty"`
	Func        *Node    `json:"func,omitempty"`
	Args        []*Node  `json:"args,omitempty"`
	Target      *Node    `json:"target,omitempty"`
	Iter        *Node    `json:"iter,omitempty"`
	Test        *Node    `json:"test,omitempty"`
	Left        *Node    `json:"left,omitempty"`
	Right       *Node    `json:"right,omitempty"`
	Comparators []*Node  `json:"comparators,omitempty"`
	Operand     *Node    `json:"operand,omitempty"`
	Values      []*Node  `json:"values,omitempty"`
	Keys        []*Node  `json:"keys,omitempty"`
	Obj         *Node    `json:"obj,omitempty"`
	Index       *Node    `json:"index,omitempty"`
	Elts        []*Node  `json:"elts,omitempty"`
	Elt         *Node    `json:"elt,omitempty"`
	Key         *Node    `json:"key,omitempty"`
	Value       *Node    `json:"value,omitempty"`
	Generators  []*Node  `json:"generators,omitempty"`
	Ifs         []*Node  `json:"ifs,omitempty"`
	Body        []*Node  `json:"body,omitempty"`
	Orelse      []*Node  `json:"orelse,omitempty"`
	Facts       *Facts   `json:"facts,omitempty"`
}

// Site is the feedback key of the node: the fact-provided site if any,
// otherwise its source position.
func (n *Node) Site() string {
	if n.Facts != nil && n.Facts.Site != "" {
		return n.Facts.Site
	}
	return n.Pos.String()
}

// IsName reports whether n is a name reference to name.
func (n *Node) IsName(name string) bool {
	return n != nil && n.Kind == KindName && n.Name == name
}

// IntLiteral returns the decimal text of an int constant.
func (n *Node) IntLiteral() (string, bool) {
	if n == nil || n.Kind != KindConst || n.Lit == nil || n.Lit.Type != "int" {
		return "", false
	}
	return n.Lit.Text, true
}

// Funcs returns the function definitions of a module in declaration order.
func (n *Node) Funcs() []*Node {
	var out []*Node
	for _, s := range n.Body {
		if s.Kind == KindFunc {
			out = append(out, s)
		}
	}
	return out
}
