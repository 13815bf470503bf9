// Package testutil builds annotated ASTs for tests.
//
// Builders return fresh nodes without positions; Module numbers every node
// in pre-order so that identical trees get identical positions and sites.
package testutil

import (
	"strconv"

	"github.com/roach88/tierc/internal/ast"
)

// Module builds a module and assigns positions.
func Module(name string, body ...*ast.Node) *ast.Node {
	mod := &ast.Node{Kind: ast.KindModule, Name: name, Body: body}
	Number(mod, name+".py")
	return mod
}

// Number assigns pre-order positions to nodes that have none.
func Number(root *ast.Node, file string) {
	line := 0
	ast.Walk(root, func(n *ast.Node) bool {
		line++
		if n.Pos.Line == 0 {
			n.Pos = ast.Pos{File: file, Line: line, Col: 1}
		}
		return true
	})
}

// Func defines a function.
func Func(name string, params []string, body ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindFunc, Name: name, Params: params, Body: body}
}

// Name references a binding.
func Name(name string) *ast.Node {
	return &ast.Node{Kind: ast.KindName, Name: name}
}

// Int is an integer literal.
func Int(v int64) *ast.Node {
	return BigInt(strconv.FormatInt(v, 10))
}

// BigInt is an integer literal given as decimal text.
func BigInt(text string) *ast.Node {
	return &ast.Node{Kind: ast.KindConst, Lit: &ast.Literal{Type: "int", Text: text}}
}

// Bool is a boolean literal.
func Bool(b bool) *ast.Node {
	return &ast.Node{Kind: ast.KindConst, Lit: &ast.Literal{Type: "bool", Text: strconv.FormatBool(b)}}
}

// None is the none literal.
func None() *ast.Node {
	return &ast.Node{Kind: ast.KindConst, Lit: &ast.Literal{Type: "none"}}
}

// Str is a string literal.
func Str(s string) *ast.Node {
	return &ast.Node{Kind: ast.KindConst, Lit: &ast.Literal{Type: "str", Text: s}}
}

// Call calls fn.
func Call(fn *ast.Node, args ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindCall, Func: fn, Args: args}
}

// CallName calls the named function.
func CallName(name string, args ...*ast.Node) *ast.Node {
	return Call(Name(name), args...)
}

// Range is range(args...).
func Range(args ...*ast.Node) *ast.Node {
	return CallName("range", args...)
}

// Method calls obj.name(args...).
func Method(obj *ast.Node, name string, args ...*ast.Node) *ast.Node {
	return Call(&ast.Node{Kind: ast.KindAttr, Obj: obj, Name: name}, args...)
}

// Bin is a binary arithmetic expression.
func Bin(l *ast.Node, op string, r *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindBinOp, Left: l, Op: op, Right: r}
}

// Neg is unary minus.
func Neg(x *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindUnary, Op: "-", Operand: x}
}

// Not is logical negation.
func Not(x *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindUnary, Op: "not", Operand: x}
}

// BoolOp is a short-circuit and/or.
func BoolOp(op string, values ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindBoolOp, Op: op, Values: values}
}

// Cmp is a single comparison.
func Cmp(l *ast.Node, op string, r *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindCompare, Left: l, Ops: []string{op}, Comparators: []*ast.Node{r}}
}

// Subscript is obj[index].
func Subscript(obj, index *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindSubscript, Obj: obj, Index: index}
}

// Tuple is a tuple display.
func Tuple(elts ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindTuple, Elts: elts}
}

// List is a list display.
func List(elts ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindList, Elts: elts}
}

// Dict is a dict display of alternating keys and values.
func Dict(kv ...*ast.Node) *ast.Node {
	d := &ast.Node{Kind: ast.KindDict}
	for i := 0; i+1 < len(kv); i += 2 {
		d.Keys = append(d.Keys, kv[i])
		d.Values = append(d.Values, kv[i+1])
	}
	return d
}

// Gen is one comprehension clause.
func Gen(target, iter *ast.Node, ifs ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindComprehension, Target: target, Iter: iter, Ifs: ifs}
}

// ListComp is [elt for target in iter].
func ListComp(elt *ast.Node, gens ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindListComp, Elt: elt, Generators: gens}
}

// GenExp is (elt for target in iter).
func GenExp(elt *ast.Node, gens ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindGenExp, Elt: elt, Generators: gens}
}

// DictComp is {key: value for target in iter}.
func DictComp(key, value *ast.Node, gens ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindDictComp, Key: key, Value: value, Generators: gens}
}

// For is a for statement.
func For(target, iter *ast.Node, body ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindFor, Target: target, Iter: iter, Body: body}
}

// ForElse is a for statement with an else clause.
func ForElse(target, iter *ast.Node, body, orelse []*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindFor, Target: target, Iter: iter, Body: body, Orelse: orelse}
}

// While is a while statement.
func While(test *ast.Node, body ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindWhile, Test: test, Body: body}
}

// If is an if statement.
func If(test *ast.Node, body []*ast.Node, orelse ...*ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindIf, Test: test, Body: body, Orelse: orelse}
}

// Assign binds target to value.
func Assign(target, value *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindAssign, Target: target, Value: value}
}

// Set is Assign to a name.
func Set(name string, value *ast.Node) *ast.Node {
	return Assign(Name(name), value)
}

// Aug is an augmented assignment.
func Aug(target *ast.Node, op string, value *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindAugAssign, Target: target, Op: op, Value: value}
}

// Expr is an expression statement.
func Expr(value *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindExpr, Value: value}
}

// Print is an expression statement calling print.
func Print(args ...*ast.Node) *ast.Node {
	return Expr(CallName("print", args...))
}

// Return returns value, or None when value is nil.
func Return(value *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindReturn, Value: value}
}

// Raise raises exc.
func Raise(exc *ast.Node) *ast.Node {
	return &ast.Node{Kind: ast.KindRaise, Value: exc}
}

// Break is a break statement.
func Break() *ast.Node { return &ast.Node{Kind: ast.KindBreak} }

// Continue is a continue statement.
func Continue() *ast.Node { return &ast.Node{Kind: ast.KindContinue} }

// Pass is a pass statement.
func Pass() *ast.Node { return &ast.Node{Kind: ast.KindPass} }

// Typed attaches an inferred type with the given trust level to n.
func Typed(n *ast.Node, typ, trust string) *ast.Node {
	if n.Facts == nil {
		n.Facts = &ast.Facts{}
	}
	n.Facts.Type = typ
	n.Facts.Trust = trust
	return n
}

// IntHint marks n as a guarded int.
func IntHint(n *ast.Node) *ast.Node {
	return Typed(n, "int", ast.TrustGuarded)
}

// TrustedInt marks n as a trusted int.
func TrustedInt(n *ast.Node) *ast.Node {
	return Typed(n, "int", ast.TrustTrusted)
}

// KnownConst marks n as a trusted integer constant.
func KnownConst(n *ast.Node, value int64) *ast.Node {
	Typed(n, "int", ast.TrustTrusted)
	n.Facts.Const = strconv.FormatInt(value, 10)
	return n
}

// WithSite sets the feedback site of n.
func WithSite(n *ast.Node, site string) *ast.Node {
	if n.Facts == nil {
		n.Facts = &ast.Facts{}
	}
	n.Facts.Site = site
	return n
}
