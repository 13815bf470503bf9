// Package pattern recognizes the idiom catalogue in annotated ASTs.
//
// The catalogue is a closed set of variants. Match tries them in a fixed
// order, most specific first, and returns the first whose structural
// preconditions all hold; Unrecognized always matches. A variant either
// matches completely or not at all.
package pattern

import "github.com/roach88/tierc/internal/ast"

// Kind names a catalogue entry.
type Kind string

// The catalogue in priority order.
const (
	KindMaterialize   Kind = "materialize"
	KindReduction     Kind = "reduction"
	KindAnyAll        Kind = "any_all"
	KindComprehension Kind = "comprehension"
	KindAccumulate    Kind = "accumulate"
	KindEnumerate     Kind = "enumerate"
	KindZip           Kind = "zip"
	KindCountedWhile  Kind = "counted_while"
	KindCountedFor    Kind = "counted_for"
	KindUnrecognized  Kind = "unrecognized"
)

// Catalogue lists every kind in match priority order.
var Catalogue = []Kind{
	KindMaterialize,
	KindReduction,
	KindAnyAll,
	KindComprehension,
	KindAccumulate,
	KindEnumerate,
	KindZip,
	KindCountedWhile,
	KindCountedFor,
	KindUnrecognized,
}

// Role says what an operand means to its pattern.
type Role string

const (
	RoleStart     Role = "start"
	RoleStop      Role = "stop"
	RoleStep      Role = "step"
	RoleEnumStart Role = "enum_start"
	RoleSumStart  Role = "sum_start"
	RoleAcc       Role = "acc"
	RoleIndex     Role = "index"
	RoleFree      Role = "free"
)

// Operand is a value the pattern depends on, in source evaluation order.
type Operand struct {
	Role Role
	Node *ast.Node
}

// Default marks an omitted operand: start 0, step 1, enumerate start 0 or
// sum start 0.
const Default = -1

// Range is one range(...) call; fields index the pattern's operands.
type Range struct {
	Call              *ast.Node
	Start, Stop, Step int
}

// Pattern is a matched catalogue entry.
type Pattern interface {
	Kind() Kind
	// Node is the matched statement or expression.
	Node() *ast.Node
	Operands() []Operand
	Ranges() []Range
	sealed()
}

type base struct {
	node     *ast.Node
	operands []Operand
	ranges   []Range
}

func (b *base) Node() *ast.Node     { return b.node }
func (b *base) Operands() []Operand { return b.operands }
func (b *base) Ranges() []Range     { return b.ranges }
func (*base) sealed()               {}

// Source is what a Materialize iterates.
type Source string

const (
	SourceRange     Source = "range"
	SourceZip       Source = "zip"
	SourceEnumerate Source = "enumerate"
)

// Materialize is list(...) or tuple(...) of a range, a zip of ranges, or
// an enumerate of a range.
type Materialize struct {
	base
	Container string
	Source    Source
	EnumStart int
}

// Reduction is sum(...) or len(...) of a range, or sum of a generator
// over a range. Elt is nil when the range elements are summed directly.
type Reduction struct {
	base
	Func     string
	Var      string
	Elt      *ast.Node
	SumStart int
}

// AnyAll is any(...) or all(...) of a range or of a generator over a
// range. Elt is nil when the range elements are tested directly.
type AnyAll struct {
	base
	Func string
	Var  string
	Elt  *ast.Node
}

// Comprehension is a list or dict comprehension with one unfiltered
// generator over a range.
type Comprehension struct {
	base
	Dict bool
	Var  string
	// Elt is the list element; Key and Value the dict entry.
	Elt        *ast.Node
	Key, Value *ast.Node
}

// Accumulate is "for x in range(...): acc += x".
type Accumulate struct {
	base
	Var string
	Acc string
	// AccOperand indexes the accumulator among the operands.
	AccOperand int
}

// Enumerate is "for i, v in enumerate(range(...)[, start])".
type Enumerate struct {
	base
	Index, Value string
	EnumStart    int
	Body         []*ast.Node
}

// Zip is "for a, b, ... in zip(range(...), range(...), ...)".
type Zip struct {
	base
	Vars []string
	Body []*ast.Node
}

// CountedWhile is "while i < stop: ...; i += 1" where the body neither
// rebinds i or stop nor continues. Body excludes the increment.
type CountedWhile struct {
	base
	Var  string
	Body []*ast.Node
}

// CountedFor is "for x in range(...)" without an else clause.
type CountedFor struct {
	base
	Var  string
	Body []*ast.Node
}

// Unrecognized is the catch-all.
type Unrecognized struct {
	base
}

func (*Materialize) Kind() Kind   { return KindMaterialize }
func (*Reduction) Kind() Kind     { return KindReduction }
func (*AnyAll) Kind() Kind        { return KindAnyAll }
func (*Comprehension) Kind() Kind { return KindComprehension }
func (*Accumulate) Kind() Kind    { return KindAccumulate }
func (*Enumerate) Kind() Kind     { return KindEnumerate }
func (*Zip) Kind() Kind           { return KindZip }
func (*CountedWhile) Kind() Kind  { return KindCountedWhile }
func (*CountedFor) Kind() Kind    { return KindCountedFor }
func (*Unrecognized) Kind() Kind  { return KindUnrecognized }

// Elems returns the element expressions of p together with the binding
// they iterate over. Patterns without element expressions return nil.
func Elems(p Pattern) (string, []*ast.Node) {
	switch p := p.(type) {
	case *Reduction:
		if p.Elt != nil {
			return p.Var, []*ast.Node{p.Elt}
		}
	case *AnyAll:
		if p.Elt == nil {
			return "", nil
		}
		if p.Elt.Kind == ast.KindCompare {
			return p.Var, []*ast.Node{p.Elt.Left, p.Elt.Comparators[0]}
		}
		return p.Var, []*ast.Node{p.Elt}
	case *Comprehension:
		if p.Dict {
			return p.Var, []*ast.Node{p.Key, p.Value}
		}
		return p.Var, []*ast.Node{p.Elt}
	}
	return "", nil
}
