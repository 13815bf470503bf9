package vm

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/ranges"
)

// Value is a runtime value. Integers are *big.Int and are never mutated
// after creation.
type Value any

// Bool is a boolean. It is an int for arithmetic, never for typed code.
type Bool bool

// NoneType is the type of None.
type NoneType struct{}

// None is the none value.
var None = NoneType{}

// Str is a string.
type Str string

// List is a mutable sequence.
type List struct {
	Items []Value
}

// Tuple is an immutable sequence. Tuples built by alloc_tuple become
// immutable once every slot has been set.
type Tuple struct {
	Items  []Value
	filled []bool
	sealed bool
}

func newTuple(items []Value) *Tuple {
	return &Tuple{Items: items, sealed: true}
}

// Dict is an insertion-ordered mapping.
type Dict struct {
	keys  []Value
	vals  []Value
	index map[string]int
}

func newDict() *Dict {
	return &Dict{index: make(map[string]int)}
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Get returns the value stored under k.
func (d *Dict) Get(k Value) (Value, bool, error) {
	h, err := hashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[h]
	if !ok {
		return nil, false, nil
	}
	return d.vals[i], true, nil
}

// Set stores v under k, keeping the position of an existing key.
func (d *Dict) Set(k, v Value) error {
	h, err := hashKey(k)
	if err != nil {
		return err
	}
	if i, ok := d.index[h]; ok {
		d.vals[i] = v
		return nil
	}
	d.index[h] = len(d.keys)
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, v)
	return nil
}

// Range is a range object or a normalized triplet.
type Range struct {
	B ranges.Big
	// word is the int64 form, set when B fits 64 bits.
	word *ranges.Triplet
}

func newRange(b ranges.Big) *Range {
	r := &Range{B: b}
	if t, ok := b.Triplet(); ok {
		r.word = &t
	}
	return r
}

// Function is a module function.
type Function struct {
	Fn *ir.Function
}

// Builtin is a builtin function.
type Builtin struct {
	Name string
}

// ExcClass is an exception class.
type ExcClass struct {
	Name string
}

// BoundMethod is obj.name looked up without calling it.
type BoundMethod struct {
	Obj  Value
	Name string
}

// Iterator yields values until exhausted.
type Iterator struct {
	kind string
	next func() (Value, bool, error)
}

// stop is what next returns for an exhausted iterator.
type stop struct{}

func isInt(v Value) bool {
	_, ok := v.(*big.Int)
	return ok
}

// asInt returns the integer value of an int or a bool.
func asInt(v Value) (*big.Int, bool) {
	switch v := v.(type) {
	case *big.Int:
		return v, true
	case Bool:
		if v {
			return big.NewInt(1), true
		}
		return big.NewInt(0), true
	}
	return nil, false
}

// TypeName returns the source-level type name of v.
func TypeName(v Value) string {
	switch v := v.(type) {
	case *big.Int:
		return "int"
	case Bool:
		return "bool"
	case NoneType:
		return "NoneType"
	case Str:
		return "str"
	case *List:
		return "list"
	case *Tuple:
		return "tuple"
	case *Dict:
		return "dict"
	case *Range:
		return "range"
	case *Function:
		return "function"
	case *Builtin, *BoundMethod:
		return "builtin_function_or_method"
	case *ExcClass:
		return "type"
	case *Exception:
		return v.Class
	case *Iterator:
		return v.kind
	}
	return fmt.Sprintf("%T", v)
}

// Repr renders v the way the source language's repr does.
func Repr(v Value) string {
	switch v := v.(type) {
	case *big.Int:
		return v.String()
	case Bool:
		if v {
			return "True"
		}
		return "False"
	case NoneType:
		return "None"
	case Str:
		return quote(string(v))
	case *List:
		return "[" + joinRepr(v.Items) + "]"
	case *Tuple:
		if len(v.Items) == 1 {
			return "(" + Repr(v.Items[0]) + ",)"
		}
		return "(" + joinRepr(v.Items) + ")"
	case *Dict:
		parts := make([]string, len(v.keys))
		for i := range v.keys {
			parts[i] = Repr(v.keys[i]) + ": " + Repr(v.vals[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Range:
		if v.B.Step.Cmp(big.NewInt(1)) == 0 {
			return fmt.Sprintf("range(%s, %s)", v.B.Start, v.B.Stop)
		}
		return fmt.Sprintf("range(%s, %s, %s)", v.B.Start, v.B.Stop, v.B.Step)
	case *Function:
		return "<function " + v.Fn.Name + ">"
	case *Builtin:
		return "<built-in function " + v.Name + ">"
	case *BoundMethod:
		return fmt.Sprintf("<built-in method %s of %s object>", v.Name, TypeName(v.Obj))
	case *ExcClass:
		return "<class '" + v.Name + "'>"
	case *Exception:
		if v.Msg == "" {
			return v.Class + "()"
		}
		return v.Class + "(" + quote(v.Msg) + ")"
	case *Iterator:
		return "<" + v.kind + " object>"
	}
	return fmt.Sprintf("<%T>", v)
}

// String renders v the way print does.
func String(v Value) string {
	switch v := v.(type) {
	case Str:
		return string(v)
	case *Exception:
		return v.Msg
	}
	return Repr(v)
}

func joinRepr(items []Value) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = Repr(it)
	}
	return strings.Join(parts, ", ")
}

func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

// Truth is the truthiness of v.
func Truth(v Value) bool {
	switch v := v.(type) {
	case *big.Int:
		return v.Sign() != 0
	case Bool:
		return bool(v)
	case NoneType:
		return false
	case Str:
		return v != ""
	case *List:
		return len(v.Items) > 0
	case *Tuple:
		return len(v.Items) > 0
	case *Dict:
		return v.Len() > 0
	case *Range:
		return !v.B.Empty()
	}
	return true
}

// Equal is source-level ==.
func Equal(a, b Value) bool {
	if x, ok := asInt(a); ok {
		y, ok := asInt(b)
		return ok && x.Cmp(y) == 0
	}
	switch a := a.(type) {
	case NoneType:
		_, ok := b.(NoneType)
		return ok
	case Str:
		s, ok := b.(Str)
		return ok && a == s
	case *List:
		l, ok := b.(*List)
		return ok && equalItems(a.Items, l.Items)
	case *Tuple:
		t, ok := b.(*Tuple)
		return ok && equalItems(a.Items, t.Items)
	case *Dict:
		d, ok := b.(*Dict)
		if !ok || a.Len() != d.Len() {
			return false
		}
		for i, k := range a.keys {
			v, found, err := d.Get(k)
			if err != nil || !found || !Equal(a.vals[i], v) {
				return false
			}
		}
		return true
	case *Range:
		r, ok := b.(*Range)
		if !ok {
			return false
		}
		n := a.B.Len()
		if n.Cmp(r.B.Len()) != 0 {
			return false
		}
		if n.Sign() == 0 {
			return true
		}
		if a.B.Start.Cmp(r.B.Start) != 0 {
			return false
		}
		return n.Cmp(big.NewInt(1)) == 0 || a.B.Step.Cmp(r.B.Step) == 0
	case *Function:
		f, ok := b.(*Function)
		return ok && a.Fn == f.Fn
	case *Builtin:
		f, ok := b.(*Builtin)
		return ok && a.Name == f.Name
	case *ExcClass:
		c, ok := b.(*ExcClass)
		return ok && a.Name == c.Name
	}
	return a == b
}

func equalItems(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// hashKey maps a hashable value to a string so that equal values share a
// key. True and 1 are the same key.
func hashKey(v Value) (string, error) {
	if x, ok := asInt(v); ok {
		return "i" + x.String(), nil
	}
	switch v := v.(type) {
	case NoneType:
		return "n", nil
	case Str:
		return "s" + strconv.Quote(string(v)), nil
	case *Tuple:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			k, err := hashKey(it)
			if err != nil {
				return "", err
			}
			parts[i] = k
		}
		return "t(" + strings.Join(parts, ",") + ")", nil
	case *Range:
		return "r" + Repr(v), nil
	case *Function:
		return "f" + v.Fn.Name, nil
	case *Builtin:
		return "b" + v.Name, nil
	case *ExcClass:
		return "c" + v.Name, nil
	}
	return "", newExc(ExcTypeError, "unhashable type: '%s'", TypeName(v))
}
