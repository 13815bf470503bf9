package vm

import (
	"math/big"
	"strings"

	"github.com/roach88/tierc/internal/bounds"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/lower"
)

// maxRepeat caps the size of a sequence built by repetition.
const maxRepeat = 1 << 24

var opSymbols = map[string]string{
	lower.DynAdd:        "+",
	lower.DynInplaceAdd: "+=",
	lower.DynSub:        "-",
	lower.DynMul:        "*",
	lower.DynFloorDiv:   "//",
	lower.DynMod:        "%",
	lower.DynLt:         "<",
	lower.DynLe:         "<=",
	lower.DynGt:         ">",
	lower.DynGe:         ">=",
}

// dispatch runs one object-protocol operation.
func (m *Machine) dispatch(target string, args []Value) (Value, error) {
	switch target {
	case lower.DynAdd, lower.DynSub, lower.DynMul, lower.DynFloorDiv, lower.DynMod:
		if err := arity(target, args, 2); err != nil {
			return nil, err
		}
		return binary(target, args[0], args[1])
	case lower.DynInplaceAdd:
		if err := arity(target, args, 2); err != nil {
			return nil, err
		}
		if l, ok := args[0].(*List); ok {
			items, err := m.collect(args[1])
			if err != nil {
				return nil, err
			}
			l.Items = append(l.Items, items...)
			return l, nil
		}
		return binary(lower.DynAdd, args[0], args[1])
	case lower.DynNeg:
		if err := arity(target, args, 1); err != nil {
			return nil, err
		}
		x, ok := asInt(args[0])
		if !ok {
			return nil, newExc(ExcTypeError, "bad operand type for unary -: '%s'", TypeName(args[0]))
		}
		return new(big.Int).Neg(x), nil
	case lower.DynLt, lower.DynLe, lower.DynGt, lower.DynGe:
		if err := arity(target, args, 2); err != nil {
			return nil, err
		}
		b, err := compare(target, args[0], args[1])
		return Bool(b), err
	case lower.DynEq:
		if err := arity(target, args, 2); err != nil {
			return nil, err
		}
		return Bool(Equal(args[0], args[1])), nil
	case lower.DynNe:
		if err := arity(target, args, 2); err != nil {
			return nil, err
		}
		return Bool(!Equal(args[0], args[1])), nil
	case lower.DynContains:
		if err := arity(target, args, 2); err != nil {
			return nil, err
		}
		b, err := m.contains(args[0], args[1])
		return Bool(b), err
	case lower.DynTruth:
		if err := arity(target, args, 1); err != nil {
			return nil, err
		}
		return Bool(Truth(args[0])), nil
	case lower.DynIter:
		if err := arity(target, args, 1); err != nil {
			return nil, err
		}
		return iterate(args[0])
	case lower.DynNext:
		if err := arity(target, args, 1); err != nil {
			return nil, err
		}
		it, ok := args[0].(*Iterator)
		if !ok {
			return nil, newExc(ExcTypeError, "'%s' object is not an iterator", TypeName(args[0]))
		}
		v, more, err := it.next()
		if err != nil || !more {
			return stop{}, err
		}
		return v, nil
	case lower.DynIsStop:
		if err := arity(target, args, 1); err != nil {
			return nil, err
		}
		_, ok := args[0].(stop)
		return Bool(ok), nil
	case lower.DynUnpack:
		if err := arity(target, args, 2); err != nil {
			return nil, err
		}
		return m.unpack(args[0], args[1])
	case lower.DynGetItem:
		if err := arity(target, args, 2); err != nil {
			return nil, err
		}
		return getItem(args[0], args[1])
	case lower.DynSetItem:
		if err := arity(target, args, 3); err != nil {
			return nil, err
		}
		return None, setItem(args[0], args[1], args[2])
	case lower.DynGetAttr:
		if err := arity(target, args, 2); err != nil {
			return nil, err
		}
		name := String(args[1])
		if !hasMethod(args[0], name) {
			return nil, newExc(ExcAttribute, "'%s' object has no attribute '%s'", TypeName(args[0]), name)
		}
		return &BoundMethod{Obj: args[0], Name: name}, nil
	case lower.DynMethod:
		if len(args) < 2 {
			return nil, m.trap(ir.TrapType, "method without receiver")
		}
		return m.method(args[0], String(args[1]), args[2:])
	case lower.DynBuiltin:
		if err := arity(target, args, 1); err != nil {
			return nil, err
		}
		v, ok := lookupBuiltin(String(args[0]))
		if !ok {
			return nil, m.trap(ir.TrapUnbound, "no builtin "+String(args[0]))
		}
		return v, nil
	case lower.DynLoadGlobal:
		if err := arity(target, args, 1); err != nil {
			return nil, err
		}
		return m.global(String(args[0]))
	case lower.DynCall:
		if len(args) < 1 {
			return nil, m.trap(ir.TrapType, "call without callee")
		}
		return m.call(args[0], args[1:])
	case lower.DynFunction:
		if err := arity(target, args, 1); err != nil {
			return nil, err
		}
		fn, ok := m.funcs[String(args[0])]
		if !ok {
			return nil, m.trap(ir.TrapUnbound, "no function "+String(args[0]))
		}
		return &Function{Fn: fn}, nil
	case lower.DynList:
		return &List{Items: append([]Value(nil), args...)}, nil
	case lower.DynTuple:
		return newTuple(append([]Value(nil), args...)), nil
	case lower.DynDict:
		d := newDict()
		for i := 0; i+1 < len(args); i += 2 {
			if err := d.Set(args[i], args[i+1]); err != nil {
				return nil, err
			}
		}
		return d, nil
	}
	return nil, m.trap(ir.TrapType, "unknown operation "+target)
}

func arity(target string, args []Value, n int) error {
	if len(args) != n {
		return &TrapError{Reason: ir.TrapType, Detail: target + " arity"}
	}
	return nil
}

func unsupported(target string, a, b Value) error {
	return newExc(ExcTypeError, "unsupported operand type(s) for %s: '%s' and '%s'",
		opSymbols[target], TypeName(a), TypeName(b))
}

// binary is the arithmetic protocol.
func binary(target string, a, b Value) (Value, error) {
	x, xok := asInt(a)
	y, yok := asInt(b)
	if xok && yok {
		switch target {
		case lower.DynAdd:
			return new(big.Int).Add(x, y), nil
		case lower.DynSub:
			return new(big.Int).Sub(x, y), nil
		case lower.DynMul:
			return new(big.Int).Mul(x, y), nil
		case lower.DynFloorDiv:
			if y.Sign() == 0 {
				return nil, &Exception{Class: ExcZeroDivision, Msg: ir.MsgFloorDivZero}
			}
			return bounds.FloorDiv(x, y), nil
		case lower.DynMod:
			if y.Sign() == 0 {
				return nil, &Exception{Class: ExcZeroDivision, Msg: ir.MsgModZero}
			}
			return bounds.FloorMod(x, y), nil
		}
	}
	switch target {
	case lower.DynAdd:
		switch a := a.(type) {
		case Str:
			if s, ok := b.(Str); ok {
				return a + s, nil
			}
			return nil, newExc(ExcTypeError, `can only concatenate str (not "%s") to str`, TypeName(b))
		case *List:
			if l, ok := b.(*List); ok {
				items := append(append([]Value(nil), a.Items...), l.Items...)
				return &List{Items: items}, nil
			}
			return nil, newExc(ExcTypeError, `can only concatenate list (not "%s") to list`, TypeName(b))
		case *Tuple:
			if t, ok := b.(*Tuple); ok {
				return newTuple(append(append([]Value(nil), a.Items...), t.Items...)), nil
			}
			return nil, newExc(ExcTypeError, `can only concatenate tuple (not "%s") to tuple`, TypeName(b))
		}
	case lower.DynMul:
		if xok {
			return repeat(b, x, a)
		}
		if yok {
			return repeat(a, y, b)
		}
	}
	return nil, unsupported(target, a, b)
}

// repeat is seq * n.
func repeat(seq Value, n *big.Int, other Value) (Value, error) {
	count := 0
	if n.Sign() > 0 {
		if !n.IsInt64() || n.Int64() > maxRepeat {
			return nil, newExc(ExcMemory, "")
		}
		count = int(n.Int64())
	}
	var items []Value
	switch s := seq.(type) {
	case Str:
		if len(s)*count > maxRepeat {
			return nil, newExc(ExcMemory, "")
		}
		return Str(strings.Repeat(string(s), count)), nil
	case *List:
		items = s.Items
	case *Tuple:
		items = s.Items
	default:
		return nil, unsupported(lower.DynMul, other, seq)
	}
	if len(items)*count > maxRepeat {
		return nil, newExc(ExcMemory, "")
	}
	out := make([]Value, 0, len(items)*count)
	for i := 0; i < count; i++ {
		out = append(out, items...)
	}
	if _, ok := seq.(*Tuple); ok {
		return newTuple(out), nil
	}
	return &List{Items: out}, nil
}

// compare is the ordering protocol.
func compare(target string, a, b Value) (bool, error) {
	c, err := order(target, a, b)
	if err != nil {
		return false, err
	}
	switch target {
	case lower.DynLt:
		return c < 0, nil
	case lower.DynLe:
		return c <= 0, nil
	case lower.DynGt:
		return c > 0, nil
	}
	return c >= 0, nil
}

func order(target string, a, b Value) (int, error) {
	if x, ok := asInt(a); ok {
		if y, ok := asInt(b); ok {
			return x.Cmp(y), nil
		}
	}
	var xs, ys []Value
	switch a := a.(type) {
	case Str:
		if s, ok := b.(Str); ok {
			return strings.Compare(string(a), string(s)), nil
		}
	case *List:
		if l, ok := b.(*List); ok {
			xs, ys = a.Items, l.Items
			return orderItems(target, xs, ys)
		}
	case *Tuple:
		if t, ok := b.(*Tuple); ok {
			xs, ys = a.Items, t.Items
			return orderItems(target, xs, ys)
		}
	}
	return 0, newExc(ExcTypeError, "'%s' not supported between instances of '%s' and '%s'",
		opSymbols[target], TypeName(a), TypeName(b))
}

func orderItems(target string, xs, ys []Value) (int, error) {
	for i := 0; i < len(xs) && i < len(ys); i++ {
		if Equal(xs[i], ys[i]) {
			continue
		}
		return order(target, xs[i], ys[i])
	}
	switch {
	case len(xs) < len(ys):
		return -1, nil
	case len(xs) > len(ys):
		return 1, nil
	}
	return 0, nil
}

func (m *Machine) contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case *List:
		return containsItem(c.Items, item), nil
	case *Tuple:
		return containsItem(c.Items, item), nil
	case *Dict:
		_, ok, err := c.Get(item)
		return ok, err
	case Str:
		s, ok := item.(Str)
		if !ok {
			return false, newExc(ExcTypeError, "'in <string>' requires string as left operand, not %s", TypeName(item))
		}
		return strings.Contains(string(c), string(s)), nil
	case *Range:
		if x, ok := asInt(item); ok {
			return c.B.Contains(x), nil
		}
		return false, nil
	case *Iterator:
		for {
			if err := m.tick(); err != nil {
				return false, err
			}
			v, more, err := c.next()
			if err != nil || !more {
				return false, err
			}
			if Equal(v, item) {
				return true, nil
			}
		}
	}
	return false, newExc(ExcTypeError, "argument of type '%s' is not iterable", TypeName(container))
}

func containsItem(items []Value, item Value) bool {
	for _, it := range items {
		if Equal(it, item) {
			return true
		}
	}
	return false
}

// iterate is iter(v).
func iterate(v Value) (*Iterator, error) {
	switch v := v.(type) {
	case *Iterator:
		return v, nil
	case *List:
		i := 0
		return &Iterator{kind: "list_iterator", next: func() (Value, bool, error) {
			if i >= len(v.Items) {
				return nil, false, nil
			}
			i++
			return v.Items[i-1], true, nil
		}}, nil
	case *Tuple:
		return sliceIter("tuple_iterator", v.Items), nil
	case *Dict:
		return sliceIter("dict_keyiterator", append([]Value(nil), v.keys...)), nil
	case Str:
		rs := []rune(string(v))
		items := make([]Value, len(rs))
		for i, r := range rs {
			items[i] = Str(string(r))
		}
		return sliceIter("str_ascii_iterator", items), nil
	case *Range:
		n := v.B.Len()
		k := new(big.Int)
		return &Iterator{kind: "range_iterator", next: func() (Value, bool, error) {
			if k.Cmp(n) >= 0 {
				return nil, false, nil
			}
			x := v.B.At(k)
			k = new(big.Int).Add(k, big.NewInt(1))
			return x, true, nil
		}}, nil
	}
	return nil, newExc(ExcTypeError, "'%s' object is not iterable", TypeName(v))
}

func sliceIter(kind string, items []Value) *Iterator {
	i := 0
	return &Iterator{kind: kind, next: func() (Value, bool, error) {
		if i >= len(items) {
			return nil, false, nil
		}
		i++
		return items[i-1], true, nil
	}}
}

// collect drains an iterable.
func (m *Machine) collect(v Value) ([]Value, error) {
	it, err := iterate(v)
	if err != nil {
		return nil, err
	}
	var out []Value
	for {
		if err := m.tick(); err != nil {
			return nil, err
		}
		x, more, err := it.next()
		if err != nil {
			return nil, err
		}
		if !more {
			return out, nil
		}
		out = append(out, x)
	}
}

// unpack destructures v into exactly n values.
func (m *Machine) unpack(v, n Value) (Value, error) {
	want, ok := n.(*big.Int)
	if !ok {
		return nil, m.trap(ir.TrapType, "unpack count")
	}
	if _, isIt := v.(*Iterator); !isIt {
		if _, err := iterate(v); err != nil {
			return nil, newExc(ExcTypeError, "cannot unpack non-iterable %s object", TypeName(v))
		}
	}
	items, err := m.collect(v)
	if err != nil {
		return nil, err
	}
	switch c := big.NewInt(int64(len(items))).Cmp(want); {
	case c < 0:
		return nil, newExc(ExcValue, "not enough values to unpack (expected %s, got %d)", want, len(items))
	case c > 0:
		return nil, newExc(ExcValue, "too many values to unpack (expected %s)", want)
	}
	return newTuple(items), nil
}

// index normalizes a sequence index.
func index(kind string, idx Value, n int, assign bool) (int, error) {
	x, ok := asInt(idx)
	if !ok {
		return 0, newExc(ExcTypeError, "%s indices must be integers or slices, not %s", kind, TypeName(idx))
	}
	if x.Sign() < 0 {
		x = new(big.Int).Add(x, big.NewInt(int64(n)))
	}
	if x.Sign() < 0 || x.Cmp(big.NewInt(int64(n))) >= 0 {
		if assign {
			return 0, newExc(ExcIndex, "%s assignment index out of range", kind)
		}
		return 0, newExc(ExcIndex, "%s index out of range", kind)
	}
	return int(x.Int64()), nil
}

func getItem(obj, idx Value) (Value, error) {
	switch o := obj.(type) {
	case *List:
		i, err := index("list", idx, len(o.Items), false)
		if err != nil {
			return nil, err
		}
		return o.Items[i], nil
	case *Tuple:
		i, err := index("tuple", idx, len(o.Items), false)
		if err != nil {
			return nil, err
		}
		return o.Items[i], nil
	case Str:
		rs := []rune(string(o))
		i, err := index("string", idx, len(rs), false)
		if err != nil {
			return nil, err
		}
		return Str(string(rs[i])), nil
	case *Dict:
		v, ok, err := o.Get(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &Exception{Class: ExcKey, Msg: Repr(idx)}
		}
		return v, nil
	case *Range:
		x, ok := asInt(idx)
		if !ok {
			return nil, newExc(ExcTypeError, "range indices must be integers or slices, not %s", TypeName(idx))
		}
		n := o.B.Len()
		if x.Sign() < 0 {
			x = new(big.Int).Add(x, n)
		}
		if x.Sign() < 0 || x.Cmp(n) >= 0 {
			return nil, newExc(ExcIndex, "range object index out of range")
		}
		return o.B.At(x), nil
	}
	return nil, newExc(ExcTypeError, "'%s' object is not subscriptable", TypeName(obj))
}

func setItem(obj, idx, v Value) error {
	switch o := obj.(type) {
	case *List:
		i, err := index("list", idx, len(o.Items), true)
		if err != nil {
			return err
		}
		o.Items[i] = v
		return nil
	case *Dict:
		return o.Set(idx, v)
	}
	return newExc(ExcTypeError, "'%s' object does not support item assignment", TypeName(obj))
}

var methods = map[string][]string{
	"list": {"append", "count", "extend", "index", "insert", "pop"},
	"dict": {"get", "items", "keys", "pop", "values"},
	"str":  {"join", "lower", "upper"},
}

func hasMethod(obj Value, name string) bool {
	for _, n := range methods[TypeName(obj)] {
		if n == name {
			return true
		}
	}
	return false
}

func (m *Machine) method(obj Value, name string, args []Value) (Value, error) {
	if !hasMethod(obj, name) {
		return nil, newExc(ExcAttribute, "'%s' object has no attribute '%s'", TypeName(obj), name)
	}
	nargs := func(lo, hi int) error {
		if len(args) < lo || len(args) > hi {
			return newExc(ExcTypeError, "%s() takes %s", name, argCount(lo, hi, len(args)))
		}
		return nil
	}
	switch o := obj.(type) {
	case *List:
		switch name {
		case "append":
			if err := nargs(1, 1); err != nil {
				return nil, err
			}
			o.Items = append(o.Items, args[0])
			return None, nil
		case "extend":
			if err := nargs(1, 1); err != nil {
				return nil, err
			}
			items, err := m.collect(args[0])
			if err != nil {
				return nil, err
			}
			o.Items = append(o.Items, items...)
			return None, nil
		case "insert":
			if err := nargs(2, 2); err != nil {
				return nil, err
			}
			x, ok := asInt(args[0])
			if !ok {
				return nil, newExc(ExcTypeError, "'%s' object cannot be interpreted as an integer", TypeName(args[0]))
			}
			n := int64(len(o.Items))
			i := x.Int64()
			if !x.IsInt64() {
				i = n
				if x.Sign() < 0 {
					i = 0
				}
			}
			if i < 0 {
				i = max(i+n, 0)
			}
			i = min(i, n)
			o.Items = append(o.Items[:i], append([]Value{args[1]}, o.Items[i:]...)...)
			return None, nil
		case "pop":
			if err := nargs(0, 1); err != nil {
				return nil, err
			}
			if len(o.Items) == 0 {
				return nil, newExc(ExcIndex, "pop from empty list")
			}
			var at Value = big.NewInt(-1)
			if len(args) == 1 {
				at = args[0]
			}
			i, err := index("pop", at, len(o.Items), false)
			if err != nil {
				return nil, err
			}
			v := o.Items[i]
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			return v, nil
		case "count":
			if err := nargs(1, 1); err != nil {
				return nil, err
			}
			n := 0
			for _, it := range o.Items {
				if Equal(it, args[0]) {
					n++
				}
			}
			return big.NewInt(int64(n)), nil
		case "index":
			if err := nargs(1, 1); err != nil {
				return nil, err
			}
			for i, it := range o.Items {
				if Equal(it, args[0]) {
					return big.NewInt(int64(i)), nil
				}
			}
			return nil, newExc(ExcValue, "%s is not in list", Repr(args[0]))
		}
	case *Dict:
		switch name {
		case "get":
			if err := nargs(1, 2); err != nil {
				return nil, err
			}
			v, ok, err := o.Get(args[0])
			if err != nil {
				return nil, err
			}
			if ok {
				return v, nil
			}
			if len(args) == 2 {
				return args[1], nil
			}
			return None, nil
		case "pop":
			if err := nargs(1, 2); err != nil {
				return nil, err
			}
			return o.pop(args)
		case "keys":
			return &List{Items: append([]Value(nil), o.keys...)}, nargs(0, 0)
		case "values":
			return &List{Items: append([]Value(nil), o.vals...)}, nargs(0, 0)
		case "items":
			items := make([]Value, len(o.keys))
			for i := range o.keys {
				items[i] = newTuple([]Value{o.keys[i], o.vals[i]})
			}
			return &List{Items: items}, nargs(0, 0)
		}
	case Str:
		switch name {
		case "lower":
			return Str(strings.ToLower(string(o))), nargs(0, 0)
		case "upper":
			return Str(strings.ToUpper(string(o))), nargs(0, 0)
		case "join":
			if err := nargs(1, 1); err != nil {
				return nil, err
			}
			items, err := m.collect(args[0])
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(items))
			for i, it := range items {
				s, ok := it.(Str)
				if !ok {
					return nil, newExc(ExcTypeError, "sequence item %d: expected str instance, %s found", i, TypeName(it))
				}
				parts[i] = string(s)
			}
			return Str(strings.Join(parts, string(o))), nil
		}
	}
	return nil, newExc(ExcAttribute, "'%s' object has no attribute '%s'", TypeName(obj), name)
}

func (d *Dict) pop(args []Value) (Value, error) {
	h, err := hashKey(args[0])
	if err != nil {
		return nil, err
	}
	i, ok := d.index[h]
	if !ok {
		if len(args) == 2 {
			return args[1], nil
		}
		return nil, &Exception{Class: ExcKey, Msg: Repr(args[0])}
	}
	v := d.vals[i]
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	delete(d.index, h)
	for k, j := range d.index {
		if j > i {
			d.index[k] = j - 1
		}
	}
	return v, nil
}
