package vm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/roach88/tierc/internal/ranges"
)

// maxSize is sys.maxsize on a 64-bit host; len() refuses anything larger.
var maxSize = new(big.Int).SetUint64(1<<63 - 1)

type builtinFunc func(m *Machine, args []Value) (Value, error)

var builtins map[string]builtinFunc

func init() {
	builtins = map[string]builtinFunc{
		"abs":       builtinAbs,
		"all":       builtinAll,
		"any":       builtinAny,
		"bool":      builtinBool,
		"dict":      builtinDict,
		"enumerate": builtinEnumerate,
		"int":       builtinInt,
		"len":       builtinLen,
		"list":      builtinList,
		"max":       func(m *Machine, args []Value) (Value, error) { return m.extreme("max", args) },
		"min":       func(m *Machine, args []Value) (Value, error) { return m.extreme("min", args) },
		"print":     builtinPrint,
		"range":     builtinRange,
		"str":       builtinStr,
		"sum":       builtinSum,
		"tuple":     builtinTuple,
		"zip":       builtinZip,
	}
}

// lookupBuiltin resolves a builtin function or exception class.
func lookupBuiltin(name string) (Value, bool) {
	if _, ok := builtins[name]; ok {
		return &Builtin{Name: name}, true
	}
	for _, c := range excClasses {
		if c == name {
			return &ExcClass{Name: name}, true
		}
	}
	return nil, false
}

func argCount(lo, hi, got int) string {
	plural := func(n int) string {
		if n == 1 {
			return "1 argument"
		}
		return fmt.Sprintf("%d arguments", n)
	}
	switch {
	case lo == hi:
		return fmt.Sprintf("exactly %s (%d given)", plural(lo), got)
	case got < lo:
		return fmt.Sprintf("at least %s (%d given)", plural(lo), got)
	}
	return fmt.Sprintf("at most %s (%d given)", plural(hi), got)
}

func expect(name string, args []Value, lo, hi int) error {
	if len(args) < lo || len(args) > hi {
		return newExc(ExcTypeError, "%s() takes %s", name, argCount(lo, hi, len(args)))
	}
	return nil
}

func index64(v Value) (*big.Int, error) {
	x, ok := asInt(v)
	if !ok {
		return nil, newExc(ExcTypeError, "'%s' object cannot be interpreted as an integer", TypeName(v))
	}
	return x, nil
}

func builtinRange(_ *Machine, args []Value) (Value, error) {
	switch {
	case len(args) == 0:
		return nil, newExc(ExcTypeError, "range expected at least 1 argument, got 0")
	case len(args) > 3:
		return nil, newExc(ExcTypeError, "range expected at most 3 arguments, got %d", len(args))
	}
	xs := make([]*big.Int, len(args))
	for i, a := range args {
		x, err := index64(a)
		if err != nil {
			return nil, err
		}
		xs[i] = x
	}
	start, stop, step := big.NewInt(0), xs[0], big.NewInt(1)
	if len(xs) >= 2 {
		start, stop = xs[0], xs[1]
	}
	if len(xs) == 3 {
		step = xs[2]
	}
	b, err := ranges.NormalizeBig(start, stop, step)
	if err != nil {
		return nil, &Exception{Class: ExcValue, Msg: err.Error()}
	}
	return newRange(b), nil
}

func builtinLen(_ *Machine, args []Value) (Value, error) {
	if err := expect("len", args, 1, 1); err != nil {
		return nil, err
	}
	var n int
	switch v := args[0].(type) {
	case Str:
		n = len([]rune(string(v)))
	case *List:
		n = len(v.Items)
	case *Tuple:
		n = len(v.Items)
	case *Dict:
		n = v.Len()
	case *Range:
		l := v.B.Len()
		if l.Cmp(maxSize) > 0 {
			return nil, newExc(ExcOverflow, "Python int too large to convert to C ssize_t")
		}
		return l, nil
	default:
		return nil, newExc(ExcTypeError, "object of type '%s' has no len()", TypeName(args[0]))
	}
	return big.NewInt(int64(n)), nil
}

func builtinList(m *Machine, args []Value) (Value, error) {
	if err := expect("list", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return &List{}, nil
	}
	items, err := m.collect(args[0])
	if err != nil {
		return nil, err
	}
	return &List{Items: items}, nil
}

func builtinTuple(m *Machine, args []Value) (Value, error) {
	if err := expect("tuple", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return newTuple(nil), nil
	}
	if t, ok := args[0].(*Tuple); ok {
		return t, nil
	}
	items, err := m.collect(args[0])
	if err != nil {
		return nil, err
	}
	return newTuple(items), nil
}

func builtinDict(m *Machine, args []Value) (Value, error) {
	if err := expect("dict", args, 0, 1); err != nil {
		return nil, err
	}
	d := newDict()
	if len(args) == 0 {
		return d, nil
	}
	if src, ok := args[0].(*Dict); ok {
		for i := range src.keys {
			if err := d.Set(src.keys[i], src.vals[i]); err != nil {
				return nil, err
			}
		}
		return d, nil
	}
	items, err := m.collect(args[0])
	if err != nil {
		return nil, err
	}
	for i, it := range items {
		pair, err := m.collect(it)
		if err != nil {
			return nil, newExc(ExcTypeError, "cannot convert dictionary update sequence element #%d to a sequence", i)
		}
		if len(pair) != 2 {
			return nil, newExc(ExcValue, "dictionary update sequence element #%d has length %d; 2 is required", i, len(pair))
		}
		if err := d.Set(pair[0], pair[1]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func builtinSum(m *Machine, args []Value) (Value, error) {
	if err := expect("sum", args, 1, 2); err != nil {
		return nil, err
	}
	var acc Value = big.NewInt(0)
	if len(args) == 2 {
		acc = args[1]
		switch acc.(type) {
		case Str:
			return nil, newExc(ExcTypeError, "sum() can't sum strings [use ''.join(seq) instead]")
		}
	}
	it, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	for {
		if err := m.tick(); err != nil {
			return nil, err
		}
		v, more, err := it.next()
		if err != nil {
			return nil, err
		}
		if !more {
			return acc, nil
		}
		if acc, err = binary("add", acc, v); err != nil {
			return nil, err
		}
	}
}

func (m *Machine) anyAll(name string, args []Value, want bool) (Value, error) {
	if err := expect(name, args, 1, 1); err != nil {
		return nil, err
	}
	it, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	for {
		if err := m.tick(); err != nil {
			return nil, err
		}
		v, more, err := it.next()
		if err != nil {
			return nil, err
		}
		if !more {
			return Bool(!want), nil
		}
		if Truth(v) == want {
			return Bool(want), nil
		}
	}
}

func builtinAny(m *Machine, args []Value) (Value, error) { return m.anyAll("any", args, true) }
func builtinAll(m *Machine, args []Value) (Value, error) { return m.anyAll("all", args, false) }

func builtinEnumerate(_ *Machine, args []Value) (Value, error) {
	if err := expect("enumerate", args, 1, 2); err != nil {
		return nil, err
	}
	it, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	i := big.NewInt(0)
	if len(args) == 2 {
		if i, err = index64(args[1]); err != nil {
			return nil, err
		}
	}
	return &Iterator{kind: "enumerate", next: func() (Value, bool, error) {
		v, more, err := it.next()
		if err != nil || !more {
			return nil, false, err
		}
		t := newTuple([]Value{i, v})
		i = new(big.Int).Add(i, big.NewInt(1))
		return t, true, nil
	}}, nil
}

func builtinZip(_ *Machine, args []Value) (Value, error) {
	its := make([]*Iterator, len(args))
	for k, a := range args {
		it, err := iterate(a)
		if err != nil {
			return nil, newExc(ExcTypeError, "zip argument #%d must support iteration", k+1)
		}
		its[k] = it
	}
	return &Iterator{kind: "zip", next: func() (Value, bool, error) {
		if len(its) == 0 {
			return nil, false, nil
		}
		items := make([]Value, len(its))
		for k, it := range its {
			v, more, err := it.next()
			if err != nil || !more {
				return nil, false, err
			}
			items[k] = v
		}
		return newTuple(items), true, nil
	}}, nil
}

func (m *Machine) extreme(name string, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, newExc(ExcTypeError, "%s expected at least 1 argument, got 0", name)
	}
	items := args
	if len(args) == 1 {
		var err error
		if items, err = m.collect(args[0]); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, newExc(ExcValue, "%s() iterable argument is empty", name)
		}
	}
	best := items[0]
	for _, v := range items[1:] {
		better, err := compare("lt", v, best)
		if name == "max" {
			better, err = compare("gt", v, best)
		}
		if err != nil {
			return nil, err
		}
		if better {
			best = v
		}
	}
	return best, nil
}

func builtinAbs(_ *Machine, args []Value) (Value, error) {
	if err := expect("abs", args, 1, 1); err != nil {
		return nil, err
	}
	x, ok := asInt(args[0])
	if !ok {
		return nil, newExc(ExcTypeError, "bad operand type for abs(): '%s'", TypeName(args[0]))
	}
	return new(big.Int).Abs(x), nil
}

func builtinPrint(m *Machine, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = String(a)
	}
	m.emit(strings.Join(parts, " "))
	return None, nil
}

func builtinStr(_ *Machine, args []Value) (Value, error) {
	if err := expect("str", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return Str(""), nil
	}
	return Str(String(args[0])), nil
}

func builtinBool(_ *Machine, args []Value) (Value, error) {
	if err := expect("bool", args, 0, 1); err != nil {
		return nil, err
	}
	return Bool(len(args) == 1 && Truth(args[0])), nil
}

func builtinInt(_ *Machine, args []Value) (Value, error) {
	if err := expect("int", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return big.NewInt(0), nil
	}
	if x, ok := asInt(args[0]); ok {
		return new(big.Int).Set(x), nil
	}
	s, ok := args[0].(Str)
	if !ok {
		return nil, newExc(ExcTypeError, "int() argument must be a string or a real number, not '%s'", TypeName(args[0]))
	}
	text := strings.ReplaceAll(strings.TrimSpace(string(s)), "_", "")
	x, ok := new(big.Int).SetString(text, 10)
	if !ok || text == "" {
		return nil, newExc(ExcValue, "invalid literal for int() with base 10: %s", Repr(s))
	}
	return x, nil
}
