package vm

import (
	"math/big"

	"github.com/roach88/tierc/internal/bounds"
	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/ranges"
)

// typed runs a value-producing primitive other than a call. Integer
// operands must be ints of the unit's width and results must fit it;
// anything else is a trap.
func (m *Machine) typed(in *ir.Instr, args []Value) (Value, error) {
	switch in.Op {
	case ir.OpCopy:
		return args[0], nil
	case ir.OpNot:
		b, ok := args[0].(Bool)
		if !ok {
			return nil, m.trap(ir.TrapType, "not of "+TypeName(args[0]))
		}
		return !b, nil
	case ir.OpNeg:
		x, err := m.word(args[0])
		if err != nil {
			return nil, err
		}
		return m.fit(new(big.Int).Neg(x))
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpFloorDiv, ir.OpMod, ir.OpMin,
		ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe, ir.OpEq, ir.OpNe:
		x, err := m.word(args[0])
		if err != nil {
			return nil, err
		}
		y, err := m.word(args[1])
		if err != nil {
			return nil, err
		}
		return m.arith(in.Op, x, y)
	case ir.OpRangeTriplet:
		// Operands are words of the unit width, so they fit int64.
		xs := make([]int64, 3)
		for i, a := range args {
			x, err := m.word(a)
			if err != nil {
				return nil, err
			}
			xs[i] = x.Int64()
		}
		t, err := ranges.Normalize(xs[0], xs[1], xs[2])
		if err != nil {
			return nil, m.trap(ir.TrapStepZero, err.Error())
		}
		return &Range{B: ranges.FromTriplet(t), word: &t}, nil
	case ir.OpRangeLen:
		r, err := m.triplet(args[0])
		if err != nil {
			return nil, err
		}
		if r.word == nil {
			return m.fit(r.B.Len())
		}
		n, err := r.word.Len()
		if err != nil {
			return nil, m.trap(ir.TrapOverflow, err.Error())
		}
		return m.fit(big.NewInt(n))
	case ir.OpRangeAt:
		r, err := m.triplet(args[0])
		if err != nil {
			return nil, err
		}
		k, err := m.word(args[1])
		if err != nil {
			return nil, err
		}
		if r.word == nil {
			if k.Sign() < 0 || k.Cmp(r.B.Len()) >= 0 {
				return nil, m.trap(ir.TrapOutOfRange, "range_at "+k.String())
			}
			return m.fit(r.B.At(k))
		}
		// A length beyond int64 admits every non-negative word index.
		n, lenErr := r.word.Len()
		if k.Sign() < 0 || (lenErr == nil && k.Int64() >= n) {
			return nil, m.trap(ir.TrapOutOfRange, "range_at "+k.String())
		}
		return m.fit(big.NewInt(r.word.At(k.Int64())))
	case ir.OpAllocVec:
		n, err := m.size(args[0])
		if err != nil {
			return nil, err
		}
		items := make([]Value, n)
		for i := range items {
			items[i] = None
		}
		return &List{Items: items}, nil
	case ir.OpVecGet:
		l, i, err := m.slot(args[0], args[1])
		if err != nil {
			return nil, err
		}
		return l.Items[i], nil
	case ir.OpAllocTuple:
		n, err := m.size(args[0])
		if err != nil {
			return nil, err
		}
		items := make([]Value, n)
		for i := range items {
			items[i] = None
		}
		return &Tuple{Items: items, filled: make([]bool, n), sealed: n == 0}, nil
	case ir.OpAllocDict:
		return newDict(), nil
	case ir.OpDictGet:
		d, ok := args[0].(*Dict)
		if !ok {
			return nil, m.trap(ir.TrapType, "dict_get on "+TypeName(args[0]))
		}
		v, found, err := d.Get(args[1])
		if err != nil || !found {
			return nil, m.trap(ir.TrapOutOfRange, "dict_get "+Repr(args[1]))
		}
		return v, nil
	}
	return nil, m.store(in, args)
}

// store runs the primitives that write into a container.
func (m *Machine) store(in *ir.Instr, args []Value) error {
	switch in.Op {
	case ir.OpVecSet:
		l, i, err := m.slot(args[0], args[1])
		if err != nil {
			return err
		}
		l.Items[i] = args[2]
		return nil
	case ir.OpTupleSet:
		t, ok := args[0].(*Tuple)
		if !ok {
			return m.trap(ir.TrapType, "tuple_set on "+TypeName(args[0]))
		}
		if t.sealed {
			return m.trap(ir.TrapType, "tuple_set on an immutable tuple")
		}
		k, err := m.word(args[1])
		if err != nil {
			return err
		}
		if k.Sign() < 0 || k.Cmp(big.NewInt(int64(len(t.Items)))) >= 0 {
			return m.trap(ir.TrapOutOfRange, "tuple_set "+k.String())
		}
		i := int(k.Int64())
		t.Items[i] = args[2]
		if !t.filled[i] {
			t.filled[i] = true
			t.sealed = allSet(t.filled)
		}
		return nil
	case ir.OpDictSet:
		d, ok := args[0].(*Dict)
		if !ok {
			return m.trap(ir.TrapType, "dict_set on "+TypeName(args[0]))
		}
		if err := d.Set(args[1], args[2]); err != nil {
			return m.trap(ir.TrapType, err.Error())
		}
		return nil
	}
	return m.trap(ir.TrapType, "unknown primitive "+string(in.Op))
}

func allSet(filled []bool) bool {
	for _, f := range filled {
		if !f {
			return false
		}
	}
	return true
}

func (m *Machine) arith(op ir.Op, x, y *big.Int) (Value, error) {
	switch op {
	case ir.OpAdd:
		return m.fit(new(big.Int).Add(x, y))
	case ir.OpSub:
		return m.fit(new(big.Int).Sub(x, y))
	case ir.OpMul:
		return m.fit(new(big.Int).Mul(x, y))
	case ir.OpFloorDiv:
		if y.Sign() == 0 {
			return nil, m.trap(ir.TrapType, "typed floordiv by zero")
		}
		return m.fit(bounds.FloorDiv(x, y))
	case ir.OpMod:
		if y.Sign() == 0 {
			return nil, m.trap(ir.TrapType, "typed mod by zero")
		}
		return m.fit(bounds.FloorMod(x, y))
	case ir.OpMin:
		if x.Cmp(y) <= 0 {
			return x, nil
		}
		return y, nil
	}
	c := x.Cmp(y)
	switch op {
	case ir.OpLt:
		return Bool(c < 0), nil
	case ir.OpLe:
		return Bool(c <= 0), nil
	case ir.OpGt:
		return Bool(c > 0), nil
	case ir.OpGe:
		return Bool(c >= 0), nil
	case ir.OpEq:
		return Bool(c == 0), nil
	}
	return Bool(c != 0), nil
}

func (m *Machine) triplet(v Value) (*Range, error) {
	r, ok := v.(*Range)
	if !ok {
		return nil, m.trap(ir.TrapType, "range operand is "+TypeName(v))
	}
	return r, nil
}

func (m *Machine) size(v Value) (int, error) {
	n, err := m.word(v)
	if err != nil {
		return 0, err
	}
	if n.Sign() < 0 || n.Cmp(big.NewInt(maxRepeat)) > 0 {
		return 0, m.trap(ir.TrapOutOfRange, "allocation of "+n.String())
	}
	return int(n.Int64()), nil
}

func (m *Machine) slot(vec, idx Value) (*List, int, error) {
	l, ok := vec.(*List)
	if !ok {
		return nil, 0, m.trap(ir.TrapType, "vector operand is "+TypeName(vec))
	}
	k, err := m.word(idx)
	if err != nil {
		return nil, 0, err
	}
	if k.Sign() < 0 || k.Cmp(big.NewInt(int64(len(l.Items)))) >= 0 {
		return nil, 0, m.trap(ir.TrapOutOfRange, "index "+k.String())
	}
	return l, int(k.Int64()), nil
}
