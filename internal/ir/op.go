package ir

import "fmt"

// Op names a canonical primitive. The set is closed: the lowerer may emit
// only these, and Validate rejects anything else.
type Op string

const (
	// OpRegion embeds a nested LoweringResult. It computes nothing itself.
	OpRegion Op = "region"

	OpLoop     Op = "loop"
	OpIf       Op = "if"
	OpBreak    Op = "break"
	OpContinue Op = "continue"
	OpTrap     Op = "trap"

	OpAllocVec   Op = "alloc_vec"
	OpVecSet     Op = "vec_set"
	OpVecGet     Op = "vec_get"
	OpAllocDict  Op = "alloc_dict"
	OpDictSet    Op = "dict_set"
	OpDictGet    Op = "dict_get"
	OpAllocTuple Op = "alloc_tuple"
	OpTupleSet   Op = "tuple_set"

	OpCopy     Op = "copy"
	OpAdd      Op = "add"
	OpSub      Op = "sub"
	OpMul      Op = "mul"
	OpFloorDiv Op = "floordiv"
	OpMod      Op = "mod"
	OpNeg      Op = "neg"
	OpMin      Op = "min"
	OpNot      Op = "not"

	OpLt Op = "lt"
	OpLe Op = "le"
	OpGt Op = "gt"
	OpGe Op = "ge"
	OpEq Op = "eq"
	OpNe Op = "ne"

	OpCallKnown Op = "call_known"
	OpCallDyn   Op = "call_dyn"
	OpRaise     Op = "raise"
	OpReturn    Op = "return"

	OpRangeTriplet Op = "range_triplet"
	OpRangeLen     Op = "range_len"
	OpRangeAt      Op = "range_at"
)

// opArity is the accepted argument count per op: {min, max}; max -1 means
// unbounded.
var opArity = map[Op][2]int{
	OpRegion:       {0, 0},
	OpLoop:         {0, 1},
	OpIf:           {1, 1},
	OpBreak:        {0, 0},
	OpContinue:     {0, 0},
	OpTrap:         {0, 0},
	OpAllocVec:     {1, 1},
	OpVecSet:       {3, 3},
	OpVecGet:       {2, 2},
	OpAllocDict:    {0, 0},
	OpDictSet:      {3, 3},
	OpDictGet:      {2, 2},
	OpAllocTuple:   {1, 1},
	OpTupleSet:     {3, 3},
	OpCopy:         {1, 1},
	OpAdd:          {2, 2},
	OpSub:          {2, 2},
	OpMul:          {2, 2},
	OpFloorDiv:     {2, 2},
	OpMod:          {2, 2},
	OpNeg:          {1, 1},
	OpMin:          {2, 2},
	OpNot:          {1, 1},
	OpLt:           {2, 2},
	OpLe:           {2, 2},
	OpGt:           {2, 2},
	OpGe:           {2, 2},
	OpEq:           {2, 2},
	OpNe:           {2, 2},
	OpCallKnown:    {0, -1},
	OpCallDyn:      {0, -1},
	OpRaise:        {0, 1},
	OpReturn:       {0, 1},
	OpRangeTriplet: {3, 3},
	OpRangeLen:     {1, 1},
	OpRangeAt:      {2, 2},
}

// producesValue reports whether the op must name a destination.
func producesValue(op Op) bool {
	switch op {
	case OpRegion, OpLoop, OpIf, OpBreak, OpContinue, OpTrap, OpVecSet,
		OpDictSet, OpTupleSet, OpRaise, OpReturn:
		return false
	}
	return true
}

// IsPrimitive reports whether op belongs to the closed primitive set.
func IsPrimitive(op Op) bool {
	_, ok := opArity[op]
	return ok
}

// Tier is the specialization level a construct was lowered for.
// The order is meaningful: a higher tier is less specialized.
type Tier int

const (
	TierStatic Tier = iota
	TierGuarded
	TierDynamic
)

func (t Tier) String() string {
	switch t {
	case TierStatic:
		return "static"
	case TierGuarded:
		return "guarded"
	case TierDynamic:
		return "dynamic"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier parses a tier name.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "static":
		return TierStatic, nil
	case "guarded":
		return TierGuarded, nil
	case "dynamic":
		return TierDynamic, nil
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// GuardKind names a runtime predicate.
type GuardKind string

const (
	// GuardIsInt: operand is a machine-representable integer (not bool).
	GuardIsInt GuardKind = "is_int"
	// GuardNonZero: step operand is not zero.
	GuardNonZero GuardKind = "nonzero"
	// GuardLenFits: start, stop, step and the progression length fit the width.
	GuardLenFits GuardKind = "len_fits"
	// GuardEnumFits: enumerate counter start+len-1 fits the width.
	GuardEnumFits GuardKind = "enum_fits"
	// GuardBoundsFit: every intermediate of Expr fits the width while Var
	// ranges over the progression.
	GuardBoundsFit GuardKind = "bounds_fit"
	// GuardAccumFits: every partial sum of an accumulation fits the width.
	GuardAccumFits GuardKind = "accum_fits"
	// GuardSumFits: every intermediate of the closed-form sum fits the width.
	GuardSumFits GuardKind = "sum_fits"
)

// guardOrder is the fail-fast evaluation order: representation checks
// first, then the cheap scalar checks, then the derived-quantity checks.
var guardOrder = map[GuardKind]int{
	GuardIsInt:     0,
	GuardNonZero:   1,
	GuardLenFits:   2,
	GuardEnumFits:  3,
	GuardBoundsFit: 4,
	GuardAccumFits: 5,
	GuardSumFits:   6,
}

// GuardRank returns the position of k in the fail-fast order, or -1.
func GuardRank(k GuardKind) int {
	if r, ok := guardOrder[k]; ok {
		return r
	}
	return -1
}

// Deopt reasons, as reported in runtime feedback.
const (
	ReasonTypeMismatch   = "guard_tag_type_mismatch"
	ReasonStepZero       = "guard_range_step_zero"
	ReasonLenOverflow    = "guard_range_len_overflow"
	ReasonEnumOverflow   = "guard_enum_overflow"
	ReasonBoundsOverflow = "guard_bounds_overflow"
	ReasonAccumOverflow  = "guard_accum_overflow"
	ReasonSumOverflow    = "guard_sum_overflow"
)

// ReasonFor returns the deopt reason reported when a guard of kind k fails.
func ReasonFor(k GuardKind) string {
	switch k {
	case GuardIsInt:
		return ReasonTypeMismatch
	case GuardNonZero:
		return ReasonStepZero
	case GuardLenFits:
		return ReasonLenOverflow
	case GuardEnumFits:
		return ReasonEnumOverflow
	case GuardBoundsFit:
		return ReasonBoundsOverflow
	case GuardAccumFits:
		return ReasonAccumOverflow
	case GuardSumFits:
		return ReasonSumOverflow
	}
	return "guard_" + string(k)
}

// ElemKind is the element representation of an allocated vector.
type ElemKind string

const (
	ElemNone ElemKind = ""
	ElemI64  ElemKind = "i64"
	ElemObj  ElemKind = "obj"
)

// Exception classes and messages shared by specialized code and the
// runtime's dynamic paths. Both must raise identically.
const (
	ExcZeroDivision = "ZeroDivisionError"
	MsgFloorDivZero = "integer division or modulo by zero"
	MsgModZero      = "integer modulo by zero"
)

// Trap reasons. A trap is a miscompilation signal, never a source-level
// exception.
const (
	TrapOverflow   = "overflow"
	TrapType       = "type"
	TrapOutOfRange = "out_of_range"
	TrapStepZero   = "step_zero"
	TrapUnbound    = "unbound"
)
