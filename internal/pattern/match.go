package pattern

import "github.com/roach88/tierc/internal/ast"

// Scope answers name-resolution questions for the code being matched.
type Scope interface {
	// Builtin reports whether name resolves to the builtin of that name,
	// i.e. nothing in the module or the current function rebinds it.
	Builtin(name string) bool
	// Local reports whether name is a binding of the current frame.
	Local(name string) bool
}

// Match returns the first catalogue entry n satisfies.
func Match(n *ast.Node, scope Scope) Pattern {
	m := &matcher{scope: scope}
	for _, kind := range Catalogue {
		if p := m.try(kind, n); p != nil {
			return p
		}
	}
	panic("unreachable: unrecognized always matches")
}

type matcher struct {
	scope Scope
}

func (m *matcher) try(kind Kind, n *ast.Node) Pattern {
	switch kind {
	case KindMaterialize:
		return m.materialize(n)
	case KindReduction:
		return m.reduction(n)
	case KindAnyAll:
		return m.anyAll(n)
	case KindComprehension:
		return m.comprehension(n)
	case KindAccumulate:
		return m.accumulate(n)
	case KindEnumerate:
		return m.enumerate(n)
	case KindZip:
		return m.zip(n)
	case KindCountedWhile:
		return m.countedWhile(n)
	case KindCountedFor:
		return m.countedFor(n)
	case KindUnrecognized:
		return &Unrecognized{base{node: n}}
	}
	return nil
}

// builder collects operands in evaluation order.
type builder struct {
	node *ast.Node
	b    base
}

func newBuilder(n *ast.Node) *builder {
	return &builder{node: n, b: base{node: n}}
}

func (bl *builder) add(role Role, n *ast.Node) int {
	bl.b.operands = append(bl.b.operands, Operand{Role: role, Node: n})
	return len(bl.b.operands) - 1
}

func (bl *builder) addRange(call *ast.Node) {
	r := Range{Call: call, Start: Default, Step: Default}
	switch len(call.Args) {
	case 1:
		r.Stop = bl.add(RoleStop, call.Args[0])
	case 2:
		r.Start = bl.add(RoleStart, call.Args[0])
		r.Stop = bl.add(RoleStop, call.Args[1])
	case 3:
		r.Start = bl.add(RoleStart, call.Args[0])
		r.Stop = bl.add(RoleStop, call.Args[1])
		r.Step = bl.add(RoleStep, call.Args[2])
	}
	bl.b.ranges = append(bl.b.ranges, r)
}

// addFree records the free names of element expressions, once each.
func (bl *builder) addFree(names []*ast.Node) {
	seen := make(map[string]bool)
	for _, op := range bl.b.operands {
		if op.Role == RoleFree {
			seen[op.Node.Name] = true
		}
	}
	for _, n := range names {
		if !seen[n.Name] {
			seen[n.Name] = true
			bl.add(RoleFree, n)
		}
	}
}

// callOf reports whether n calls the unshadowed builtin name.
func (m *matcher) callOf(n *ast.Node, name string) bool {
	return n != nil && n.Kind == ast.KindCall && n.Func.IsName(name) && m.scope.Builtin(name)
}

// IsRangeCall reports whether n is a call of the builtin range with one to
// three arguments.
func IsRangeCall(n *ast.Node, scope Scope) bool {
	m := &matcher{scope: scope}
	return m.isRange(n)
}

func (m *matcher) isRange(n *ast.Node) bool {
	return m.callOf(n, "range") && len(n.Args) >= 1 && len(n.Args) <= 3
}

// simple reports whether evaluating n cannot be observed: an integer
// literal, a negated integer literal, or a frame-local name. Operands
// evaluated after a range is constructed must be simple, because range
// construction may raise and reordering an observable evaluation around
// it would change behavior.
func (m *matcher) simple(n *ast.Node) bool {
	switch n.Kind {
	case ast.KindConst:
		_, ok := n.IntLiteral()
		return ok
	case ast.KindUnary:
		_, ok := n.Operand.IntLiteral()
		return n.Op == "-" && ok
	case ast.KindName:
		return m.scope.Local(n.Name)
	}
	return false
}

func (m *matcher) simpleRange(call *ast.Node) bool {
	for _, a := range call.Args {
		if !m.simple(a) {
			return false
		}
	}
	return true
}

// pure reports whether e is integer arithmetic over v, integer literals
// and frame-local names, collecting those names.
func (m *matcher) pure(e *ast.Node, v string, free *[]*ast.Node) bool {
	switch e.Kind {
	case ast.KindConst:
		_, ok := e.IntLiteral()
		return ok
	case ast.KindName:
		if e.Name == v {
			return true
		}
		if !m.scope.Local(e.Name) {
			return false
		}
		*free = append(*free, e)
		return true
	case ast.KindBinOp:
		return m.pure(e.Left, v, free) && m.pure(e.Right, v, free)
	case ast.KindUnary:
		return e.Op == "-" && m.pure(e.Operand, v, free)
	}
	return false
}

var predicateOps = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true}

// predicate accepts pure arithmetic or one comparison of pure arithmetic.
func (m *matcher) predicate(e *ast.Node, v string, free *[]*ast.Node) bool {
	if e.Kind == ast.KindCompare {
		return len(e.Ops) == 1 && predicateOps[e.Ops[0]] &&
			m.pure(e.Left, v, free) && m.pure(e.Comparators[0], v, free)
	}
	return m.pure(e, v, free)
}

// rangeGen matches a single unfiltered generator "for v in range(...)".
func (m *matcher) rangeGen(gens []*ast.Node) (string, *ast.Node, bool) {
	if len(gens) != 1 {
		return "", nil, false
	}
	g := gens[0]
	if len(g.Ifs) != 0 || g.Target.Kind != ast.KindName || !m.isRange(g.Iter) {
		return "", nil, false
	}
	return g.Target.Name, g.Iter, true
}

func (m *matcher) materialize(n *ast.Node) Pattern {
	var container string
	switch {
	case m.callOf(n, "list"):
		container = "list"
	case m.callOf(n, "tuple"):
		container = "tuple"
	default:
		return nil
	}
	if len(n.Args) != 1 {
		return nil
	}
	src := n.Args[0]
	bl := newBuilder(n)
	p := &Materialize{Container: container, EnumStart: Default}

	switch {
	case m.isRange(src):
		p.Source = SourceRange
		bl.addRange(src)
	case m.callOf(src, "zip") && len(src.Args) >= 2:
		for i, a := range src.Args {
			if !m.isRange(a) || (i > 0 && !m.simpleRange(a)) {
				return nil
			}
		}
		p.Source = SourceZip
		for _, a := range src.Args {
			bl.addRange(a)
		}
	case m.callOf(src, "enumerate") && len(src.Args) >= 1 && len(src.Args) <= 2 && m.isRange(src.Args[0]):
		if len(src.Args) == 2 && !m.simple(src.Args[1]) {
			return nil
		}
		p.Source = SourceEnumerate
		bl.addRange(src.Args[0])
		if len(src.Args) == 2 {
			p.EnumStart = bl.add(RoleEnumStart, src.Args[1])
		}
	default:
		return nil
	}
	p.base = bl.b
	return p
}

func (m *matcher) reduction(n *ast.Node) Pattern {
	if m.callOf(n, "len") && len(n.Args) == 1 && m.isRange(n.Args[0]) {
		bl := newBuilder(n)
		bl.addRange(n.Args[0])
		return &Reduction{base: bl.b, Func: "len", SumStart: Default}
	}
	if !m.callOf(n, "sum") || len(n.Args) < 1 || len(n.Args) > 2 {
		return nil
	}
	if len(n.Args) == 2 && !m.simple(n.Args[1]) {
		return nil
	}
	bl := newBuilder(n)
	p := &Reduction{Func: "sum", SumStart: Default}
	var free []*ast.Node

	arg := n.Args[0]
	switch {
	case m.isRange(arg):
		bl.addRange(arg)
	case arg.Kind == ast.KindGenExp:
		v, call, ok := m.rangeGen(arg.Generators)
		if !ok || !m.pure(arg.Elt, v, &free) {
			return nil
		}
		p.Var, p.Elt = v, arg.Elt
		bl.addRange(call)
	default:
		return nil
	}
	if len(n.Args) == 2 {
		p.SumStart = bl.add(RoleSumStart, n.Args[1])
	}
	bl.addFree(free)
	p.base = bl.b
	return p
}

func (m *matcher) anyAll(n *ast.Node) Pattern {
	var fn string
	switch {
	case m.callOf(n, "any"):
		fn = "any"
	case m.callOf(n, "all"):
		fn = "all"
	default:
		return nil
	}
	if len(n.Args) != 1 {
		return nil
	}
	bl := newBuilder(n)
	p := &AnyAll{Func: fn}
	arg := n.Args[0]
	switch {
	case m.isRange(arg):
		bl.addRange(arg)
	case arg.Kind == ast.KindGenExp:
		var free []*ast.Node
		v, call, ok := m.rangeGen(arg.Generators)
		if !ok || !m.predicate(arg.Elt, v, &free) {
			return nil
		}
		p.Var, p.Elt = v, arg.Elt
		bl.addRange(call)
		bl.addFree(free)
	default:
		return nil
	}
	p.base = bl.b
	return p
}

func (m *matcher) comprehension(n *ast.Node) Pattern {
	if n.Kind != ast.KindListComp && n.Kind != ast.KindDictComp {
		return nil
	}
	v, call, ok := m.rangeGen(n.Generators)
	if !ok {
		return nil
	}
	var free []*ast.Node
	p := &Comprehension{Var: v}
	if n.Kind == ast.KindDictComp {
		if !m.pure(n.Key, v, &free) || !m.pure(n.Value, v, &free) {
			return nil
		}
		p.Dict, p.Key, p.Value = true, n.Key, n.Value
	} else {
		if !m.pure(n.Elt, v, &free) {
			return nil
		}
		p.Elt = n.Elt
	}
	bl := newBuilder(n)
	bl.addRange(call)
	bl.addFree(free)
	p.base = bl.b
	return p
}

// rangeFor matches "for <name> in range(...)" without else.
func (m *matcher) rangeFor(n *ast.Node) (string, bool) {
	if n.Kind != ast.KindFor || len(n.Orelse) != 0 || n.Target.Kind != ast.KindName || !m.isRange(n.Iter) {
		return "", false
	}
	return n.Target.Name, true
}

func (m *matcher) accumulate(n *ast.Node) Pattern {
	v, ok := m.rangeFor(n)
	if !ok || len(n.Body) != 1 {
		return nil
	}
	st := n.Body[0]
	var acc *ast.Node
	switch {
	case st.Kind == ast.KindAugAssign && st.Op == "+" && st.Target.Kind == ast.KindName && st.Value.IsName(v):
		acc = st.Target
	case st.Kind == ast.KindAssign && st.Target.Kind == ast.KindName &&
		st.Value.Kind == ast.KindBinOp && st.Value.Op == "+" &&
		st.Value.Left.IsName(st.Target.Name) && st.Value.Right.IsName(v):
		acc = st.Target
	default:
		return nil
	}
	if acc.Name == v || !m.scope.Local(acc.Name) {
		return nil
	}
	bl := newBuilder(n)
	bl.addRange(n.Iter)
	idx := bl.add(RoleAcc, acc)
	return &Accumulate{base: bl.b, Var: v, Acc: acc.Name, AccOperand: idx}
}

// tupleNames returns the names of a tuple target of plain names.
func tupleNames(target *ast.Node) ([]string, bool) {
	if target.Kind != ast.KindTuple && target.Kind != ast.KindList {
		return nil, false
	}
	names := make([]string, len(target.Elts))
	for i, e := range target.Elts {
		if e.Kind != ast.KindName {
			return nil, false
		}
		names[i] = e.Name
	}
	return names, true
}

func (m *matcher) enumerate(n *ast.Node) Pattern {
	if n.Kind != ast.KindFor || len(n.Orelse) != 0 {
		return nil
	}
	names, ok := tupleNames(n.Target)
	if !ok || len(names) != 2 {
		return nil
	}
	it := n.Iter
	if !m.callOf(it, "enumerate") || len(it.Args) < 1 || len(it.Args) > 2 || !m.isRange(it.Args[0]) {
		return nil
	}
	if len(it.Args) == 2 && !m.simple(it.Args[1]) {
		return nil
	}
	bl := newBuilder(n)
	bl.addRange(it.Args[0])
	p := &Enumerate{Index: names[0], Value: names[1], EnumStart: Default, Body: n.Body}
	if len(it.Args) == 2 {
		p.EnumStart = bl.add(RoleEnumStart, it.Args[1])
	}
	p.base = bl.b
	return p
}

func (m *matcher) zip(n *ast.Node) Pattern {
	if n.Kind != ast.KindFor || len(n.Orelse) != 0 {
		return nil
	}
	names, ok := tupleNames(n.Target)
	if !ok || !m.callOf(n.Iter, "zip") || len(n.Iter.Args) < 2 || len(n.Iter.Args) != len(names) {
		return nil
	}
	for i, a := range n.Iter.Args {
		if !m.isRange(a) || (i > 0 && !m.simpleRange(a)) {
			return nil
		}
	}
	bl := newBuilder(n)
	for _, a := range n.Iter.Args {
		bl.addRange(a)
	}
	return &Zip{base: bl.b, Vars: names, Body: n.Body}
}

func (m *matcher) countedWhile(n *ast.Node) Pattern {
	if n.Kind != ast.KindWhile || len(n.Orelse) != 0 || len(n.Body) == 0 {
		return nil
	}
	test := n.Test
	if test.Kind != ast.KindCompare || len(test.Ops) != 1 || test.Ops[0] != "<" || test.Left.Kind != ast.KindName {
		return nil
	}
	idx := test.Left
	stop := test.Comparators[0]
	if !m.scope.Local(idx.Name) || !m.simple(stop) || stop.IsName(idx.Name) {
		return nil
	}
	last := n.Body[len(n.Body)-1]
	if !isIncrement(last, idx.Name) {
		return nil
	}
	body := n.Body[:len(n.Body)-1]
	assigned := ast.AssignedNames(body)
	if assigned[idx.Name] || (stop.Kind == ast.KindName && assigned[stop.Name]) || continues(body) {
		return nil
	}
	bl := newBuilder(n)
	start := bl.add(RoleIndex, idx)
	stopIdx := bl.add(RoleStop, stop)
	bl.b.ranges = []Range{{Call: test, Start: start, Stop: stopIdx, Step: Default}}
	return &CountedWhile{base: bl.b, Var: idx.Name, Body: body}
}

// isIncrement matches "v += 1" and "v = v + 1".
func isIncrement(st *ast.Node, v string) bool {
	one := func(n *ast.Node) bool {
		text, ok := n.IntLiteral()
		return ok && text == "1"
	}
	switch st.Kind {
	case ast.KindAugAssign:
		return st.Op == "+" && st.Target.IsName(v) && one(st.Value)
	case ast.KindAssign:
		return st.Target.IsName(v) && st.Value.Kind == ast.KindBinOp && st.Value.Op == "+" &&
			st.Value.Left.IsName(v) && one(st.Value.Right)
	}
	return false
}

// continues reports whether body continues the enclosing loop. Continue
// statements inside nested loops belong to those loops.
func continues(body []*ast.Node) bool {
	for _, st := range body {
		switch st.Kind {
		case ast.KindContinue:
			return true
		case ast.KindIf:
			if continues(st.Body) || continues(st.Orelse) {
				return true
			}
		case ast.KindFor, ast.KindWhile:
			if continues(st.Orelse) {
				return true
			}
		}
	}
	return false
}

func (m *matcher) countedFor(n *ast.Node) Pattern {
	v, ok := m.rangeFor(n)
	if !ok {
		return nil
	}
	bl := newBuilder(n)
	bl.addRange(n.Iter)
	return &CountedFor{base: bl.b, Var: v, Body: n.Body}
}
