package ast

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tierc/internal/ir"
)

// Children returns the direct children of n in source evaluation order.
func (n *Node) Children() []*Node {
	var out []*Node
	add := func(cs ...*Node) {
		for _, c := range cs {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	switch n.Kind {
	case KindFor:
		add(n.Iter, n.Target)
	case KindAssign, KindAugAssign:
		add(n.Value, n.Target)
	case KindDictComp:
		add(n.Generators...)
		add(n.Key, n.Value)
		return out
	case KindListComp, KindGenExp:
		add(n.Generators...)
		add(n.Elt)
		return out
	case KindComprehension:
		add(n.Iter, n.Target)
		add(n.Ifs...)
		return out
	case KindDict:
		for i := range n.Keys {
			add(n.Keys[i], n.Values[i])
		}
		return out
	}
	add(n.Test, n.Func)
	add(n.Args...)
	add(n.Obj, n.Index, n.Left, n.Operand)
	add(n.Comparators...)
	add(n.Right)
	add(n.Values...)
	add(n.Elts...)
	add(n.Value)
	add(n.Body...)
	add(n.Orelse...)
	return out
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the children of that node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}

// TargetNames returns the names bound by an assignment target.
func TargetNames(target *Node) []string {
	switch target.Kind {
	case KindName:
		return []string{target.Name}
	case KindTuple, KindList:
		var out []string
		for _, e := range target.Elts {
			out = append(out, TargetNames(e)...)
		}
		return out
	}
	return nil
}

// AssignedNames returns every name bound by the statements in body:
// assignment and loop targets and function definitions. Comprehension
// targets have their own scope and are not included.
func AssignedNames(body []*Node) map[string]bool {
	names := make(map[string]bool)
	var stmt func(s *Node)
	stmt = func(s *Node) {
		switch s.Kind {
		case KindAssign, KindAugAssign, KindFor:
			for _, name := range TargetNames(s.Target) {
				names[name] = true
			}
		case KindFunc:
			names[s.Name] = true
			return
		}
		for _, c := range s.Body {
			stmt(c)
		}
		for _, c := range s.Orelse {
			stmt(c)
		}
	}
	for _, s := range body {
		stmt(s)
	}
	return names
}

// Fingerprint is the content address of a module's input, facts included.
// encoding/json emits struct fields in declaration order and Node holds no
// maps, so the encoding is deterministic.
func Fingerprint(n *Node) (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("fingerprint input: %w", err)
	}
	return ir.FingerprintBytes(ir.DomainInput, data), nil
}
