// Package world holds the closed-world view of one compilation unit: which
// module-level names exist, which of them are stable function definitions,
// and which operand sites runtime feedback reports as stable.
//
// A Snapshot is built once per unit, is immutable, and is passed
// explicitly to every stage that needs it. Nothing in the pipeline keeps
// it in package state, so independent units can be lowered concurrently.
package world

import (
	"maps"
	"slices"

	"github.com/roach88/tierc/internal/ast"
)

// FuncInfo describes a module-level function definition.
type FuncInfo struct {
	Name   string
	Params []string
	// Index is the declaration position among the module's functions.
	Index int
}

// Signal is the runtime feedback for one operand site.
type Signal struct {
	Type    string
	Samples int
	Hits    int
	// Stable is set when the observed type was Type often enough to
	// justify a guarded fast path.
	Stable bool
}

// Snapshot is the immutable world view of one module.
type Snapshot struct {
	module   string
	funcs    map[string]FuncInfo
	bindings map[string]int
	signals  map[string]Signal
}

// New builds the snapshot of mod. signals may be nil.
func New(mod *ast.Node, signals map[string]Signal) *Snapshot {
	s := &Snapshot{
		module:   mod.Name,
		funcs:    make(map[string]FuncInfo),
		bindings: make(map[string]int),
		signals:  maps.Clone(signals),
	}
	if s.signals == nil {
		s.signals = make(map[string]Signal)
	}
	for i, fn := range mod.Funcs() {
		s.funcs[fn.Name] = FuncInfo{Name: fn.Name, Params: slices.Clone(fn.Params), Index: i}
	}
	countBindings(mod.Body, s.bindings)
	return s
}

func countBindings(body []*ast.Node, counts map[string]int) {
	for _, st := range body {
		switch st.Kind {
		case ast.KindAssign, ast.KindAugAssign, ast.KindFor:
			for _, name := range ast.TargetNames(st.Target) {
				counts[name]++
			}
		case ast.KindFunc:
			counts[st.Name]++
			continue
		}
		countBindings(st.Body, counts)
		countBindings(st.Orelse, counts)
	}
}

// Module returns the module name.
func (s *Snapshot) Module() string { return s.module }

// Func returns a function definition that is the only binding of its
// name, so calls to that name can be bound directly.
func (s *Snapshot) Func(name string) (FuncInfo, bool) {
	fn, ok := s.funcs[name]
	if !ok || s.bindings[name] != 1 {
		return FuncInfo{}, false
	}
	return fn, true
}

// IsGlobal reports whether name is bound anywhere at module level.
func (s *Snapshot) IsGlobal(name string) bool {
	return s.bindings[name] > 0
}

// Signal returns the feedback for site.
func (s *Snapshot) Signal(site string) (Signal, bool) {
	sig, ok := s.signals[site]
	return sig, ok
}

// StableInt reports whether feedback says the operand at site is an int.
func (s *Snapshot) StableInt(site string) bool {
	sig, ok := s.signals[site]
	return ok && sig.Stable && sig.Type == "int"
}

// Sites returns the sites with feedback, sorted.
func (s *Snapshot) Sites() []string {
	return slices.Sorted(maps.Keys(s.signals))
}
