package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/tierc/internal/ir"
	"github.com/roach88/tierc/internal/lower"
)

// RecursionWarning reports functions that can reach themselves through
// calls. Recursion is legal; the warning exists because the reference VM
// bounds call depth.
type RecursionWarning struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// AnalyzeRecursion finds call cycles between the functions of u, using
// Tarjan's algorithm over the static call graph. Calls through arbitrary
// values are not traced. Warnings are ordered by the declaration position
// of their first function.
func AnalyzeRecursion(u *ir.Unit) []RecursionWarning {
	graph, order := callGraph(u)

	var warnings []RecursionWarning
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) > 1 || slices.Contains(graph[scc[0]], scc[0]) {
			warnings = append(warnings, sccWarning(scc, graph))
		}
	}
	slices.SortFunc(warnings, func(a, b RecursionWarning) int {
		return order[a.Path[0]] - order[b.Path[0]]
	})
	return warnings
}

// callGraph maps each function to the unit functions it may call, in
// first-call order.
func callGraph(u *ir.Unit) (map[string][]string, map[string]int) {
	order := make(map[string]int, len(u.Functions))
	for i, fn := range u.Functions {
		order[fn.Name] = i
	}
	graph := make(map[string][]string, len(u.Functions))
	for _, fn := range u.Functions {
		callees := []string{}
		add := func(name string) {
			if _, ok := order[name]; ok && name != ir.ModuleFunc && !slices.Contains(callees, name) {
				callees = append(callees, name)
			}
		}
		ir.Walk(fn.Body, func(in *ir.Instr) {
			switch {
			case in.Op == ir.OpCallKnown:
				add(in.Target)
			case in.Op == ir.OpCallDyn && in.Target == lower.DynLoadGlobal && len(in.Args) == 1:
				add(in.Args[0].Text)
			}
		})
		graph[fn.Name] = callees
	}
	return graph, order
}

func tarjanSCC(graph map[string][]string, order map[string]int) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.SortFunc(scc, func(a, b string) int { return order[a] - order[b] })
			sccs = append(sccs, scc)
		}
	}

	// Visit in declaration order so the output is stable.
	nodes := make([]string, 0, len(graph))
	for name := range graph {
		nodes = append(nodes, name)
	}
	slices.SortFunc(nodes, func(a, b string) int { return order[a] - order[b] })
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccWarning(scc []string, graph map[string][]string) RecursionWarning {
	if len(scc) == 1 {
		name := scc[0]
		return RecursionWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("recursive function: %s", name),
		}
	}
	path := cyclePath(scc, graph)
	return RecursionWarning{
		Path:    path,
		Message: fmt.Sprintf("mutually recursive functions: %s", strings.Join(path, " -> ")),
	}
}

// cyclePath follows edges inside scc from its first member until it
// returns there.
func cyclePath(scc []string, graph map[string][]string) []string {
	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true
		var next string
		for _, w := range graph[current] {
			if slices.Contains(scc, w) && (!visited[w] || w == start) {
				next = w
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
