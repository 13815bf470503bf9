// Package ast is the input model: source AST nodes decorated with the
// static facts computed upstream (known constants, inferred types, trust
// levels and feedback site keys).
//
// Nodes are decoded once and never mutated afterwards. Every stage of the
// pipeline reads them through *Node pointers, which also serve as stable
// identities for substitution maps.
package ast
