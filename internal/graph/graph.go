// Package graph builds the typed resource dependency graph from a config
// model. Building is a pure transformation: it creates one node per resource
// block, links implicit dependencies discovered in attribute expressions and
// explicit depends_on entries, and rejects cycles and dangling references
// before anything downstream runs.
package graph

import (
	"sort"

	"github.com/vk/converge/internal/addr"
	"github.com/vk/converge/internal/config"
)

// Node is a single resource vertex. Nodes are immutable once Build returns.
type Node struct {
	Addr   addr.Address
	Config *config.Resource

	// Deps holds the nodes this node depends on (predecessors).
	Deps map[string]*Node
	// Dependents holds the nodes that depend on this node (successors).
	Dependents map[string]*Node
}

// Graph is the validated, acyclic resource dependency graph.
type Graph struct {
	// Nodes is keyed by the canonical "type.name" address.
	Nodes map[string]*Node
}

// SortedNodes returns the nodes in declaration order. Declaration order is
// the deterministic tie-breaker used throughout planning.
func (g *Graph) SortedNodes() []*Node {
	nodes := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Config.DeclIndex < nodes[j].Config.DeclIndex
	})
	return nodes
}

// sortedDeps returns a node's dependencies in declaration order.
func sortedDeps(m map[string]*Node) []*Node {
	nodes := make([]*Node, 0, len(m))
	for _, n := range m {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Config.DeclIndex < nodes[j].Config.DeclIndex
	})
	return nodes
}

// detectCycles walks the graph with a classic three-colour depth-first
// search. It returns a CycleError naming the offending path if any edge
// sequence loops back on itself.
func (g *Graph) detectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []addr.Address

	var visit func(n *Node) *CycleError
	visit = func(n *Node) *CycleError {
		id := n.Addr.String()
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			// The node is already on the recursion stack: report the loop
			// from its first occurrence onward.
			cycle := []addr.Address{n.Addr}
			for i := len(stack) - 1; i >= 0 && stack[i] != n.Addr; i-- {
				cycle = append(cycle, stack[i])
			}
			return &CycleError{Through: cycle}
		}

		temporary[id] = true
		stack = append(stack, n.Addr)

		for _, dependent := range sortedDeps(n.Dependents) {
			if err := visit(dependent); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, n := range g.SortedNodes() {
		if !permanent[n.Addr.String()] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
