package graph

import "sort"

// TopologicalOrder returns the nodes so that every dependency precedes its
// dependents. Ties among independent nodes are broken by declaration order,
// so the result is deterministic for a given configuration. Build has
// already rejected cycles; a leftover cycle here would simply truncate the
// result, which callers treat as an internal invariant violation.
func (g *Graph) TopologicalOrder() []*Node {
	indegree := make(map[string]int, len(g.Nodes))
	for id, n := range g.Nodes {
		indegree[id] = len(n.Deps)
	}

	var ready []*Node
	for _, n := range g.Nodes {
		if indegree[n.Addr.String()] == 0 {
			ready = append(ready, n)
		}
	}

	out := make([]*Node, 0, len(g.Nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool {
			return ready[i].Config.DeclIndex < ready[j].Config.DeclIndex
		})
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)

		for _, dep := range sortedDeps(n.Dependents) {
			id := dep.Addr.String()
			indegree[id]--
			if indegree[id] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	return out
}
