package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/converge/internal/addr"
	"github.com/vk/converge/internal/ctxlog"
	"github.com/vk/converge/internal/diff"
	"github.com/vk/converge/internal/graph"
)

// resourceOps groups the operations belonging to one resource: at most one
// "forward" operation making its new value available (create, update or
// create-replacement) and at most one destroy-flavoured operation.
type resourceOps struct {
	forward *Operation
	destroy *Operation
	change  *diff.ChangeSet
}

// Build orders the given change sets into an executable plan.
func Build(ctx context.Context, g *graph.Graph, changes []*diff.ChangeSet) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	p := &Plan{Changes: changes}

	byAddr := make(map[addr.Address]*resourceOps, len(changes))
	var all []*Operation

	// First pass: materialize operations, including the intra-resource edge
	// between the two halves of a replacement.
	for i, cs := range changes {
		ops := &resourceOps{change: cs}
		declIndex := len(changes) + i // removed-from-config resources sort last among ties
		if cs.Resource != nil {
			declIndex = cs.Resource.DeclIndex
		}

		switch cs.Action {
		case diff.ActionNoop:
			continue
		case diff.ActionCreate:
			ops.forward = &Operation{Addr: cs.Addr, Kind: OpCreate, Change: cs, declIndex: declIndex}
		case diff.ActionUpdate:
			ops.forward = &Operation{Addr: cs.Addr, Kind: OpUpdate, Change: cs, declIndex: declIndex}
		case diff.ActionDestroy:
			ops.destroy = &Operation{Addr: cs.Addr, Kind: OpDestroy, Change: cs, declIndex: declIndex}
		case diff.ActionReplace:
			ops.forward = &Operation{Addr: cs.Addr, Kind: OpCreateReplacement, Change: cs, declIndex: declIndex}
			ops.destroy = &Operation{Addr: cs.Addr, Kind: OpDestroyOriginal, Change: cs, declIndex: declIndex}
			if cs.Lifecycle.CreateBeforeDestroy {
				ops.forward.subOrder = 0
				ops.destroy.subOrder = 1
				ops.destroy.dependOn(ops.forward)
			} else {
				ops.destroy.subOrder = 0
				ops.forward.subOrder = 1
				ops.forward.dependOn(ops.destroy)
			}
		default:
			return nil, fmt.Errorf("internal: unhandled action %v for %s", cs.Action, cs.Addr)
		}

		byAddr[cs.Addr] = ops
		if ops.forward != nil {
			all = append(all, ops.forward)
		}
		if ops.destroy != nil {
			all = append(all, ops.destroy)
		}
	}

	// Second pass: inter-resource edges.
	for _, cs := range changes {
		cur, ok := byAddr[cs.Addr]
		if !ok {
			continue
		}
		for _, depAddr := range dependenciesOf(g, cs) {
			dep, ok := byAddr[depAddr]
			if !ok {
				continue // dependency is a no-op; nothing to order against
			}

			// A resource's new value must exist before its dependents use it.
			if cur.forward != nil {
				cur.forward.dependOn(dep.forward)
			}

			// Destroys run in reverse dependency order: the dependent's
			// destroy completes before the dependency's.
			if cur.destroy != nil {
				dep.destroy.safeDependOn(cur.destroy)
			}

			// Under create-before-destroy, the old instance of a replaced
			// dependency lingers until every dependent has been repointed
			// at the new one.
			if dep.destroy != nil && dep.destroy.Kind == OpDestroyOriginal &&
				dep.change.Lifecycle.CreateBeforeDestroy && cur.forward != nil {
				dep.destroy.dependOn(cur.forward)
			}
		}
	}

	ordered, err := sortOperations(all)
	if err != nil {
		return nil, err
	}
	p.Operations = ordered
	logger.Debug("Plan built.", "operations", len(ordered), "changes", len(changes))
	return p, nil
}

// safeDependOn is dependOn tolerating a nil receiver, which happens when the
// dependency side of an edge has no destroy operation.
func (o *Operation) safeDependOn(dep *Operation) {
	if o == nil {
		return
	}
	o.dependOn(dep)
}

// dependenciesOf returns the dependency addresses relevant for ordering one
// change set: graph edges while the resource is configured, recorded state
// dependencies once it is not.
func dependenciesOf(g *graph.Graph, cs *diff.ChangeSet) []addr.Address {
	if node, ok := g.Nodes[cs.Addr.String()]; ok {
		deps := make([]addr.Address, 0, len(node.Deps))
		for _, dep := range node.Deps {
			deps = append(deps, dep.Addr)
		}
		sort.Slice(deps, func(i, j int) bool { return deps[i].String() < deps[j].String() })
		return deps
	}
	return cs.PriorDeps
}

// sortOperations runs Kahn's algorithm over the pointer edges, breaking ties
// by declaration order (and by sub-operation order within one resource). A
// residual cycle means the builder produced contradictory constraints, which
// the graph builder should have made impossible.
func sortOperations(all []*Operation) ([]*Operation, error) {
	indegree := make(map[*Operation]int, len(all))
	dependents := make(map[*Operation][]*Operation, len(all))
	for _, op := range all {
		indegree[op] = len(op.deps)
		for dep := range op.deps {
			dependents[dep] = append(dependents[dep], op)
		}
	}

	less := func(a, b *Operation) bool {
		if a.declIndex != b.declIndex {
			return a.declIndex < b.declIndex
		}
		return a.subOrder < b.subOrder
	}

	var ready []*Operation
	for _, op := range all {
		if indegree[op] == 0 {
			ready = append(ready, op)
		}
	}

	ordered := make([]*Operation, 0, len(all))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		op := ready[0]
		ready = ready[1:]
		ordered = append(ordered, op)

		next := dependents[op]
		sort.Slice(next, func(i, j int) bool { return less(next[i], next[j]) })
		for _, dependent := range next {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(ordered) != len(all) {
		return nil, fmt.Errorf("internal: operation ordering contains a cycle; the dependency graph validation should have rejected this configuration")
	}

	// Materialize indices now that positions are final.
	position := make(map[*Operation]int, len(ordered))
	for i, op := range ordered {
		op.Index = i
		position[op] = i
	}
	for _, op := range ordered {
		op.DependsOn = op.DependsOn[:0]
		for dep := range op.deps {
			op.DependsOn = append(op.DependsOn, position[dep])
		}
		sort.Ints(op.DependsOn)
	}
	return ordered, nil
}
