// Package plan turns a set of classified change sets into an executable,
// dependency-ordered sequence of operations. Replacement splits into a
// create-new and a destroy-old sub-operation whose relative order follows
// the resource's create_before_destroy policy; destroy operations run in
// reverse dependency order; ties among independent operations are broken by
// declaration order so plans are deterministic.
package plan

import (
	"fmt"

	"github.com/vk/converge/internal/addr"
	"github.com/vk/converge/internal/diff"
)

// OpKind is the concrete remote action one operation performs.
type OpKind int

const (
	// OpCreate provisions a resource that has no state record.
	OpCreate OpKind = iota
	// OpUpdate mutates an existing remote object in place.
	OpUpdate
	// OpDestroy removes a remote object and its state record.
	OpDestroy
	// OpCreateReplacement provisions the new instance of a replaced resource.
	OpCreateReplacement
	// OpDestroyOriginal removes the prior instance of a replaced resource
	// without touching the (already rewritten) state record.
	OpDestroyOriginal
)

// String renders the kind the way plans print it.
func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDestroy:
		return "destroy"
	case OpCreateReplacement:
		return "create replacement"
	case OpDestroyOriginal:
		return "destroy original"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Operation is one planned remote action. Operations are immutable once the
// executor starts; runtime status lives in the executor, not here.
type Operation struct {
	// Index is the operation's position in Plan.Operations.
	Index int
	Addr  addr.Address
	Kind  OpKind
	// Change is the change set this operation realizes.
	Change *diff.ChangeSet
	// DependsOn lists indices of operations that must succeed first.
	DependsOn []int

	// deps carries pointer edges during construction, before indices exist.
	deps map[*Operation]struct{}
	// declIndex and subOrder break ties deterministically.
	declIndex int
	subOrder  int
}

// dependOn records a construction-time edge, ignoring self-edges and nils.
func (o *Operation) dependOn(dep *Operation) {
	if dep == nil || dep == o {
		return
	}
	if o.deps == nil {
		o.deps = make(map[*Operation]struct{})
	}
	o.deps[dep] = struct{}{}
}

// Plan is the ordered execution sequence plus the full set of change sets
// (including no-ops, which are reported but never executed).
type Plan struct {
	Changes    []*diff.ChangeSet
	Operations []*Operation
}

// HasChanges reports whether executing the plan would do anything.
func (p *Plan) HasChanges() bool {
	return len(p.Operations) > 0
}

// ActionCounts tallies change sets per action, for plan summaries.
func (p *Plan) ActionCounts() map[diff.Action]int {
	counts := map[diff.Action]int{}
	for _, cs := range p.Changes {
		counts[cs.Action]++
	}
	return counts
}
