// Package diff compares the desired state of each resource against its
// last-applied record and classifies what has to happen: nothing, an
// in-place update, a full replacement, a creation, or a destruction.
// Classification is attribute-driven: the provider schema decides which
// changed attributes can be updated in place and which force a replace.
package diff

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/addr"
	"github.com/vk/converge/internal/config"
)

// Action classifies the overall operation a ChangeSet calls for.
type Action int

const (
	ActionNoop Action = iota
	ActionCreate
	ActionUpdate
	ActionReplace
	ActionDestroy
)

// String renders the action the way plans print it.
func (a Action) String() string {
	switch a {
	case ActionNoop:
		return "no-op"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionReplace:
		return "replace"
	case ActionDestroy:
		return "destroy"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// ChangeKind classifies one attribute-level difference.
type ChangeKind int

const (
	AttrAdded ChangeKind = iota
	AttrChanged
	AttrRemoved
)

// AttributeDiff is one attribute-level difference between desired and
// last-applied state.
type AttributeDiff struct {
	Name string
	Old  cty.Value
	New  cty.Value
	Kind ChangeKind
	// ForcesReplace is set when the provider schema declares this attribute
	// immutable in place.
	ForcesReplace bool
}

// ChangeSet is the complete diff for one resource, with attribute diffs
// sorted by name for deterministic rendering.
type ChangeSet struct {
	Addr   addr.Address
	Action Action
	Attrs  []AttributeDiff

	// Resource is the desired configuration; nil when the resource exists
	// only in state (a destroy of a removed resource).
	Resource *config.Resource

	// Lifecycle is the effective policy: from the configuration when
	// present, otherwise from the recorded state.
	Lifecycle config.Lifecycle

	// PriorID is the remote identifier from state for update, replace and
	// destroy actions; empty for create.
	PriorID string

	// Dependencies are the node's current dependency addresses, persisted
	// into the state record when the operation succeeds.
	Dependencies []addr.Address

	// PriorDeps are the dependencies recorded in state, used to order
	// destroys once the configuration no longer declares the resource.
	PriorDeps []addr.Address
}

// ProtectedResourceError reports that the plan would destroy a resource
// whose lifecycle policy forbids it.
type ProtectedResourceError struct {
	Addr addr.Address
}

func (e *ProtectedResourceError) Error() string {
	return fmt.Sprintf("resource %s is protected by prevent_destroy and cannot be destroyed", e.Addr)
}

// sortAttrs orders attribute diffs by name.
func sortAttrs(attrs []AttributeDiff) {
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
}
