// Package config holds the unified, format-agnostic representation of a
// desired-state description, decoupled from the HCL syntax it was loaded
// from. Loaders translate their native schema into this model; everything
// downstream (graph, diff, plan) consumes only the model.
package config

import (
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/converge/internal/addr"
)

// Model is the complete desired state parsed from a configuration directory.
type Model struct {
	Resources []*Resource
	Outputs   []*Output
}

// Resource is the format-agnostic representation of a `resource` block.
type Resource struct {
	Type string
	Name string

	// Arguments maps attribute names to their (unevaluated) expressions.
	// Expressions may reference other resources' attributes; those
	// references become implicit dependency edges.
	Arguments map[string]hcl.Expression

	Lifecycle Lifecycle

	// DependsOn lists explicit dependencies as "type.name" addresses.
	DependsOn []addr.Address

	// DeclRange locates the block in source, for diagnostics.
	DeclRange hcl.Range

	// DeclIndex is the position of the block within the configuration,
	// used as a deterministic tie-breaker when ordering operations.
	DeclIndex int
}

// Addr returns the resource's canonical address.
func (r *Resource) Addr() addr.Address {
	return addr.New(r.Type, r.Name)
}

// Lifecycle captures the per-resource reconciliation policy.
type Lifecycle struct {
	// CreateBeforeDestroy provisions a replacement before the original is
	// removed when a change forces replacement.
	CreateBeforeDestroy bool
	// PreventDestroy makes any plan that would destroy the resource fail.
	PreventDestroy bool
	// IgnoreChanges names attributes whose drift never produces a diff.
	IgnoreChanges []string
}

// Output is the format-agnostic representation of an `output` block.
type Output struct {
	Name      string
	Value     hcl.Expression
	DeclRange hcl.Range
}

// ResourceByAddr returns the resource with the given address, or nil.
func (m *Model) ResourceByAddr(a addr.Address) *Resource {
	for _, r := range m.Resources {
		if r.Type == a.Type && r.Name == a.Name {
			return r
		}
	}
	return nil
}
