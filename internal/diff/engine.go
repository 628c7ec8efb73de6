package diff

import (
	"context"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/addr"
	"github.com/vk/converge/internal/config"
	"github.com/vk/converge/internal/ctxlog"
	"github.com/vk/converge/internal/exprs"
	"github.com/vk/converge/internal/graph"
	"github.com/vk/converge/internal/provider"
	"github.com/vk/converge/internal/state"
)

// Engine computes change sets for a whole graph against a state snapshot.
type Engine struct {
	Providers *provider.Registry
}

// NewEngine builds a diff engine on top of a provider registry.
func NewEngine(providers *provider.Registry) *Engine {
	return &Engine{Providers: providers}
}

// Compute walks the graph in dependency order and classifies every resource,
// then appends destroy change sets for resources present only in state. When
// destroy is set, the desired state is treated as empty and everything in
// state is torn down.
//
// Nodes are processed dependencies-first so that each node's attribute
// expressions can be evaluated against the projected post-apply values of
// its dependencies: attributes of a resource that will be created or
// replaced project as unknown, which is what marks dependents for update.
func (e *Engine) Compute(ctx context.Context, g *graph.Graph, records map[addr.Address]*state.Record, destroy bool) ([]*ChangeSet, error) {
	logger := ctxlog.FromContext(ctx)

	var changes []*ChangeSet
	projected := make(map[addr.Address]cty.Value, len(g.Nodes))
	for a, rec := range records {
		projected[a] = rec.Attributes
	}

	if !destroy {
		for _, node := range g.TopologicalOrder() {
			cs, proj, err := e.computeNode(ctx, node, records, projected)
			if err != nil {
				return nil, err
			}
			projected[node.Addr] = proj
			changes = append(changes, cs)
			logger.Debug("Classified resource.", "addr", node.Addr, "action", cs.Action.String())
		}
	}

	removed, err := e.computeRemoved(ctx, g, records, destroy)
	if err != nil {
		return nil, err
	}
	changes = append(changes, removed...)
	return changes, nil
}

// computeNode classifies one configured resource and returns its change set
// plus the projected post-apply attribute object used by dependents.
func (e *Engine) computeNode(ctx context.Context, node *graph.Node, records map[addr.Address]*state.Record, projected map[addr.Address]cty.Value) (*ChangeSet, cty.Value, error) {
	res := node.Config

	schema, err := e.Providers.SchemaFor(node.Addr)
	if err != nil {
		return nil, cty.NilVal, err
	}
	if err := validateArguments(res, schema); err != nil {
		return nil, cty.NilVal, err
	}

	evalCtx := buildScope(node, projected)
	desired, err := exprs.EvalResource(res, evalCtx)
	if err != nil {
		return nil, cty.NilVal, err
	}

	deps := make([]addr.Address, 0, len(node.Deps))
	for _, dep := range node.Deps {
		deps = append(deps, dep.Addr)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].String() < deps[j].String() })

	rec, exists := records[node.Addr]
	if !exists {
		cs := &ChangeSet{
			Addr:         node.Addr,
			Action:       ActionCreate,
			Attrs:        createdAttrs(desired),
			Resource:     res,
			Lifecycle:    res.Lifecycle,
			Dependencies: deps,
		}
		return cs, projectUnknownComputed(desired, schema), nil
	}

	attrs := compareAttrs(desired, rec.Attributes, schema, res.Lifecycle.IgnoreChanges)
	cs := &ChangeSet{
		Addr:         node.Addr,
		Attrs:        attrs,
		Resource:     res,
		Lifecycle:    res.Lifecycle,
		PriorID:      rec.ID,
		Dependencies: deps,
	}

	switch {
	case len(attrs) == 0:
		cs.Action = ActionNoop
		return cs, rec.Attributes, nil
	case anyForcesReplace(attrs):
		cs.Action = ActionReplace
		return cs, projectUnknownComputed(desired, schema), nil
	default:
		cs.Action = ActionUpdate
		// In-place updates keep their computed attributes (notably the
		// remote id), so dependents see known values where possible.
		return cs, mergeComputed(desired, rec.Attributes, schema), nil
	}
}

// computeRemoved emits destroy change sets for every recorded resource that
// is absent from the desired configuration (or for everything, on destroy).
func (e *Engine) computeRemoved(ctx context.Context, g *graph.Graph, records map[addr.Address]*state.Record, destroy bool) ([]*ChangeSet, error) {
	logger := ctxlog.FromContext(ctx)

	keys := make([]addr.Address, 0, len(records))
	for a := range records {
		keys = append(keys, a)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var changes []*ChangeSet
	for _, a := range keys {
		node, configured := g.Nodes[a.String()]
		if configured && !destroy {
			continue
		}
		rec := records[a]

		lifecycle := config.Lifecycle{
			CreateBeforeDestroy: rec.CreateBeforeDestroy,
			PreventDestroy:      rec.PreventDestroy,
		}
		if configured {
			lifecycle = node.Config.Lifecycle
		}
		if lifecycle.PreventDestroy {
			return nil, &ProtectedResourceError{Addr: a}
		}

		cs := &ChangeSet{
			Addr:      a,
			Action:    ActionDestroy,
			Attrs:     removedAttrs(rec.Attributes),
			Lifecycle: lifecycle,
			PriorID:   rec.ID,
			PriorDeps: rec.Dependencies,
		}
		if configured {
			cs.Resource = node.Config
		}
		changes = append(changes, cs)
		logger.Debug("Classified resource.", "addr", a, "action", "destroy")
	}
	return changes, nil
}

// buildScope assembles the evaluation scope for one node: projected values
// for everything classified so far, unknown placeholders for its remaining
// dependencies so references to not-yet-applied resources evaluate to
// unknown instead of failing.
func buildScope(node *graph.Node, projected map[addr.Address]cty.Value) *hcl.EvalContext {
	values := make(map[addr.Address]cty.Value, len(projected))
	for a, v := range projected {
		values[a] = v
	}
	for _, dep := range node.Deps {
		if _, ok := values[dep.Addr]; !ok {
			values[dep.Addr] = cty.DynamicVal
		}
	}
	return exprs.BuildEvalContext(values)
}
