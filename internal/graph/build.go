package graph

import (
	"context"
	"fmt"

	"github.com/vk/converge/internal/config"
	"github.com/vk/converge/internal/ctxlog"
)

// Build constructs a complete, validated dependency graph from a config model.
func Build(ctx context.Context, model *config.Model) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")
	graph := &Graph{Nodes: make(map[string]*Node)}

	// First pass: create all nodes.
	for _, res := range model.Resources {
		id := res.Addr().String()
		if _, exists := graph.Nodes[id]; exists {
			return nil, fmt.Errorf("duplicate resource %q at %s", id, res.DeclRange)
		}
		graph.Nodes[id] = &Node{
			Addr:       res.Addr(),
			Config:     res,
			Deps:       make(map[string]*Node),
			Dependents: make(map[string]*Node),
		}
	}
	logger.Debug("Build: Node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: link dependencies.
	for _, node := range graph.SortedNodes() {
		if err := linkExplicitDeps(ctx, node, graph); err != nil {
			return nil, err
		}
		if err := linkImplicitDeps(ctx, node, graph); err != nil {
			return nil, err
		}
	}
	logger.Debug("Build: Node linking complete.")

	// Outputs carry no edges of their own, but their references must resolve.
	if err := validateOutputs(model, graph); err != nil {
		return nil, err
	}

	if err := graph.detectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Build: Cycle detection passed.")

	return graph, nil
}
