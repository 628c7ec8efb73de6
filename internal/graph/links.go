package graph

import (
	"context"

	"github.com/vk/converge/internal/config"
	"github.com/vk/converge/internal/ctxlog"
	"github.com/vk/converge/internal/exprs"
)

// linkExplicitDeps wires edges declared through depends_on.
func linkExplicitDeps(ctx context.Context, node *Node, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)
	for _, depAddr := range node.Config.DependsOn {
		depNode, ok := graph.Nodes[depAddr.String()]
		if !ok {
			return &UnresolvedReferenceError{Referrer: node.Addr, Subject: depAddr.String()}
		}
		if _, exists := node.Deps[depAddr.String()]; !exists {
			logger.Debug("Linking explicit dependency.", "from", node.Addr, "to", depAddr)
			node.Deps[depAddr.String()] = depNode
			depNode.Dependents[node.Addr.String()] = node
		}
	}
	return nil
}

// linkImplicitDeps wires edges discovered from variable traversals inside the
// node's attribute expressions. Every traversal must name a resource that
// exists in the configuration.
func linkImplicitDeps(ctx context.Context, node *Node, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)
	for _, expr := range node.Config.Arguments {
		for _, traversal := range expr.Variables() {
			ref, err := exprs.ParseRef(traversal)
			if err != nil {
				return &UnresolvedReferenceError{
					Referrer: node.Addr,
					Subject:  exprs.TraversalString(traversal),
				}
			}
			depID := ref.Target.String()
			depNode, ok := graph.Nodes[depID]
			if !ok {
				return &UnresolvedReferenceError{Referrer: node.Addr, Subject: depID}
			}
			// Self-references are added as normal edges; the cycle pass
			// reports them uniformly.
			if _, exists := node.Deps[depID]; !exists {
				logger.Debug("Linking implicit dependency.", "from", node.Addr, "to", depID)
				node.Deps[depID] = depNode
				depNode.Dependents[node.Addr.String()] = node
			}
		}
	}
	return nil
}

// validateOutputs checks that every output expression references only
// resources that exist.
func validateOutputs(model *config.Model, graph *Graph) error {
	for _, out := range model.Outputs {
		for _, traversal := range out.Value.Variables() {
			ref, err := exprs.ParseRef(traversal)
			if err != nil {
				return &UnresolvedReferenceError{Output: out.Name, Subject: exprs.TraversalString(traversal)}
			}
			if _, ok := graph.Nodes[ref.Target.String()]; !ok {
				return &UnresolvedReferenceError{Output: out.Name, Subject: ref.Target.String()}
			}
		}
	}
	return nil
}
