// Package formatter renders the resource dependency graph for human and
// machine consumption: Graphviz DOT for visualisation, JSON for tooling.
package formatter

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/awalterschulze/gographviz"

	"github.com/vk/converge/internal/graph"
)

// jsonNode and jsonEdge form the JSON export layout.
type jsonNode struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type jsonEdge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

type jsonGraph struct {
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
}

const dependsOnRelation = "DEPENDS_ON"

// ToJSON renders the graph as an indented JSON document.
func ToJSON(g *graph.Graph) (string, error) {
	out := jsonGraph{Nodes: []jsonNode{}, Edges: []jsonEdge{}}

	for _, n := range g.SortedNodes() {
		out.Nodes = append(out.Nodes, jsonNode{ID: n.Addr.String(), Type: n.Addr.Type, Name: n.Addr.Name})
		for _, dep := range sortedEdgeTargets(n) {
			out.Edges = append(out.Edges, jsonEdge{From: n.Addr.String(), To: dep, Relation: dependsOnRelation})
		}
	}

	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ToDOT renders the graph in Graphviz DOT form, edges pointing from each
// resource to the resources it depends on.
func ToDOT(g *graph.Graph) (string, error) {
	dot := gographviz.NewGraph()
	if err := dot.SetName("converge"); err != nil {
		return "", err
	}
	if err := dot.SetDir(true); err != nil {
		return "", err
	}

	for _, n := range g.SortedNodes() {
		if err := dot.AddNode("converge", quote(n.Addr.String()), map[string]string{
			"shape": "box",
		}); err != nil {
			return "", err
		}
	}
	for _, n := range g.SortedNodes() {
		for _, dep := range sortedEdgeTargets(n) {
			if err := dot.AddEdge(quote(n.Addr.String()), quote(dep), true, nil); err != nil {
				return "", err
			}
		}
	}
	return dot.String(), nil
}

// sortedEdgeTargets lists a node's dependency addresses sorted for stable output.
func sortedEdgeTargets(n *graph.Node) []string {
	targets := make([]string, 0, len(n.Deps))
	for id := range n.Deps {
		targets = append(targets, id)
	}
	sort.Strings(targets)
	return targets
}

// quote wraps an identifier for DOT, where dots require quoting.
func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
