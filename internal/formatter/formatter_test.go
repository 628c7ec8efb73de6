package formatter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/converge/internal/graph"
	hclload "github.com/vk/converge/internal/hcl"
)

func buildGraph(t *testing.T) *graph.Graph {
	t.Helper()
	dir := t.TempDir()
	src := `
		resource "mem_network" "main" {
			cidr = "10.0.0.0/16"
		}

		resource "mem_server" "web" {
			image      = "ubuntu"
			size       = "small"
			network_id = mem_network.main.id
		}
	`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(src), 0o644))
	model, err := hclload.NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	g, err := graph.Build(context.Background(), model)
	require.NoError(t, err)
	return g
}

func TestToJSON(t *testing.T) {
	out, err := ToJSON(buildGraph(t))
	require.NoError(t, err)

	var decoded struct {
		Nodes []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"nodes"`
		Edges []struct {
			From     string `json:"from"`
			To       string `json:"to"`
			Relation string `json:"relation"`
		} `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))

	require.Len(t, decoded.Nodes, 2)
	assert.Equal(t, "mem_network.main", decoded.Nodes[0].ID)
	assert.Equal(t, "mem_network", decoded.Nodes[0].Type)

	require.Len(t, decoded.Edges, 1)
	assert.Equal(t, "mem_server.web", decoded.Edges[0].From)
	assert.Equal(t, "mem_network.main", decoded.Edges[0].To)
	assert.Equal(t, "DEPENDS_ON", decoded.Edges[0].Relation)
}

func TestToDOT(t *testing.T) {
	out, err := ToDOT(buildGraph(t))
	require.NoError(t, err)

	assert.Contains(t, out, "digraph converge")
	assert.Contains(t, out, `"mem_network.main"`)
	assert.Contains(t, out, `"mem_server.web"->"mem_network.main"`)
	assert.Contains(t, out, "shape=box")
}
