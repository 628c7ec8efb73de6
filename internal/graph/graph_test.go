package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/converge/internal/config"
	hclload "github.com/vk/converge/internal/hcl"
)

// loadModel parses an HCL snippet into a config model for graph tests.
func loadModel(t *testing.T, src string) *config.Model {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	model, err := hclload.NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	return model
}

func TestBuild_LinksImplicitAndExplicitDeps(t *testing.T) {
	model := loadModel(t, `
		resource "mem_network" "main" {
			cidr = "10.0.0.0/16"
		}

		resource "mem_server" "web" {
			image      = "ubuntu"
			size       = "small"
			network_id = mem_network.main.id
		}

		resource "mem_bucket" "logs" {
			name       = "logs"
			depends_on = [mem_server.web]
		}
	`)

	g, err := Build(context.Background(), model)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 3)

	web := g.Nodes["mem_server.web"]
	require.NotNil(t, web)
	assert.Contains(t, web.Deps, "mem_network.main")
	assert.Contains(t, g.Nodes["mem_network.main"].Dependents, "mem_server.web")

	logs := g.Nodes["mem_bucket.logs"]
	require.NotNil(t, logs)
	assert.Contains(t, logs.Deps, "mem_server.web")
	assert.Contains(t, web.Dependents, "mem_bucket.logs")
}

func TestBuild_DuplicateResource(t *testing.T) {
	model := loadModel(t, `
		resource "mem_bucket" "a" {
			name = "one"
		}
		resource "mem_bucket" "a" {
			name = "two"
		}
	`)

	_, err := Build(context.Background(), model)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate resource "mem_bucket.a"`)
}

func TestBuild_UnresolvedImplicitReference(t *testing.T) {
	model := loadModel(t, `
		resource "mem_server" "web" {
			image = "ubuntu"
			size  = mem_network.missing.id
		}
	`)

	_, err := Build(context.Background(), model)
	require.Error(t, err)

	var refErr *UnresolvedReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "mem_server.web", refErr.Referrer.String())
	assert.Equal(t, "mem_network.missing", refErr.Subject)
}

func TestBuild_UnresolvedExplicitDependsOn(t *testing.T) {
	model := loadModel(t, `
		resource "mem_bucket" "logs" {
			name       = "logs"
			depends_on = [mem_server.gone]
		}
	`)

	_, err := Build(context.Background(), model)
	require.Error(t, err)

	var refErr *UnresolvedReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "mem_server.gone", refErr.Subject)
}

func TestBuild_CycleDetected(t *testing.T) {
	model := loadModel(t, `
		resource "mem_bucket" "a" {
			name = mem_bucket.b.id
		}
		resource "mem_bucket" "b" {
			name = mem_bucket.a.id
		}
	`)

	_, err := Build(context.Background(), model)
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Len(t, cycleErr.Through, 2)
}

func TestBuild_SelfReferenceIsCycle(t *testing.T) {
	model := loadModel(t, `
		resource "mem_bucket" "a" {
			name = mem_bucket.a.id
		}
	`)

	_, err := Build(context.Background(), model)
	require.Error(t, err)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "mem_bucket.a", cycleErr.Through[0].String())
}

func TestBuild_OutputReferencingUnknownResource(t *testing.T) {
	model := loadModel(t, `
		resource "mem_bucket" "a" {
			name = "a"
		}
		output "endpoint" {
			value = mem_server.missing.ip_address
		}
	`)

	_, err := Build(context.Background(), model)
	require.Error(t, err)

	var refErr *UnresolvedReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "endpoint", refErr.Output)
	assert.Equal(t, "mem_server.missing", refErr.Subject)
}

func TestTopologicalOrder_DependenciesFirst(t *testing.T) {
	model := loadModel(t, `
		resource "mem_bucket" "c" {
			name = mem_bucket.b.id
		}
		resource "mem_bucket" "b" {
			name = mem_bucket.a.id
		}
		resource "mem_bucket" "a" {
			name = "root"
		}
	`)

	g, err := Build(context.Background(), model)
	require.NoError(t, err)

	order := g.TopologicalOrder()
	require.Len(t, order, 3)
	pos := map[string]int{}
	for i, n := range order {
		pos[n.Addr.String()] = i
	}
	assert.Less(t, pos["mem_bucket.a"], pos["mem_bucket.b"])
	assert.Less(t, pos["mem_bucket.b"], pos["mem_bucket.c"])
}

func TestTopologicalOrder_TieBreakIsDeclarationOrder(t *testing.T) {
	model := loadModel(t, `
		resource "mem_bucket" "z" {
			name = "z"
		}
		resource "mem_bucket" "m" {
			name = "m"
		}
		resource "mem_bucket" "a" {
			name = "a"
		}
	`)

	g, err := Build(context.Background(), model)
	require.NoError(t, err)

	order := g.TopologicalOrder()
	require.Len(t, order, 3)
	assert.Equal(t, "mem_bucket.z", order[0].Addr.String())
	assert.Equal(t, "mem_bucket.m", order[1].Addr.String())
	assert.Equal(t, "mem_bucket.a", order[2].Addr.String())
}
