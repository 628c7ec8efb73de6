package plan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/addr"
	"github.com/vk/converge/internal/diff"
	"github.com/vk/converge/internal/graph"
	hclload "github.com/vk/converge/internal/hcl"
	"github.com/vk/converge/internal/plan"
	"github.com/vk/converge/internal/provider"
	"github.com/vk/converge/internal/provider/memory"
	"github.com/vk/converge/internal/state"
	"github.com/vk/converge/internal/testutil"
)

// computePlan runs the full plan pipeline: parse, build graph, diff against
// the given records, order operations.
func computePlan(t *testing.T, src string, records map[addr.Address]*state.Record, destroy bool) *plan.Plan {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(src), 0o644))
	model, err := hclload.NewLoader().Load(ctx, dir)
	require.NoError(t, err)
	g, err := graph.Build(ctx, model)
	require.NoError(t, err)

	mem := memory.New()
	testutil.RegisterDefaultTypes(mem)
	reg := provider.NewRegistry()
	reg.Register(memory.Prefix, mem)

	changes, err := diff.NewEngine(reg).Compute(ctx, g, records, destroy)
	require.NoError(t, err)

	p, err := plan.Build(ctx, g, changes)
	require.NoError(t, err)
	return p
}

// opPosition finds the index of the first operation matching addr and kind.
func opPosition(t *testing.T, p *plan.Plan, address string, kind plan.OpKind) int {
	t.Helper()
	for i, op := range p.Operations {
		if op.Addr.String() == address && op.Kind == kind {
			return i
		}
	}
	t.Fatalf("no %s operation for %s in plan", kind, address)
	return -1
}

func networkRecord(id, cidr string) *state.Record {
	return &state.Record{
		Addr: addr.New("mem_network", "main"),
		ID:   id,
		Attributes: cty.ObjectVal(map[string]cty.Value{
			"id":   cty.StringVal(id),
			"cidr": cty.StringVal(cidr),
		}),
	}
}

func TestBuild_CreateOrderFollowsDependencies(t *testing.T) {
	p := computePlan(t, `
		resource "mem_server" "web" {
			image      = "ubuntu"
			size       = "small"
			network_id = mem_network.main.id
		}

		resource "mem_network" "main" {
			cidr = "10.0.0.0/16"
		}
	`, nil, false)

	require.Len(t, p.Operations, 2)
	netPos := opPosition(t, p, "mem_network.main", plan.OpCreate)
	webPos := opPosition(t, p, "mem_server.web", plan.OpCreate)
	assert.Less(t, netPos, webPos)
	assert.Contains(t, p.Operations[webPos].DependsOn, netPos)
}

func TestBuild_NoopsProduceNoOperations(t *testing.T) {
	records := map[addr.Address]*state.Record{
		addr.New("mem_network", "main"): networkRecord("net-1", "10.0.0.0/16"),
	}
	p := computePlan(t, `
		resource "mem_network" "main" {
			cidr = "10.0.0.0/16"
		}
	`, records, false)

	assert.False(t, p.HasChanges())
	assert.Empty(t, p.Operations)
	require.Len(t, p.Changes, 1)
	assert.Equal(t, diff.ActionNoop, p.Changes[0].Action)
}

func TestBuild_DestroyRunsInReverseDependencyOrder(t *testing.T) {
	records := map[addr.Address]*state.Record{
		addr.New("mem_network", "main"): networkRecord("net-1", "10.0.0.0/16"),
		addr.New("mem_server", "web"): {
			Addr: addr.New("mem_server", "web"),
			ID:   "srv-1",
			Attributes: cty.ObjectVal(map[string]cty.Value{
				"id":         cty.StringVal("srv-1"),
				"image":      cty.StringVal("ubuntu"),
				"size":       cty.StringVal("small"),
				"network_id": cty.StringVal("net-1"),
			}),
			Dependencies: []addr.Address{addr.New("mem_network", "main")},
		},
	}
	p := computePlan(t, `
		resource "mem_network" "main" {
			cidr = "10.0.0.0/16"
		}

		resource "mem_server" "web" {
			image      = "ubuntu"
			size       = "small"
			network_id = mem_network.main.id
		}
	`, records, true)

	require.Len(t, p.Operations, 2)
	webPos := opPosition(t, p, "mem_server.web", plan.OpDestroy)
	netPos := opPosition(t, p, "mem_network.main", plan.OpDestroy)
	assert.Less(t, webPos, netPos)
	assert.Contains(t, p.Operations[netPos].DependsOn, webPos)
}

func TestBuild_RemovedResourceDestroyUsesRecordedDeps(t *testing.T) {
	// Neither resource is configured any more; ordering must come from the
	// dependencies captured in their state records.
	records := map[addr.Address]*state.Record{
		addr.New("mem_network", "main"): networkRecord("net-1", "10.0.0.0/16"),
		addr.New("mem_server", "web"): {
			Addr: addr.New("mem_server", "web"),
			ID:   "srv-1",
			Attributes: cty.ObjectVal(map[string]cty.Value{
				"id":         cty.StringVal("srv-1"),
				"image":      cty.StringVal("ubuntu"),
				"size":       cty.StringVal("small"),
				"network_id": cty.StringVal("net-1"),
			}),
			Dependencies: []addr.Address{addr.New("mem_network", "main")},
		},
	}
	p := computePlan(t, `
		resource "mem_bucket" "keep" {
			name = "keep"
		}
	`, records, false)

	webPos := opPosition(t, p, "mem_server.web", plan.OpDestroy)
	netPos := opPosition(t, p, "mem_network.main", plan.OpDestroy)
	assert.Less(t, webPos, netPos)
}

func TestBuild_ReplaceDefaultsToDestroyBeforeCreate(t *testing.T) {
	records := map[addr.Address]*state.Record{
		addr.New("mem_network", "main"): networkRecord("net-1", "10.0.0.0/16"),
	}
	p := computePlan(t, `
		resource "mem_network" "main" {
			cidr = "10.1.0.0/16"
		}
	`, records, false)

	require.Len(t, p.Operations, 2)
	destroyPos := opPosition(t, p, "mem_network.main", plan.OpDestroyOriginal)
	createPos := opPosition(t, p, "mem_network.main", plan.OpCreateReplacement)
	assert.Less(t, destroyPos, createPos)
	assert.Contains(t, p.Operations[createPos].DependsOn, destroyPos)
}

func TestBuild_CreateBeforeDestroyReplacement(t *testing.T) {
	records := map[addr.Address]*state.Record{
		addr.New("mem_network", "main"): networkRecord("net-1", "10.0.0.0/16"),
	}
	p := computePlan(t, `
		resource "mem_network" "main" {
			cidr = "10.1.0.0/16"

			lifecycle {
				create_before_destroy = true
			}
		}
	`, records, false)

	require.Len(t, p.Operations, 2)
	createPos := opPosition(t, p, "mem_network.main", plan.OpCreateReplacement)
	destroyPos := opPosition(t, p, "mem_network.main", plan.OpDestroyOriginal)
	assert.Less(t, createPos, destroyPos)
}

func TestBuild_CreateBeforeDestroyHoldsOldInstanceForDependents(t *testing.T) {
	// The replaced network's old instance may only disappear after every
	// dependent has been repointed at the new one.
	records := map[addr.Address]*state.Record{
		addr.New("mem_network", "main"): networkRecord("net-1", "10.0.0.0/16"),
		addr.New("mem_bucket", "logs"): {
			Addr: addr.New("mem_bucket", "logs"),
			ID:   "bkt-1",
			Attributes: cty.ObjectVal(map[string]cty.Value{
				"id":         cty.StringVal("bkt-1"),
				"name":       cty.StringVal("logs"),
				"versioning": cty.StringVal("net-1"),
			}),
			Dependencies: []addr.Address{addr.New("mem_network", "main")},
		},
	}
	p := computePlan(t, `
		resource "mem_network" "main" {
			cidr = "10.1.0.0/16"

			lifecycle {
				create_before_destroy = true
			}
		}

		resource "mem_bucket" "logs" {
			name       = "logs"
			versioning = mem_network.main.id
		}
	`, records, false)

	require.Len(t, p.Operations, 3)
	createPos := opPosition(t, p, "mem_network.main", plan.OpCreateReplacement)
	updatePos := opPosition(t, p, "mem_bucket.logs", plan.OpUpdate)
	destroyPos := opPosition(t, p, "mem_network.main", plan.OpDestroyOriginal)

	assert.Less(t, createPos, updatePos)
	assert.Less(t, updatePos, destroyPos)
	assert.Contains(t, p.Operations[destroyPos].DependsOn, updatePos)
}

func TestBuild_IndependentResourcesKeepDeclarationOrder(t *testing.T) {
	p := computePlan(t, `
		resource "mem_bucket" "z" {
			name = "z"
		}
		resource "mem_bucket" "m" {
			name = "m"
		}
		resource "mem_bucket" "a" {
			name = "a"
		}
	`, nil, false)

	require.Len(t, p.Operations, 3)
	assert.Equal(t, "mem_bucket.z", p.Operations[0].Addr.String())
	assert.Equal(t, "mem_bucket.m", p.Operations[1].Addr.String())
	assert.Equal(t, "mem_bucket.a", p.Operations[2].Addr.String())
}

func TestRender_PlanOutput(t *testing.T) {
	records := map[addr.Address]*state.Record{
		addr.New("mem_network", "main"): networkRecord("net-1", "10.0.0.0/16"),
	}
	p := computePlan(t, `
		resource "mem_network" "main" {
			cidr = "10.1.0.0/16"
		}

		resource "mem_bucket" "logs" {
			name = "logs"
		}
	`, records, false)

	out := p.Render()
	assert.Contains(t, out, "+ mem_bucket.logs (create)")
	assert.Contains(t, out, "-/+ mem_network.main (replace, destroy before create)")
	assert.Contains(t, out, "# forces replacement")
	assert.Contains(t, out, "Plan: 1 to create, 0 to update, 1 to replace, 0 to destroy.")
}
