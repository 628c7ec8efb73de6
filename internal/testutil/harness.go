// Package testutil provides a standardized harness for integration tests:
// a temp-dir configuration, an in-memory state store and a memory provider
// seeded with a small catalog of resource types.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/converge/internal/app"
	"github.com/vk/converge/internal/executor"
	"github.com/vk/converge/internal/hcl"
	"github.com/vk/converge/internal/plan"
	"github.com/vk/converge/internal/provider"
	"github.com/vk/converge/internal/provider/memory"
	"github.com/vk/converge/internal/state"
)

// Harness holds everything an integration test needs to drive the app
// against the in-memory provider and assert on the results.
type Harness struct {
	App      *app.App
	Provider *memory.Provider
	Store    *state.MemStore
	Out      *SafeBuffer
	Logs     *SafeBuffer

	t   *testing.T
	dir string
}

// Option adjusts harness construction.
type Option func(*harnessConfig)

type harnessConfig struct {
	parallelism int
}

// WithParallelism sets the executor worker count. Defaults to 4.
func WithParallelism(n int) Option {
	return func(c *harnessConfig) { c.parallelism = n }
}

// NewHarness writes the given configuration files into a temporary
// directory and wires an App around them. Keys of files are paths relative
// to the configuration directory.
func NewHarness(t *testing.T, files map[string]string, opts ...Option) *Harness {
	t.Helper()

	cfg := &harnessConfig{parallelism: 4}
	for _, opt := range opts {
		opt(cfg)
	}

	dir := t.TempDir()
	writeFiles(t, dir, files)

	mem := memory.New()
	RegisterDefaultTypes(mem)
	reg := provider.NewRegistry()
	reg.Register(memory.Prefix, mem)

	store := state.NewMemStore()
	out := &SafeBuffer{}
	logs := &SafeBuffer{}

	appCfg := &app.Config{
		ConfigDir:   dir,
		Parallelism: cfg.parallelism,
		LogFormat:   "text",
		LogLevel:    "debug",
	}
	a := app.NewApp(out, logs, appCfg, hcl.NewLoader(), store, reg)

	return &Harness{
		App:      a,
		Provider: mem,
		Store:    store,
		Out:      out,
		Logs:     logs,
		t:        t,
		dir:      dir,
	}
}

// RegisterDefaultTypes seeds the memory provider with the resource type
// catalog the integration tests share.
func RegisterDefaultTypes(p *memory.Provider) {
	p.RegisterType("mem_network", &provider.ResourceSchema{
		Attributes: map[string]provider.AttributeSchema{
			"cidr": {Required: true, ForceReplace: true},
			"name": {},
		},
	})
	p.RegisterType("mem_server", &provider.ResourceSchema{
		Attributes: map[string]provider.AttributeSchema{
			"image":      {Required: true, ForceReplace: true},
			"size":       {Required: true},
			"network_id": {ForceReplace: true},
			"ip_address": {Computed: true},
		},
	})
	p.RegisterType("mem_bucket", &provider.ResourceSchema{
		Attributes: map[string]provider.AttributeSchema{
			"name":       {Required: true, ForceReplace: true},
			"versioning": {},
			"endpoint":   {Computed: true},
		},
	})
}

// Rewrite replaces the configuration directory's contents, simulating the
// user editing their files between runs.
func (h *Harness) Rewrite(files map[string]string) {
	h.t.Helper()
	entries, err := os.ReadDir(h.dir)
	require.NoError(h.t, err)
	for _, e := range entries {
		require.NoError(h.t, os.RemoveAll(filepath.Join(h.dir, e.Name())))
	}
	writeFiles(h.t, h.dir, files)
}

// Plan computes a plan without executing it.
func (h *Harness) Plan(ctx context.Context, destroy bool) (*plan.Plan, error) {
	h.t.Helper()
	return h.App.Plan(ctx, destroy)
}

// Apply plans and executes with auto-approval.
func (h *Harness) Apply(ctx context.Context) (*executor.Result, error) {
	h.t.Helper()
	return h.App.Apply(ctx, false, nil)
}

// Destroy plans and executes a full teardown with auto-approval.
func (h *Harness) Destroy(ctx context.Context) (*executor.Result, error) {
	h.t.Helper()
	return h.App.Apply(ctx, true, nil)
}

// MustApply applies and requires every operation to succeed.
func (h *Harness) MustApply(ctx context.Context) *executor.Result {
	h.t.Helper()
	result, err := h.Apply(ctx)
	require.NoError(h.t, err, "apply failed; output:\n%s\nlogs:\n%s", h.Out.String(), h.Logs.String())
	require.False(h.t, result.Failed(), "apply had non-successful operations; output:\n%s", h.Out.String())
	return result
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}
