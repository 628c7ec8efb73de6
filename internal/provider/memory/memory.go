// Package memory implements a provider backed by process memory. It
// simulates a remote API closely enough to exercise the full reconciliation
// path: remote identifiers, computed attributes, injectable transient and
// permanent failures, and a call log that tests assert ordering against.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/provider"
)

// Prefix is the provider prefix the memory provider registers under.
const Prefix = "mem"

// Call records one API invocation, for order-sensitive assertions.
type Call struct {
	Op           string // "create", "read", "update", "delete"
	ResourceType string
	ID           string
}

// Provider is a concurrency-safe in-memory provider.
type Provider struct {
	mu      sync.Mutex
	schemas map[string]*provider.ResourceSchema
	objects map[string]cty.Value // key: type + "/" + id

	failures  map[string]error // permanent failure per op+type, e.g. "create/mem_server"
	transient map[string]int   // remaining transient failures per op+type

	calls []Call
}

// New returns an empty provider with no registered types.
func New() *Provider {
	return &Provider{
		schemas:   make(map[string]*provider.ResourceSchema),
		objects:   make(map[string]cty.Value),
		failures:  make(map[string]error),
		transient: make(map[string]int),
	}
}

// RegisterType declares a resource type and its attribute schema. The "id"
// attribute is always present and computed.
func (p *Provider) RegisterType(resourceType string, schema *provider.ResourceSchema) {
	p.mu.Lock()
	defer p.mu.Unlock()
	attrs := make(map[string]provider.AttributeSchema, len(schema.Attributes)+1)
	for k, v := range schema.Attributes {
		attrs[k] = v
	}
	attrs["id"] = provider.AttributeSchema{Computed: true}
	p.schemas[resourceType] = &provider.ResourceSchema{Attributes: attrs}
}

// FailWith makes every future <op> call on resourceType fail permanently.
func (p *Provider) FailWith(op, resourceType string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op+"/"+resourceType] = err
}

// FailTransiently makes the next n <op> calls on resourceType fail with a
// retryable error before succeeding.
func (p *Provider) FailTransiently(op, resourceType string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transient[op+"/"+resourceType] = n
}

// ClearFailures removes every injected failure, simulating a remote outage
// that has recovered.
func (p *Provider) ClearFailures() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = make(map[string]error)
	p.transient = make(map[string]int)
}

// Calls returns a copy of the call log.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// ObjectCount reports how many remote objects currently exist.
func (p *Provider) ObjectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

// Schema implements provider.Provider.
func (p *Provider) Schema(resourceType string) (*provider.ResourceSchema, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.schemas[resourceType]
	if !ok {
		return nil, provider.Permanent(fmt.Errorf("unknown resource type %q", resourceType))
	}
	return s, nil
}

// Create implements provider.Provider.
func (p *Provider) Create(ctx context.Context, resourceType string, desired cty.Value) (*provider.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkInjected("create", resourceType); err != nil {
		return nil, err
	}
	if _, ok := p.schemas[resourceType]; !ok {
		return nil, provider.Permanent(fmt.Errorf("unknown resource type %q", resourceType))
	}
	if !desired.IsWhollyKnown() {
		return nil, provider.Permanent(fmt.Errorf("create %s: desired attributes contain unknown values", resourceType))
	}

	id := uuid.NewString()
	attrs := withID(desired, id)
	p.objects[resourceType+"/"+id] = attrs
	p.calls = append(p.calls, Call{Op: "create", ResourceType: resourceType, ID: id})
	return &provider.Instance{ID: id, Attributes: attrs}, nil
}

// Read implements provider.Provider.
func (p *Provider) Read(ctx context.Context, resourceType, id string) (*provider.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkInjected("read", resourceType); err != nil {
		return nil, err
	}
	attrs, ok := p.objects[resourceType+"/"+id]
	if !ok {
		return nil, provider.Permanent(fmt.Errorf("read %s: no object with id %q", resourceType, id))
	}
	p.calls = append(p.calls, Call{Op: "read", ResourceType: resourceType, ID: id})
	return &provider.Instance{ID: id, Attributes: attrs}, nil
}

// Update implements provider.Provider.
func (p *Provider) Update(ctx context.Context, resourceType, id string, desired cty.Value) (*provider.Instance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkInjected("update", resourceType); err != nil {
		return nil, err
	}
	if _, ok := p.objects[resourceType+"/"+id]; !ok {
		return nil, provider.Permanent(fmt.Errorf("update %s: no object with id %q", resourceType, id))
	}
	if !desired.IsWhollyKnown() {
		return nil, provider.Permanent(fmt.Errorf("update %s: desired attributes contain unknown values", resourceType))
	}

	attrs := withID(desired, id)
	p.objects[resourceType+"/"+id] = attrs
	p.calls = append(p.calls, Call{Op: "update", ResourceType: resourceType, ID: id})
	return &provider.Instance{ID: id, Attributes: attrs}, nil
}

// Delete implements provider.Provider.
func (p *Provider) Delete(ctx context.Context, resourceType, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkInjected("delete", resourceType); err != nil {
		return err
	}
	if _, ok := p.objects[resourceType+"/"+id]; !ok {
		return provider.Permanent(fmt.Errorf("delete %s: no object with id %q", resourceType, id))
	}
	delete(p.objects, resourceType+"/"+id)
	p.calls = append(p.calls, Call{Op: "delete", ResourceType: resourceType, ID: id})
	return nil
}

// checkInjected consumes one injected failure for the op/type pair, if any.
// Transient failures are consumed before permanent ones so tests can model
// rate limiting that eventually clears.
func (p *Provider) checkInjected(op, resourceType string) error {
	key := op + "/" + resourceType
	if n := p.transient[key]; n > 0 {
		p.transient[key] = n - 1
		return provider.Transient(fmt.Errorf("simulated rate limit on %s", key))
	}
	if err := p.failures[key]; err != nil {
		return provider.Permanent(err)
	}
	return nil
}

// withID returns the desired object with the computed "id" attribute merged in.
func withID(desired cty.Value, id string) cty.Value {
	attrs := map[string]cty.Value{}
	if desired.Type().IsObjectType() {
		for name, v := range desired.AsValueMap() {
			attrs[name] = v
		}
	}
	attrs["id"] = cty.StringVal(id)
	return cty.ObjectVal(attrs)
}
