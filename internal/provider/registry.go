package provider

import (
	"fmt"
	"sync"

	"github.com/vk/converge/internal/addr"
)

// Registry maps provider prefixes (the segment of a resource type before the
// first underscore) to Provider implementations.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register associates a provider prefix with an implementation. Registering
// the same prefix twice is a programmer error and panics, matching how
// handler registries treat double registration.
func (r *Registry) Register(prefix string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[prefix]; exists {
		panic(fmt.Sprintf("provider prefix %q registered twice", prefix))
	}
	r.providers[prefix] = p
}

// For resolves the provider responsible for the given resource address.
func (r *Registry) For(a addr.Address) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[a.ProviderName()]
	if !ok {
		return nil, fmt.Errorf("no provider registered for resource type %q (prefix %q)", a.Type, a.ProviderName())
	}
	return p, nil
}

// SchemaFor is a convenience that resolves the provider and asks it for the
// resource type's schema in one step.
func (r *Registry) SchemaFor(a addr.Address) (*ResourceSchema, error) {
	p, err := r.For(a)
	if err != nil {
		return nil, err
	}
	return p.Schema(a.Type)
}
