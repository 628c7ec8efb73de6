package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/addr"
)

// stubProvider is the minimal Provider used for registry tests.
type stubProvider struct{}

func (stubProvider) Schema(resourceType string) (*ResourceSchema, error) {
	return &ResourceSchema{Attributes: map[string]AttributeSchema{}}, nil
}
func (stubProvider) Create(ctx context.Context, resourceType string, desired cty.Value) (*Instance, error) {
	return &Instance{}, nil
}
func (stubProvider) Read(ctx context.Context, resourceType, id string) (*Instance, error) {
	return &Instance{}, nil
}
func (stubProvider) Update(ctx context.Context, resourceType, id string, desired cty.Value) (*Instance, error) {
	return &Instance{}, nil
}
func (stubProvider) Delete(ctx context.Context, resourceType, id string) error { return nil }

func TestRegistry_ForRoutesByPrefix(t *testing.T) {
	reg := NewRegistry()
	stub := stubProvider{}
	reg.Register("mem", stub)

	p, err := reg.For(addr.New("mem_server", "web"))
	require.NoError(t, err)
	assert.Equal(t, stub, p)
}

func TestRegistry_UnknownPrefix(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.For(addr.New("cloud_server", "web"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no provider registered")
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register("mem", stubProvider{})
	assert.Panics(t, func() { reg.Register("mem", stubProvider{}) })
}

func TestTransientAndPermanentWrappers(t *testing.T) {
	base := assert.AnError

	tr := Transient(base)
	var transient *TransientError
	require.ErrorAs(t, tr, &transient)
	assert.ErrorIs(t, tr, base)

	pe := Permanent(base)
	var permanent *PermanentError
	require.ErrorAs(t, pe, &permanent)
	assert.ErrorIs(t, pe, base)
}
