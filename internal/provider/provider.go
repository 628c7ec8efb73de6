// Package provider defines the capability interface the executor uses to
// mutate the remote system, one implementation per provider prefix. The
// engine never talks to a remote API directly; everything goes through this
// contract so providers stay swappable and tests can inject simulated ones.
package provider

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Instance is the remote system's view of one resource: its remote
// identifier plus the full current attribute object, including computed
// attributes the configuration never set.
type Instance struct {
	ID         string
	Attributes cty.Value
}

// AttributeSchema declares how one attribute of a resource type behaves
// under reconciliation.
type AttributeSchema struct {
	// Required attributes must be set in the configuration.
	Required bool
	// Computed attributes are produced by the remote system and never
	// diffed against the configuration.
	Computed bool
	// ForceReplace attributes cannot be changed in place; a change forces
	// the resource to be replaced.
	ForceReplace bool
}

// ResourceSchema describes the attribute surface of one resource type.
type ResourceSchema struct {
	Attributes map[string]AttributeSchema
}

// Provider is the per-type capability interface against the remote API.
// Every call either returns the resulting remote instance or a typed
// failure; TransientError results are retried by the executor, anything
// else is surfaced immediately.
type Provider interface {
	// Schema returns the attribute schema for a resource type it manages.
	Schema(resourceType string) (*ResourceSchema, error)

	// Create provisions a new remote object with the desired attributes.
	Create(ctx context.Context, resourceType string, desired cty.Value) (*Instance, error)

	// Read fetches the current remote attributes of an existing object.
	Read(ctx context.Context, resourceType, id string) (*Instance, error)

	// Update mutates an existing remote object in place.
	Update(ctx context.Context, resourceType, id string, desired cty.Value) (*Instance, error)

	// Delete removes an existing remote object.
	Delete(ctx context.Context, resourceType, id string) error
}
