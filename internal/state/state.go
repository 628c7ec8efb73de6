// Package state persists the last-applied attributes of every managed
// resource. The store is the only shared mutable collaborator in the engine:
// exactly one plan execution may hold its lock at a time, records are written
// only after a confirmed remote-side success, and corruption is fatal rather
// than silently repaired.
package state

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/addr"
)

// CurrentVersion is the schema version of the persisted document.
const CurrentVersion = 1

// Record is the durable memory of one applied resource.
type Record struct {
	Addr addr.Address
	// ID is the remote identifier returned by the provider.
	ID string
	// Attributes is the full last-applied attribute object, including
	// computed attributes.
	Attributes cty.Value
	// Lifecycle policy is recorded so that policy decisions (notably
	// prevent_destroy) survive the resource's removal from configuration.
	CreateBeforeDestroy bool
	PreventDestroy      bool
	// Dependencies are the addresses this resource depended on when it was
	// applied. They order destroys after the configuration is gone.
	Dependencies []addr.Address
}

// Store is the durable record of last-applied state. Mutating methods must
// only be called while the store's lock is held; implementations reject
// unlocked access rather than guessing.
type Store interface {
	// Lock acquires exclusive ownership of the store for the duration of a
	// plan's execution. A store already owned elsewhere fails fast with
	// ConcurrentModificationError.
	Lock(ctx context.Context) error
	// Unlock releases ownership.
	Unlock() error

	// Get returns the record for an identity, or ok=false when absent.
	Get(a addr.Address) (rec *Record, ok bool, err error)
	// Put atomically writes a record. Durable before it returns.
	Put(a addr.Address, rec *Record) error
	// Remove atomically deletes a record. Removing an absent record is a no-op.
	Remove(a addr.Address) error
	// All returns a snapshot of every record, keyed by identity.
	All() (map[addr.Address]*Record, error)
}
