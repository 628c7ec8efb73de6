package state

import "fmt"

// ConcurrentModificationError reports that another process (or another plan
// execution in this process) already holds the store's lock. The caller must
// not attempt any mutation.
type ConcurrentModificationError struct {
	Path string
}

func (e *ConcurrentModificationError) Error() string {
	if e.Path == "" {
		return "state store is locked by another operation"
	}
	return fmt.Sprintf("state store %s is locked by another operation", e.Path)
}

// CorruptionError reports that the persisted state document could not be
// understood. It is fatal and requires manual intervention; the engine never
// rewrites a document it cannot parse.
type CorruptionError struct {
	Path string
	Err  error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("state document %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptionError) Unwrap() error { return e.Err }

// errNotLocked guards against mutations outside a held lock.
var errNotLocked = fmt.Errorf("state store accessed without holding its lock")
