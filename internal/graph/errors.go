package graph

import (
	"fmt"
	"strings"

	"github.com/vk/converge/internal/addr"
)

// CycleError reports that the dependency relation between resources is not
// acyclic. It aborts planning before any remote call is made.
type CycleError struct {
	// Through lists the addresses on the detected cycle, in traversal order.
	Through []addr.Address
}

func (e *CycleError) Error() string {
	if len(e.Through) == 0 {
		return "dependency cycle detected"
	}
	parts := make([]string, len(e.Through))
	for i, a := range e.Through {
		parts[i] = a.String()
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// UnresolvedReferenceError reports that an attribute expression or an
// explicit depends_on entry names a resource that does not exist in the
// configuration.
type UnresolvedReferenceError struct {
	// Referrer is the resource (or output, when Output is set) holding the
	// dangling reference.
	Referrer addr.Address
	// Output names the referring output block, if the reference came from one.
	Output string
	// Subject is the reference that could not be resolved.
	Subject string
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("output %q references unknown resource %q", e.Output, e.Subject)
	}
	return fmt.Sprintf("%s references unknown resource %q", e.Referrer, e.Subject)
}
