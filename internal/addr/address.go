// Package addr defines the canonical identity of a managed resource: its
// type plus a user-chosen logical name, rendered as "type.name".
package addr

import (
	"fmt"
	"strings"
)

// Address uniquely identifies a resource within a configuration and within
// the state document. It is a value type and safe to use as a map key.
type Address struct {
	// Type is the resource type, e.g. "mem_server". The segment before the
	// first underscore names the provider responsible for the type.
	Type string
	// Name is the logical instance name chosen in the configuration.
	Name string
}

// New builds an Address from its two components.
func New(resourceType, name string) Address {
	return Address{Type: resourceType, Name: name}
}

// Parse converts the canonical "type.name" form back into an Address.
func Parse(s string) (Address, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Address{}, fmt.Errorf("invalid resource address %q: expected \"type.name\"", s)
	}
	return Address{Type: parts[0], Name: parts[1]}, nil
}

// String renders the canonical "type.name" form.
func (a Address) String() string {
	return a.Type + "." + a.Name
}

// ProviderName returns the provider prefix of the resource type, i.e. the
// segment before the first underscore. A type without an underscore is its
// own provider name.
func (a Address) ProviderName() string {
	if i := strings.Index(a.Type, "_"); i > 0 {
		return a.Type[:i]
	}
	return a.Type
}
