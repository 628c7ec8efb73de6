// Package exprs handles resource reference expressions: parsing traversals
// like mem_server.web.id into resource addresses, and building the HCL
// evaluation context in which desired-state attribute expressions are
// evaluated.
package exprs

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/addr"
	"github.com/vk/converge/internal/config"
)

// Ref is a parsed reference to another resource's attributes.
type Ref struct {
	// Target is the referenced resource.
	Target addr.Address
	// Remaining is the attribute path below the resource, e.g. [id].
	Remaining hcl.Traversal
}

// ParseRef interprets a traversal as a resource reference. The first two
// steps name the resource type and instance; anything further selects into
// the resource's attributes.
func ParseRef(traversal hcl.Traversal) (*Ref, error) {
	if len(traversal) < 2 {
		return nil, fmt.Errorf("reference %q is incomplete: expected type.name", TraversalString(traversal))
	}
	nameStep, ok := traversal[1].(hcl.TraverseAttr)
	if !ok {
		return nil, fmt.Errorf("reference %q must select the resource name by attribute", TraversalString(traversal))
	}
	return &Ref{
		Target:    addr.New(traversal.RootName(), nameStep.Name),
		Remaining: traversal[2:],
	}, nil
}

// TraversalString renders a traversal for diagnostics.
func TraversalString(traversal hcl.Traversal) string {
	s := ""
	for _, step := range traversal {
		switch t := step.(type) {
		case hcl.TraverseRoot:
			s += t.Name
		case hcl.TraverseAttr:
			s += "." + t.Name
		case hcl.TraverseIndex:
			s += "[...]"
		}
	}
	return s
}

// BuildEvalContext assembles the variable scope for attribute evaluation.
// Each known resource appears under <type>.<name> with its last-applied (or
// just-applied) attributes. Resources without a value yet evaluate to an
// unknown value, so expressions referring to them stay unknown rather than
// failing. The executor re-evaluates once the dependency has been applied.
func BuildEvalContext(values map[addr.Address]cty.Value) *hcl.EvalContext {
	byType := map[string]map[string]cty.Value{}
	for a, v := range values {
		names, ok := byType[a.Type]
		if !ok {
			names = map[string]cty.Value{}
			byType[a.Type] = names
		}
		if v == cty.NilVal {
			v = cty.DynamicVal
		}
		names[a.Name] = v
	}

	vars := make(map[string]cty.Value, len(byType))
	for typ, names := range byType {
		vars[typ] = cty.ObjectVal(names)
	}
	return &hcl.EvalContext{Variables: vars}
}

// EvalResource evaluates every argument expression of a resource within the
// given context and returns the desired attributes as a single object value.
func EvalResource(res *config.Resource, evalCtx *hcl.EvalContext) (cty.Value, error) {
	attrs := make(map[string]cty.Value, len(res.Arguments))
	for name, expr := range res.Arguments {
		v, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return cty.NilVal, fmt.Errorf("evaluating %s.%s: %w", res.Addr(), name, diags)
		}
		attrs[name] = v
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(attrs), nil
}
