package diff

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/config"
	"github.com/vk/converge/internal/provider"
)

// validateArguments checks the configured attributes against the provider
// schema before any diffing happens: unknown and computed attributes cannot
// be set, required attributes must be.
func validateArguments(res *config.Resource, schema *provider.ResourceSchema) error {
	for name := range res.Arguments {
		as, ok := schema.Attributes[name]
		if !ok {
			return fmt.Errorf("%s: unsupported attribute %q", res.Addr(), name)
		}
		if as.Computed {
			return fmt.Errorf("%s: attribute %q is computed by the provider and cannot be set", res.Addr(), name)
		}
	}
	for name, as := range schema.Attributes {
		if as.Required {
			if _, set := res.Arguments[name]; !set {
				return fmt.Errorf("%s: missing required attribute %q", res.Addr(), name)
			}
		}
	}
	return nil
}

// createdAttrs renders every desired attribute as an addition.
func createdAttrs(desired cty.Value) []AttributeDiff {
	var attrs []AttributeDiff
	for name, v := range valueMap(desired) {
		attrs = append(attrs, AttributeDiff{Name: name, New: v, Kind: AttrAdded})
	}
	sortAttrs(attrs)
	return attrs
}

// removedAttrs renders every applied attribute as a removal.
func removedAttrs(applied cty.Value) []AttributeDiff {
	var attrs []AttributeDiff
	for name, v := range valueMap(applied) {
		attrs = append(attrs, AttributeDiff{Name: name, Old: v, Kind: AttrRemoved})
	}
	sortAttrs(attrs)
	return attrs
}

// compareAttrs produces the attribute-level diff between desired and applied
// state. An unknown desired value (a reference to something not yet applied)
// counts as changed, since the applied value cannot be assumed to survive.
func compareAttrs(desired, applied cty.Value, schema *provider.ResourceSchema, ignoreChanges []string) []AttributeDiff {
	ignored := make(map[string]bool, len(ignoreChanges))
	for _, name := range ignoreChanges {
		ignored[name] = true
	}

	desiredMap := valueMap(desired)
	appliedMap := valueMap(applied)

	var attrs []AttributeDiff
	for name, newV := range desiredMap {
		if ignored[name] {
			continue
		}
		forces := schema.Attributes[name].ForceReplace
		oldV, had := appliedMap[name]
		switch {
		case !had:
			attrs = append(attrs, AttributeDiff{Name: name, New: newV, Kind: AttrAdded, ForcesReplace: forces})
		case !newV.IsWhollyKnown():
			attrs = append(attrs, AttributeDiff{Name: name, Old: oldV, New: newV, Kind: AttrChanged, ForcesReplace: forces})
		case !newV.RawEquals(oldV):
			attrs = append(attrs, AttributeDiff{Name: name, Old: oldV, New: newV, Kind: AttrChanged, ForcesReplace: forces})
		}
	}

	for name, oldV := range appliedMap {
		if _, stillDesired := desiredMap[name]; stillDesired || ignored[name] {
			continue
		}
		as, known := schema.Attributes[name]
		if !known || as.Computed {
			// Computed attributes (and attributes the schema no longer
			// knows) are owned by the remote side, not the configuration.
			continue
		}
		attrs = append(attrs, AttributeDiff{Name: name, Old: oldV, Kind: AttrRemoved, ForcesReplace: as.ForceReplace})
	}

	sortAttrs(attrs)
	return attrs
}

// anyForcesReplace reports whether any diffed attribute is immutable in place.
func anyForcesReplace(attrs []AttributeDiff) bool {
	for _, a := range attrs {
		if a.ForcesReplace {
			return true
		}
	}
	return false
}

// projectUnknownComputed is the post-apply projection of a resource that
// will be created or replaced: configured attributes take their desired
// values, computed attributes become unknown until the provider fills them.
func projectUnknownComputed(desired cty.Value, schema *provider.ResourceSchema) cty.Value {
	attrs := valueMap(desired)
	merged := make(map[string]cty.Value, len(attrs)+1)
	for name, v := range attrs {
		merged[name] = v
	}
	for name, as := range schema.Attributes {
		if as.Computed {
			merged[name] = cty.DynamicVal
		}
	}
	if len(merged) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(merged)
}

// mergeComputed is the post-apply projection of an in-place update: desired
// values win, computed attributes carry over from the applied state.
func mergeComputed(desired, applied cty.Value, schema *provider.ResourceSchema) cty.Value {
	appliedMap := valueMap(applied)
	merged := valueMap(desired)
	for name, as := range schema.Attributes {
		if !as.Computed {
			continue
		}
		if v, ok := appliedMap[name]; ok {
			merged[name] = v
		} else {
			merged[name] = cty.DynamicVal
		}
	}
	if len(merged) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(merged)
}

// valueMap flattens an object value into a fresh name→value map; nil and
// non-object values yield an empty map.
func valueMap(v cty.Value) map[string]cty.Value {
	out := map[string]cty.Value{}
	if v == cty.NilVal || !v.Type().IsObjectType() || v.IsNull() {
		return out
	}
	for name, av := range v.AsValueMap() {
		out[name] = av
	}
	return out
}
