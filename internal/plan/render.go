package plan

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/converge/internal/diff"
)

// Render produces the human-readable plan listing: one line per change set
// with attribute-level detail, followed by a summary count line.
func (p *Plan) Render() string {
	var b strings.Builder

	for _, cs := range p.Changes {
		if cs.Action == diff.ActionNoop {
			continue
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", actionSymbol(cs), cs.Addr, actionLabel(cs))
		for _, attr := range cs.Attrs {
			switch attr.Kind {
			case diff.AttrAdded:
				fmt.Fprintf(&b, "    + %s = %s\n", attr.Name, RenderValue(attr.New))
			case diff.AttrChanged:
				suffix := ""
				if attr.ForcesReplace {
					suffix = " # forces replacement"
				}
				fmt.Fprintf(&b, "    ~ %s = %s -> %s%s\n", attr.Name, RenderValue(attr.Old), RenderValue(attr.New), suffix)
			case diff.AttrRemoved:
				fmt.Fprintf(&b, "    - %s = %s\n", attr.Name, RenderValue(attr.Old))
			}
		}
	}

	counts := p.ActionCounts()
	fmt.Fprintf(&b, "\nPlan: %d to create, %d to update, %d to replace, %d to destroy.\n",
		counts[diff.ActionCreate], counts[diff.ActionUpdate],
		counts[diff.ActionReplace], counts[diff.ActionDestroy])
	return b.String()
}

func actionSymbol(cs *diff.ChangeSet) string {
	switch cs.Action {
	case diff.ActionCreate:
		return "+"
	case diff.ActionUpdate:
		return "~"
	case diff.ActionDestroy:
		return "-"
	case diff.ActionReplace:
		if cs.Lifecycle.CreateBeforeDestroy {
			return "+/-"
		}
		return "-/+"
	default:
		return "?"
	}
}

func actionLabel(cs *diff.ChangeSet) string {
	if cs.Action == diff.ActionReplace {
		if cs.Lifecycle.CreateBeforeDestroy {
			return "replace, create before destroy"
		}
		return "replace, destroy before create"
	}
	return cs.Action.String()
}

// RenderValue formats one attribute value for plan output.
func RenderValue(v cty.Value) string {
	switch {
	case v == cty.NilVal:
		return "null"
	case !v.IsWhollyKnown():
		return "(known after apply)"
	case v.IsNull():
		return "null"
	case v.Type() == cty.String:
		return fmt.Sprintf("%q", v.AsString())
	case v.Type() == cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	case v.Type() == cty.Number:
		return v.AsBigFloat().Text('f', -1)
	default:
		raw, err := ctyjson.Marshal(v, v.Type())
		if err != nil {
			return "(unrenderable value)"
		}
		return string(raw)
	}
}
