package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/converge/internal/addr"
	"github.com/vk/converge/internal/config"
	"github.com/vk/converge/internal/exprs"
	"github.com/vk/converge/internal/plan"
)

// printOutputs evaluates the configuration's output expressions against the
// applied state and writes them to the output writer.
func (a *App) printOutputs(ctx context.Context, model *config.Model) error {
	if len(model.Outputs) == 0 {
		return nil
	}

	records, err := a.store.All()
	if err != nil {
		return err
	}
	values := make(map[addr.Address]cty.Value, len(records))
	for ad, rec := range records {
		values[ad] = rec.Attributes
	}
	evalCtx := exprs.BuildEvalContext(values)

	outputs := make([]*config.Output, len(model.Outputs))
	copy(outputs, model.Outputs)
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Name < outputs[j].Name })

	fmt.Fprintln(a.outW, "\nOutputs:")
	for _, out := range outputs {
		v, diags := out.Value.Value(evalCtx)
		if diags.HasErrors() {
			return fmt.Errorf("evaluating output %q: %w", out.Name, diags)
		}
		fmt.Fprintf(a.outW, "  %s = %s\n", out.Name, plan.RenderValue(v))
	}
	return nil
}
