package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"

	"github.com/vk/converge/internal/addr"
	"github.com/vk/converge/internal/config"
	"github.com/vk/converge/internal/exprs"
	"github.com/vk/converge/internal/schema"
)

// translateResource converts a resource block into the agnostic model.
func (l *Loader) translateResource(block *hcl.Block, declIndex int) (*config.Resource, error) {
	res := &config.Resource{
		Type:      block.Labels[0],
		Name:      block.Labels[1],
		Arguments: map[string]hcl.Expression{},
		DeclRange: block.DefRange,
		DeclIndex: declIndex,
	}

	content, remain, diags := block.Body.PartialContent(schema.ResourceSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	for _, lc := range content.Blocks.OfType("lifecycle") {
		var raw schema.Lifecycle
		if diags := gohcl.DecodeBody(lc.Body, nil, &raw); diags.HasErrors() {
			return nil, diags
		}
		if raw.CreateBeforeDestroy != nil {
			res.Lifecycle.CreateBeforeDestroy = *raw.CreateBeforeDestroy
		}
		if raw.PreventDestroy != nil {
			res.Lifecycle.PreventDestroy = *raw.PreventDestroy
		}
		res.Lifecycle.IgnoreChanges = append(res.Lifecycle.IgnoreChanges, raw.IgnoreChanges...)
	}

	if attr, ok := content.Attributes["depends_on"]; ok {
		deps, err := decodeDependsOn(attr.Expr)
		if err != nil {
			return nil, fmt.Errorf("%s: in %s: %w", attr.Range, res.Addr(), err)
		}
		res.DependsOn = deps
	}

	attrs, diags := remain.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	for name, attr := range attrs {
		res.Arguments[name] = attr.Expr
	}

	return res, nil
}

// translateOutput converts an output block into the agnostic model.
func (l *Loader) translateOutput(block *hcl.Block) (*config.Output, error) {
	content, diags := block.Body.Content(schema.OutputSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	return &config.Output{
		Name:      block.Labels[0],
		Value:     content.Attributes["value"].Expr,
		DeclRange: block.DefRange,
	}, nil
}

// decodeDependsOn accepts a list of bare resource references, e.g.
// depends_on = [mem_server.web]. Each element must be a two-part traversal.
func decodeDependsOn(expr hcl.Expression) ([]addr.Address, error) {
	elems, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, fmt.Errorf("depends_on must be a list of resource references")
	}
	var out []addr.Address
	for _, e := range elems {
		traversal, diags := hcl.AbsTraversalForExpr(e)
		if diags.HasErrors() {
			return nil, fmt.Errorf("depends_on entries must be bare references like type.name")
		}
		ref, err := exprs.ParseRef(traversal)
		if err != nil {
			return nil, err
		}
		out = append(out, ref.Target)
	}
	return out, nil
}
