// Package schema declares the HCL surface of a desired-state description:
// which top-level blocks exist and what their bodies may contain. The
// structures here are syntax-level; the hcl loader translates them into the
// format-agnostic config model.
package schema

import "github.com/hashicorp/hcl/v2"

// RootSchema describes the top level of a configuration file.
var RootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "resource", LabelNames: []string{"type", "name"}},
		{Type: "output", LabelNames: []string{"name"}},
	},
}

// ResourceSchema describes the reserved parts of a resource body. Everything
// not listed here is a resource attribute and is kept as a raw expression.
var ResourceSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "depends_on", Required: false},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "lifecycle"},
	},
}

// OutputSchema describes the body of an output block.
var OutputSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "value", Required: true},
	},
}

// Lifecycle is the decode target for a resource's lifecycle block.
type Lifecycle struct {
	CreateBeforeDestroy *bool    `hcl:"create_before_destroy,optional"`
	PreventDestroy      *bool    `hcl:"prevent_destroy,optional"`
	IgnoreChanges       []string `hcl:"ignore_changes,optional"`
}
