package cli

import (
	"github.com/vk/converge/internal/provider"
	"github.com/vk/converge/internal/provider/memory"
)

// builtinRegistry assembles the provider registry the binary ships with.
// The memory provider carries a small catalog of simulated resource types so
// the tool is usable end to end without external services.
func builtinRegistry() *provider.Registry {
	mem := memory.New()
	mem.RegisterType("mem_network", &provider.ResourceSchema{
		Attributes: map[string]provider.AttributeSchema{
			"cidr": {Required: true, ForceReplace: true},
			"name": {},
		},
	})
	mem.RegisterType("mem_server", &provider.ResourceSchema{
		Attributes: map[string]provider.AttributeSchema{
			"image":      {Required: true, ForceReplace: true},
			"size":       {Required: true},
			"network_id": {ForceReplace: true},
			"ip_address": {Computed: true},
		},
	})
	mem.RegisterType("mem_bucket", &provider.ResourceSchema{
		Attributes: map[string]provider.AttributeSchema{
			"name":       {Required: true, ForceReplace: true},
			"versioning": {},
			"endpoint":   {Computed: true},
		},
	})

	reg := provider.NewRegistry()
	reg.Register(memory.Prefix, mem)
	return reg
}
