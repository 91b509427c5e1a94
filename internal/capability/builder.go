// Package capability assembles the capability set a server advertises in its
// initialize response.
package capability

import "github.com/tkingovr/toolbridge/api"

// Builder accumulates capabilities. Only capabilities enabled through a With
// method appear in the built set; there are no defaults.
type Builder struct {
	tools     *api.ToolsCapability
	prompts   *api.PromptsCapability
	resources *api.ResourcesCapability
}

// NewBuilder returns a builder with no capabilities enabled.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithTools enables tool support.
func (b *Builder) WithTools(listChanged bool) *Builder {
	b.tools = &api.ToolsCapability{ListChanged: listChanged}
	return b
}

// WithPrompts enables prompt support.
func (b *Builder) WithPrompts(listChanged bool) *Builder {
	b.prompts = &api.PromptsCapability{ListChanged: listChanged}
	return b
}

// WithResources enables resource support.
func (b *Builder) WithResources(subscribe, listChanged bool) *Builder {
	b.resources = &api.ResourcesCapability{Subscribe: subscribe, ListChanged: listChanged}
	return b
}

// Build returns the capability set. The result does not share memory with the
// builder, so later With calls do not change it.
func (b *Builder) Build() api.ServerCapabilities {
	var caps api.ServerCapabilities
	if b.tools != nil {
		t := *b.tools
		caps.Tools = &t
	}
	if b.prompts != nil {
		p := *b.prompts
		caps.Prompts = &p
	}
	if b.resources != nil {
		r := *b.resources
		caps.Resources = &r
	}
	return caps
}
