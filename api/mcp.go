package api

// ProtocolVersion is the MCP protocol revision advertised by initialize.
const ProtocolVersion = "2024-11-05"

// ServerCapabilities is the capability set advertised in the initialize result.
// A nil member means the capability is not supported.
type ServerCapabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty" yaml:"tools,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty" yaml:"prompts,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// ToolsCapability advertises tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged" yaml:"list_changed"`
}

// PromptsCapability advertises prompt support.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged" yaml:"list_changed"`
}

// ResourcesCapability advertises resource support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe" yaml:"subscribe"`
	ListChanged bool `json:"listChanged" yaml:"list_changed"`
}

// Implementation identifies a server or client by name and version.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of the initialize method.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}

// ToolDefinition describes a single tool in a tools/list result.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ListToolsResult is the result of the tools/list method.
type ListToolsResult struct {
	Tools []ToolDefinition `json:"tools"`
}

// Content is a single item of tool output.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// TextContent builds a text content item.
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// CallToolResult is the result of the tools/call method. A failed tool is
// reported here with IsError set, not as a JSON-RPC error.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}
