package protocol

import "encoding/json"

// ToolDefinition describes a callable tool. Name is the unique registry key.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Title       string                 `json:"title,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// ListToolsParams is the (empty) payload of a tools/list request
type ListToolsParams struct{}

// ListToolsResult carries all registered tools in registration order
type ListToolsResult struct {
	Tools []ToolDefinition `json:"tools"`
}

// CallToolParams names a tool and supplies its arguments
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the outcome of a tool invocation. Handler failures are
// reported in-band with IsError set, not as protocol errors.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError"`
}
