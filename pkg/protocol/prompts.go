package protocol

// PromptDefinition describes a renderable prompt. Name is the unique
// registry key.
type PromptDefinition struct {
	Name        string           `json:"name"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes one named prompt parameter
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Type        string `json:"type,omitempty"`
}

// ListPromptsParams is the (empty) payload of a prompts/list request
type ListPromptsParams struct{}

// ListPromptsResult carries all registered prompts in registration order
type ListPromptsResult struct {
	Prompts []PromptDefinition `json:"prompts"`
}

// GetPromptParams names a prompt and supplies its arguments
type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// GetPromptResult is a rendered prompt: an optional description plus an
// ordered list of role-tagged messages
type GetPromptResult struct {
	Description string            `json:"description,omitempty"`
	Messages    []SamplingMessage `json:"messages"`
}
