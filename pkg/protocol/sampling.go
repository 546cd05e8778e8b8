package protocol

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SamplingMessage is one role-tagged message in a conversation
type SamplingMessage struct {
	Role    string       `json:"role"`
	Content ContentBlock `json:"content"`
}

// CreateMessageParams asks the client to run a generation on the server's
// behalf
type CreateMessageParams struct {
	Messages         []SamplingMessage      `json:"messages"`
	ModelPreferences map[string]interface{} `json:"modelPreferences,omitempty"`
	SystemPrompt     string                 `json:"systemPrompt,omitempty"`
	MaxTokens        int                    `json:"maxTokens,omitempty"`
}

// CreateMessageResult is the generated message produced by the client's
// provider
type CreateMessageResult struct {
	Role       string       `json:"role"`
	Content    ContentBlock `json:"content"`
	Model      string       `json:"model,omitempty"`
	StopReason string       `json:"stopReason,omitempty"`
}
