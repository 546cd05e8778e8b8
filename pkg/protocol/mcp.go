package protocol

// ProtocolVersion is the protocol version spoken by this implementation.
// Both peers are expected to offer the same string during initialization.
const ProtocolVersion = "2025-06-18"

// Method names for all supported operations
const (
	// Lifecycle methods
	MethodInitialize = "initialize"
	MethodPing       = "ping"

	// Tool methods
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	// Resource methods
	MethodListResources         = "resources/list"
	MethodReadResource          = "resources/read"
	MethodSubscribeResource     = "resources/subscribe"
	MethodListResourceTemplates = "resources/templates/list"

	// Prompt methods
	MethodListPrompts = "prompts/list"
	MethodGetPrompt   = "prompts/get"

	// Logging methods
	MethodSetLogLevel = "logging/setLevel"

	// Client-served methods (responder-initiated delegations)
	MethodListRoots     = "roots/list"
	MethodCreateMessage = "sampling/createMessage"
	MethodElicit        = "elicitation/create"

	// Notification methods
	MethodNotifyInitialized      = "notifications/initialized"
	MethodNotifyShutdown         = "notifications/shutdown"
	MethodNotifyLogMessage       = "notifications/message"
	MethodNotifyResourceUpdated  = "notifications/resources/updated"
	MethodNotifyResourcesChanged = "notifications/resources/list_changed"
	MethodNotifyToolsChanged     = "notifications/tools/list_changed"
	MethodNotifyPromptsChanged   = "notifications/prompts/list_changed"
	MethodNotifyRootsChanged     = "notifications/roots/list_changed"
)

// ClientCapabilities describes the feature blocks a client declares during
// initialization. Absent blocks are omitted from the wire form, never null.
type ClientCapabilities struct {
	Sampling     *SamplingCapability    `json:"sampling,omitempty"`
	Roots        *RootsCapability       `json:"roots,omitempty"`
	Elicitation  *ElicitationCapability `json:"elicitation,omitempty"`
	Experimental map[string]interface{} `json:"experimental,omitempty"`
}

// ServerCapabilities describes the feature blocks a server declares in its
// initialize result.
type ServerCapabilities struct {
	Logging      *LoggingCapability     `json:"logging,omitempty"`
	Prompts      *PromptsCapability     `json:"prompts,omitempty"`
	Resources    *ResourcesCapability   `json:"resources,omitempty"`
	Tools        *ToolsCapability       `json:"tools,omitempty"`
	Completions  *CompletionsCapability `json:"completions,omitempty"`
	Experimental map[string]interface{} `json:"experimental,omitempty"`
}

// SamplingCapability marks that the client accepts sampling/createMessage
// requests. It has no sub-options.
type SamplingCapability struct{}

// RootsCapability marks that the client serves roots/list
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ElicitationCapability marks that the client accepts elicitation/create
type ElicitationCapability struct{}

// LoggingCapability marks that the server emits notifications/message
type LoggingCapability struct{}

// PromptsCapability marks that the server serves prompt requests
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability marks that the server serves resource requests
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsCapability marks that the server serves tool requests
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// CompletionsCapability marks that the server supports argument completion
type CompletionsCapability struct{}

// ClientInfo identifies the client implementation
type ClientInfo struct {
	Name     string                 `json:"name"`
	Version  string                 `json:"version"`
	Title    string                 `json:"title,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ServerInfo identifies the server implementation
type ServerInfo struct {
	Name     string                 `json:"name"`
	Version  string                 `json:"version"`
	Title    string                 `json:"title,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// InitializeParams carries the client's half of the handshake
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ClientInfo         `json:"clientInfo"`
}

// InitializeResult carries the server's half of the handshake
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// HandshakeResult is the immutable record of one completed negotiation.
// It is built only after the initialize request/response pair has been
// exchanged and the initialized confirmation has been sent.
type HandshakeResult struct {
	ProtocolVersion    string
	RequestID          int64
	ClientCapabilities ClientCapabilities
	ServerCapabilities ServerCapabilities
	ClientInfo         ClientInfo
	ServerInfo         ServerInfo
	Instructions       string
}

// PingParams is the (empty) payload of a ping request
type PingParams struct{}

// PingResult is the (empty) payload of a ping response
type PingResult struct{}
