package protocol

// Elicitation actions
const (
	ElicitActionAccept  = "accept"
	ElicitActionDecline = "decline"
	ElicitActionCancel  = "cancel"
)

// ElicitParams asks the client to collect structured input from the user
type ElicitParams struct {
	Message         string                 `json:"message"`
	RequestedSchema map[string]interface{} `json:"requestedSchema,omitempty"`
}

// ElicitResult is the user's answer. Content is populated only when the
// action is accept.
type ElicitResult struct {
	Action  string            `json:"action"`
	Content map[string]string `json:"content,omitempty"`
}
