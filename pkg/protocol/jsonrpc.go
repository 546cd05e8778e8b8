package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// JSONRPCVersion is the supported JSON-RPC version
	JSONRPCVersion = "2.0"
)

// ErrorCode represents standard JSON-RPC 2.0 error codes
type ErrorCode int

// Standard error codes as per JSON-RPC 2.0 specification
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)

// Domain-specific error codes
const (
	// UnknownTool indicates a tools/call named a tool that is not registered
	UnknownTool ErrorCode = -32001
	// ResourceNotFound indicates a requested resource URI is not registered
	ResourceNotFound ErrorCode = -32002
	// UnsupportedProtocolVersion indicates the peer offered a protocol
	// version this implementation does not speak
	UnsupportedProtocolVersion ErrorCode = -32003
	// InternalHandlerError wraps any failure raised inside a request handler
	InternalHandlerError ErrorCode = -32099
)

// JSONRPCMessage represents a JSON-RPC 2.0 message
type JSONRPCMessage struct {
	JSONRPC string `json:"jsonrpc"`
}

// Request represents a JSON-RPC 2.0 request. IDs are positive integers,
// strictly increasing per engine.
type Request struct {
	JSONRPCMessage
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewRequest creates a new JSON-RPC 2.0 request
func NewRequest(id int64, method string, params interface{}) (*Request, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	return &Request{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Method:         method,
		Params:         paramsJSON,
	}, nil
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPCMessage
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// NewResponse creates a new JSON-RPC 2.0 success response. A nil result is
// encoded as an explicit "result": null; the result member must always be
// present so the peer can correlate the response.
func NewResponse(id int64, result interface{}) (*Response, error) {
	resultJSON := json.RawMessage("null")
	if result != nil {
		var err error
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
	}

	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Result:         resultJSON,
	}, nil
}

// NewErrorResponse creates a new JSON-RPC 2.0 error response
func NewErrorResponse(id int64, code ErrorCode, message string, data interface{}) (*Response, error) {
	var dataJSON interface{}
	if data != nil {
		dataBytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal error data: %w", err)
		}
		dataJSON = json.RawMessage(dataBytes)
	}

	return &Response{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		ID:             id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    dataJSON,
		},
	}, nil
}

// Notification represents a JSON-RPC 2.0 notification
type Notification struct {
	JSONRPCMessage
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewNotification creates a new JSON-RPC 2.0 notification
func NewNotification(method string, params interface{}) (*Notification, error) {
	var paramsJSON json.RawMessage
	if params != nil {
		var err error
		paramsJSON, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
	}

	return &Notification{
		JSONRPCMessage: JSONRPCMessage{JSONRPC: JSONRPCVersion},
		Method:         method,
		Params:         paramsJSON,
	}, nil
}

// Error represents a JSON-RPC 2.0 error object
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// topLevelKeys returns the raw top-level members of a JSON-RPC envelope.
// Classification goes by key presence, not value: "result": null is a
// present member carrying a null result, and must still classify as a
// response.
func topLevelKeys(data []byte) (map[string]json.RawMessage, bool) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, false
	}
	var version string
	if err := json.Unmarshal(msg["jsonrpc"], &version); err != nil || version != JSONRPCVersion {
		return nil, false
	}
	return msg, true
}

// IsRequest checks if a raw JSON message is a JSON-RPC 2.0 request
func IsRequest(data []byte) bool {
	msg, ok := topLevelKeys(data)
	if !ok {
		return false
	}
	_, hasID := msg["id"]
	_, hasMethod := msg["method"]
	return hasID && hasMethod
}

// IsResponse checks if a raw JSON message is a JSON-RPC 2.0 response
func IsResponse(data []byte) bool {
	msg, ok := topLevelKeys(data)
	if !ok {
		return false
	}
	_, hasID := msg["id"]
	_, hasMethod := msg["method"]
	_, hasResult := msg["result"]
	_, hasError := msg["error"]
	return hasID && !hasMethod && (hasResult || hasError)
}

// IsNotification checks if a raw JSON message is a JSON-RPC 2.0 notification
func IsNotification(data []byte) bool {
	msg, ok := topLevelKeys(data)
	if !ok {
		return false
	}
	_, hasID := msg["id"]
	_, hasMethod := msg["method"]
	return !hasID && hasMethod
}
