package errors

import (
	"encoding/json"
	"fmt"
)

// RemoteError is a JSON-RPC error object returned by the connected peer. It
// is surfaced to SendRequest callers unchanged; the code and message are the
// peer's, not ours.
type RemoteError struct {
	ErrCode    int             `json:"code"`
	ErrMessage string          `json:"message"`
	ErrData    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.ErrCode, e.ErrMessage)
}

// Code returns the peer's JSON-RPC error code
func (e *RemoteError) Code() int {
	return e.ErrCode
}

// Message returns the peer's error message
func (e *RemoteError) Message() string {
	return e.ErrMessage
}

// MethodNotFound creates an error for a request naming an unregistered method
func MethodNotFound(method string) ProtocolError {
	return NewErrorf(
		CodeMethodNotFound,
		CategoryProtocol,
		SeverityError,
		"method not found: %s", method,
	)
}

// InvalidParams creates an error for malformed or missing request parameters
func InvalidParams(method, reason string) ProtocolError {
	return NewErrorf(
		CodeInvalidParams,
		CategoryValidation,
		SeverityError,
		"invalid params for %s: %s", method, reason,
	)
}

// UnknownTool creates an error for tools/call against an unregistered name
func UnknownTool(name string) ProtocolError {
	return NewErrorf(
		CodeUnknownTool,
		CategoryNotFound,
		SeverityError,
		"unknown tool: %s", name,
	)
}

// ResourceNotFound creates an error for an unregistered resource URI
func ResourceNotFound(uri string) ProtocolError {
	return NewErrorf(
		CodeResourceNotFound,
		CategoryNotFound,
		SeverityError,
		"resource not found: %s", uri,
	)
}

// UnsupportedProtocolVersion creates an error for a handshake offering a
// protocol version this side does not speak
func UnsupportedProtocolVersion(offered, supported string) ProtocolError {
	return NewErrorf(
		CodeUnsupportedProtocolVersion,
		CategoryProtocol,
		SeverityCritical,
		"unsupported protocol version %q, supported: %q", offered, supported,
	).WithData(map[string]string{
		"offered":   offered,
		"supported": supported,
	})
}

// InternalHandlerError wraps a failure raised inside a request handler
func InternalHandlerError(method string, cause error) ProtocolError {
	return WrapError(
		cause,
		CodeInternalHandlerError,
		fmt.Sprintf("handler for %s failed: %v", method, cause),
		CategoryInternal,
		SeverityError,
	)
}

// HandshakeFailed creates an error for a malformed or rejected initialize
// exchange
func HandshakeFailed(reason string) ProtocolError {
	return NewErrorf(
		CodeInvalidRequest,
		CategoryProtocol,
		SeverityCritical,
		"handshake failed: %s", reason,
	)
}
