// Package errors provides structured error handling for the protocol engine.
// It defines error types that map to JSON-RPC error codes and carry enough
// context for debugging and programmatic handling.
package errors

import (
	"fmt"
	"time"
)

// Category represents the type/category of an error for classification
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryNotFound   Category = "not_found"
	CategoryTransport  Category = "transport"
	CategoryProvider   Category = "provider"
	CategoryInternal   Category = "internal"
	CategoryProtocol   Category = "protocol"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context records where and when an error occurred
type Context struct {
	RequestID int64                  `json:"request_id,omitempty"`
	Method    string                 `json:"method,omitempty"`
	Component string                 `json:"component,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ProtocolError is the interface implemented by all engine errors that map
// to a JSON-RPC error object
type ProtocolError interface {
	error

	// Code returns the JSON-RPC error code
	Code() int

	// Message returns a human-readable error message
	Message() string

	// Data returns structured error data for programmatic handling
	Data() interface{}

	// Category returns the error category for classification
	Category() Category

	// Severity returns the error severity level
	Severity() Severity

	// Context returns the error context information
	Context() *Context

	// WithContext returns a new error with the provided context
	WithContext(ctx *Context) ProtocolError

	// WithDetail returns a new error with additional detail appended to the
	// message
	WithDetail(detail string) ProtocolError

	// WithData returns a new error with structured data
	WithData(data interface{}) ProtocolError

	// Unwrap returns the underlying error for error chain traversal
	Unwrap() error
}

// baseError implements the ProtocolError interface
type baseError struct {
	code     int
	message  string
	detail   string
	data     interface{}
	category Category
	severity Severity
	context  *Context
	cause    error
}

// Error implements the error interface
func (e *baseError) Error() string {
	if e.detail != "" {
		return fmt.Sprintf("%s: %s", e.message, e.detail)
	}
	return e.message
}

// Code returns the JSON-RPC error code
func (e *baseError) Code() int {
	return e.code
}

// Message returns the human-readable error message
func (e *baseError) Message() string {
	return e.message
}

// Data returns structured error data
func (e *baseError) Data() interface{} {
	return e.data
}

// Category returns the error category
func (e *baseError) Category() Category {
	return e.category
}

// Severity returns the error severity
func (e *baseError) Severity() Severity {
	return e.severity
}

// Context returns the error context
func (e *baseError) Context() *Context {
	return e.context
}

// WithContext returns a new error with the provided context
func (e *baseError) WithContext(ctx *Context) ProtocolError {
	newErr := *e
	newErr.context = ctx
	return &newErr
}

// WithDetail returns a new error with additional detail
func (e *baseError) WithDetail(detail string) ProtocolError {
	newErr := *e
	if newErr.detail != "" {
		newErr.detail = fmt.Sprintf("%s; %s", newErr.detail, detail)
	} else {
		newErr.detail = detail
	}
	return &newErr
}

// WithData returns a new error with structured data
func (e *baseError) WithData(data interface{}) ProtocolError {
	newErr := *e
	newErr.data = data
	return &newErr
}

// Unwrap returns the underlying error
func (e *baseError) Unwrap() error {
	return e.cause
}

// NewError creates a new ProtocolError with the specified parameters
func NewError(code int, message string, category Category, severity Severity) ProtocolError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		context: &Context{
			Timestamp: time.Now(),
		},
	}
}

// NewErrorf creates a new ProtocolError with a formatted message
func NewErrorf(code int, category Category, severity Severity, format string, args ...interface{}) ProtocolError {
	return &baseError{
		code:     code,
		message:  fmt.Sprintf(format, args...),
		category: category,
		severity: severity,
		context: &Context{
			Timestamp: time.Now(),
		},
	}
}

// WrapError wraps an existing error as a ProtocolError
func WrapError(err error, code int, message string, category Category, severity Severity) ProtocolError {
	return &baseError{
		code:     code,
		message:  message,
		category: category,
		severity: severity,
		cause:    err,
		context: &Context{
			Timestamp: time.Now(),
		},
	}
}

// AsProtocolError extracts a ProtocolError from any error
func AsProtocolError(err error) (ProtocolError, bool) {
	if err == nil {
		return nil, false
	}
	if protoErr, ok := err.(ProtocolError); ok {
		return protoErr, true
	}
	return nil, false
}

// IsCode checks if an error carries a specific error code
func IsCode(err error, code int) bool {
	if protoErr, ok := AsProtocolError(err); ok {
		return protoErr.Code() == code
	}
	return false
}

// IsCategory checks if an error is of a specific category
func IsCategory(err error, category Category) bool {
	if protoErr, ok := AsProtocolError(err); ok {
		return protoErr.Category() == category
	}
	return false
}
