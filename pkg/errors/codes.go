package errors

// JSON-RPC 2.0 Standard Error Codes
const (
	// CodeParseError indicates invalid JSON was received
	CodeParseError int = -32700

	// CodeInvalidRequest indicates the message is not a valid Request object
	CodeInvalidRequest int = -32600

	// CodeMethodNotFound indicates the method does not exist / is not available
	CodeMethodNotFound int = -32601

	// CodeInvalidParams indicates invalid method parameter(s)
	CodeInvalidParams int = -32602

	// CodeInternalError indicates an internal JSON-RPC error
	CodeInternalError int = -32603
)

// Domain-Specific Error Codes
const (
	// CodeUnknownTool indicates tools/call named an unregistered tool
	CodeUnknownTool int = -32001

	// CodeResourceNotFound indicates the requested resource URI is unknown
	CodeResourceNotFound int = -32002

	// CodeUnsupportedProtocolVersion indicates the peer offered a protocol
	// version this side does not speak
	CodeUnsupportedProtocolVersion int = -32003

	// CodeInternalHandlerError wraps any failure raised inside a registered
	// request handler
	CodeInternalHandlerError int = -32099
)

// ErrorCodeInfo provides human-readable information about error codes
type ErrorCodeInfo struct {
	Code        int
	Name        string
	Description string
	Category    Category
	Severity    Severity
}

// errorCodeRegistry maps error codes to their information
var errorCodeRegistry = map[int]ErrorCodeInfo{
	CodeParseError:     {CodeParseError, "ParseError", "Invalid JSON was received", CategoryProtocol, SeverityError},
	CodeInvalidRequest: {CodeInvalidRequest, "InvalidRequest", "Invalid Request object", CategoryProtocol, SeverityError},
	CodeMethodNotFound: {CodeMethodNotFound, "MethodNotFound", "Method does not exist", CategoryProtocol, SeverityError},
	CodeInvalidParams:  {CodeInvalidParams, "InvalidParams", "Invalid method parameters", CategoryValidation, SeverityError},
	CodeInternalError:  {CodeInternalError, "InternalError", "Internal JSON-RPC error", CategoryInternal, SeverityError},

	CodeUnknownTool:                {CodeUnknownTool, "UnknownTool", "Tool is not registered", CategoryNotFound, SeverityError},
	CodeResourceNotFound:           {CodeResourceNotFound, "ResourceNotFound", "Resource not found", CategoryNotFound, SeverityError},
	CodeUnsupportedProtocolVersion: {CodeUnsupportedProtocolVersion, "UnsupportedProtocolVersion", "Protocol version not supported", CategoryProtocol, SeverityCritical},
	CodeInternalHandlerError:       {CodeInternalHandlerError, "InternalHandlerError", "Request handler failed", CategoryInternal, SeverityError},
}

// GetErrorCodeInfo returns information about an error code
func GetErrorCodeInfo(code int) (ErrorCodeInfo, bool) {
	info, exists := errorCodeRegistry[code]
	return info, exists
}

// GetErrorCodeName returns the name of an error code
func GetErrorCodeName(code int) string {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Name
	}
	return "UnknownError"
}

// GetErrorCodeCategory returns the category of an error code
func GetErrorCodeCategory(code int) Category {
	if info, exists := errorCodeRegistry[code]; exists {
		return info.Category
	}
	return CategoryInternal
}
