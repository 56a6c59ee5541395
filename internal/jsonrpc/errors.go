package jsonrpc

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

// The reserved codes from the JSON-RPC 2.0 specification. Transport-level
// rejections (bad origin, unreadable body) reuse these so every error a
// client sees is a JSON-RPC error.
const (
	// ErrorCodeParseError: the body was not valid JSON.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest: the body parsed but is not a request
	// envelope (wrong or missing "jsonrpc" version).
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound: unknown method, or tools/call naming an
	// unregistered tool.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams: the params shape does not match the method.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError: tool execution failed or panicked, or the
	// response could not be encoded.
	ErrorCodeInternalError ErrorCode = -32603
)
