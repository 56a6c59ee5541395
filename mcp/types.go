package mcp

import "encoding/json"

// Method is an MCP method identifier used in JSON-RPC messages.
type Method string

// MCP method names and notifications.
const (
	InitializeMethod              Method = "initialize"
	InitializedNotificationMethod Method = "notifications/initialized"
	ToolsListMethod               Method = "tools/list"
	ToolsCallMethod               Method = "tools/call"
)

// ProtocolVersion is the MCP protocol revision this server implements.
const ProtocolVersion = "2025-11-25"

// SessionIDHeader is the HTTP response header carrying the opaque session id
// minted on initialize.
const SessionIDHeader = "Mcp-Session-Id"

// Tool describes a callable tool as advertised in tools/list. InputSchema
// carries the tool's declared schema verbatim as a nested JSON value, never
// double-encoded as a string.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolInputSchema is a JSON-schema object description of tool input. The
// vocabulary is deliberately small: string, integer, boolean, and
// string-array properties, each optionally required.
type ToolInputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

// SchemaProperty is a single property node of a tool input schema.
type SchemaProperty struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Items       *SchemaProperty `json:"items,omitempty"`
}

// ContentBlock is one entry of a tool result's content array. Type is "text"
// for inline text and "resource" for embedded resources.
type ContentBlock struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	Resource *ResourceContents `json:"resource,omitempty"`
}

// ResourceContents is an embedded resource payload. Exactly one of Text or
// Blob is set; Blob carries base64-encoded binary data.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ImplementationInfo identifies the server implementation.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Author  string `json:"author,omitempty"`
}

// ServerCapabilities advertises server features. The empty tools object
// signals that the tools capability is supported.
type ServerCapabilities struct {
	Tools *struct{} `json:"tools,omitempty"`
}
