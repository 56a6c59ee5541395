package mcp

import "encoding/json"

// InitializeRequest starts the MCP initialization handshake.
type InitializeRequest struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ClientInfo      ImplementationInfo `json:"clientInfo"`
}

// InitializeResult returns the protocol version, capabilities, and server
// identity.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
}

// NewInitializeResult builds the initialize response body for the given
// server identity.
func NewInitializeResult(info ImplementationInfo) *InitializeResult {
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ServerCapabilities{Tools: &struct{}{}},
		ServerInfo:      info,
	}
}

// ListToolsResult returns the available tools.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolResult represents a tool invocation result. StructuredContent is
// set only for tools that declare a structured JSON response.
type CallToolResult struct {
	Content           []ContentBlock  `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent,omitempty"`
}

// TextResult wraps plain text as a tool result.
func TextResult(text string) *CallToolResult {
	return &CallToolResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

// StructuredResult wraps an already-parsed JSON value as structuredContent.
// The content array carries a placeholder text block for clients that do not
// understand structuredContent.
func StructuredResult(structured json.RawMessage) *CallToolResult {
	return &CallToolResult{
		Content:           []ContentBlock{{Type: "text", Text: "Done"}},
		StructuredContent: structured,
	}
}

// ResourceResult wraps text content as an embedded resource (e.g. a markdown
// artifact).
func ResourceResult(uri, mimeType, text string) *CallToolResult {
	return &CallToolResult{
		Content: []ContentBlock{{
			Type:     "resource",
			Resource: &ResourceContents{URI: uri, MimeType: mimeType, Text: text},
		}},
	}
}

// BlobResult wraps base64 binary data as an embedded resource (e.g. an
// image).
func BlobResult(uri, mimeType, base64Data string) *CallToolResult {
	return &CallToolResult{
		Content: []ContentBlock{{
			Type:     "resource",
			Resource: &ResourceContents{URI: uri, MimeType: mimeType, Blob: base64Data},
		}},
	}
}
