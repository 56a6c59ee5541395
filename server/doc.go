// Package server implements the HTTP transport of the MCP gateway: the /mcp
// JSON-RPC endpoint with Accept-negotiated plain-JSON or single-shot SSE
// delivery, the origin allow-list, the /health endpoint, and the
// interruptible tool-call orchestration that races a tool worker against an
// operator interrupt for the right to answer the request.
//
// The transport deliberately supports no server-initiated push: SSE framing
// is used only as an envelope for one response, and GET /mcp with an SSE
// Accept header is answered 405.
package server
