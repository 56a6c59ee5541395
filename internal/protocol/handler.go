// Package protocol implements the JSON-RPC method dispatcher: envelope
// validation, the four MCP methods this server answers, and the shaping of
// tool results into their declared response types.
package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ideworks/mcpgate/internal/jsonrpc"
	"github.com/ideworks/mcpgate/internal/logctx"
	"github.com/ideworks/mcpgate/interrupt"
	"github.com/ideworks/mcpgate/mcp"
	"github.com/ideworks/mcpgate/session"
	"github.com/ideworks/mcpgate/toolargs"
	"github.com/ideworks/mcpgate/tools"
)

// Handler dispatches MCP JSON-RPC requests against the tool registry.
type Handler struct {
	registry *tools.Registry
	state    *session.State
	log      *slog.Logger
	info     mcp.ImplementationInfo

	// plainTextMode renders markdown results as plain text blocks for
	// clients that cannot display embedded resources.
	plainTextMode bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithPlainTextMode makes markdown tool results come back as plain text
// content blocks instead of embedded resources.
func WithPlainTextMode(enabled bool) Option {
	return func(h *Handler) { h.plainTextMode = enabled }
}

// NewHandler builds a dispatcher over the given registry and shared state.
func NewHandler(registry *tools.Registry, state *session.State, info mcp.ImplementationInfo, opts ...Option) *Handler {
	h := &Handler{
		registry: registry,
		state:    state,
		log:      slog.New(slog.DiscardHandler),
		info:     info,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Process handles one JSON-RPC envelope and returns the serialized response
// body. A nil return means the request was a notification and no body must
// be sent (the transport answers 202). Every failure mode produces an error
// response body; Process never returns a Go error to the transport.
func (h *Handler) Process(ctx context.Context, body []byte) (out []byte) {
	// Best-effort id recovery so even malformed envelopes get an answerable
	// response. The fixed sentinel 1 stands in when nothing is recoverable.
	requestID := jsonrpc.NewRequestID(1)

	// A panicking tool must not take the transport down or leave the
	// request unanswered. Only the panic message goes on the wire.
	defer func() {
		if r := recover(); r != nil {
			h.log.ErrorContext(ctx, "rpc.dispatch.panic", slog.Any("panic", r))
			out = h.errorBody(ctx, requestID, jsonrpc.ErrorCodeInternalError, fmt.Sprintf("%v", r))
		}
	}()

	// An explicit null id must echo as null; only an absent id falls back
	// to the sentinel.
	req, err := jsonrpc.ParseRequest(body)
	if req != nil && req.ID != nil {
		requestID = req.ID
	}

	if err != nil || req.JSONRPCVersion != jsonrpc.ProtocolVersion {
		return h.errorBody(ctx, requestID, jsonrpc.ErrorCodeInvalidRequest, "Invalid JSON-RPC version, expected 2.0")
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: req.Method, ID: requestID.String()})

	switch mcp.Method(req.Method) {
	case mcp.InitializeMethod:
		return h.initialize(ctx, req, requestID)
	case mcp.InitializedNotificationMethod:
		// Distinct no-body sentinel; the transport maps this to 202.
		return nil
	case mcp.ToolsListMethod:
		return h.toolsList(ctx, requestID)
	case mcp.ToolsCallMethod:
		return h.toolsCall(ctx, req, requestID)
	default:
		return h.errorBody(ctx, requestID, jsonrpc.ErrorCodeMethodNotFound, "Method not found")
	}
}

// initialize answers the handshake. The client's self-identification is
// informational only; a missing or malformed one does not fail the
// handshake.
func (h *Handler) initialize(ctx context.Context, req *jsonrpc.Request, requestID *jsonrpc.RequestID) []byte {
	var init mcp.InitializeRequest
	if len(req.Params) > 0 && json.Unmarshal(req.Params, &init) == nil && init.ClientInfo.Name != "" {
		h.log.InfoContext(ctx, "client.initialize",
			slog.String("client", init.ClientInfo.Name),
			slog.String("client_version", init.ClientInfo.Version),
			slog.String("client_protocol", init.ProtocolVersion),
		)
	}
	return h.resultBody(ctx, requestID, mcp.NewInitializeResult(h.info))
}

// toolsList enumerates the registry. Each tool's schema string is parsed and
// embedded as a nested JSON value; a tool with an unparseable schema gets an
// empty object schema rather than corrupting the whole listing.
func (h *Handler) toolsList(ctx context.Context, requestID *jsonrpc.RequestID) []byte {
	all := h.registry.All()
	result := mcp.ListToolsResult{Tools: make([]mcp.Tool, 0, len(all))}

	for _, tool := range all {
		schema := json.RawMessage(tool.InputSchema())
		if !json.Valid(schema) {
			h.log.WarnContext(ctx, "tool.schema.invalid", slog.String("tool", tool.Name()))
			schema = json.RawMessage(`{"type":"object","properties":{},"required":[]}`)
		}
		result.Tools = append(result.Tools, mcp.Tool{
			Name:        tool.Name(),
			Description: tool.Description(),
			InputSchema: schema,
		})
	}

	return h.resultBody(ctx, requestID, result)
}

func (h *Handler) toolsCall(ctx context.Context, req *jsonrpc.Request, requestID *jsonrpc.RequestID) []byte {
	toolName := req.ToolName()
	tool, err := h.registry.Lookup(toolName)
	if err != nil {
		return h.errorBody(ctx, requestID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("Tool not found: %s", toolName))
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: tool.Name()})
	h.log.InfoContext(ctx, "tool.call.start")

	params := toolargs.Flatten(req.Arguments())

	h.state.BeginTool(tool.Name())
	result, execErr := tool.Execute(params)
	h.state.EndTool()

	if execErr != nil {
		h.log.ErrorContext(ctx, "tool.call.fail", slog.String("err", execErr.Error()))
		return h.errorBody(ctx, requestID, jsonrpc.ErrorCodeInternalError, execErr.Error())
	}

	// A signal that arrived during execution but did not interrupt the call
	// rides along on the normal response.
	signal := h.state.ConsumeSignal()

	h.log.InfoContext(ctx, "tool.call.ok")
	return h.shapeResult(ctx, tool, params, result, signal, requestID)
}

// shapeResult builds the tools/call response per the tool's declared
// response type, attaching a pending user signal where the shape has a text
// channel for it.
func (h *Handler) shapeResult(ctx context.Context, tool tools.Tool, params map[string]string, result string, signal *interrupt.Signal, requestID *jsonrpc.RequestID) []byte {
	switch tool.ResponseType() {
	case tools.ResponseJSON:
		structured := h.structuredWithSignal(ctx, result, signal)
		return h.resultBody(ctx, requestID, mcp.StructuredResult(structured))

	case tools.ResponseMarkdown:
		if signal != nil {
			result = result + "\n\n---\n**USER SIGNAL:** " + signal.Message
		}
		if h.plainTextMode {
			return h.resultBody(ctx, requestID, mcp.TextResult(result))
		}
		uri := "embedded://" + tool.ResultFileName(params)
		return h.resultBody(ctx, requestID, mcp.ResourceResult(uri, "text/markdown", result))

	case tools.ResponseImage:
		// A tool that failed before producing image data reports a JSON
		// error payload; deliver that as structured JSON instead of a
		// nonsensical blob. Signals are dropped: a binary response has no
		// text channel to carry them.
		if isJSONErrorPayload(result) {
			return h.resultBody(ctx, requestID, mcp.StructuredResult(json.RawMessage(result)))
		}
		uri := "embedded://" + tool.ResultFileName(params)
		return h.resultBody(ctx, requestID, mcp.BlobResult(uri, "image/png", result))

	default:
		if signal != nil {
			result = result + "\n\n---\nUSER SIGNAL: " + signal.Message
		}
		return h.resultBody(ctx, requestID, mcp.TextResult(result))
	}
}

// structuredWithSignal parses a tool's JSON result and, when a signal is
// pending, merges a userSignal member into it. A result that is not a JSON
// object passes through untouched.
func (h *Handler) structuredWithSignal(ctx context.Context, result string, signal *interrupt.Signal) json.RawMessage {
	raw := json.RawMessage(result)
	if !json.Valid(raw) {
		h.log.WarnContext(ctx, "tool.result.invalid_json")
		raw, _ = json.Marshal(map[string]string{"result": result})
	}
	if signal == nil {
		return raw
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw
	}
	sigJSON, err := json.Marshal(map[string]string{
		"type":    string(signal.Type),
		"message": signal.Message,
	})
	if err != nil {
		return raw
	}
	obj["userSignal"] = sigJSON

	merged, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return merged
}

// isJSONErrorPayload reports whether a tool result is a JSON error object
// ({"success":false,...} or {"error":...}).
func isJSONErrorPayload(result string) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(result), &obj); err != nil {
		return false
	}
	if raw, ok := obj["success"]; ok {
		var success bool
		if err := json.Unmarshal(raw, &success); err == nil && !success {
			return true
		}
	}
	_, hasError := obj["error"]
	return hasError
}

func (h *Handler) resultBody(ctx context.Context, requestID *jsonrpc.RequestID, result any) []byte {
	resp, err := jsonrpc.NewResultResponse(requestID, result)
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.result.marshal.fail", slog.String("err", err.Error()))
		return h.errorBody(ctx, requestID, jsonrpc.ErrorCodeInternalError, "failed to encode result")
	}
	body, err := jsonrpc.EncodeResponse(resp)
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.response.marshal.fail", slog.String("err", err.Error()))
		return h.errorBody(ctx, requestID, jsonrpc.ErrorCodeInternalError, "failed to encode response")
	}
	return body
}

func (h *Handler) errorBody(ctx context.Context, requestID *jsonrpc.RequestID, code jsonrpc.ErrorCode, message string) []byte {
	h.log.InfoContext(ctx, "rpc.error", slog.Int("code", int(code)), slog.String("msg", message))
	body, err := jsonrpc.EncodeResponse(jsonrpc.NewErrorResponse(requestID, code, message))
	if err != nil {
		// The error shape contains only scalars; this cannot fail in
		// practice, but never answer with nothing.
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal error"},"id":null}`)
	}
	return body
}
