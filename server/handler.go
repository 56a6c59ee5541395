package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ideworks/mcpgate/internal/jsonrpc"
	"github.com/ideworks/mcpgate/internal/logctx"
	"github.com/ideworks/mcpgate/internal/protocol"
	"github.com/ideworks/mcpgate/interrupt"
	"github.com/ideworks/mcpgate/mcp"
	"github.com/ideworks/mcpgate/session"
	"github.com/ideworks/mcpgate/tools"
)

var _ http.Handler = (*Handler)(nil)

var (
	jsonMediaType        = contenttype.NewMediaType("application/json")
	eventStreamMediaType = contenttype.NewMediaType("text/event-stream")
	offeredMediaTypes    = []contenttype.MediaType{jsonMediaType, eventStreamMediaType}
)

// maxBodyBytes caps the POST /mcp request body.
const maxBodyBytes = 4 << 20

// pollInterval is how often the accepting goroutine checks whether an
// external interrupt already answered the in-flight call.
const pollInterval = 100 * time.Millisecond

// Option configures a Handler.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	plainTextMode bool
	hostVersion   string
}

// WithLogger sets the slog logger. If not provided, logs are discarded.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) { c.logger = log }
}

// WithPlainTextMode renders markdown tool results as plain text blocks, for
// clients that cannot display embedded resources.
func WithPlainTextMode(enabled bool) Option {
	return func(c *config) { c.plainTextMode = enabled }
}

// WithHostVersion sets the host product version reported by /health and the
// server-info document.
func WithHostVersion(version string) Option {
	return func(c *config) { c.hostVersion = version }
}

// Handler serves the /mcp and /health endpoints for one gateway instance.
type Handler struct {
	mux         *http.ServeMux
	log         *slog.Logger
	state       *session.State
	proto       *protocol.Handler
	info        mcp.ImplementationInfo
	hostVersion string
	eventID     atomic.Uint64
}

// NewHandler wires the transport over the given registry and shared state.
func NewHandler(registry *tools.Registry, state *session.State, info mcp.ImplementationInfo, opts ...Option) *Handler {
	cfg := &config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}

	log := slog.New(logctx.Handler{Handler: cfg.logger.Handler()})

	h := &Handler{
		log:         log,
		state:       state,
		info:        info,
		hostVersion: cfg.hostVersion,
		proto: protocol.NewHandler(registry, state, info,
			protocol.WithLogger(log),
			protocol.WithPlainTextMode(cfg.plainTextMode),
		),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp", h.handlePostMCP)
	mux.HandleFunc("GET /mcp", h.handleGetMCP)
	mux.HandleFunc("DELETE /mcp", h.handleDeleteMCP)
	mux.HandleFunc("GET /health", h.handleGetHealth)
	h.mux = mux
	return h
}

// ServeHTTP applies the origin gate and CORS policy, answers preflight, and
// routes everything else.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})
	r = r.WithContext(ctx)

	// DNS-rebinding protection: a present Origin header must be on the
	// allow-list. The rejection body stays JSON-RPC shaped so uniform
	// clients can still parse it.
	origin := r.Header.Get("Origin")
	if origin != "" && !originAllowed(origin) {
		h.log.WarnContext(ctx, "origin.rejected", slog.String("origin", origin))
		writeJSONRPCError(w, http.StatusForbidden, jsonrpc.ErrorCodeInvalidRequest, "Invalid Origin")
		return
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, "+mcp.SessionIDHeader)
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.mux.ServeHTTP(w, r)
}

// originAllowed implements the fixed allow-list: local origins over http or
// https, file URLs, the literal "null" browsers send for local file
// contexts, and the IDE webview scheme.
func originAllowed(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1") ||
		strings.HasPrefix(origin, "https://localhost") ||
		strings.HasPrefix(origin, "https://127.0.0.1") ||
		strings.HasPrefix(origin, "file://") ||
		origin == "null" ||
		strings.HasPrefix(origin, "vscode-webview://")
}

func (h *Handler) handlePostMCP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	h.state.IncrementRequestCount()
	h.log.InfoContext(ctx, "http.post.start")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.log.WarnContext(ctx, "http.body.read.fail", slog.String("err", err.Error()))
		writeJSONRPCError(w, http.StatusBadRequest, jsonrpc.ErrorCodeParseError, "failed to read request body")
		return
	}

	method := jsonrpc.ExtractMethod(body)

	if method == string(mcp.ToolsCallMethod) {
		h.handleInterruptibleToolCall(ctx, w, r, body)
		h.log.InfoContext(ctx, "http.post.ok", slog.Duration("dur", time.Since(start)))
		return
	}

	out := h.proto.Process(ctx, body)
	if out == nil {
		// Notification: acknowledged with no body, never a JSON null.
		h.log.InfoContext(ctx, "notification.ok")
		w.WriteHeader(http.StatusAccepted)
		return
	}

	h.deliver(w, r, out, method == string(mcp.InitializeMethod))
	h.log.InfoContext(ctx, "http.post.ok", slog.Duration("dur", time.Since(start)))
}

// handleInterruptibleToolCall runs the tool worker on its own goroutine and
// polls for completion or an external interrupt. Exactly one of the tool
// result and the interrupt response is written; the loser is discarded.
//
// No cancellation reaches the tool itself: interrupting a call releases the
// HTTP response early while the underlying operation keeps running to
// completion with no observer.
func (h *Handler) handleInterruptibleToolCall(ctx context.Context, w http.ResponseWriter, r *http.Request, body []byte) {
	requestID := jsonrpc.ExtractRequestID(body)
	toolName := jsonrpc.ExtractToolName(body)

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: toolName})

	sink := newResponseSink(w, h.acceptsSSE(r), h.nextEventID)
	call := interrupt.NewActiveCall(toolName, requestID, sink)

	// Register before the worker starts so the signal producer can always
	// reach a call that is actually running.
	h.state.SetActiveCall(call)

	// The worker outlives the request when an interrupt wins, so it is
	// detached from the request's cancellation while keeping its log
	// attributes.
	workerCtx := context.WithoutCancel(ctx)
	resultCh := make(chan []byte, 1)
	go func() {
		resultCh <- h.proto.Process(workerCtx, body)
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case out := <-resultCh:
			h.state.ClearActiveCall()
			if out == nil {
				// tools/call always produces a body; guard regardless.
				out = []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"empty tool response"},"id":null}`)
			}
			if !call.SendNormal(out) {
				// The interrupt claimed the response between the last poll
				// and completion. Nothing further to write; just make sure
				// the interrupt's write finished before the handler returns.
				h.log.InfoContext(ctx, "tool.call.discarded")
				<-sink.Done()
				return
			}
			h.log.InfoContext(ctx, "tool.call.responded")
			return

		case <-ticker.C:
			if call.HasResponded() {
				// The operator interrupted: the signal response was written
				// on another goroutine. Wait for that write to finish, then
				// abandon the worker.
				h.state.ClearActiveCall()
				h.log.InfoContext(ctx, "tool.call.interrupted")
				<-sink.Done()
				return
			}
		}
	}
}

// deliver writes a JSON-RPC response body, SSE-framed when the client asked
// for an event stream, and mints a fresh session id on initialize.
func (h *Handler) deliver(w http.ResponseWriter, r *http.Request, body []byte, isInitialize bool) {
	if isInitialize {
		// Opaque and stateless: no session table backs it.
		w.Header().Set(mcp.SessionIDHeader, uuid.NewString())
	}

	if h.acceptsSSE(r) {
		sink := newResponseSink(w, true, h.nextEventID)
		_ = sink.Send(body)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// acceptsSSE reports whether content negotiation selects the event-stream
// delivery for this request.
func (h *Handler) acceptsSSE(r *http.Request) bool {
	if r.Header.Get("Accept") == "" {
		return false
	}
	mt, _, err := contenttype.GetAcceptableMediaType(r, offeredMediaTypes)
	if err != nil {
		return false
	}
	return mt.Matches(eventStreamMediaType)
}

func (h *Handler) nextEventID() uint64 {
	return h.eventID.Add(1)
}

// handleGetMCP answers a plain GET with the static server-info document.
// Clients asking for an SSE stream get 405: this server never initiates
// push.
func (h *Handler) handleGetMCP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.acceptsSSE(r) {
		h.log.InfoContext(ctx, "http.get.sse.unsupported")
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"error": "Server-initiated SSE not supported",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":             h.info.Name,
		"version":          h.info.Version,
		"host_version":     h.hostVersion,
		"protocol_version": mcp.ProtocolVersion,
		"status":           "running",
	})
}

// handleDeleteMCP acknowledges session termination. There is no session
// state to destroy.
func (h *Handler) handleDeleteMCP(w http.ResponseWriter, r *http.Request) {
	h.log.InfoContext(r.Context(), "session.delete.noop")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleGetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"host_version": h.hostVersion,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONRPCError emits a JSON-RPC-shaped error body for transport-level
// rejections, so clients parsing JSON-RPC uniformly still get a parseable
// response instead of an HTTP error page.
func writeJSONRPCError(w http.ResponseWriter, status int, code jsonrpc.ErrorCode, message string) {
	body, err := jsonrpc.EncodeResponse(jsonrpc.NewErrorResponse(jsonrpc.NewRequestID(nil), code, message))
	if err != nil {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
