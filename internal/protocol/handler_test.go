package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideworks/mcpgate/internal/jsonrpc"
	"github.com/ideworks/mcpgate/interrupt"
	"github.com/ideworks/mcpgate/mcp"
	"github.com/ideworks/mcpgate/session"
	"github.com/ideworks/mcpgate/tools"
	"github.com/ideworks/mcpgate/tools/toolstest"
)

var testInfo = mcp.ImplementationInfo{Name: "mcpgate-test", Version: "0.0.1"}

func newTestHandler(t *testing.T, reg *tools.Registry, opts ...Option) (*Handler, *session.State) {
	t.Helper()
	if reg == nil {
		reg = tools.NewRegistry()
	}
	state := session.NewState()
	return NewHandler(reg, state, testInfo, opts...), state
}

func process(t *testing.T, h *Handler, body string) *jsonrpc.Response {
	t.Helper()
	out := h.Process(context.Background(), []byte(body))
	require.NotNil(t, out)
	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(out, &resp))
	return &resp
}

func TestInitialize(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"initialize","params":{},"id":"init-1"}`)

	require.Nil(t, resp.Error)
	assert.Equal(t, "init-1", resp.ID.String())

	var result mcp.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, mcp.ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "mcpgate-test", result.ServerInfo.Name)
	assert.NotNil(t, result.Capabilities.Tools)
}

func TestInitializeLogsClientInfo(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	h, _ := newTestHandler(t, nil, WithLogger(log))
	resp := process(t, h, `{
		"jsonrpc": "2.0",
		"method": "initialize",
		"params": {"protocolVersion": "2025-11-25", "clientInfo": {"name": "cursor", "version": "1.2.3"}},
		"id": 1
	}`)
	require.Nil(t, resp.Error)

	out := buf.String()
	assert.Contains(t, out, "client.initialize")
	assert.Contains(t, out, "client=cursor")
	assert.Contains(t, out, "client_version=1.2.3")
}

func TestInitializedNotificationHasNoBody(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	out := h.Process(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	assert.Nil(t, out)
}

func TestInvalidVersionRejected(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	for _, body := range []string{
		`{"jsonrpc":"1.0","method":"tools/list","id":1}`,
		`{"method":"tools/list","id":1}`,
		`this is not json`,
	} {
		resp := process(t, h, body)
		require.NotNil(t, resp.Error, body)
		assert.Equal(t, jsonrpc.ErrorCodeInvalidRequest, resp.Error.Code)
		assert.Equal(t, "Invalid JSON-RPC version, expected 2.0", resp.Error.Message)
	}
}

func TestMalformedBodyGetsSentinelID(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	resp := process(t, h, `not json`)
	assert.Equal(t, "1", resp.ID.String())
}

func TestUnknownMethod(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"resources/list","id":2}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "2", resp.ID.String())
}

func TestRequestIDEchoed(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/list","id":"str-id"}`)
	assert.Equal(t, "str-id", resp.ID.String())

	resp = process(t, h, `{"jsonrpc":"2.0","method":"tools/list","id":99}`)
	assert.Equal(t, "99", resp.ID.String())

	// An explicit null id echoes as null, never as the sentinel.
	out := h.Process(context.Background(), []byte(`{"jsonrpc":"2.0","method":"badmethod","id":null}`))
	require.NotNil(t, out)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, "null", string(raw["id"]))

	// An absent id on a malformed-for-dispatch request falls back to the
	// sentinel.
	resp = process(t, h, `{"jsonrpc":"2.0","method":"badmethod"}`)
	assert.Equal(t, "1", resp.ID.String())
}

func TestToolsListEmbedsSchema(t *testing.T) {
	reg := tools.NewRegistry()
	schema := mcp.NewSchema().
		String("query", "the search query", true).
		Integer("limit", "max results", false).
		BuildJSON()
	reg.Register(tools.NewFunc("search", "Searches the index.",
		func(map[string]string) (string, error) { return "", nil },
		tools.WithInputSchema(schema),
	))

	h, _ := newTestHandler(t, reg)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/list","id":1}`)
	require.Nil(t, resp.Error)

	var result mcp.ListToolsResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 1)
	assert.Equal(t, "search", result.Tools[0].Name)

	// The schema rides as a parsed JSON object, not a re-encoded string.
	var parsed mcp.ToolInputSchema
	require.NoError(t, json.Unmarshal(result.Tools[0].InputSchema, &parsed))
	assert.Equal(t, "object", parsed.Type)
	assert.Equal(t, "string", parsed.Properties["query"].Type)
	assert.Equal(t, []string{"query"}, parsed.Required)
}

func TestToolsListBadSchemaFallsBack(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.NewFunc("broken", "d",
		func(map[string]string) (string, error) { return "", nil },
		tools.WithInputSchema(`{not valid json`),
	))

	h, _ := newTestHandler(t, reg)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/list","id":1}`)
	require.Nil(t, resp.Error)

	var result mcp.ListToolsResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Tools, 1)
	assert.JSONEq(t, `{"type":"object","properties":{},"required":[]}`, string(result.Tools[0].InputSchema))
}

func TestToolsCallUnknownTool(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"nope"},"id":1}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "Tool not found: nope", resp.Error.Message)
}

func TestToolsCallFlattensArguments(t *testing.T) {
	var got map[string]string
	reg := tools.NewRegistry()
	reg.Register(toolstest.Capture("echo", &got, "ok"))

	h, _ := newTestHandler(t, reg)
	resp := process(t, h, `{
		"jsonrpc": "2.0",
		"method": "tools/call",
		"params": {"name": "echo", "arguments": {"q": "x", "n": 3, "flag": true}},
		"id": 1
	}`)
	require.Nil(t, resp.Error)

	assert.Equal(t, map[string]string{"q": "x", "n": "3", "flag": "true"}, got)
}

func TestToolsCallExecutionError(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(toolstest.Failing("boom", errors.New("disk full")))

	h, state := newTestHandler(t, reg)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"boom"},"id":1}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInternalError, resp.Error.Code)
	assert.Equal(t, "disk full", resp.Error.Message)
	assert.Equal(t, "", state.CurrentTool(), "tool tracking unwound on failure")
}

func TestToolsCallPanicRecovered(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.NewFunc("panics", "d",
		func(map[string]string) (string, error) { panic("unexpected state") },
	))

	h, _ := newTestHandler(t, reg)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"panics"},"id":4}`)

	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.ErrorCodeInternalError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unexpected state")
	assert.Equal(t, "4", resp.ID.String())
}

func callResult(t *testing.T, resp *jsonrpc.Response) *mcp.CallToolResult {
	t.Helper()
	require.Nil(t, resp.Error)
	var result mcp.CallToolResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	return &result
}

func TestTextResult(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(toolstest.Static("txt", "plain answer", tools.ResponseText))

	h, _ := newTestHandler(t, reg)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"txt"},"id":1}`)

	result := callResult(t, resp)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Equal(t, "plain answer", result.Content[0].Text)
	assert.Nil(t, result.StructuredContent)
}

func TestTextResultWithSignal(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(toolstest.Static("txt", "answer", tools.ResponseText))

	h, state := newTestHandler(t, reg)
	state.PostSignal(interrupt.NewSignal(interrupt.SignalCustom, "switch focus"))

	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"txt"},"id":1}`)
	result := callResult(t, resp)

	assert.Equal(t, "answer\n\n---\nUSER SIGNAL: switch focus", result.Content[0].Text)
	assert.False(t, state.SignalPending(), "signal consumed by the response")
}

func TestJSONResult(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(toolstest.Static("js", `{"items":[1,2]}`, tools.ResponseJSON))

	h, _ := newTestHandler(t, reg)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"js"},"id":1}`)
	result := callResult(t, resp)

	assert.JSONEq(t, `{"items":[1,2]}`, string(result.StructuredContent))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "Done", result.Content[0].Text)
}

func TestJSONResultMergesSignal(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(toolstest.Static("js", `{"ok":true}`, tools.ResponseJSON))

	h, state := newTestHandler(t, reg)
	state.PostSignal(interrupt.NewSignal(interrupt.SignalRetry, ""))

	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"js"},"id":1}`)
	result := callResult(t, resp)

	var merged map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(result.StructuredContent, &merged))
	assert.Contains(t, merged, "ok")
	require.Contains(t, merged, "userSignal")

	var sig map[string]string
	require.NoError(t, json.Unmarshal(merged["userSignal"], &sig))
	assert.Equal(t, "RETRY", sig["type"])
	assert.Equal(t, "An error occurred. Please retry the operation.", sig["message"])
}

func TestJSONResultNonJSONWrapped(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(toolstest.Static("js", `not json`, tools.ResponseJSON))

	h, _ := newTestHandler(t, reg)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"js"},"id":1}`)
	result := callResult(t, resp)

	assert.JSONEq(t, `{"result":"not json"}`, string(result.StructuredContent))
}

func TestMarkdownResult(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.NewFunc("report", "d",
		func(map[string]string) (string, error) { return "# Title", nil },
		tools.WithResponseType(tools.ResponseMarkdown),
	))

	h, _ := newTestHandler(t, reg)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"report"},"id":1}`)
	result := callResult(t, resp)

	require.Len(t, result.Content, 1)
	assert.Equal(t, "resource", result.Content[0].Type)
	require.NotNil(t, result.Content[0].Resource)
	assert.Equal(t, "embedded://report.md", result.Content[0].Resource.URI)
	assert.Equal(t, "text/markdown", result.Content[0].Resource.MimeType)
	assert.Equal(t, "# Title", result.Content[0].Resource.Text)
}

func TestMarkdownResultSignalAppended(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.NewFunc("report", "d",
		func(map[string]string) (string, error) { return "body", nil },
		tools.WithResponseType(tools.ResponseMarkdown),
	))

	h, state := newTestHandler(t, reg)
	state.PostSignal(interrupt.NewSignal(interrupt.SignalCustom, "note"))

	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"report"},"id":1}`)
	result := callResult(t, resp)

	assert.Equal(t, "body\n\n---\n**USER SIGNAL:** note", result.Content[0].Resource.Text)
}

func TestMarkdownResultPlainTextMode(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.NewFunc("report", "d",
		func(map[string]string) (string, error) { return "# Title", nil },
		tools.WithResponseType(tools.ResponseMarkdown),
	))

	h, _ := newTestHandler(t, reg, WithPlainTextMode(true))
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"report"},"id":1}`)
	result := callResult(t, resp)

	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Equal(t, "# Title", result.Content[0].Text)
}

func TestImageResult(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.NewFunc("shot", "d",
		func(map[string]string) (string, error) { return "aGVsbG8=", nil },
		tools.WithResponseType(tools.ResponseImage),
		tools.WithResultFileName(func(map[string]string) string { return "shot.png" }),
	))

	h, _ := newTestHandler(t, reg)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"shot"},"id":1}`)
	result := callResult(t, resp)

	require.Len(t, result.Content, 1)
	require.NotNil(t, result.Content[0].Resource)
	assert.Equal(t, "embedded://shot.png", result.Content[0].Resource.URI)
	assert.Equal(t, "image/png", result.Content[0].Resource.MimeType)
	assert.Equal(t, "aGVsbG8=", result.Content[0].Resource.Blob)
}

func TestImageResultErrorPayloadDowngrades(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(tools.NewFunc("shot", "d",
		func(map[string]string) (string, error) {
			return `{"success":false,"error":"no display"}`, nil
		},
		tools.WithResponseType(tools.ResponseImage),
	))

	h, _ := newTestHandler(t, reg)
	resp := process(t, h, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"shot"},"id":1}`)
	result := callResult(t, resp)

	assert.JSONEq(t, `{"success":false,"error":"no display"}`, string(result.StructuredContent))
}

func TestIsJSONErrorPayload(t *testing.T) {
	assert.True(t, isJSONErrorPayload(`{"success":false}`))
	assert.True(t, isJSONErrorPayload(`{"error":"boom"}`))
	assert.False(t, isJSONErrorPayload(`{"success":true}`))
	assert.False(t, isJSONErrorPayload(`aGVsbG8=`))
	assert.False(t, isJSONErrorPayload(`{"data":1}`))
}
