package interrupt

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ideworks/mcpgate/internal/jsonrpc"
	"github.com/ideworks/mcpgate/mcp"
)

// Sink is the transport-side response target of an active call. Send writes
// the JSON-RPC body and closes the underlying response; the transport
// guarantees a Sink accepts exactly one Send over its lifetime once the
// claim here has been won.
type Sink interface {
	Send(body []byte) error
}

// ActiveCall tracks the single in-flight interruptible tool call. Two
// parties race to respond: the worker delivering the tool's result and an
// external interrupt carrying a user signal. A compare-and-swap on the
// responded flag guards every response path, so whichever side wins writes
// and closes the sink and the loser is fully inert.
type ActiveCall struct {
	toolName  string
	requestID *jsonrpc.RequestID
	startTime time.Time
	sink      Sink
	responded atomic.Bool
}

// NewActiveCall binds a call's identity to its response sink.
func NewActiveCall(toolName string, requestID *jsonrpc.RequestID, sink Sink) *ActiveCall {
	return &ActiveCall{
		toolName:  toolName,
		requestID: requestID,
		startTime: time.Now(),
		sink:      sink,
	}
}

// ToolName returns the name of the executing tool.
func (c *ActiveCall) ToolName() string {
	return c.toolName
}

// RequestID returns the call's JSON-RPC request id.
func (c *ActiveCall) RequestID() *jsonrpc.RequestID {
	return c.requestID
}

// Elapsed returns the time since the call began.
func (c *ActiveCall) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// HasResponded reports whether some path already claimed the response. The
// orchestrator polls this to detect an external interrupt.
func (c *ActiveCall) HasResponded() bool {
	return c.responded.Load()
}

// SendNormal attempts to deliver the tool's own response body. It returns
// false without touching the sink when an interrupt already claimed the
// call.
func (c *ActiveCall) SendNormal(body []byte) bool {
	if !c.responded.CompareAndSwap(false, true) {
		return false
	}
	return c.sink.Send(body) == nil
}

// SendSignal attempts to deliver an interrupt response built from the user
// signal. It returns false without touching the sink when the normal path
// already won; the caller then knows the interrupt had no effect.
//
// The body is built before the claim: a claim with nothing to send would
// leave the sink forever unwritten and the accepting goroutine waiting on
// it.
func (c *ActiveCall) SendSignal(sig Signal) bool {
	body, err := c.signalBody(sig)
	if err != nil {
		return false
	}

	if !c.responded.CompareAndSwap(false, true) {
		return false
	}
	return c.sink.Send(body) == nil
}

// signalBody builds the JSON-RPC success response describing the interrupt.
// The call's own result never reaches the client; the signal text tells the
// agent what happened and that the underlying operation may still be
// running.
func (c *ActiveCall) signalBody(sig Signal) ([]byte, error) {
	text := fmt.Sprintf(
		"USER SIGNAL: %s\n\nSignal Type: %s\nTool: %s\nElapsed: %ds\n\nNote: The underlying operation may still be running in the background.",
		sig.Message, sig.Type, c.toolName, int(c.Elapsed().Seconds()),
	)

	resp, err := jsonrpc.NewResultResponse(c.requestID, mcp.TextResult(text))
	if err != nil {
		return nil, err
	}
	return jsonrpc.EncodeResponse(resp)
}
