// Package session holds the process-wide mutable state shared between the
// HTTP transport, the tool worker, and the external signal producer: the
// request counter, what tool is running now (for status display), the
// pending user signal, and the single active interruptible call.
//
// State is injectable rather than a package singleton so that tests can run
// independent instances in parallel. No invariant spans multiple fields;
// each is guarded on its own.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ideworks/mcpgate/interrupt"
)

// State is the server's shared session state. The zero value is ready to
// use.
type State struct {
	requestCount atomic.Int64

	mu            sync.Mutex
	currentTool   string
	toolStartTime time.Time

	signals interrupt.Mailbox
	active  atomic.Pointer[interrupt.ActiveCall]
}

// NewState returns a fresh state.
func NewState() *State {
	return &State{}
}

// IncrementRequestCount bumps the monotonic request counter.
func (s *State) IncrementRequestCount() {
	s.requestCount.Add(1)
}

// RequestCount returns the number of requests processed since startup.
func (s *State) RequestCount() int64 {
	return s.requestCount.Load()
}

// BeginTool records that a tool started executing, for status display.
func (s *State) BeginTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentTool = name
	s.toolStartTime = time.Now()
}

// EndTool clears the current-tool display state.
func (s *State) EndTool() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentTool = ""
	s.toolStartTime = time.Time{}
}

// CurrentTool returns the name of the executing tool, or "" when idle.
func (s *State) CurrentTool() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTool
}

// ToolExecutionSeconds returns how long the current tool has been running,
// or 0 when idle.
func (s *State) ToolExecutionSeconds() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toolStartTime.IsZero() {
		return 0
	}
	return int64(time.Since(s.toolStartTime).Seconds())
}

// PostSignal stores a user signal for the current operation, overwriting any
// unconsumed one. The signal is attached to the running call's normal
// response unless an interrupt delivers it first.
func (s *State) PostSignal(sig interrupt.Signal) {
	s.signals.Set(sig)
}

// ConsumeSignal removes and returns the pending signal, if any.
func (s *State) ConsumeSignal() *interrupt.Signal {
	return s.signals.Consume()
}

// SignalPending reports whether a signal is waiting.
func (s *State) SignalPending() bool {
	return s.signals.Pending()
}

// SetActiveCall registers the in-flight interruptible call. The orchestrator
// registers exactly one call per accepted tools/call request, before any
// signal producer is told it may interrupt.
func (s *State) SetActiveCall(call *interrupt.ActiveCall) {
	s.active.Store(call)
}

// ActiveCall returns the in-flight call, or nil when none is active.
func (s *State) ActiveCall() *interrupt.ActiveCall {
	return s.active.Load()
}

// ClearActiveCall drops the active-call registration.
func (s *State) ClearActiveCall() {
	s.active.Store(nil)
}

// Interrupt attempts to cut the active call short with a user signal. On
// success the signal response has been written and the call's normal result
// will be discarded; tool execution itself keeps running unobserved. It
// returns false when no call is active or the call already completed, so
// the operator can be told the interrupt had no effect.
func (s *State) Interrupt(sig interrupt.Signal) bool {
	call := s.active.Load()
	if call == nil || call.HasResponded() {
		return false
	}
	if !call.SendSignal(sig) {
		return false
	}

	// The interrupt response carries its own signal payload; discard any
	// mailbox copy so it is not appended to a later response as well.
	s.signals.Consume()

	s.EndTool()
	s.active.CompareAndSwap(call, nil)
	return true
}
