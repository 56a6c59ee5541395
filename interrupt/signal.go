// Package interrupt implements the user-signal mechanism that lets a human
// operator redirect an in-flight tool call: out-of-band signals posted by an
// external actor, a single-slot mailbox handing them to the protocol layer,
// and the active-call tracker that guarantees the HTTP response for an
// interruptible call is written at most once.
package interrupt

import (
	"sync"
	"time"
)

// SignalType identifies the operator's intent.
type SignalType string

const (
	// SignalCancel aborts waiting for the operation.
	SignalCancel SignalType = "CANCEL"
	// SignalRetry asks the agent to retry the operation.
	SignalRetry SignalType = "RETRY"
	// SignalBackground tells the agent the operation continues in the
	// background and should be polled.
	SignalBackground SignalType = "BACKGROUND"
	// SignalExpert asks the agent to stop and consult a human expert.
	SignalExpert SignalType = "EXPERT"
	// SignalCustom carries a free-form operator message.
	SignalCustom SignalType = "CUSTOM"
)

// Signal is an out-of-band instruction injected by a human operator while a
// tool call is running.
type Signal struct {
	Type      SignalType
	Message   string
	Timestamp time.Time
}

// NewSignal builds a signal, substituting the type's default message when
// none is given.
func NewSignal(t SignalType, message string) Signal {
	if message == "" {
		message = DefaultMessage(t)
	}
	return Signal{Type: t, Message: message, Timestamp: time.Now()}
}

// DefaultMessage returns the standard operator message for a signal type.
func DefaultMessage(t SignalType) string {
	switch t {
	case SignalCancel:
		return "Operation was cancelled by user. Please acknowledge and proceed with next steps."
	case SignalRetry:
		return "An error occurred. Please retry the operation."
	case SignalBackground:
		return "Long operation continues in background."
	case SignalExpert:
		return "User requested to stop and consult with expert before continuing."
	default:
		return ""
	}
}

// Mailbox is a single-slot, last-write-wins channel between the signal
// producer (a UI action) and the protocol layer. Setting a new signal
// overwrites any unconsumed one; consuming is an atomic read-then-clear, so
// a racing second consumer gets nothing.
type Mailbox struct {
	mu      sync.Mutex
	pending *Signal
}

// Set stores a signal, replacing any unconsumed previous one. It never
// blocks.
func (m *Mailbox) Set(sig Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = &sig
}

// Consume removes and returns the pending signal, or nil when none is
// pending.
func (m *Mailbox) Consume() *Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig := m.pending
	m.pending = nil
	return sig
}

// Pending reports whether a signal is waiting without consuming it.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}
