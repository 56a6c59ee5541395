package server

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
)

// responseSink adapts an http.ResponseWriter to the interrupt.Sink contract
// for one interruptible call. Whichever side wins the response claim calls
// Send exactly once; Send writes the full response in the delivery mode
// negotiated at request time and then releases anyone waiting on Done.
//
// The accepting goroutine must not return from the HTTP handler until Done
// is closed: the ResponseWriter becomes invalid the moment the handler
// returns, and the interrupt path writes from another goroutine.
type responseSink struct {
	mu   sync.Mutex
	w    http.ResponseWriter
	sse  bool
	id   func() uint64
	done chan struct{}
	sent atomic.Int32
}

func newResponseSink(w http.ResponseWriter, sse bool, nextEventID func() uint64) *responseSink {
	return &responseSink{w: w, sse: sse, id: nextEventID, done: make(chan struct{})}
}

// Send writes the JSON-RPC body and completes the response. It is called at
// most once by construction (the ActiveCall claim guards it).
func (s *responseSink) Send(body []byte) error {
	defer close(s.done)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent.Add(1)

	if s.sse {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(s.w, "id: %d\ndata: %s\n\n", s.id(), body); err != nil {
			return err
		}
		if f, ok := s.w.(http.Flusher); ok {
			f.Flush()
		}
		return nil
	}

	s.w.Header().Set("Content-Type", "application/json")
	s.w.WriteHeader(http.StatusOK)
	_, err := s.w.Write(body)
	// The accepting goroutine may keep the handler open for up to one poll
	// interval after an interrupt; flush so the winner's response reaches
	// the client immediately.
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return err
}

// Done is closed once Send has finished writing, success or not.
func (s *responseSink) Done() <-chan struct{} {
	return s.done
}

// SendCount returns how many times Send ran; the at-most-once claim keeps
// this at 0 or 1.
func (s *responseSink) SendCount() int {
	return int(s.sent.Load())
}
