package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server binds the gateway handler to a TCP port and manages its lifecycle.
// It can be stopped and restarted (e.g. when the operator changes the port)
// without rebuilding the handler.
type Server struct {
	handler *Handler
	log     *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	port       int
	running    bool
}

// NewServer wraps a handler for serving.
func NewServer(handler *Handler) *Server {
	return &Server{handler: handler, log: handler.log}
}

// Start listens on the given port and serves until Stop. If the server is
// already running it is stopped first.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		if err := s.stopLocked(); err != nil {
			return err
		}
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to bind port %d: %w", port, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.httpServer = srv
	s.port = port
	s.running = true

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http.serve.fail", slog.String("err", err.Error()))
		}
	}()

	s.log.Info("server.started", slog.Int("port", port))
	return nil
}

// Stop shuts the listener down. In-flight requests get a short grace
// period; a hung tool call does not block shutdown indefinitely.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Server) stopLocked() error {
	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = s.httpServer.Close()
	}

	s.httpServer = nil
	s.running = false
	s.log.Info("server.stopped")
	return err
}

// Restart stops the server if running and starts it on the given port.
func (s *Server) Restart(port int) error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start(port)
}

// Running reports whether the server is accepting connections.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Port returns the port from the most recent Start.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}
