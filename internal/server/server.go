// Package server exposes the daemon's HTTP API and the websocket
// observer endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/warden-dev/warden/internal/executor"
	"github.com/warden-dev/warden/internal/hub"
	"github.com/warden-dev/warden/internal/store"
)

// DefaultListen is the bind address when the config does not set one.
// The API is loopback-only; it is not an authenticated surface.
const DefaultListen = "127.0.0.1:7177"

// Server serves the management API for one daemon instance.
type Server struct {
	// Addr is the address to listen on (e.g. "127.0.0.1:7177").
	Addr string

	exec  *executor.Executor
	hub   *hub.Hub
	store *store.Store

	server   *http.Server
	listener net.Listener
	mu       sync.Mutex
	running  bool
	started  time.Time
}

// New creates a server for the given executor, hub, and store. The
// store may be nil when persistence is disabled.
func New(addr string, exec *executor.Executor, h *hub.Hub, st *store.Store) *Server {
	if addr == "" {
		addr = DefaultListen
	}
	return &Server{
		Addr:  addr,
		exec:  exec,
		hub:   h,
		store: st,
	}
}

// Start begins accepting connections. It returns an error if the
// server is already running or the listen fails.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("server already running")
	}

	listener, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
	}
	s.running = true
	s.started = time.Now()

	go func() {
		_ = s.server.Serve(listener)
	}()

	return nil
}

// Handler builds the route mux. Exposed for httptest use.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /commands", s.handleRunCommand)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /approvals", s.handleListApprovals)
	mux.HandleFunc("POST /approvals/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /approvals/{id}/reject", s.handleReject)
	mux.HandleFunc("GET /services", s.handleListServices)
	mux.HandleFunc("DELETE /services/{id}", s.handleStopService)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /saved-commands", s.handleListSaved)
	mux.HandleFunc("POST /saved-commands", s.handleSaveCommand)
	mux.HandleFunc("DELETE /saved-commands/{id}", s.handleDeleteSaved)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.server.Shutdown(ctx)
}

// ListenAddr returns the bound address, useful when listening on port
// 0. Empty when the server is not running.
func (s *Server) ListenAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
