// Package gateway exposes the agent over a WebSocket session endpoint.
//
// Each connection is one session bound to one conversation thread.
// Inbound text messages are processed strictly one at a time: a message
// drives one run of the agent loop, the reply streams back as frames,
// and only then is the next inbound message read.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/wayfarer-ai/wayfarer/internal/agent"
	"github.com/wayfarer-ai/wayfarer/internal/buildinfo"
	"github.com/wayfarer-ai/wayfarer/internal/conversation"
	"github.com/wayfarer-ai/wayfarer/internal/tools"
)

// Server is the WebSocket gateway.
type Server struct {
	address  string
	port     int
	loop     *agent.Loop
	registry *tools.Registry
	store    conversation.Store
	logger   *slog.Logger
	server   *http.Server
}

// statsReporter is implemented by stores that expose usage counters.
type statsReporter interface {
	Stats() map[string]any
}

// NewServer creates a gateway server.
func NewServer(address string, port int, loop *agent.Loop, registry *tools.Registry, store conversation.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:  address,
		port:     port,
		loop:     loop,
		registry: registry,
		store:    store,
		logger:   logger.With("component", "gateway"),
	}
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws/{thread_id}", s.handleSession)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:     s.withLogging(mux),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: sessions stream for their whole lifetime.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting gateway", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","version":%q}`+"\n", buildinfo.Version)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	doc := map[string]any{
		"service": "wayfarer",
		"version": buildinfo.Version,
		"uptime":  buildinfo.Uptime().Round(time.Second).String(),
		"tools":   s.registry.Names(),
	}
	if sr, ok := s.store.(statsReporter); ok {
		doc["conversations"] = sr.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
