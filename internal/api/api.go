// Package api exposes the HTTP surface of TransportMedAgent.
//
// It provides endpoints to drive conversational turns, open outbound
// confirmation calls, inspect session state and check service health. The
// API is a thin layer over the flow coordinator; all conversation logic
// lives there.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/TransportMedAgent/internal/models"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// Opts holds configuration for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// ConversationService is the slice of the flow coordinator the API needs.
type ConversationService interface {
	ProcessMessage(ctx context.Context, sessionID, message string) (*models.MessageResponse, error)
	StartOutboundCall(ctx context.Context, phone string) (*models.OutboundCallResponse, error)
	StartPendingOutboundCalls(ctx context.Context) ([]*models.OutboundCallResponse, error)
	GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error)
}

// Server wires HTTP routes to the conversation coordinator.
type Server struct {
	coordinator ConversationService
	addr        string
	httpServer  *http.Server
}

// NewServer creates an API server around the conversation service.
func NewServer(coordinator ConversationService, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{coordinator: coordinator, addr: cfg.Addr}
	slog.Debug("Server.NewServer: server created", "addr", s.addr)
	return s
}

// routes builds the request multiplexer.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /conversation/message", s.messageHandler)
	mux.HandleFunc("POST /calls/outbound", s.outboundCallHandler)
	mux.HandleFunc("POST /calls/outbound/pending", s.pendingCallsHandler)
	mux.HandleFunc("GET /session/{id}", s.sessionHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
