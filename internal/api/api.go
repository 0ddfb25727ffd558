// Package api provides the HTTP transport layer for Kisha.
//
// It exposes the conversational endpoints, serves generated speech audio,
// and wires in health and metrics. All conversation logic lives in the flow
// package; the handlers here only decode payloads, call the engine, and
// render the JSON envelope.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gramvikas/kisha/internal/models"
	"github.com/gramvikas/kisha/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default server configuration.
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"
	// DefaultReadTimeout bounds request reading.
	DefaultReadTimeout = 15 * time.Second
	// DefaultWriteTimeout bounds response writing. Advisory turns fan out to
	// several upstream services, so this is generous.
	DefaultWriteTimeout = 60 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Engine is the conversation core the transport layer drives.
type Engine interface {
	StartSession(ctx context.Context, sessionID string, lang models.Language) (models.TurnReply, error)
	HandleTurn(ctx context.Context, sessionID, input string) (models.TurnReply, error)
}

// Opts holds configuration for the API server.
type Opts struct {
	Addr     string
	AudioDir string
}

// Option configures API server construction.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAudioDir sets the directory speech artifacts are served from.
func WithAudioDir(dir string) Option {
	return func(o *Opts) { o.AudioDir = dir }
}

// Server hosts the HTTP API.
type Server struct {
	engine   Engine
	sessions session.Manager
	addr     string
	audioDir string
	httpSrv  *http.Server
}

// NewServer creates the API server around the conversation engine.
func NewServer(engine Engine, sessions session.Manager, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		engine:   engine,
		sessions: sessions,
		addr:     cfg.Addr,
		audioDir: cfg.AudioDir,
	}

	r := chi.NewRouter()
	r.Use(metricsMiddleware)
	r.Post("/api/start_session", s.startSessionHandler)
	r.Post("/api/chat", s.chatHandler)
	r.Get("/audio/{filename}", s.audioHandler)
	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
	return s
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Kisha API running", "addr", s.addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}
