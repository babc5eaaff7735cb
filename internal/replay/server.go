// Package replay implements the replay HTTP server (§4.4): it serves a
// recorded directory back out, mapping each playlist request onto the
// historical snapshot that reproduces the original broadcast timing
// relative to when the client first connected.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmylchreest/hlsarchiver/internal/hlserr"
	"github.com/jmylchreest/hlsarchiver/internal/http/middleware"
	"github.com/jmylchreest/hlsarchiver/internal/manifest"
	"github.com/jmylchreest/hlsarchiver/internal/storage"
)

// ServerConfig holds replay HTTP server configuration, mirroring the
// teacher's internal/http.ServerConfig shape.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns a ServerConfig with sensible defaults;
// Host/Port are expected to be overridden by the CLI per §6 (replay
// binds to 127.0.0.1:<port>, default 8080).
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "127.0.0.1",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server serves one recording directory back out over HTTP.
type Server struct {
	config         ServerConfig
	router         *chi.Mux
	httpServer     *http.Server
	logger         *slog.Logger
	manifest       *manifest.Manifest
	sandbox        *storage.Sandbox
	root           string
	recordingStart time.Time
}

// NewServer loads root's recording.json and builds a Server ready to
// serve it. root must already contain a completed or in-progress
// recording (i.e. a recorder has run against it at least once).
func NewServer(root string, config ServerConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mf, err := manifest.Load(filepath.Join(root, "recording.json"))
	if err != nil {
		return nil, hlserr.Wrap(hlserr.KindIO, "loading recording manifest", err)
	}

	sandbox, err := storage.NewSandbox(root)
	if err != nil {
		return nil, hlserr.Wrap(hlserr.KindIO, "opening recording directory", err)
	}

	recordingStart, ok := mf.EarliestTime()
	if !ok {
		return nil, hlserr.New(hlserr.KindConfig, "recording has no snapshots to replay")
	}

	s := &Server{
		config:         config,
		logger:         logger,
		manifest:       mf,
		sandbox:        sandbox,
		root:           root,
		recordingStart: recordingStart,
	}
	s.router = s.buildRouter()
	return s, nil
}

// Router returns the underlying chi router, for embedding or testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.NewLoggingMiddleware(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(allowAnyOrigin)
	r.Get("/*", s.handle)
	return r
}

// allowAnyOrigin sets Access-Control-Allow-Origin: * on every response
// unconditionally (§4.4: "CORS: allow any origin"), unlike the
// teacher's origin-echoing middleware.CORS, which only sets the header
// when the request carries an Origin header.
func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

// Start starts the replay server and blocks until it stops or fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting replay server", slog.String("address", addr), slog.String("root", s.root))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return hlserr.Wrap(hlserr.KindIO, "starting replay server", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return hlserr.Wrap(hlserr.KindIO, "shutting down replay server", err)
	}
	s.logger.Info("replay server stopped")
	return nil
}

// ListenAndServe starts the server and blocks until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
