// Package server exposes the CV generator over HTTP.
package server

import (
	"context"
	_ "embed"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nikogura/cv-generator/pkg/delivery"
	"github.com/nikogura/cv-generator/pkg/generator"
	"github.com/nikogura/cv-generator/pkg/session"
	"github.com/pkg/errors"
)

const (
	// DefaultShutdownTimeout bounds the drain of in-flight requests.
	DefaultShutdownTimeout = 15 * time.Second

	maxFormBytes      = 1 << 20
	readHeaderTimeout = 10 * time.Second
)

//go:embed web/index.html
var indexPage []byte

// Generator runs one generation request.
type Generator interface {
	Generate(ctx context.Context, userText string) (result generator.Result, err error)
	CompilerAvailable() (available bool)
	Provider() (name string)
}

// Options wire a Server.
type Options struct {
	Listen          string
	StaticDir       string
	ShutdownTimeout time.Duration
	Generator       Generator
	Sessions        *session.Manager
	Logger          *slog.Logger
}

// Server serves the form page, the generate endpoint and downloads.
type Server struct {
	listen          string
	staticDir       string
	shutdownTimeout time.Duration
	generator       Generator
	sessions        *session.Manager
	resolver        *delivery.Resolver
	logger          *slog.Logger
}

// New creates a Server.
func New(opts Options) (srv *Server) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	srv = &Server{
		listen:          opts.Listen,
		staticDir:       opts.StaticDir,
		shutdownTimeout: shutdownTimeout,
		generator:       opts.Generator,
		sessions:        opts.Sessions,
		resolver:        delivery.NewResolver(opts.Sessions),
		logger:          logger,
	}
	return srv
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() (handler http.Handler) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /generate-cv", s.handleGenerate)
	mux.HandleFunc("GET /download/{file_type}/{session_id}", s.handleDownload)

	if s.staticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.staticDir))))
	}

	handler = recoverWrapper(s.logger, mux)
	handler = corsWrapper(handler)
	handler = accessLogWrapper(s.logger, handler)
	return handler
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := w.Write(indexPage)
	if err != nil {
		s.logger.Error("failed to write index page", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, healthBody{
		Status:            "ok",
		CompilerAvailable: s.generator.CompilerAvailable(),
		Provider:          s.generator.Provider(),
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	// ParseMultipartForm also parses urlencoded bodies before reporting ErrNotMultipart.
	err := r.ParseMultipartForm(maxFormBytes)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		status, detail := formError(err)
		s.logger.Info("generate request rejected", "status", status, "error", err)
		writeError(w, s.logger, status, detail)
		return
	}
	userText := r.FormValue("user_input")

	// The model and compiler calls carry their own timeouts and must not be
	// cut short by a client that goes away mid-request.
	ctx := context.WithoutCancel(r.Context())

	result, err := s.generator.Generate(ctx, userText)
	if err != nil {
		status := statusFor(err)
		s.logger.Error("generate request failed", "status", status, "error", err)
		writeError(w, s.logger, status, err.Error())
		return
	}

	writeJSON(w, s.logger, http.StatusOK, result)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	fileType := r.PathValue("file_type")
	sessionID := r.PathValue("session_id")

	err := s.resolver.Serve(w, r, sessionID, fileType)
	if err != nil {
		status := statusFor(err)
		s.logger.Info("download rejected", "file_type", fileType, "session_id", sessionID, "status", status)
		writeError(w, s.logger, status, err.Error())
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) (err error) {
	var lc net.ListenConfig
	var ln net.Listener
	ln, err = lc.Listen(ctx, "tcp", s.listen)
	if err != nil {
		err = errors.Wrapf(err, "failed to listen on %s", s.listen)
		return err
	}

	err = s.Serve(ctx, ln)
	return err
}

// Serve accepts connections on ln until ctx is cancelled, then stops taking
// new requests, waits for in-flight ones to finish and removes every session.
func (s *Server) Serve(ctx context.Context, ln net.Listener) (err error) {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("CV generator listening", "addr", ln.Addr().String())
		e := httpServer.Serve(ln)
		if errors.Is(e, http.ErrServerClosed) {
			e = nil
		}
		serveErr <- e
	}()

	select {
	case err = <-serveErr:
		s.cleanup()
		if err != nil {
			err = errors.Wrap(err, "server stopped unexpectedly")
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Error("server shutdown failed", "error", err)
		err = errors.Wrap(err, "server shutdown failed")
	}

	e := <-serveErr
	if e != nil && err == nil {
		err = errors.Wrap(e, "server stopped unexpectedly")
	}

	s.cleanup()
	s.logger.Info("shutdown complete")
	return err
}

func (s *Server) cleanup() {
	err := s.sessions.DestroyAll()
	if err != nil {
		s.logger.Error("failed to remove sessions", "error", err)
		return
	}
	s.logger.Info("removed session files", "root", s.sessions.Root())
}
