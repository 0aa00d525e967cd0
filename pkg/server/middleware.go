package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

// recoverWrapper turns a handler panic into a 500 JSON response.
func recoverWrapper(logger *slog.Logger, inner http.Handler) (handler http.Handler) {
	handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error("recovered from panic", "panic", rec, "stack", string(debug.Stack()))
			writeError(w, logger, http.StatusInternalServerError, "internal server error")
		}()
		inner.ServeHTTP(w, r)
	})
	return handler
}

// corsWrapper allows any origin and answers preflight requests.
func corsWrapper(inner http.Handler) (handler http.Handler) {
	handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			allowHeaders := r.Header.Get("Access-Control-Request-Headers")
			if allowHeaders == "" {
				allowHeaders = "*"
			}
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		inner.ServeHTTP(w, r)
	})
	return handler
}

// statusRecorder captures the status code for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() (w http.ResponseWriter) {
	w = r.ResponseWriter
	return w
}

func accessLogWrapper(logger *slog.Logger, inner http.Handler) (handler http.Handler) {
	handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		inner.ServeHTTP(rec, r)
		logger.Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
	return handler
}
