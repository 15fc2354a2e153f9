package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// route dispatches on method only. Path, headers and body are never looked at.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.notImplementedHandler(w, r)
		return
	}
	s.fixedResponseHandler(w, r)
}

// fixedResponseHandler writes 200 and the configured body, with no explicit headers
func (s *Server) fixedResponseHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.latency.Wait(r.Context()); err != nil {
		s.logger.Debug("Client went away during injected latency", "error", err)
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(s.body); err != nil {
		s.logger.Debug("Failed to write fixed response", "error", err)
	}
}

// notImplementedHandler answers methods the mock has no handler for
func (s *Server) notImplementedHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, fmt.Sprintf("Unsupported method (%s)", r.Method), http.StatusNotImplemented)
}

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument tags each request with an id for the debug log and feeds the metrics
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		s.metrics.Observe(r.Method, rec.code, elapsed)
		s.logger.Debug("Request served",
			"requestId", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.code,
			"elapsed", elapsed)
	})
}
