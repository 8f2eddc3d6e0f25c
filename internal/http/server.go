// Package http exposes the message pipeline as a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	applog "kharcha/internal/log"
	"kharcha/internal/services"
)

type Server struct {
	http.Server
	tracker      *services.Tracker
	rateLimiter  *rateLimiter
	logger       *applog.Logger
	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server. A nil logger
// gets a default one tagged with the http component.
func NewServer(addr string, tracker *services.Tracker, senderRateLimit int, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		tracker:     tracker,
		rateLimiter: newRateLimiter(senderRateLimit),
		logger:      logger,
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/api/help", s.logged(s.handleHelp))
	mux.HandleFunc("/api/message", s.logged(s.handleMessage))
	mux.HandleFunc("/api/message/edit-last", s.logged(s.handleEditLast))
	mux.HandleFunc("/api/message/delete-last", s.logged(s.handleDeleteLast))
	mux.HandleFunc("/api/budget/reconcile", s.logged(s.handleReconcile))

	return s
}

// Shutdown stops the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// logged chains the shared logging middleware in front of a handler: the
// request context gets the component logger, the logger gets a request id,
// and start/completion lines are emitted around the handler.
func (s *Server) logged(next http.HandlerFunc) http.HandlerFunc {
	chain := applog.Middleware(s.logger)(
		applog.RequestIDMiddleware(requestID)(
			withRequestLogging(next)))
	return chain.ServeHTTP
}

// requestID honors an inbound X-Request-ID so ids survive proxies, and mints
// one otherwise.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return generateRequestID()
}

func withRequestLogging(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := applog.FromContext(r.Context())

		logger.InfoContext(r.Context(), "Request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.InfoContext(r.Context(), "Request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds())
	})
}

// responseWriter captures the status code for the completion log line.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
