// Package http exposes the view models and mutations over a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"kharcha/internal/log"
	"kharcha/internal/state"
	"kharcha/internal/views"
)

// ContextKey type for context keys
type ContextKey string

// RequestIDKey is the context key for the request ID.
const RequestIDKey ContextKey = "request_id"

// Surfaces bundles the rendered view surfaces the server reads from. They
// must be registered with the controller before the server starts.
type Surfaces struct {
	Sidebar  *views.Sidebar
	Summary  *views.Summary
	Charts   *views.Charts
	Table    *views.Table
	Settings *views.Settings
}

type Server struct {
	http.Server
	ctrl         *state.Controller
	surfaces     Surfaces
	logger       *log.Logger
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, ctrl *state.Controller, surfaces Surfaces, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ctrl:        ctrl,
		surfaces:    surfaces,
		logger:      logger,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/views/sidebar", s.withTrace(s.handleSidebar))
	mux.HandleFunc("/views/summary", s.withTrace(s.handleSummary))
	mux.HandleFunc("/views/charts", s.withTrace(s.handleCharts))
	mux.HandleFunc("/views/table", s.withTrace(s.handleTable))
	mux.HandleFunc("/views/settings", s.withTrace(s.handleSettings))
	mux.HandleFunc("/notifications", s.withTrace(s.handleNotifications))
	mux.HandleFunc("/export.csv", s.withTrace(s.handleExportCSV))

	mux.HandleFunc("/expenses", s.withTrace(s.handleExpenses))
	mux.HandleFunc("/expenses/", s.withTrace(s.handleExpenseByID))
	mux.HandleFunc("/categories", s.withTrace(s.handleCategories))
	mux.HandleFunc("/budget", s.withTrace(s.handleBudget))
	mux.HandleFunc("/month", s.withTrace(s.handleMonth))
	mux.HandleFunc("/mode", s.withTrace(s.handleMode))
	mux.HandleFunc("/profile", s.withTrace(s.handleProfile))

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withTrace adds a request ID, rate limiting on mutating methods, request
// logging and baseline security headers.
func (s *Server) withTrace(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		r = r.WithContext(ctx)

		s.logger.DebugContext(ctx, "request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded, try again later", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.logger.InfoContext(ctx, "request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldSuccess, rw.statusCode < 400)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
