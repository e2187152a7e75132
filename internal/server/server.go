// Package server provides the HTTP and WebSocket API of the interview orchestrator.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jonathan/interview-orchestrator/internal/config"
	"github.com/jonathan/interview-orchestrator/internal/interview"
	"github.com/jonathan/interview-orchestrator/internal/logger"
	"github.com/jonathan/interview-orchestrator/internal/server/middleware"
	"github.com/jonathan/interview-orchestrator/internal/server/ratelimit"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// Options configures a Server. Nil Admin disables the admin key check, nil JWT
// disables candidate tokens and nil RateLimit disables rate limiting.
type Options struct {
	Port           int
	AllowedOrigins []string
	Admin          middleware.AdminVerifier
	JWT            *config.JWTConfig
	RateLimit      *ratelimit.Config
	Logger         *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	service     *interview.Service
	admin       middleware.AdminVerifier
	jwtService  *JWTService
	rateLimiter *ratelimit.Limiter
	origins     []string
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// New creates a new server around the orchestrator service
func New(svc *interview.Service, opts Options) *Server {
	s := &Server{
		service: svc,
		admin:   opts.Admin,
		origins: opts.AllowedOrigins,
		logger:  logger.OrNop(opts.Logger).Named("http"),
	}
	if s.admin == nil {
		s.admin = config.AuthConfig{}
	}
	if len(s.origins) == 0 {
		s.origins = []string{"*"}
	}
	if opts.JWT != nil {
		s.jwtService = NewJWTService(opts.JWT)
	}
	rl := opts.RateLimit
	if rl == nil {
		rl = &ratelimit.Config{Enabled: false}
	}
	s.rateLimiter = ratelimit.NewLimiter(rl)
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped route table
func (s *Server) Handler() http.Handler {
	admin := middleware.RequireAdmin(s.admin)
	candidate := middleware.RequireSession(s.jwtService.AsTokenValidator())
	either := middleware.RequireAdminOrSession(s.admin, s.jwtService.AsTokenValidator())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("POST /roles/{role_id}/questions", admin(http.HandlerFunc(s.handleImportQuestions)))
	mux.Handle("GET /roles/{role_id}/questions", admin(http.HandlerFunc(s.handleGetQuestions)))
	mux.Handle("POST /sessions", admin(http.HandlerFunc(s.handleStartSession)))
	mux.Handle("POST /sessions/{id}/messages", candidate(http.HandlerFunc(s.handleCandidateMessage)))
	mux.Handle("GET /sessions/{id}/status", either(http.HandlerFunc(s.handleGetStatus)))
	mux.Handle("POST /sessions/{id}/score", admin(http.HandlerFunc(s.handleScore)))
	mux.Handle("GET /sessions/{id}/stream", candidate(http.HandlerFunc(s.handleStream)))

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Close stops background work without serving
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case slices.Contains(s.origins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.origins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+middleware.AdminKeyHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients that exceed their token bucket
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		}
		if !allowed {
			if info.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(info.RetryAfter.Seconds())))
			}
			s.logger.Warn("rate limit exceeded",
				zap.String("client", clientID(r)),
				zap.String("path", r.URL.Path),
				zap.Int("limit", info.Limit))
			s.jsonResponse(w, http.StatusTooManyRequests, errorBody{
				Error: "rate limit exceeded, retry later",
				Kind:  "rate_limited",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging logs one line per request
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr))
	})
}

// statusRecorder captures the response status and keeps WebSocket hijacking working
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// clientID identifies the caller by remote IP
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// errorResponse maps an error to its status and JSON body
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	s.jsonResponse(w, status, newErrorBody(err))
}
