// Package http serves the budget JSON API over per-user sessions.
package http

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/middleware/trace"
	"budget/internal/services"
)

// DefaultRateLimit is the number of mutating requests allowed per minute
// per user.
const DefaultRateLimit = 120

type Options struct {
	Locale core.Locale
	// RateLimit caps mutating requests per minute; negative disables it.
	RateLimit int
	// Ready reports dependency health for /readyz; nil means always ready.
	Ready  func(ctx context.Context) error
	Now    func() time.Time
	Logger *log.Logger
}

type Server struct {
	http.Server

	sessions *services.Manager
	locale   core.Locale
	ready    func(ctx context.Context) error
	now      func() time.Time
	logger   *log.Logger

	tracer       *trace.Middleware
	rateLimiter  *rateLimiter
	security     *securityMetrics
	shutdownOnce sync.Once
}

func NewServer(addr string, sessions *services.Manager, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Locale.MonthNames[0] == "" {
		opts.Locale = core.DefaultLocale
	}
	limit := opts.RateLimit
	if limit == 0 {
		limit = DefaultRateLimit
	}

	s := &Server{
		sessions:    sessions,
		locale:      opts.Locale,
		ready:       opts.Ready,
		now:         opts.Now,
		logger:      opts.Logger.WithComponent(log.ComponentHTTP),
		tracer:      trace.NewMiddleware(opts.Logger, extractClientIP),
		rateLimiter: newRateLimiter(limit, opts.Now),
		security:    &securityMetrics{},
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go s.rateLimiter.startCleanup(5 * time.Minute)
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/session", s.authed(s.handleOpenSession))
	mux.HandleFunc("DELETE /api/session", s.authed(s.handleCloseSession))

	mux.HandleFunc("GET /api/months", s.withSession(s.handleListMonths))
	mux.HandleFunc("POST /api/months", s.withSession(s.handleCreateMonth))
	mux.HandleFunc("GET /api/months/{id}", s.withSession(s.handleGetMonth))
	mux.HandleFunc("DELETE /api/months/{id}", s.withSession(s.handleDeleteMonth))
	mux.HandleFunc("PUT /api/months/{id}/salaries", s.withSession(s.handleSetSalaries))
	mux.HandleFunc("POST /api/months/{id}/expenses", s.withSession(s.handleAddExpense))
	mux.HandleFunc("PUT /api/months/{id}/expenses/{expenseID}", s.withSession(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/months/{id}/expenses/{expenseID}", s.withSession(s.handleRemoveExpense))
	mux.HandleFunc("POST /api/months/{id}/import-fixed", s.withSession(s.handleImportFixed))
	mux.HandleFunc("POST /api/months/{id}/close", s.withSession(s.handleCloseMonth))

	mux.HandleFunc("GET /api/savings", s.withSession(s.handleSavings))
	mux.HandleFunc("GET /api/status", s.withSession(s.handleStatus))

	return s.tracer.Wrap(s.guard(mux))
}

// guard applies security headers, probe detection and rate limiting to
// every request.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		clientIP := extractClientIP(r)

		if detectSuspiciousRequest(r, s.security) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				"client_ip", clientIP,
				"user_agent", r.Header.Get("User-Agent"))
		}

		if isMutation(r.Method) {
			key := userID(r)
			if key == "" {
				key = "ip:" + clientIP
			}
			if !s.rateLimiter.allow(key, s.security) {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", "client_ip", clientIP)
				w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
				writeJSON(w, http.StatusTooManyRequests, errorView{
					Error:     "rate limit exceeded",
					RequestID: trace.RequestID(r.Context()),
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// authed rejects requests without a user id.
func (s *Server) authed(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := userID(r)
		if id == "" {
			atomic.AddInt64(&s.security.unauthenticated, 1)
			writeJSON(w, http.StatusUnauthorized, errorView{
				Error:     "missing " + HeaderUserID,
				RequestID: trace.RequestID(r.Context()),
			})
			return
		}
		ctx := log.NewContext(r.Context(), log.FromContext(r.Context()).With(log.FieldUserID, id))
		next(w, r.WithContext(ctx), id)
	}
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Stats reports request and security counters.
func (s *Server) Stats() (trace.Metrics, SecurityStats) {
	return s.tracer.Metrics(), s.security.snapshot()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthBody("ok", s.now()))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, healthBody("unavailable", s.now()))
			return
		}
	}
	writeJSON(w, http.StatusOK, healthBody("ready", s.now()))
}
