// Package http serves the JSON API for subscriptions, summaries and the
// billing calendar.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"log/slog"

	"subtrack/internal/aggregate"
	"subtrack/internal/cache"
	"subtrack/internal/currency"
	"subtrack/internal/services"
)

// SettingsStore persists user-level settings such as the display currency.
type SettingsStore interface {
	GetSetting(ctx context.Context, key, fallback string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type Server struct {
	http.Server
	subscriptions *services.SubscriptionService
	aggregator    *aggregate.Aggregator
	rates         *currency.RateStore
	settings      SettingsStore
	rateLimiter   *rateLimiter
	calendarCache *cache.LRU[calendarResponse]
	shutdownOnce  sync.Once
}

// Simple in-memory rate limiter, applied to mutating requests.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and returns a ready-to-run http.Server.
func NewServer(addr string, subs *services.SubscriptionService, agg *aggregate.Aggregator, rates *currency.RateStore, settings SettingsStore) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		subscriptions: subs,
		aggregator:    agg,
		rates:         rates,
		settings:      settings,
		rateLimiter:   newRateLimiter(),
		calendarCache: cache.New[calendarResponse](24, time.Hour),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/subscriptions", s.withMiddleware(s.handleListSubscriptions))
	mux.HandleFunc("POST /api/subscriptions", s.withMiddleware(s.handleCreateSubscription))
	mux.HandleFunc("GET /api/subscriptions/{id}", s.withMiddleware(s.handleGetSubscription))
	mux.HandleFunc("PUT /api/subscriptions/{id}", s.withMiddleware(s.handleUpdateSubscription))
	mux.HandleFunc("DELETE /api/subscriptions/{id}", s.withMiddleware(s.handleDeleteSubscription))
	mux.HandleFunc("POST /api/subscriptions/{id}/archive", s.withMiddleware(s.handleArchiveSubscription))
	mux.HandleFunc("POST /api/subscriptions/{id}/activate", s.withMiddleware(s.handleActivateSubscription))
	mux.HandleFunc("POST /api/subscriptions/{id}/deactivate", s.withMiddleware(s.handleDeactivateSubscription))
	mux.HandleFunc("POST /api/subscriptions/{id}/price", s.withMiddleware(s.handleChangePrice))
	mux.HandleFunc("POST /api/subscriptions/{id}/restore", s.withMiddleware(s.handleRestoreSubscription))

	mux.HandleFunc("GET /api/summary", s.withMiddleware(s.handleSummary))
	mux.HandleFunc("GET /api/summary/categories", s.withMiddleware(s.handleCategoryTotals))
	mux.HandleFunc("GET /api/summary/chart", s.withMiddleware(s.handleChart))
	mux.HandleFunc("GET /api/calendar", s.withMiddleware(s.handleCalendar))
	mux.HandleFunc("GET /api/currencies", s.withMiddleware(s.handleCurrencies))
	mux.HandleFunc("GET /api/rates", s.withMiddleware(s.handleRates))
	mux.HandleFunc("PUT /api/settings/currency", s.withMiddleware(s.handleSetDisplayCurrency))

	return s
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
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

// withMiddleware adds request IDs, security headers, rate limiting and
// request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
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
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
