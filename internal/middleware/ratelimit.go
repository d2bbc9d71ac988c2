package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/DukeRupert/forgea/internal/domain"
	"github.com/DukeRupert/forgea/internal/handler"
	"github.com/DukeRupert/forgea/internal/metrics"
)

// =============================================================================
// Limiter Interface
// =============================================================================

// Limiter counts attempts per key within a fixed window.
//
// Implementations:
// - RateLimiter: in-process counters (single instance)
// - RedisLimiter: shared counters in Redis (multiple instances)
type Limiter interface {
	// Allow counts an attempt and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)

	// Exceeded reports whether key has used up its attempts without counting one.
	Exceeded(ctx context.Context, key string) (bool, error)

	// RecordFailure counts an attempt without checking the limit.
	RecordFailure(ctx context.Context, key string) error

	// Reset clears the counter for key.
	Reset(ctx context.Context, key string) error

	// TimeUntilReset returns how long until the window for key ends.
	TimeUntilReset(ctx context.Context, key string) (time.Duration, error)
}

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter tracks request counts per key with a fixed window.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger

	mu      sync.RWMutex
	entries map[string]*rateLimitEntry
	now     func() time.Time
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(maxAttempts int, window time.Duration, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
		entries:     make(map[string]*rateLimitEntry),
		now:         time.Now,
	}

	go rl.cleanup()

	return rl
}

// Allow checks if a request from the given key should be allowed.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.entries[key]

	if !exists || now.Sub(entry.windowStart) > rl.window {
		rl.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return true, nil
	}

	if entry.count < rl.maxAttempts {
		entry.count++
		return true, nil
	}

	return false, nil
}

// Exceeded reports whether key has reached maxAttempts in the current window.
func (rl *RateLimiter) Exceeded(ctx context.Context, key string) (bool, error) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, exists := rl.entries[key]
	if !exists || rl.now().Sub(entry.windowStart) > rl.window {
		return false, nil
	}
	return entry.count >= rl.maxAttempts, nil
}

// RecordFailure records a failed attempt without checking the limit.
// Used to track failed sign-ins that should count against the limit.
func (rl *RateLimiter) RecordFailure(ctx context.Context, key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.entries[key]

	if !exists || now.Sub(entry.windowStart) > rl.window {
		rl.entries[key] = &rateLimitEntry{count: 1, windowStart: now}
		return nil
	}

	entry.count++
	return nil
}

// Reset clears the rate limit for a key (e.g., after a successful sign-in).
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
	return nil
}

// TimeUntilReset returns how long until the rate limit resets for a key.
func (rl *RateLimiter) TimeUntilReset(ctx context.Context, key string) (time.Duration, error) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, exists := rl.entries[key]
	if !exists {
		return 0, nil
	}

	elapsed := rl.now().Sub(entry.windowStart)
	if elapsed >= rl.window {
		return 0, nil
	}

	return rl.window - elapsed, nil
}

// cleanup periodically removes expired entries to prevent memory leaks.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := rl.now()
		for key, entry := range rl.entries {
			if now.Sub(entry.windowStart) > rl.window {
				delete(rl.entries, key)
			}
		}
		rl.mu.Unlock()
	}
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// RateLimitMiddleware wraps a Limiter for use as HTTP middleware.
//
// Backend errors fail open: the request is allowed and the error logged.
type RateLimitMiddleware struct {
	limiter Limiter
	name    string
	ips     *ClientIPResolver
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware. name labels
// the rate_limited_total metric. Clients are keyed by ips.ClientIP.
func NewRateLimitMiddleware(limiter Limiter, name string, ips *ClientIPResolver, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		name:    name,
		ips:     ips,
		logger:  logger,
	}
}

// Limit returns middleware that counts every request against the limit.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := m.ips.ClientIP(r)

		allowed, err := m.limiter.Allow(r.Context(), clientIP)
		if err != nil {
			m.logger.Error("rate limiter unavailable", "limiter", m.name, "error", err)
			allowed = true
		}
		if !allowed {
			m.reject(w, r, clientIP)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Guard returns middleware that rejects requests once the recorded failures
// for the client reach the limit. It never counts the request itself.
func (m *RateLimitMiddleware) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := m.ips.ClientIP(r)

		exceeded, err := m.limiter.Exceeded(r.Context(), clientIP)
		if err != nil {
			m.logger.Error("rate limiter unavailable", "limiter", m.name, "error", err)
			exceeded = false
		}
		if exceeded {
			m.reject(w, r, clientIP)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) reject(w http.ResponseWriter, r *http.Request, clientIP string) {
	m.logger.Warn("rate limit exceeded",
		"limiter", m.name,
		"ip", clientIP,
		"path", r.URL.Path,
		"method", r.Method,
	)
	metrics.RateLimited(m.name)

	wait, _ := m.limiter.TimeUntilReset(r.Context(), clientIP)
	retryAfter := int(wait.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	if isAPIRequest(r) {
		handler.ErrorResponse(w, r, m.logger, domain.RateLimit("RateLimitMiddleware."+m.name))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Too Many Requests</title></head>
<body>
<h1>Too Many Requests</h1>
<p>Too many sign-in attempts. Please wait a moment and try again.</p>
</body>
</html>`))
}

// =============================================================================
// Auth Rate Limiter (combined limiter for account endpoints)
// =============================================================================

// AuthRateLimiter rate limits the account endpoints.
//
// Sign-in counts only failed attempts: the handler reports them through
// RecordFailedSignIn and clears them with ResetSignIn. Sign-up counts every
// request.
type AuthRateLimiter struct {
	signIn Limiter
	signUp Limiter
	ips    *ClientIPResolver
	logger *slog.Logger
}

// NewAuthRateLimiter creates an AuthRateLimiter from two limiters.
func NewAuthRateLimiter(signIn, signUp Limiter, ips *ClientIPResolver, logger *slog.Logger) *AuthRateLimiter {
	return &AuthRateLimiter{
		signIn: signIn,
		signUp: signUp,
		ips:    ips,
		logger: logger,
	}
}

// LimitSignIn returns middleware that blocks clients with too many failed sign-ins.
func (a *AuthRateLimiter) LimitSignIn(next http.Handler) http.Handler {
	return NewRateLimitMiddleware(a.signIn, "signin", a.ips, a.logger).Guard(next)
}

// LimitSignUp returns middleware that rate limits registration attempts.
func (a *AuthRateLimiter) LimitSignUp(next http.Handler) http.Handler {
	return NewRateLimitMiddleware(a.signUp, "signup", a.ips, a.logger).Limit(next)
}

// RecordFailedSignIn counts a failed sign-in for the request's client.
func (a *AuthRateLimiter) RecordFailedSignIn(r *http.Request) {
	if err := a.signIn.RecordFailure(r.Context(), a.ips.ClientIP(r)); err != nil {
		a.logger.Error("failed to record sign-in failure", "error", err)
	}
}

// ResetSignIn clears the failed sign-ins for the request's client.
func (a *AuthRateLimiter) ResetSignIn(r *http.Request) {
	if err := a.signIn.Reset(r.Context(), a.ips.ClientIP(r)); err != nil {
		a.logger.Error("failed to reset sign-in limiter", "error", err)
	}
}
