// Package middleware contains HTTP middleware for the Forgea application.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/DukeRupert/forgea/internal/auth"
	"github.com/DukeRupert/forgea/internal/handler"
	"github.com/DukeRupert/forgea/internal/identity"
	"github.com/DukeRupert/forgea/internal/session"
)

// =============================================================================
// Auth Middleware Configuration
// =============================================================================

// TokenVerifier checks an ID token and returns its claims.
type TokenVerifier interface {
	Verify(raw string) (*identity.Claims, error)
}

// AuthMiddleware loads the signed-in student from the session cookie.
type AuthMiddleware struct {
	tokens   TokenVerifier
	logger   *slog.Logger
	isSecure bool // Whether to set Secure flag on cookies (true in production)
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
//
// Parameters:
// - tokens: verifies the ID token stored in the session cookie
// - logger: Structured logger for auth events
// - isSecure: Set to true in production to enable Secure cookie flag
func NewAuthMiddleware(tokens TokenVerifier, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		logger:   logger,
		isSecure: isSecure,
	}
}

// =============================================================================
// WithStudent Middleware
// =============================================================================

// WithStudent verifies the session cookie, if any, and stores the claims in
// the request context. It always calls the next handler.
//
// Flow:
//
//	Request -> WithStudent -> Handler
//	           |
//	           +-> Read cookie
//	           +-> Verify token (if cookie exists)
//	           +-> Set claims in context (if valid)
//	           +-> Clear cookie (if invalid or expired)
func (m *AuthMiddleware) WithStudent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.tokens.Verify(cookie.Value)
		if err != nil {
			m.logger.Debug("discarding invalid session token", "error", err)
			session.ClearCookie(w, m.isSecure)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetStudent(r.Context(), claims)))
	})
}

// =============================================================================
// RequireStudent Middleware
// =============================================================================

// RequireStudent requires claims in the context (set by WithStudent).
// HTML requests are redirected to /signin with a return_to parameter; API
// requests get 401.
//
// IMPORTANT: This middleware must be used AFTER WithStudent in the chain.
func (m *AuthMiddleware) RequireStudent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetStudent(r.Context()) == nil {
			if isAPIRequest(r) {
				handler.UnauthorizedResponse(w, r, m.logger)
				return
			}

			returnTo := r.URL.Path
			if r.URL.RawQuery != "" {
				returnTo += "?" + r.URL.RawQuery
			}
			http.Redirect(w, r, "/signin?return_to="+url.QueryEscape(returnTo), http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Request Helpers
// =============================================================================

// isAPIRequest determines if the request expects a JSON response.
//
// Checks:
// 1. HX-Request header is NOT present (htmx wants HTML)
// 2. Accept header contains application/json
// 3. Content-Type is application/json
// 4. URL path starts with /api/
func isAPIRequest(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return false
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}

	return strings.HasPrefix(r.URL.Path, "/api/")
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(authMw.WithStudent, loggingMw.Handler, authMw.RequireStudent)
//	mux.Handle("GET /personal-info", stack(personalInfoHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).WithStudent
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireStudent
	_ TokenVerifier                   = (*identity.TokenIssuer)(nil)
)
