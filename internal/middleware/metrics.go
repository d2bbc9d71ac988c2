package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// metricsRealm is announced in the WWW-Authenticate challenge.
const metricsRealm = `Basic realm="forgea metrics"`

// MetricsAuthMiddleware guards the Prometheus scrape endpoint with basic auth.
// Only digests of the configured credentials are kept.
type MetricsAuthMiddleware struct {
	userSum [sha256.Size]byte
	passSum [sha256.Size]byte
	enabled bool
}

// NewMetricsAuthMiddleware creates a new metrics auth middleware.
// If both username and password are empty, authentication is disabled.
func NewMetricsAuthMiddleware(username, password string) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		userSum: sha256.Sum256([]byte(username)),
		passSum: sha256.Sum256([]byte(password)),
		enabled: username != "" || password != "",
	}
}

// Enabled reports whether credentials are required.
func (m *MetricsAuthMiddleware) Enabled() bool {
	return m.enabled
}

// Handler returns middleware that requires basic authentication.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !m.matches(user, pass) {
			w.Header().Set("WWW-Authenticate", metricsRealm)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// matches compares fixed-size digests so neither the value nor its length
// leaks through timing. Both halves are always evaluated.
func (m *MetricsAuthMiddleware) matches(user, pass string) bool {
	userSum := sha256.Sum256([]byte(user))
	passSum := sha256.Sum256([]byte(pass))

	userOK := subtle.ConstantTimeCompare(userSum[:], m.userSum[:])
	passOK := subtle.ConstantTimeCompare(passSum[:], m.passSum[:])
	return userOK&passOK == 1
}
