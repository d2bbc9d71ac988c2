package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/forgea/internal/auth"
)

// quietPrefixes are paths polled by infrastructure or served as assets.
var quietPrefixes = []string{
	"/health",
	"/metrics",
	"/static/",
	"/favicon.ico",
}

// redactedParams are query parameters whose values never reach the log.
// Keys are compared lowercased.
var redactedParams = map[string]bool{
	"password":        true,
	"confirmpassword": true,
	"token":           true,
	"id_token":        true,
	"csrf_token":      true,
	"code":            true,
	"key":             true,
	"secret":          true,
	"api_key":         true,
	"apikey":          true,
	"access_token":    true,
	"refresh_token":   true,
}

// RequestLoggingMiddleware logs one line per request with timing, status
// and, when known, the matched route and signed-in student.
type RequestLoggingMiddleware struct {
	ips    *ClientIPResolver
	logger *slog.Logger
}

// NewRequestLoggingMiddleware creates a new request logging middleware.
func NewRequestLoggingMiddleware(ips *ClientIPResolver, logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{
		ips:    ips,
		logger: logger,
	}
}

// Handler returns middleware that logs HTTP requests.
//
// The request pointer is handed to next unchanged, so the route pattern set by
// http.ServeMux is readable once next returns. To log the student it must run
// inside AuthMiddleware.WithStudent.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isQuietPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", sanitizePath(r.URL.Path, r.URL.RawQuery),
			"status", rec.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", rec.written,
			"ip", m.ips.ClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if r.Pattern != "" {
			attrs = append(attrs, "route", r.Pattern)
		}
		if claims := auth.GetStudentFromRequest(r); claims != nil {
			attrs = append(attrs, "student_id", claims.StudentID)
		}

		if rec.statusCode >= http.StatusInternalServerError {
			m.logger.Error("request", attrs...)
			return
		}
		m.logger.Info("request", attrs...)
	})
}

func isQuietPath(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	written     int
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// sanitizePath rebuilds path plus query with redacted parameter values.
// Malformed pairs without "=" are dropped.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var kept []string
	for _, part := range strings.Split(rawQuery, "&") {
		key, _, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if redactedParams[strings.ToLower(key)] {
			kept = append(kept, key+"=[REDACTED]")
			continue
		}
		kept = append(kept, part)
	}

	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}
