// Package session provides the session cookie shared by the handler and
// middleware packages. The cookie carries the signed ID token issued after
// sign-in.
package session

import "net/http"

const (
	// CookieName is the name of the cookie that stores the ID token.
	CookieName = "forgea_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"
)

// SetCookie stores token in the session cookie for maxAgeSeconds.
//
// Cookie Settings:
// - HttpOnly: true - Prevents JavaScript access (XSS protection)
// - Secure: configurable - Set true in production (HTTPS only)
// - SameSite: Lax - Prevents CSRF while allowing normal navigation
func SetCookie(w http.ResponseWriter, token string, maxAgeSeconds int, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     CookiePath,
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie tells the browser to delete the session cookie.
func ClearCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
