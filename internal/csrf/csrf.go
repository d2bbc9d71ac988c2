// Package csrf protects the sign-in and sign-up forms with the double-submit
// cookie pattern: the token set in a cookie must be echoed back in a hidden
// form field. A cross-site page can make the browser send the cookie but
// cannot read it, so it cannot fill in the field.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"net/http"
)

const (
	// CookieName is the name of the CSRF token cookie.
	CookieName = "forgea_csrf"

	// FormFieldName is the hidden form field carrying the token.
	FormFieldName = "csrf_token"

	// CookieMaxAge keeps a token alive for one hour of form filling.
	CookieMaxAge = 3600

	// tokenLength is the length of rand.Text output (128 bits, base32).
	tokenLength = 26
)

// GenerateToken returns a new random token.
func GenerateToken() string {
	return rand.Text()
}

// wellFormed reports whether s has the shape of a rand.Text token
// (uppercase base32). Anything else in the cookie is replaced.
func wellFormed(s string) bool {
	if len(s) != tokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '2' && c <= '7') {
			return false
		}
	}
	return true
}

// ValidateToken compares the cookie token with the form token in constant time.
func ValidateToken(cookieToken, formToken string) bool {
	if cookieToken == "" || formToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(formToken)) == 1
}

// ValidateRequest checks the form field against the cookie. ParseForm must
// have been called.
func ValidateRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return ValidateToken(cookie.Value, r.PostFormValue(FormFieldName))
}

// SetCookie writes the token cookie. SameSite=Strict keeps it off
// cross-site requests.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// EnsureToken returns the request's token, issuing a fresh cookie when it is
// missing or malformed. Form pages call it on every render.
func EnsureToken(w http.ResponseWriter, r *http.Request, isSecure bool) string {
	if cookie, err := r.Cookie(CookieName); err == nil && wellFormed(cookie.Value) {
		return cookie.Value
	}
	return RefreshToken(w, isSecure)
}

// RefreshToken rotates the token. Called after a successful sign-in so a
// token seen before authentication is not reused after it.
func RefreshToken(w http.ResponseWriter, isSecure bool) string {
	token := GenerateToken()
	SetCookie(w, token, isSecure)
	return token
}
