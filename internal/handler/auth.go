// Package handler contains HTTP handlers for the Forgea application.
//
// This file implements the sign-in, sign-up, sign-out and personal info
// handlers.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/DukeRupert/forgea/internal/auth"
	"github.com/DukeRupert/forgea/internal/csrf"
	"github.com/DukeRupert/forgea/internal/domain"
	"github.com/DukeRupert/forgea/internal/identity"
	"github.com/DukeRupert/forgea/internal/metrics"
	"github.com/DukeRupert/forgea/internal/service"
	"github.com/DukeRupert/forgea/internal/session"
	authpages "github.com/DukeRupert/forgea/internal/templ/pages/auth"
	"github.com/DukeRupert/forgea/internal/templ/shared"
	"github.com/a-h/templ"
	"github.com/google/uuid"
)

// Form fields that are not credentials.
const (
	formIDField   = "form_id"
	returnToField = "return_to"
)

// Query parameters read by ShowSignIn.
const (
	registeredParam = "registered"
	signedOutParam  = "signedout"
)

// Flash messages set by the handlers themselves.
const (
	msgInvalidForm    = "Invalid form submission. Please try again."
	msgSessionExpired = "Your session has expired. Please try again."
	msgSignedOut      = "You have been signed out."
)

// =============================================================================
// Handler Configuration
// =============================================================================

// SignInLimiter receives the outcome of sign-in attempts so failed attempts
// can be counted per client.
//
// NOTE: This is declared here rather than imported from middleware to avoid
// an import cycle. The middleware package imports handler for error responses.
type SignInLimiter interface {
	RecordFailedSignIn(r *http.Request)
	ResetSignIn(r *http.Request)
}

// TokenIssuer issues the ID token stored in the session cookie.
type TokenIssuer interface {
	Issue(account *domain.Account, studentID string) (string, error)
}

// AuthHandlerConfig holds the dependencies of an AuthHandler.
type AuthHandlerConfig struct {
	Service      service.AuthService
	Guard        *service.SubmissionGuard
	Tokens       TokenIssuer
	// CookieMaxAge is the session cookie lifetime in seconds.
	// Zero uses identity.DefaultTokenTTL.
	CookieMaxAge int
	Limiter      SignInLimiter // optional
	Theme        shared.Theme
	Logger       *slog.Logger
	IsSecure     bool
}

// AuthHandler handles the authentication pages.
//
// Routes handled:
// - GET  /              -> ShowSignIn
// - GET  /signin        -> ShowSignIn
// - POST /signin        -> SignIn
// - GET  /signup        -> ShowSignUp
// - POST /signup        -> SignUp
// - POST /signout       -> SignOut
// - GET  /personal-info -> PersonalInfo (requires a signed-in student)
type AuthHandler struct {
	svc      service.AuthService
	guard    *service.SubmissionGuard
	tokens   TokenIssuer
	maxAge   int
	limiter  SignInLimiter
	theme    shared.Theme
	logger   *slog.Logger
	isSecure bool
}

// NewAuthHandler creates a new AuthHandler.
//
// Example usage in main.go:
//
//	authHandler := handler.NewAuthHandler(handler.AuthHandlerConfig{
//	    Service:      authService,
//	    Guard:        service.NewSubmissionGuard(),
//	    Tokens:       tokens,
//	    CookieMaxAge: int(tokens.TTL().Seconds()),
//	    Limiter:      authLimiter,
//	    Theme:        theme,
//	    Logger:       logger,
//	    IsSecure:     cfg.Env != "development",
//	})
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	guard := cfg.Guard
	if guard == nil {
		guard = service.NewSubmissionGuard()
	}
	maxAge := cfg.CookieMaxAge
	if maxAge <= 0 {
		maxAge = int(identity.DefaultTokenTTL.Seconds())
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = noopLimiter{}
	}

	return &AuthHandler{
		svc:      cfg.Service,
		guard:    guard,
		tokens:   cfg.Tokens,
		maxAge:   maxAge,
		limiter:  limiter,
		theme:    cfg.Theme,
		logger:   cfg.Logger,
		isSecure: cfg.IsSecure,
	}
}

type noopLimiter struct{}

func (noopLimiter) RecordFailedSignIn(*http.Request) {}
func (noopLimiter) ResetSignIn(*http.Request)        {}

// =============================================================================
// GET /signin - Show Sign-In Page
// =============================================================================

// ShowSignIn renders the sign-in form.
//
// A student who is already signed in is sent to the personal info page.
// The registered and signedout query parameters select a flash message.
func (h *AuthHandler) ShowSignIn(w http.ResponseWriter, r *http.Request) {
	// GET / also matches every unrouted path
	if r.URL.Path != "/" && r.URL.Path != "/signin" {
		NotFoundResponse(w, r, h.logger)
		return
	}

	if auth.GetStudent(r.Context()) != nil {
		http.Redirect(w, r, service.RoutePersonalInfo, http.StatusSeeOther)
		return
	}

	var flash *shared.Flash
	query := r.URL.Query()
	if query.Get(registeredParam) == "1" {
		flash = shared.NewFlash(shared.FlashSuccess, service.MsgRegistered)
	} else if query.Get(signedOutParam) == "1" {
		flash = shared.NewFlash(shared.FlashInfo, msgSignedOut)
	}

	returnTo := query.Get(returnToField)
	if !isSafeRedirectURL(returnTo) {
		returnTo = ""
	}

	h.renderSignIn(w, r, http.StatusOK, authpages.SignInPageData{
		Form:     authpages.FormData{},
		Errors:   make(map[string]string),
		Flash:    flash,
		ReturnTo: returnTo,
	})
}

// =============================================================================
// POST /signin - Process Sign-In
// =============================================================================

// SignIn processes the sign-in form.
//
// Form Fields:
// - studentId (required)
// - password (required)
// - form_id: identifies the rendered form; repeated submits share one attempt
// - return_to (optional): URL to redirect to after signing in
// - csrf_token
//
// Success Flow:
// 1. Issue an ID token and store it in the session cookie
// 2. Clear the client's failed attempt count
// 3. Redirect to return_to or the personal info page
//
// Error Flow:
// Re-render the form with the Student ID kept and the password cleared.
// Rejected credentials count towards the client's rate limit.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("failed to parse sign-in form", "error", err)
		h.renderSignIn(w, r, http.StatusBadRequest, authpages.SignInPageData{
			Flash: shared.NewFlash(shared.FlashError, msgInvalidForm),
		})
		return
	}

	form := domain.Credentials{
		Identifier: r.FormValue(domain.FieldStudentID),
		Password:   r.FormValue(domain.FieldPassword),
	}
	returnTo := r.FormValue(returnToField)
	if !isSafeRedirectURL(returnTo) {
		returnTo = ""
	}

	if !csrf.ValidateRequest(r) {
		h.logger.Warn("csrf validation failed", "path", r.URL.Path)
		h.renderSignIn(w, r, http.StatusForbidden, authpages.SignInPageData{
			Form:     authpages.FormDataFrom(form),
			Flash:    shared.NewFlash(shared.FlashError, msgSessionExpired),
			ReturnTo: returnTo,
		})
		return
	}

	key := service.SubmissionKey(metrics.FlowSignIn, r.FormValue(formIDField), form)
	sub, dup, err := h.guard.Do(r.Context(), key, func(ctx context.Context) *domain.Submission {
		return h.svc.SignIn(ctx, form)
	})
	if err != nil {
		// The client went away while a duplicate submission was running.
		h.logger.Debug("sign-in request abandoned", "error", err)
		return
	}
	if dup {
		h.logger.Debug("duplicate sign-in submission collapsed", "form_id", r.FormValue(formIDField))
	}

	if !sub.Succeeded() {
		if sub.State == domain.SubmissionFailed && sub.Message != service.MsgLoginFailed {
			h.limiter.RecordFailedSignIn(r)
		}
		h.renderSignInSubmission(w, r, sub, returnTo)
		return
	}

	token, err := h.tokens.Issue(sub.Account, sub.Form.Identifier)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	session.SetCookie(w, token, h.maxAge, h.isSecure)
	csrf.RefreshToken(w, h.isSecure)
	h.limiter.ResetSignIn(r)

	redirectURL := sub.Redirect
	if returnTo != "" {
		redirectURL = returnTo
	}
	http.Redirect(w, r, redirectURL, http.StatusSeeOther)
}

// renderSignInSubmission re-renders the sign-in form for a failed submission.
func (h *AuthHandler) renderSignInSubmission(w http.ResponseWriter, r *http.Request, sub *domain.Submission, returnTo string) {
	h.renderSignIn(w, r, http.StatusUnprocessableEntity, authpages.SignInPageData{
		Form:     authpages.FormDataFrom(sub.Form),
		Errors:   sub.Errors,
		Flash:    shared.NewFlash(shared.FlashError, sub.Message),
		ReturnTo: returnTo,
	})
}

func (h *AuthHandler) renderSignIn(w http.ResponseWriter, r *http.Request, status int, data authpages.SignInPageData) {
	data.Theme = h.theme
	data.CSRFToken = csrf.EnsureToken(w, r, h.isSecure)
	data.FormID = uuid.NewString()
	if data.Errors == nil {
		data.Errors = make(map[string]string)
	}
	h.render(w, r, status, authpages.SignInPage(data))
}

// =============================================================================
// GET /signup - Show Sign-Up Page
// =============================================================================

// ShowSignUp renders the registration form.
func (h *AuthHandler) ShowSignUp(w http.ResponseWriter, r *http.Request) {
	if auth.GetStudent(r.Context()) != nil {
		http.Redirect(w, r, service.RoutePersonalInfo, http.StatusSeeOther)
		return
	}

	h.renderSignUp(w, r, http.StatusOK, authpages.SignUpPageData{
		Form:   authpages.FormData{},
		Errors: make(map[string]string),
	})
}

// =============================================================================
// POST /signup - Process Sign-Up
// =============================================================================

// SignUp processes the registration form.
//
// Form Fields:
// - studentId (required, NN-NNNN-NNN)
// - password (required)
// - confirmPassword (must match password)
// - form_id, csrf_token
//
// On success the student is sent to the sign-in page with a
// "Registration successful!" flash. No session is created.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("failed to parse sign-up form", "error", err)
		h.renderSignUp(w, r, http.StatusBadRequest, authpages.SignUpPageData{
			Flash: shared.NewFlash(shared.FlashError, msgInvalidForm),
		})
		return
	}

	form := domain.Credentials{
		Identifier:      r.FormValue(domain.FieldStudentID),
		Password:        r.FormValue(domain.FieldPassword),
		ConfirmPassword: r.FormValue(domain.FieldConfirmPassword),
	}

	if !csrf.ValidateRequest(r) {
		h.logger.Warn("csrf validation failed", "path", r.URL.Path)
		h.renderSignUp(w, r, http.StatusForbidden, authpages.SignUpPageData{
			Form:  authpages.FormDataFrom(form),
			Flash: shared.NewFlash(shared.FlashError, msgSessionExpired),
		})
		return
	}

	key := service.SubmissionKey(metrics.FlowSignUp, r.FormValue(formIDField), form)
	sub, dup, err := h.guard.Do(r.Context(), key, func(ctx context.Context) *domain.Submission {
		return h.svc.SignUp(ctx, form)
	})
	if err != nil {
		h.logger.Debug("sign-up request abandoned", "error", err)
		return
	}
	if dup {
		h.logger.Debug("duplicate sign-up submission collapsed", "form_id", r.FormValue(formIDField))
	}

	if !sub.Succeeded() {
		h.renderSignUp(w, r, http.StatusUnprocessableEntity, authpages.SignUpPageData{
			Form:   authpages.FormDataFrom(sub.Form),
			Errors: sub.Errors,
			Flash:  shared.NewFlash(shared.FlashError, sub.Message),
		})
		return
	}

	http.Redirect(w, r, noticeURL(sub), http.StatusSeeOther)
}

// noticeURL appends the flag that makes the target page show sub.Notice.
func noticeURL(sub *domain.Submission) string {
	if sub.Notice != service.MsgRegistered {
		return sub.Redirect
	}
	u := url.URL{Path: sub.Redirect, RawQuery: url.Values{registeredParam: {"1"}}.Encode()}
	return u.String()
}

func (h *AuthHandler) renderSignUp(w http.ResponseWriter, r *http.Request, status int, data authpages.SignUpPageData) {
	data.Theme = h.theme
	data.CSRFToken = csrf.EnsureToken(w, r, h.isSecure)
	data.FormID = uuid.NewString()
	if data.Errors == nil {
		data.Errors = make(map[string]string)
	}
	h.render(w, r, status, authpages.SignUpPage(data))
}

// =============================================================================
// POST /signout - Process Sign-Out
// =============================================================================

// SignOut clears the session cookie and returns to the sign-in page.
// ID tokens are stateless, so there is nothing to revoke server-side.
//
// The form carries a CSRF token so another site cannot sign the student out.
// Without a matching token the session is kept and the student is sent back
// to the personal info page.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || !csrf.ValidateRequest(r) {
		h.logger.Warn("csrf validation failed", "path", r.URL.Path)
		http.Redirect(w, r, service.RoutePersonalInfo, http.StatusSeeOther)
		return
	}

	session.ClearCookie(w, h.isSecure)

	if claims := auth.GetStudent(r.Context()); claims != nil {
		h.logger.Debug("student signed out", "identifier", claims.StudentID)
	}

	http.Redirect(w, r, "/signin?"+signedOutParam+"=1", http.StatusSeeOther)
}

// =============================================================================
// GET /personal-info - Show Profile
// =============================================================================

// PersonalInfo shows the signed-in student's profile document.
//
// IMPORTANT: This handler must be wrapped by RequireStudent.
func (h *AuthHandler) PersonalInfo(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetStudent(r.Context())
	if claims == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	profile, err := h.svc.Profile(r.Context(), claims.StudentID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.render(w, r, http.StatusOK, authpages.PersonalInfoPage(authpages.PersonalInfoPageData{
		Theme:     h.theme,
		StudentID: claims.StudentID,
		Profile:   *profile,
		CSRFToken: csrf.EnsureToken(w, r, h.isSecure),
	}))
}

// =============================================================================
// Helpers
// =============================================================================

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", "path", r.URL.Path, "error", err)
	}
}

// isSafeRedirectURL validates that a URL is safe for redirecting.
//
// Examples:
// - "/personal-info"     -> true (relative URL)
// - "//evil.com"         -> false (protocol-relative, could be external)
// - "https://evil.com"   -> false (absolute URL to external domain)
// - "javascript:alert(1)" -> false (javascript URL)
func isSafeRedirectURL(rawURL string) bool {
	// Must start with /
	if !strings.HasPrefix(rawURL, "/") {
		return false
	}

	// Must not start with // (protocol-relative URL) or /\ (treated as // by browsers)
	if strings.HasPrefix(rawURL, "//") || strings.HasPrefix(rawURL, "/\\") {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	// Must not have a scheme or host
	return parsed.Scheme == "" && parsed.Host == ""
}

// =============================================================================
// Route Registration Helper
// =============================================================================

// RegisterRoutes registers the public auth routes on the provided ServeMux.
// signInLimit wraps POST /signin and signUpLimit wraps POST /signup; either
// may be nil. GET /personal-info is registered separately because it needs
// the auth middleware.
//
// Usage in main.go:
//
//	authHandler.RegisterRoutes(mux, authLimiter.LimitSignIn, authLimiter.LimitSignUp)
//	mux.Handle("GET /personal-info", requireStudent(http.HandlerFunc(authHandler.PersonalInfo)))
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, signInLimit, signUpLimit func(http.Handler) http.Handler) {
	wrap := func(mw func(http.Handler) http.Handler, fn http.HandlerFunc) http.Handler {
		if mw == nil {
			return fn
		}
		return mw(fn)
	}

	mux.HandleFunc("GET /", h.ShowSignIn)
	mux.HandleFunc("GET /signin", h.ShowSignIn)
	mux.Handle("POST /signin", wrap(signInLimit, h.SignIn))
	mux.HandleFunc("GET /signup", h.ShowSignUp)
	mux.Handle("POST /signup", wrap(signUpLimit, h.SignUp))
	mux.HandleFunc("POST /signout", h.SignOut)
}
