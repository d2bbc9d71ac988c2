// Package identity provides the authentication service the account flows
// delegate credential checks to.
//
// The flows only see the Provider interface and the categorized *Error it
// returns. Two implementations are provided:
// - PostgresProvider: accounts table with bcrypt password hashes (production)
// - MemoryProvider: in-process map (development and tests)
//
// Credentials are keyed by an email-shaped login. Callers derive that email
// from the student ID; the provider never sees the raw identifier.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DukeRupert/forgea/internal/domain"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// MinPasswordLength is the shortest password CreateAccount accepts.
	MinPasswordLength = 6

	// MaxPasswordLength caps input before it reaches bcrypt (72-byte limit).
	MaxPasswordLength = 72

	// BcryptCost is the cost factor for password hashes.
	BcryptCost = 12
)

// =============================================================================
// Interface Definition
// =============================================================================

// Provider verifies and creates credentials.
//
// Both methods return *Error for every rejection so callers can switch on
// the error code.
type Provider interface {
	// Authenticate checks email and password.
	// Returns CodeUserNotFound, CodeWrongPassword or CodeInvalidCredential on rejection.
	Authenticate(ctx context.Context, email, password string) (*domain.Account, error)

	// CreateAccount registers a new credential.
	// Returns CodeWeakPassword, CodePasswordTooLong or CodeEmailAlreadyInUse
	// on rejection.
	CreateAccount(ctx context.Context, email, password string) (*domain.Account, error)
}

// =============================================================================
// Errors
// =============================================================================

// Error codes returned by providers.
const (
	CodeWrongPassword     = "auth/wrong-password"
	CodeUserNotFound      = "auth/user-not-found"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeWeakPassword      = "auth/weak-password"
	CodePasswordTooLong   = "auth/password-too-long"
	CodeEmailAlreadyInUse = "auth/email-already-in-use"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeInternal          = "auth/internal-error"
)

// Error is a categorized rejection from a Provider.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func internalError(err error, message string) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// Code extracts the provider error code from err, or CodeInternal if err is
// not a provider error.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// =============================================================================
// Shared Helpers
// =============================================================================

// normalizeEmail lowercases and trims an email login.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkEmail performs the minimal shape check: one "@" with text on both sides.
func checkEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 {
		return newError(CodeInvalidEmail, "The email address is badly formatted.")
	}
	return nil
}

// checkPassword enforces the provider's password policy.
func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return newError(CodeWeakPassword, fmt.Sprintf("Password should be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return newError(CodePasswordTooLong, fmt.Sprintf("Password must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}
