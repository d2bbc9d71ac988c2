package domain

import (
	"regexp"
)

// =============================================================================
// Credentials
// =============================================================================

// DefaultAccountEmailDomain is appended to a student ID to build the
// email-shaped login the identity provider requires.
const DefaultAccountEmailDomain = "forgea.com"

// Form field names. These double as the keys of ValidationErrors and as the
// HTML input names.
const (
	FieldStudentID       = "studentId"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
)

// studentIDPattern is the NN-NNNN-NNN student ID format.
var studentIDPattern = regexp.MustCompile(`^\d{2}-\d{4}-\d{3}$`)

// Credentials holds the values collected by a sign-in or sign-up form.
// ConfirmPassword is only used by sign-up.
type Credentials struct {
	Identifier      string
	Password        string
	ConfirmPassword string
}

// Reset returns empty credentials, used after a successful sign-up.
func (c Credentials) Reset() Credentials {
	return Credentials{}
}

// AccountEmail derives the synthetic account email for an identifier.
// One identifier always maps to exactly one account email.
func AccountEmail(identifier, domain string) string {
	if domain == "" {
		domain = DefaultAccountEmailDomain
	}
	return identifier + "@" + domain
}

// IsValidStudentID reports whether id matches the NN-NNNN-NNN format.
func IsValidStudentID(id string) bool {
	return studentIDPattern.MatchString(id)
}

// =============================================================================
// Validation
// =============================================================================

// ValidationErrors maps a form field name to a human-readable message.
// An empty mapping means the input is valid.
type ValidationErrors map[string]string

// Valid reports whether no field errors were recorded.
func (v ValidationErrors) Valid() bool {
	return len(v) == 0
}

// Has reports whether field has an error.
func (v ValidationErrors) Has(field string) bool {
	_, ok := v[field]
	return ok
}

// ValidateSignIn checks the sign-in form: identifier and password are required.
func ValidateSignIn(c Credentials) ValidationErrors {
	errs := ValidationErrors{}

	if c.Identifier == "" {
		errs[FieldStudentID] = "Student ID is required"
	}
	if c.Password == "" {
		errs[FieldPassword] = "Password is required"
	}

	return errs
}

// ValidateSignUp checks the sign-up form.
//
// Rules:
// - identifier required and must match NN-NNNN-NNN
// - password required (strength is left to the identity provider)
// - confirmation must equal password
func ValidateSignUp(c Credentials) ValidationErrors {
	errs := ValidationErrors{}

	if c.Identifier == "" {
		errs[FieldStudentID] = "Student ID is required"
	} else if !IsValidStudentID(c.Identifier) {
		errs[FieldStudentID] = "Invalid Student ID format (e.g., 21-1476-291)"
	}

	if c.Password == "" {
		errs[FieldPassword] = "Password is required"
	}

	if c.Password != c.ConfirmPassword {
		errs[FieldConfirmPassword] = "Passwords do not match"
	}

	return errs
}
