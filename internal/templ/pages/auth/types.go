// Package auth renders the sign-in, sign-up and personal info pages.
package auth

import (
	"github.com/DukeRupert/forgea/internal/domain"
	"github.com/DukeRupert/forgea/internal/templ/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCaser capitalizes labels without lowercasing acronyms such as "ID".
var titleCaser = cases.Title(language.English, cases.NoLower)

// SignInPageData contains data for the sign-in page
type SignInPageData struct {
	Theme     shared.Theme
	Form      FormData
	Errors    map[string]string
	Flash     *shared.Flash
	CSRFToken string
	FormID    string // identifies this form instance for duplicate-submit detection
	ReturnTo  string
}

// SignUpPageData contains data for the sign-up page
type SignUpPageData struct {
	Theme     shared.Theme
	Form      FormData
	Errors    map[string]string
	Flash     *shared.Flash
	CSRFToken string
	FormID    string
}

// PersonalInfoPageData contains data for the page shown after sign-in
type PersonalInfoPageData struct {
	Theme     shared.Theme
	StudentID string
	Profile   domain.Profile
	Flash     *shared.Flash
	CSRFToken string
}

// FormData holds form field values for repopulation after a failed attempt.
// Passwords are never sent back to the browser.
type FormData struct {
	StudentID string
}

// FormDataFrom keeps only the fields that may be re-rendered.
func FormDataFrom(c domain.Credentials) FormData {
	return FormData{StudentID: c.Identifier}
}

// field describes one labelled form input.
type field struct {
	Type         string
	Name         string
	Label        string
	Placeholder  string
	Autocomplete string
}

var (
	studentIDField = field{
		Type:         "text",
		Name:         domain.FieldStudentID,
		Label:        "Student ID",
		Placeholder:  "21-1476-291",
		Autocomplete: "username",
	}
	currentPasswordField = field{
		Type:         "password",
		Name:         domain.FieldPassword,
		Label:        "Password",
		Autocomplete: "current-password",
	}
	// Sign-up fields let password managers offer a generated password.
	newPasswordField = field{
		Type:         "password",
		Name:         domain.FieldPassword,
		Label:        "Password",
		Autocomplete: "new-password",
	}
	confirmPasswordField = field{
		Type:         "password",
		Name:         domain.FieldConfirmPassword,
		Label:        "Confirm Password",
		Autocomplete: "new-password",
	}
)
