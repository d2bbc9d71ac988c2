package auth

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/DukeRupert/forgea/internal/domain"
	"github.com/DukeRupert/forgea/internal/templ/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInPage_RepopulatesIdentifierOnly(t *testing.T) {
	var buf bytes.Buffer
	err := SignInPage(SignInPageData{
		Theme:     shared.DarkTheme(),
		Form:      FormDataFrom(domain.Credentials{Identifier: "21-1476-291", Password: "secret1"}),
		Flash:     shared.NewFlash(shared.FlashError, "Incorrect password"),
		CSRFToken: "tok",
		FormID:    "form-1",
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, `value="21-1476-291"`)
	assert.NotContains(t, html, "secret1")
	assert.Contains(t, html, "Incorrect password")
	assert.Contains(t, html, `name="csrf_token" value="tok"`)
	assert.Contains(t, html, `name="form_id" value="form-1"`)
	assert.Contains(t, html, `action="/signin"`)
}

func TestSignUpPage_FieldErrors(t *testing.T) {
	var buf bytes.Buffer
	err := SignUpPage(SignUpPageData{
		Theme: shared.LightTheme(),
		Errors: map[string]string{
			domain.FieldStudentID:       "Invalid Student ID format (e.g., 21-1476-291)",
			domain.FieldConfirmPassword: "Passwords do not match",
		},
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, `id="studentId-error"`)
	assert.Contains(t, html, `id="confirmPassword-error"`)
	assert.NotContains(t, html, `id="password-error"`)
	assert.Contains(t, html, "Passwords do not match")
	assert.Contains(t, html, `class="light"`)
}

func TestPasswordAutocomplete(t *testing.T) {
	var signIn, signUp bytes.Buffer
	require.NoError(t, SignInPage(SignInPageData{Theme: shared.DarkTheme()}).Render(context.Background(), &signIn))
	require.NoError(t, SignUpPage(SignUpPageData{Theme: shared.DarkTheme()}).Render(context.Background(), &signUp))

	assert.Equal(t, 1, strings.Count(signIn.String(), `autocomplete="current-password"`))
	assert.NotContains(t, signIn.String(), `autocomplete="new-password"`)

	assert.Equal(t, 2, strings.Count(signUp.String(), `autocomplete="new-password"`),
		"both sign-up password fields should ask for a new password")
	assert.NotContains(t, signUp.String(), `autocomplete="current-password"`)

	assert.Contains(t, signIn.String(), `autocomplete="username"`)
	assert.Contains(t, signUp.String(), `autocomplete="username"`)
}

func TestSignInPage_ReturnToOnlyWhenSet(t *testing.T) {
	var without, with bytes.Buffer
	require.NoError(t, SignInPage(SignInPageData{Theme: shared.DarkTheme()}).Render(context.Background(), &without))
	require.NoError(t, SignInPage(SignInPageData{Theme: shared.DarkTheme(), ReturnTo: "/personal-info"}).Render(context.Background(), &with))

	assert.NotContains(t, without.String(), `name="return_to"`)
	assert.Contains(t, with.String(), `name="return_to" value="/personal-info"`)
}

func TestFlashBanner_Roles(t *testing.T) {
	tests := []struct {
		name  string
		flash *shared.Flash
		role  string
	}{
		{"error interrupts", shared.NewFlash(shared.FlashError, "Incorrect password"), `role="alert"`},
		{"success is polite", shared.NewFlash(shared.FlashSuccess, "Registered"), `role="status"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, SignInPage(SignInPageData{Theme: shared.DarkTheme(), Flash: tt.flash}).Render(context.Background(), &buf))
			assert.Contains(t, buf.String(), tt.role)
			assert.Contains(t, buf.String(), tt.flash.Message)
		})
	}

	var buf bytes.Buffer
	require.NoError(t, SignInPage(SignInPageData{Theme: shared.DarkTheme()}).Render(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "role=")
}

func TestPages_EscapeUserInput(t *testing.T) {
	var buf bytes.Buffer
	err := SignInPage(SignInPageData{
		Theme: shared.DarkTheme(),
		Form:  FormData{StudentID: `"><script>alert(1)</script>`},
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	assert.NotContains(t, buf.String(), "<script>")
}

func TestPersonalInfoPage(t *testing.T) {
	var buf bytes.Buffer
	err := PersonalInfoPage(PersonalInfoPageData{
		Theme:     shared.DarkTheme(),
		StudentID: "21-1476-291",
		Profile:   domain.DefaultProfile("21-1476-291"),
		CSRFToken: "tok",
	}).Render(context.Background(), &buf)
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "Personality Summary")
	assert.Contains(t, html, "Student ID")
	assert.Contains(t, html, "21-1476-291")
	assert.Contains(t, html, "New")
	assert.Contains(t, html, "has not been taken yet")
	assert.Contains(t, html, `action="/signout"`)
}
