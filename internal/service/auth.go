// Package service contains the business logic layer.
//
// Services orchestrate interactions between the identity provider, the
// document store and domain logic. They are responsible for:
// - Input validation
// - Ordering of remote calls
// - Error translation (provider and store errors -> form messages)
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/forgea/internal/docstore"
	"github.com/DukeRupert/forgea/internal/domain"
	"github.com/DukeRupert/forgea/internal/identity"
	"github.com/DukeRupert/forgea/internal/metrics"
)

// =============================================================================
// Messages and Routes
// =============================================================================

// Messages shown on the forms.
const (
	MsgIncorrectPassword  = "Incorrect password"
	MsgUserNotFound       = "No user found with this Student ID"
	MsgInvalidCredential  = "Invalid Student ID or password"
	MsgLoginFailed        = "Login failed, please try again"
	MsgAlreadyLinked      = "ID Number is already linked to an account"
	MsgWeakPassword       = "Weak password. Password should be at least 6 characters"
	MsgPasswordTooLong    = "Password is too long. Use at most 72 characters"
	MsgRegistrationFailed = "Registration failed, please try again"
	MsgRegistered         = "Registration successful!"
)

// Navigation targets after a successful submission.
const (
	RoutePersonalInfo = "/personal-info"
	RouteHome         = "/"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AuthService runs the sign-in and sign-up flows.
//
// Both flows return a *domain.Submission describing the outcome instead of an
// error. The submission is never nil.
type AuthService interface {
	// SignIn validates the form, authenticates the derived account email and
	// makes sure a profile document exists. Redirects to RoutePersonalInfo.
	SignIn(ctx context.Context, form domain.Credentials) *domain.Submission

	// SignUp validates the form, refuses identifiers that already have a
	// profile, creates the credential and writes the default profile.
	// Redirects to RouteHome with a MsgRegistered notice.
	SignUp(ctx context.Context, form domain.Credentials) *domain.Submission

	// Profile loads the profile document for an identifier.
	// Returns domain.ENOTFOUND if none exists.
	Profile(ctx context.Context, identifier string) (*domain.Profile, error)
}

// =============================================================================
// Implementation
// =============================================================================

type authService struct {
	identity    identity.Provider
	store       docstore.Store
	emailDomain string
	logger      *slog.Logger
}

// NewAuthService creates a new AuthService.
//
// Dependencies:
// - provider: verifies and creates credentials
// - store: holds the profile documents
// - emailDomain: appended to the student ID to build the account email
// - logger: structured logger for operation logging
func NewAuthService(provider identity.Provider, store docstore.Store, emailDomain string, logger *slog.Logger) AuthService {
	if emailDomain == "" {
		emailDomain = domain.DefaultAccountEmailDomain
	}
	return &authService{
		identity:    provider,
		store:       store,
		emailDomain: emailDomain,
		logger:      logger,
	}
}

// =============================================================================
// SignIn Implementation
// =============================================================================

// SignIn authenticates a student.
//
// Flow:
// 1. Require identifier and password (no remote call on failure)
// 2. Derive the account email and authenticate
// 3. Look up the profile by identifier, writing the default one if missing
// 4. Succeed with a redirect to the personal info page
func (s *authService) SignIn(ctx context.Context, form domain.Credentials) *domain.Submission {
	sub := domain.NewSubmission(form)

	if errs := domain.ValidateSignIn(form); !errs.Valid() {
		sub.Errors = errs
		metrics.SignInCompleted(metrics.OutcomeInvalid)
		return sub
	}

	email := domain.AccountEmail(form.Identifier, s.emailDomain)
	_ = sub.TransitionTo(domain.SubmissionSubmitting)

	start := time.Now()
	defer func() { metrics.SubmissionObserved(metrics.FlowSignIn, time.Since(start)) }()

	account, err := s.identity.Authenticate(ctx, email, form.Password)
	if err != nil {
		code := identity.Code(err)
		sub.Fail("", signInMessage(code))

		if code == identity.CodeInternal {
			s.logger.Error("sign-in failed", "identifier", form.Identifier, "error", err)
			metrics.SignInCompleted(metrics.OutcomeError)
		} else {
			s.logger.Info("sign-in rejected", "identifier", form.Identifier, "code", code)
			metrics.SignInCompleted(metrics.OutcomeRejected)
		}
		return sub
	}

	profile, created, err := s.ensureProfile(ctx, form.Identifier)
	if err != nil {
		s.logger.Error("failed to load profile after sign-in", "identifier", form.Identifier, "error", err)
		sub.Fail("", MsgLoginFailed)
		metrics.SignInCompleted(metrics.OutcomeError)
		return sub
	}
	if created {
		metrics.ProfileCreated(metrics.FlowSignIn)
	}

	_ = sub.TransitionTo(domain.SubmissionSuccess)
	sub.Account = account
	sub.Profile = profile
	sub.ProfileCreated = created
	sub.Redirect = RoutePersonalInfo

	s.logger.Info("student signed in", "identifier", form.Identifier, "account_id", account.ID, "profile_created", created)
	metrics.SignInCompleted(metrics.OutcomeSuccess)

	return sub
}

// signInMessage maps a provider code to the banner shown on the sign-in form.
func signInMessage(code string) string {
	switch code {
	case identity.CodeWrongPassword:
		return MsgIncorrectPassword
	case identity.CodeUserNotFound:
		return MsgUserNotFound
	case identity.CodeInvalidCredential, identity.CodeInvalidEmail:
		return MsgInvalidCredential
	default:
		return MsgLoginFailed
	}
}

// ensureProfile returns the first profile stored for identifier, writing the
// default profile when there is none.
func (s *authService) ensureProfile(ctx context.Context, identifier string) (*domain.Profile, bool, error) {
	records, err := s.store.QueryByField(ctx, domain.ProfileCollection, domain.ProfileKeyField, identifier)
	if err != nil {
		return nil, false, err
	}
	if len(records) > 0 {
		profile := domain.ProfileFromDocument(records[0].Data)
		return &profile, false, nil
	}

	profile := domain.DefaultProfile(identifier)
	if err := s.store.WriteRecord(ctx, domain.ProfileCollection, identifier, profile.Document(), docstore.WriteOptions{}); err != nil {
		return nil, false, err
	}
	return &profile, true, nil
}

// =============================================================================
// SignUp Implementation
// =============================================================================

// SignUp registers a student.
//
// Flow:
// 1. Validate format, presence and confirmation (no remote call on failure)
// 2. Refuse identifiers that already have a profile
// 3. Create the credential for the derived account email
// 4. Write the default profile keyed by identifier
// 5. Reset the form and succeed with a redirect home
//
// Steps 2 and 3 are not atomic. Two concurrent sign-ups for the same
// identifier can both pass step 2; the provider's unique email then rejects
// the second one with CodeEmailAlreadyInUse.
func (s *authService) SignUp(ctx context.Context, form domain.Credentials) *domain.Submission {
	sub := domain.NewSubmission(form)

	// Validated exactly as typed: a padded identifier is rejected, never
	// trimmed into a valid one.
	if errs := domain.ValidateSignUp(form); !errs.Valid() {
		sub.Errors = errs
		metrics.SignUpCompleted(metrics.OutcomeInvalid)
		return sub
	}

	_ = sub.TransitionTo(domain.SubmissionSubmitting)

	start := time.Now()
	defer func() { metrics.SubmissionObserved(metrics.FlowSignUp, time.Since(start)) }()

	existing, err := s.store.QueryByField(ctx, domain.ProfileCollection, domain.ProfileKeyField, form.Identifier)
	if err != nil {
		s.logger.Error("failed to check for existing profile", "identifier", form.Identifier, "error", err)
		sub.Fail("", MsgRegistrationFailed)
		metrics.SignUpCompleted(metrics.OutcomeError)
		return sub
	}
	if len(existing) > 0 {
		sub.Fail(domain.FieldStudentID, MsgAlreadyLinked)
		metrics.SignUpCompleted(metrics.OutcomeAlreadyLinked)
		return sub
	}

	email := domain.AccountEmail(form.Identifier, s.emailDomain)
	account, err := s.identity.CreateAccount(ctx, email, form.Password)
	if err != nil {
		switch code := identity.Code(err); code {
		case identity.CodeWeakPassword:
			sub.Fail(domain.FieldPassword, MsgWeakPassword)
			metrics.SignUpCompleted(metrics.OutcomeRejected)
		case identity.CodePasswordTooLong:
			sub.Fail(domain.FieldPassword, MsgPasswordTooLong)
			metrics.SignUpCompleted(metrics.OutcomeRejected)
		case identity.CodeEmailAlreadyInUse:
			sub.Fail(domain.FieldStudentID, MsgAlreadyLinked)
			metrics.SignUpCompleted(metrics.OutcomeAlreadyLinked)
		default:
			s.logger.Error("failed to create account", "identifier", form.Identifier, "code", code, "error", err)
			sub.Fail("", MsgRegistrationFailed)
			metrics.SignUpCompleted(metrics.OutcomeError)
		}
		return sub
	}

	profile := domain.DefaultProfile(form.Identifier)
	if err := s.store.WriteRecord(ctx, domain.ProfileCollection, form.Identifier, profile.Document(), docstore.WriteOptions{}); err != nil {
		// The credential exists without a profile; the next sign-in writes it.
		s.logger.Error("failed to write profile after sign-up", "identifier", form.Identifier, "account_id", account.ID, "error", err)
		sub.Fail("", MsgRegistrationFailed)
		metrics.SignUpCompleted(metrics.OutcomeError)
		return sub
	}
	metrics.ProfileCreated(metrics.FlowSignUp)

	_ = sub.TransitionTo(domain.SubmissionSuccess)
	sub.Form = sub.Form.Reset()
	sub.Account = account
	sub.Profile = &profile
	sub.ProfileCreated = true
	sub.Redirect = RouteHome
	sub.Notice = MsgRegistered

	s.logger.Info("student registered", "identifier", form.Identifier, "account_id", account.ID)
	metrics.SignUpCompleted(metrics.OutcomeSuccess)

	return sub
}

// =============================================================================
// Profile Implementation
// =============================================================================

// Profile returns the stored profile for identifier.
func (s *authService) Profile(ctx context.Context, identifier string) (*domain.Profile, error) {
	const op = "AuthService.Profile"

	records, err := s.store.QueryByField(ctx, domain.ProfileCollection, domain.ProfileKeyField, identifier)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load profile")
	}
	if len(records) == 0 {
		return nil, domain.NotFound(op, "profile", identifier)
	}

	profile := domain.ProfileFromDocument(records[0].Data)
	return &profile, nil
}
