package domain

import "fmt"

// =============================================================================
// Submission State
// =============================================================================

// SubmissionState is the state of one form submission.
type SubmissionState string

const (
	SubmissionIdle       SubmissionState = "idle"
	SubmissionSubmitting SubmissionState = "submitting"
	SubmissionSuccess    SubmissionState = "success"
	SubmissionFailed     SubmissionState = "failed"
)

// CanTransitionTo checks if a submission can move to the target state.
//
// Valid transitions:
// - idle -> submitting (input passed validation)
// - submitting -> success (remote calls completed)
// - submitting -> failed (a remote call was rejected)
// - failed -> idle (form re-enabled for another attempt)
// - failed -> submitting (immediate resubmission)
func (s SubmissionState) CanTransitionTo(target SubmissionState) bool {
	switch s {
	case SubmissionIdle:
		return target == SubmissionSubmitting
	case SubmissionSubmitting:
		return target == SubmissionSuccess || target == SubmissionFailed
	case SubmissionFailed:
		return target == SubmissionIdle || target == SubmissionSubmitting
	}
	return false
}

// IsTerminal reports whether the state ends a submission.
func (s SubmissionState) IsTerminal() bool {
	return s == SubmissionSuccess || s == SubmissionFailed
}

// =============================================================================
// Submission
// =============================================================================

// Submission is the result of running a sign-in or sign-up flow.
//
// It is a result variant rather than an error: validation failures, rejected
// credentials and store failures are all expressed through State, Errors and
// Message so the caller can re-render the form.
type Submission struct {
	State SubmissionState

	// Form holds the credentials to show after the attempt. It is left
	// unchanged on failure and reset to empty values after a sign-up succeeds.
	Form Credentials

	// Errors holds field-level messages keyed by Field* names.
	Errors ValidationErrors

	// Message is a form-wide error that is not tied to a single field.
	Message string

	// Notice is a success message to show after the redirect.
	Notice string

	// Redirect is the route to navigate to on success.
	Redirect string

	// Account and Profile are set on success.
	Account *Account
	Profile *Profile

	// ProfileCreated is true when this submission wrote the profile document.
	ProfileCreated bool
}

// NewSubmission starts a submission in the idle state.
func NewSubmission(form Credentials) *Submission {
	return &Submission{
		State:  SubmissionIdle,
		Form:   form,
		Errors: ValidationErrors{},
	}
}

// TransitionTo moves the submission to the target state.
// The state is left unchanged if the transition is not allowed.
func (s *Submission) TransitionTo(target SubmissionState) error {
	if !s.State.CanTransitionTo(target) {
		return fmt.Errorf("cannot transition submission from %s to %s", s.State, target)
	}
	s.State = target
	return nil
}

// Fail records a failure and returns the form to an editable state.
// field may be empty for a form-wide message.
func (s *Submission) Fail(field, message string) {
	if s.State == SubmissionSubmitting {
		s.State = SubmissionFailed
	}
	if field == "" {
		s.Message = message
	} else {
		s.Errors[field] = message
	}
}

// Succeeded reports whether the submission completed successfully.
func (s *Submission) Succeeded() bool {
	return s.State == SubmissionSuccess
}

// Rejected reports whether the submission ended with any error.
func (s *Submission) Rejected() bool {
	return !s.Errors.Valid() || s.Message != ""
}
