package metrics

import "time"

// Outcome labels for the sign-in and sign-up counters.
const (
	OutcomeSuccess       = "success"
	OutcomeInvalid       = "invalid"
	OutcomeRejected      = "rejected"
	OutcomeAlreadyLinked = "already_linked"
	OutcomeError         = "error"
)

// Flow labels.
const (
	FlowSignIn = "signin"
	FlowSignUp = "signup"
)

// SignInCompleted records the outcome of a sign-in submission.
func SignInCompleted(outcome string) {
	SignInTotal.WithLabelValues(outcome).Inc()
}

// SignUpCompleted records the outcome of a sign-up submission.
func SignUpCompleted(outcome string) {
	SignUpTotal.WithLabelValues(outcome).Inc()
}

// ProfileCreated records a default profile write.
func ProfileCreated(flow string) {
	ProfilesCreated.WithLabelValues(flow).Inc()
}

// SubmissionObserved records how long a submission's remote calls took.
func SubmissionObserved(flow string, d time.Duration) {
	SubmissionDuration.WithLabelValues(flow).Observe(d.Seconds())
}

// RateLimited records a rejected request.
func RateLimited(limiter string) {
	RateLimitedTotal.WithLabelValues(limiter).Inc()
}
