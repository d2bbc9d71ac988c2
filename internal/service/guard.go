package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/DukeRupert/forgea/internal/domain"
	"golang.org/x/sync/singleflight"
)

// SubmissionGuard collapses duplicate submissions of the same form instance.
//
// While a submission for a key is in flight, further submissions with the
// same key wait for it and receive its result instead of calling the remote
// services again. The in-flight call is detached from the caller's context,
// so a client that disconnects does not abort an accepted submission.
type SubmissionGuard struct {
	group singleflight.Group
}

// NewSubmissionGuard creates an empty guard.
func NewSubmissionGuard() *SubmissionGuard {
	return &SubmissionGuard{}
}

// SubmissionKey builds the guard key for a flow, form instance and the
// submitted values. Only byte-identical resubmissions share a key: the values
// enter as a digest, so a different password never joins another attempt's
// outcome. An empty formID yields an empty key, which disables deduplication.
func SubmissionKey(flow, formID string, form domain.Credentials) string {
	if formID == "" {
		return ""
	}
	h := sha256.New()
	for _, v := range []string{form.Identifier, form.Password, form.ConfirmPassword} {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return flow + ":" + formID + ":" + hex.EncodeToString(h.Sum(nil))
}

// Do runs fn once per in-flight key. shared reports whether the result was
// produced for another caller too; shared results must be treated as
// read-only. Do returns ctx.Err() if ctx ends before the result is ready.
func (g *SubmissionGuard) Do(ctx context.Context, key string, fn func(context.Context) *domain.Submission) (sub *domain.Submission, shared bool, err error) {
	detached := context.WithoutCancel(ctx)

	if key == "" {
		return fn(detached), false, nil
	}

	ch := g.group.DoChan(key, func() (interface{}, error) {
		return fn(detached), nil
	})

	select {
	case res := <-ch:
		return res.Val.(*domain.Submission), res.Shared, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
