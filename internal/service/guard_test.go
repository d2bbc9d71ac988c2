package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DukeRupert/forgea/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionKey(t *testing.T) {
	form := domain.Credentials{Identifier: "21-1476-291", Password: "secret1"}

	assert.Equal(t, "", SubmissionKey("signin", "", form))

	key := SubmissionKey("signin", "f1", form)
	assert.True(t, strings.HasPrefix(key, "signin:f1:"))
	assert.NotContains(t, key, "secret1")
	assert.NotContains(t, key, "21-1476-291")
	assert.Equal(t, key, SubmissionKey("signin", "f1", form), "resubmission shares the key")
}

func TestSubmissionKey_DiffersByValues(t *testing.T) {
	base := domain.Credentials{Identifier: "21-1476-291", Password: "secret1", ConfirmPassword: "secret1"}
	key := SubmissionKey("signup", "f1", base)

	variants := []domain.Credentials{
		{Identifier: "21-1476-291", Password: "other12", ConfirmPassword: "secret1"},
		{Identifier: "21-1476-291", Password: "secret1", ConfirmPassword: "other12"},
		{Identifier: "21-1476-292", Password: "secret1", ConfirmPassword: "secret1"},
		// field boundaries are delimited
		{Identifier: "21-1476-291secret1", Password: "", ConfirmPassword: "secret1"},
	}
	for _, v := range variants {
		assert.NotEqual(t, key, SubmissionKey("signup", "f1", v), "%+v", v)
	}
	assert.NotEqual(t, key, SubmissionKey("signin", "f1", base))
	assert.NotEqual(t, key, SubmissionKey("signup", "f2", base))
}

func TestSubmissionGuard_DifferentPasswordsDoNotShareOutcome(t *testing.T) {
	guard := NewSubmissionGuard()
	release := make(chan struct{})
	var calls int32

	fn := func(state domain.SubmissionState) func(context.Context) *domain.Submission {
		return func(ctx context.Context) *domain.Submission {
			atomic.AddInt32(&calls, 1)
			<-release
			return &domain.Submission{State: state}
		}
	}

	right := SubmissionKey("signin", "f1", domain.Credentials{Identifier: "21-1476-291", Password: "secret1"})
	wrong := SubmissionKey("signin", "f1", domain.Credentials{Identifier: "21-1476-291", Password: "guess12"})

	var wg sync.WaitGroup
	var first, second *domain.Submission
	wg.Add(2)
	go func() {
		defer wg.Done()
		first, _, _ = guard.Do(context.Background(), right, fn(domain.SubmissionSuccess))
	}()
	go func() {
		defer wg.Done()
		second, _, _ = guard.Do(context.Background(), wrong, fn(domain.SubmissionFailed))
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, domain.SubmissionSuccess, first.State)
	assert.Equal(t, domain.SubmissionFailed, second.State)
}

func TestSubmissionGuard_CollapsesDuplicates(t *testing.T) {
	guard := NewSubmissionGuard()
	release := make(chan struct{})
	var calls int32

	fn := func(ctx context.Context) *domain.Submission {
		atomic.AddInt32(&calls, 1)
		<-release
		return &domain.Submission{State: domain.SubmissionSuccess}
	}

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*domain.Submission, callers)
	started := make(chan struct{}, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			sub, _, err := guard.Do(context.Background(), "signin:f1:x", fn)
			assert.NoError(t, err)
			results[i] = sub
		}(i)
	}

	for i := 0; i < callers; i++ {
		<-started
	}
	// Give the goroutines time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, sub := range results {
		require.NotNil(t, sub)
		assert.Same(t, results[0], sub)
	}
}

func TestSubmissionGuard_EmptyKeyRunsEveryTime(t *testing.T) {
	guard := NewSubmissionGuard()
	var calls int32
	fn := func(ctx context.Context) *domain.Submission {
		atomic.AddInt32(&calls, 1)
		return &domain.Submission{}
	}

	_, shared, err := guard.Do(context.Background(), "", fn)
	require.NoError(t, err)
	assert.False(t, shared)
	_, _, _ = guard.Do(context.Background(), "", fn)

	assert.Equal(t, int32(2), calls)
}

func TestSubmissionGuard_DetachesFromCaller(t *testing.T) {
	guard := NewSubmissionGuard()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	fn := func(inner context.Context) *domain.Submission {
		cancel()
		time.Sleep(10 * time.Millisecond)
		done <- inner.Err()
		return &domain.Submission{}
	}

	_, _, err := guard.Do(ctx, "signup:f2:x", fn)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, <-done, "the in-flight submission keeps running")
}
