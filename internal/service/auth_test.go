package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DukeRupert/forgea/internal/docstore"
	"github.com/DukeRupert/forgea/internal/domain"
	"github.com/DukeRupert/forgea/internal/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mocks
// =============================================================================

type mockProvider struct {
	mu                  sync.Mutex
	AuthenticateFunc    func(ctx context.Context, email, password string) (*domain.Account, error)
	CreateAccountFunc   func(ctx context.Context, email, password string) (*domain.Account, error)
	authenticateEmails  []string
	createAccountEmails []string
}

func (m *mockProvider) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	m.mu.Lock()
	m.authenticateEmails = append(m.authenticateEmails, email)
	m.mu.Unlock()
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password)
	}
	return &domain.Account{ID: uuid.New(), Email: email}, nil
}

func (m *mockProvider) CreateAccount(ctx context.Context, email, password string) (*domain.Account, error) {
	m.mu.Lock()
	m.createAccountEmails = append(m.createAccountEmails, email)
	m.mu.Unlock()
	if m.CreateAccountFunc != nil {
		return m.CreateAccountFunc(ctx, email, password)
	}
	return &domain.Account{ID: uuid.New(), Email: email}, nil
}

func (m *mockProvider) calls() (authenticate, create int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.authenticateEmails), len(m.createAccountEmails)
}

type writeCall struct {
	collection string
	key        string
	data       map[string]any
	opts       docstore.WriteOptions
}

type mockStore struct {
	mu               sync.Mutex
	QueryByFieldFunc func(ctx context.Context, collection, field, value string) ([]docstore.Record, error)
	WriteRecordFunc  func(ctx context.Context, collection, key string, data map[string]any, opts docstore.WriteOptions) error
	GetRecordFunc    func(ctx context.Context, collection, key string) (*docstore.Record, error)
	queries          int
	writes           []writeCall
}

func (m *mockStore) QueryByField(ctx context.Context, collection, field, value string) ([]docstore.Record, error) {
	m.mu.Lock()
	m.queries++
	m.mu.Unlock()
	if m.QueryByFieldFunc != nil {
		return m.QueryByFieldFunc(ctx, collection, field, value)
	}
	return nil, nil
}

func (m *mockStore) WriteRecord(ctx context.Context, collection, key string, data map[string]any, opts docstore.WriteOptions) error {
	m.mu.Lock()
	m.writes = append(m.writes, writeCall{collection, key, data, opts})
	m.mu.Unlock()
	if m.WriteRecordFunc != nil {
		return m.WriteRecordFunc(ctx, collection, key, data, opts)
	}
	return nil
}

func (m *mockStore) GetRecord(ctx context.Context, collection, key string) (*docstore.Record, error) {
	if m.GetRecordFunc != nil {
		return m.GetRecordFunc(ctx, collection, key)
	}
	return nil, docstore.ErrNotFound
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func existingProfile(identifier string) func(ctx context.Context, collection, field, value string) ([]docstore.Record, error) {
	return func(ctx context.Context, collection, field, value string) ([]docstore.Record, error) {
		if collection == domain.ProfileCollection && field == domain.ProfileKeyField && value == identifier {
			return []docstore.Record{{
				Collection: collection,
				Key:        identifier,
				Data:       map[string]any{"id": identifier, "personalitySummary": "INTJ", "major": "CS", "status": "assessed"},
			}}, nil
		}
		return nil, nil
	}
}

func providerError(code string) error {
	return &identity.Error{Code: code, Message: "rejected"}
}

// =============================================================================
// SignIn Tests
// =============================================================================

func TestSignIn_ValidationStopsBeforeRemoteCalls(t *testing.T) {
	provider := &mockProvider{}
	store := &mockStore{}
	svc := NewAuthService(provider, store, "", testLogger())

	sub := svc.SignIn(context.Background(), domain.Credentials{})

	assert.Equal(t, domain.SubmissionIdle, sub.State)
	assert.Equal(t, "Student ID is required", sub.Errors[domain.FieldStudentID])
	assert.Equal(t, "Password is required", sub.Errors[domain.FieldPassword])
	a, c := provider.calls()
	assert.Zero(t, a+c)
	assert.Zero(t, store.queries)
}

func TestSignIn_DerivesAccountEmail(t *testing.T) {
	provider := &mockProvider{}
	store := &mockStore{QueryByFieldFunc: existingProfile("21-1476-291")}
	svc := NewAuthService(provider, store, "forgea.com", testLogger())

	sub := svc.SignIn(context.Background(), domain.Credentials{Identifier: "21-1476-291", Password: "secret1"})

	require.Equal(t, domain.SubmissionSuccess, sub.State)
	assert.Equal(t, []string{"21-1476-291@forgea.com"}, provider.authenticateEmails)
	assert.Equal(t, RoutePersonalInfo, sub.Redirect)
	assert.False(t, sub.ProfileCreated)
	assert.Equal(t, "CS", sub.Profile.Major)
	assert.Empty(t, store.writes)
}

func TestSignIn_CreatesMissingProfile(t *testing.T) {
	provider := &mockProvider{}
	store := &mockStore{}
	svc := NewAuthService(provider, store, "", testLogger())

	sub := svc.SignIn(context.Background(), domain.Credentials{Identifier: "21-1476-291", Password: "secret1"})

	require.Equal(t, domain.SubmissionSuccess, sub.State)
	assert.True(t, sub.ProfileCreated)
	require.Len(t, store.writes, 1)
	w := store.writes[0]
	assert.Equal(t, domain.ProfileCollection, w.collection)
	assert.Equal(t, "21-1476-291", w.key)
	assert.Equal(t, "21-1476-291", w.data["id"])
	assert.Equal(t, "None", w.data["personalitySummary"])
	assert.Equal(t, "None", w.data["major"])
	assert.False(t, w.opts.Merge)
}

func TestSignIn_ProviderRejections(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"wrong password", providerError(identity.CodeWrongPassword), MsgIncorrectPassword},
		{"user not found", providerError(identity.CodeUserNotFound), MsgUserNotFound},
		{"invalid credential", providerError(identity.CodeInvalidCredential), MsgInvalidCredential},
		{"internal", providerError(identity.CodeInternal), MsgLoginFailed},
		{"unclassified", errors.New("network down"), MsgLoginFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{
				AuthenticateFunc: func(ctx context.Context, email, password string) (*domain.Account, error) {
					return nil, tt.err
				},
			}
			store := &mockStore{}
			svc := NewAuthService(provider, store, "", testLogger())
			form := domain.Credentials{Identifier: "21-1476-291", Password: "secret1"}

			sub := svc.SignIn(context.Background(), form)

			assert.Equal(t, domain.SubmissionFailed, sub.State)
			assert.Equal(t, tt.wantMsg, sub.Message)
			assert.Equal(t, form, sub.Form, "form fields are left unchanged")
			assert.Empty(t, sub.Redirect)
			assert.Zero(t, store.queries)
		})
	}
}

func TestSignIn_StoreFailure(t *testing.T) {
	store := &mockStore{
		QueryByFieldFunc: func(ctx context.Context, collection, field, value string) ([]docstore.Record, error) {
			return nil, errors.New("store unavailable")
		},
	}
	svc := NewAuthService(&mockProvider{}, store, "", testLogger())

	sub := svc.SignIn(context.Background(), domain.Credentials{Identifier: "21-1476-291", Password: "secret1"})

	assert.Equal(t, domain.SubmissionFailed, sub.State)
	assert.Equal(t, MsgLoginFailed, sub.Message)
}

// =============================================================================
// SignUp Tests
// =============================================================================

func TestSignUp_InvalidIdentifierMakesNoCalls(t *testing.T) {
	for _, id := range []string{"2114-76291", " 21-1476-291 ", "21-1476-291\n", "21-1476-2911"} {
		t.Run(id, func(t *testing.T) {
			provider := &mockProvider{}
			store := &mockStore{}
			svc := NewAuthService(provider, store, "", testLogger())

			sub := svc.SignUp(context.Background(), domain.Credentials{Identifier: id, Password: "secret1", ConfirmPassword: "secret1"})

			assert.Equal(t, domain.SubmissionIdle, sub.State)
			assert.Equal(t, "Invalid Student ID format (e.g., 21-1476-291)", sub.Errors[domain.FieldStudentID])
			assert.Equal(t, id, sub.Form.Identifier, "identifier is kept as typed")
			a, c := provider.calls()
			assert.Zero(t, a+c)
			assert.Zero(t, store.queries)
			assert.Empty(t, store.writes)
		})
	}
}

func TestSignUp_MismatchedPasswords(t *testing.T) {
	provider := &mockProvider{}
	svc := NewAuthService(provider, &mockStore{}, "", testLogger())

	sub := svc.SignUp(context.Background(), domain.Credentials{Identifier: "21-1476-291", Password: "secret1", ConfirmPassword: "secret2"})

	assert.Equal(t, "Passwords do not match", sub.Errors[domain.FieldConfirmPassword])
	_, c := provider.calls()
	assert.Zero(t, c)
}

func TestSignUp_AlreadyLinked(t *testing.T) {
	provider := &mockProvider{}
	store := &mockStore{QueryByFieldFunc: existingProfile("21-1476-291")}
	svc := NewAuthService(provider, store, "", testLogger())

	sub := svc.SignUp(context.Background(), domain.Credentials{Identifier: "21-1476-291", Password: "secret1", ConfirmPassword: "secret1"})

	assert.Equal(t, domain.SubmissionFailed, sub.State)
	assert.Equal(t, MsgAlreadyLinked, sub.Errors[domain.FieldStudentID])
	_, c := provider.calls()
	assert.Zero(t, c, "createAccount is not called")
	assert.Empty(t, store.writes)
}

func TestSignUp_Success(t *testing.T) {
	provider := &mockProvider{}
	store := &mockStore{}
	svc := NewAuthService(provider, store, "forgea.com", testLogger())

	sub := svc.SignUp(context.Background(), domain.Credentials{Identifier: "21-1476-291", Password: "secret1", ConfirmPassword: "secret1"})

	require.Equal(t, domain.SubmissionSuccess, sub.State)
	assert.Equal(t, domain.Credentials{}, sub.Form, "credential fields are reset")
	assert.Equal(t, RouteHome, sub.Redirect)
	assert.Equal(t, MsgRegistered, sub.Notice)
	assert.False(t, sub.Rejected())
	assert.Equal(t, []string{"21-1476-291@forgea.com"}, provider.createAccountEmails)

	require.Len(t, store.writes, 1)
	assert.Equal(t, "21-1476-291", store.writes[0].key)
	assert.Equal(t, domain.DefaultProfile("21-1476-291").Document(), store.writes[0].data)
}

func TestSignUp_ProviderRejections(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantField string
		wantMsg   string
	}{
		{"weak password", providerError(identity.CodeWeakPassword), domain.FieldPassword, MsgWeakPassword},
		{"password too long", providerError(identity.CodePasswordTooLong), domain.FieldPassword, MsgPasswordTooLong},
		{"email in use", providerError(identity.CodeEmailAlreadyInUse), domain.FieldStudentID, MsgAlreadyLinked},
		{"internal", providerError(identity.CodeInternal), "", MsgRegistrationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{
				CreateAccountFunc: func(ctx context.Context, email, password string) (*domain.Account, error) {
					return nil, tt.err
				},
			}
			store := &mockStore{}
			svc := NewAuthService(provider, store, "", testLogger())
			form := domain.Credentials{Identifier: "21-1476-291", Password: "12345", ConfirmPassword: "12345"}

			sub := svc.SignUp(context.Background(), form)

			assert.Equal(t, domain.SubmissionFailed, sub.State)
			if tt.wantField == "" {
				assert.Equal(t, tt.wantMsg, sub.Message)
			} else {
				assert.Equal(t, tt.wantMsg, sub.Errors[tt.wantField])
			}
			assert.Equal(t, form, sub.Form)
			assert.Empty(t, store.writes)
		})
	}
}

func TestSignUp_ProfileWriteFailure(t *testing.T) {
	store := &mockStore{
		WriteRecordFunc: func(ctx context.Context, collection, key string, data map[string]any, opts docstore.WriteOptions) error {
			return errors.New("write failed")
		},
	}
	svc := NewAuthService(&mockProvider{}, store, "", testLogger())

	sub := svc.SignUp(context.Background(), domain.Credentials{Identifier: "21-1476-291", Password: "secret1", ConfirmPassword: "secret1"})

	assert.Equal(t, domain.SubmissionFailed, sub.State)
	assert.Equal(t, MsgRegistrationFailed, sub.Message)
}

// =============================================================================
// Profile Tests
// =============================================================================

func TestProfile(t *testing.T) {
	svc := NewAuthService(&mockProvider{}, &mockStore{QueryByFieldFunc: existingProfile("21-1476-291")}, "", testLogger())

	p, err := svc.Profile(context.Background(), "21-1476-291")
	require.NoError(t, err)
	assert.True(t, p.IsAssessed())

	_, err = svc.Profile(context.Background(), "99-9999-999")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
