package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DukeRupert/forgea/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MemoryProvider keeps credentials in process memory.
// Accounts are lost on restart.
type MemoryProvider struct {
	cost int

	mu       sync.RWMutex
	accounts map[string]memoryAccount
}

type memoryAccount struct {
	account domain.Account
	hash    []byte
}

// NewMemoryProvider creates an empty in-memory provider.
// cost is the bcrypt cost; values below bcrypt.MinCost use bcrypt.MinCost.
func NewMemoryProvider(cost int) *MemoryProvider {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &MemoryProvider{
		cost:     cost,
		accounts: make(map[string]memoryAccount),
	}
}

// Authenticate checks email and password against stored accounts.
func (p *MemoryProvider) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, internalError(err, "Request cancelled")
	}

	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, newError(CodeInvalidCredential, "The supplied credential is invalid.")
	}

	p.mu.RLock()
	stored, ok := p.accounts[email]
	p.mu.RUnlock()

	if !ok {
		return nil, newError(CodeUserNotFound, "There is no account for this email.")
	}

	if err := bcrypt.CompareHashAndPassword(stored.hash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, newError(CodeWrongPassword, "The password is invalid.")
		}
		return nil, newError(CodeInvalidCredential, "The supplied credential is invalid.")
	}

	account := stored.account
	return &account, nil
}

// CreateAccount stores a new credential.
func (p *MemoryProvider) CreateAccount(ctx context.Context, email, password string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, internalError(err, "Request cancelled")
	}

	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	if err := checkPassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, internalError(err, "Failed to hash password")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.accounts[email]; exists {
		return nil, newError(CodeEmailAlreadyInUse, "The email address is already in use by another account.")
	}

	account := domain.Account{
		ID:        uuid.New(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	p.accounts[email] = memoryAccount{account: account, hash: hash}

	return &account, nil
}

// Len returns the number of stored accounts.
func (p *MemoryProvider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.accounts)
}
