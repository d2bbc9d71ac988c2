package identity

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/forgea/internal/domain"
	"github.com/DukeRupert/forgea/internal/repository"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// dummyHash is compared against when no account exists so that unknown and
// known emails take the same time to reject.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// =============================================================================
// PostgresProvider Implementation
// =============================================================================

// PostgresProvider stores credentials in the accounts table.
type PostgresProvider struct {
	queries *repository.Queries
	cost    int
	logger  *slog.Logger
}

// NewPostgresProvider creates a provider backed by sqlc queries.
func NewPostgresProvider(queries *repository.Queries, logger *slog.Logger) *PostgresProvider {
	return &PostgresProvider{
		queries: queries,
		cost:    BcryptCost,
		logger:  logger,
	}
}

// Authenticate checks the password against the stored bcrypt hash.
//
// Flow:
// 1. Normalize and shape-check the email
// 2. Look up the account (unknown email -> CodeUserNotFound)
// 3. Compare the hash (mismatch -> CodeWrongPassword)
func (p *PostgresProvider) Authenticate(ctx context.Context, email, password string) (*domain.Account, error) {
	email = normalizeEmail(email)
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, newError(CodeInvalidCredential, "The supplied credential is invalid.")
	}

	row, err := p.queries.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, newError(CodeUserNotFound, "There is no account for this email.")
		}
		return nil, internalError(err, "Failed to look up account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, newError(CodeWrongPassword, "The password is invalid.")
		}
		return nil, newError(CodeInvalidCredential, "The supplied credential is invalid.")
	}

	p.logger.Debug("account authenticated", "account_id", row.ID)

	return accountFromRow(row), nil
}

// CreateAccount hashes the password and inserts the account.
// A duplicate email surfaces as CodeEmailAlreadyInUse, including when two
// concurrent creates race on the unique index.
func (p *PostgresProvider) CreateAccount(ctx context.Context, email, password string) (*domain.Account, error) {
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

	row, err := p.queries.CreateAccount(ctx, repository.CreateAccountParams{
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, newError(CodeEmailAlreadyInUse, "The email address is already in use by another account.")
		}
		return nil, internalError(err, "Failed to create account")
	}

	p.logger.Info("account created", "account_id", row.ID)

	return accountFromRow(row), nil
}

func accountFromRow(row repository.Account) *domain.Account {
	return &domain.Account{
		ID:        row.ID,
		Email:     row.Email,
		CreatedAt: row.CreatedAt,
	}
}
