package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/DukeRupert/forgea/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long an ID token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// tokenIssuer is the "iss" claim of every ID token.
const tokenIssuer = "forgea"

// ErrInvalidToken is returned when a token fails signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the ID token claims. Subject carries the account ID.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	StudentID string `json:"student_id"`
}

// TokenIssuer signs and verifies HS256 ID tokens handed out after sign-in.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. A non-positive ttl uses DefaultTokenTTL.
func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the token lifetime.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for the account and student ID.
func (t *TokenIssuer) Issue(account *domain.Account, studentID string) (string, error) {
	if account == nil {
		return "", errors.New("identity: cannot issue token without account")
	}

	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Email:     account.Email,
		StudentID: studentID,
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("identity: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token.
func (t *TokenIssuer) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.StudentID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
