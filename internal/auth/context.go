// Package auth provides authentication context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/DukeRupert/forgea/internal/identity"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// studentContextKey is the key used to store the verified token claims.
	studentContextKey contextKey = "student"
)

// GetStudent retrieves the signed-in student's claims from the context.
//
// Returns nil if no student is authenticated.
//
// Usage:
//
//	claims := auth.GetStudent(r.Context())
//	if claims == nil {
//	    // Handle unauthenticated request
//	}
func GetStudent(ctx context.Context) *identity.Claims {
	claims, ok := ctx.Value(studentContextKey).(*identity.Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetStudentFromRequest is GetStudent for the request context.
func GetStudentFromRequest(r *http.Request) *identity.Claims {
	return GetStudent(r.Context())
}

// SetStudent stores verified claims in the context.
func SetStudent(ctx context.Context, claims *identity.Claims) context.Context {
	return context.WithValue(ctx, studentContextKey, claims)
}
