package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProfileCollection is the document collection holding one profile per student ID.
const ProfileCollection = "Dataset"

// ProfileKeyField is the document field that carries the student ID.
const ProfileKeyField = "id"

// unsetValue marks an assessment field that has not been filled in yet.
const unsetValue = "None"

// ProfileStatus marks where a profile is in its lifecycle.
type ProfileStatus string

const (
	// ProfileStatusNew is set on creation; no assessment has been taken.
	ProfileStatusNew ProfileStatus = "new"
	// ProfileStatusAssessed is set once assessment results are written.
	ProfileStatusAssessed ProfileStatus = "assessed"
)

// Profile is the per-student document stored alongside, but separately from,
// the authentication credential.
type Profile struct {
	ID                 string
	PersonalitySummary string
	Major              string
	Status             ProfileStatus
}

// DefaultProfile returns the initial profile written on first sign-in or sign-up.
func DefaultProfile(identifier string) Profile {
	return Profile{
		ID:                 identifier,
		PersonalitySummary: unsetValue,
		Major:              unsetValue,
		Status:             ProfileStatusNew,
	}
}

// Document converts the profile to its stored field map.
func (p Profile) Document() map[string]any {
	return map[string]any{
		ProfileKeyField:      p.ID,
		"personalitySummary": p.PersonalitySummary,
		"major":              p.Major,
		"status":             string(p.Status),
	}
}

// ProfileFromDocument rebuilds a profile from its stored field map.
// Missing or non-string fields fall back to their defaults.
func ProfileFromDocument(doc map[string]any) Profile {
	str := func(key, fallback string) string {
		if v, ok := doc[key].(string); ok && v != "" {
			return v
		}
		return fallback
	}

	return Profile{
		ID:                 str(ProfileKeyField, ""),
		PersonalitySummary: str("personalitySummary", unsetValue),
		Major:              str("major", unsetValue),
		Status:             ProfileStatus(str("status", string(ProfileStatusNew))),
	}
}

// IsAssessed reports whether assessment results have been recorded.
func (p Profile) IsAssessed() bool {
	return p.Status == ProfileStatusAssessed
}

// Account is the authentication credential as seen by the application.
// The password hash never leaves the identity provider.
type Account struct {
	ID        uuid.UUID
	Email     string
	CreatedAt time.Time
}
