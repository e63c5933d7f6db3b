// Package store declares the persistence contracts for user profiles. Both
// the Supabase Postgres store and the Cloudflare D1 store implement
// ProfileStore; only Postgres carries the legacy profiles table.
package store

import (
	"context"
	"time"

	"github.com/opendots/opendots-backend/types"
)

// ProfileStore persists onboarding profiles.
type ProfileStore interface {
	// IsUsernameAvailable reports whether no profile uses username.
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)
	// GetProfile returns ErrNotFound when the user has no profile.
	GetProfile(ctx context.Context, userID string) (*types.UserProfile, error)
	// CreateProfile inserts p as given, including ID and timestamps.
	// Uniqueness violations are reported as ErrConflict.
	CreateProfile(ctx context.Context, p *types.UserProfile) error
	// UpdateProfile applies update to the user's profile and returns the
	// stored row. ErrNotFound when no row matched.
	UpdateProfile(ctx context.Context, userID string, update types.ProfileUpdate, updatedAt time.Time) (*types.UserProfile, error)
}

// ProfileDeleter removes a profile row by its id. Only the secondary store
// implements it, to undo a create the primary rejected.
type ProfileDeleter interface {
	DeleteProfile(ctx context.Context, id string) error
}

// LegacyProfileStore is the older profiles table maintained on sign-in.
type LegacyProfileStore interface {
	// UpdateSignInMetadata records where the user last signed in from.
	// It reports whether a legacy row was updated.
	UpdateSignInMetadata(ctx context.Context, userID string, meta types.SignInMetadata) (bool, error)
	GetLegacyProfile(ctx context.Context, userID string) (*types.LegacyProfile, error)
}

// StatusReporter exposes diagnostics for the secondary store.
type StatusReporter interface {
	Tables(ctx context.Context) ([]string, error)
	CountProfiles(ctx context.Context) (int, error)
}
