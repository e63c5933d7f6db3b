package handlers

import (
	"context"
	"io"

	"github.com/opendots/opendots-backend/services"
	"github.com/opendots/opendots-backend/types"
)

// ProfileServiceInterface is the profile reconciliation surface used by the
// profile and auth handlers.
type ProfileServiceInterface interface {
	CheckUsernameAvailable(ctx context.Context, username string) (bool, error)
	GetProfile(ctx context.Context, userID string) (*types.UserProfile, error)
	HasCompletedOnboarding(ctx context.Context, userID string) bool
	CreateProfile(ctx context.Context, userID string, input types.CreateProfileInput) (*types.ProfileResult, error)
	UpdateProfile(ctx context.Context, userID string, update types.ProfileUpdate) (*types.ProfileResult, error)
}

// AuthServiceInterface covers the Supabase Auth calls of the sign-in flow.
type AuthServiceInterface interface {
	SignInURL(provider, redirectTo string) (*types.OAuthStart, error)
	ExchangeCode(ctx context.Context, code, verifier string) (*types.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*types.Session, error)
	RecordSignIn(ctx context.Context, session *types.Session, meta types.SignInMetadata)
	SignOut(ctx context.Context, accessToken string) error
}

// ImageStoreInterface reads and writes profile images.
type ImageStoreInterface interface {
	Upload(ctx context.Context, userID, filename, contentType string, body io.Reader, size int64) (*types.UploadResult, error)
	Get(ctx context.Context, key string) (*services.Image, error)
}

// D1StatusInterface reports on the secondary store.
type D1StatusInterface interface {
	Status(ctx context.Context) (types.D1Status, error)
}

// HealthServiceInterface aggregates component health.
type HealthServiceInterface interface {
	CheckHealth(ctx context.Context) types.HealthCheck
	Ready(ctx context.Context) bool
}

var (
	_ ProfileServiceInterface = (*services.ProfileService)(nil)
	_ AuthServiceInterface    = (*services.AuthService)(nil)
	_ ImageStoreInterface     = (*services.ImageStorage)(nil)
	_ D1StatusInterface       = (*services.D1StatusService)(nil)
	_ HealthServiceInterface  = (*services.HealthService)(nil)
)
