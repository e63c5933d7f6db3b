package types

import "time"

// OAuth providers offered on the sign-in page.
const (
	ProviderGoogle   = "google"
	ProviderGitHub   = "github"
	ProviderLinkedIn = "linkedin"
)

// Session is the token pair issued by Supabase Auth.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Email        string
}

// OAuthStart is the first leg of a PKCE sign-in: the provider URL to
// redirect to and the verifier to keep for the callback.
type OAuthStart struct {
	URL      string
	Verifier string
}
