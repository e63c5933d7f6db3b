package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/opendots/opendots-backend/errors"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/store"
	"github.com/opendots/opendots-backend/types"
	"github.com/supabase-community/gotrue-go"
	gotruetypes "github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

const authRequestTimeout = 10 * time.Second

var providerScopes = map[string]string{
	types.ProviderGoogle:   "profile email",
	types.ProviderGitHub:   "user:email read:user",
	types.ProviderLinkedIn: "r_liteprofile r_emailaddress",
}

// AuthService wraps Supabase Auth for the OAuth PKCE flow and records
// sign-in metadata on the legacy profile.
type AuthService struct {
	auth        gotrue.Client
	supabaseURL string
	legacy      store.LegacyProfileStore
	now         func() time.Time
}

// NewAuthService creates the service from a Supabase client. legacy may be
// nil, in which case sign-in metadata is only written to the auth user.
func NewAuthService(client *supabase.Client, supabaseURL string, legacy store.LegacyProfileStore) *AuthService {
	return &AuthService{
		auth:        client.Auth.WithClient(http.Client{Timeout: authRequestTimeout}),
		supabaseURL: strings.TrimRight(supabaseURL, "/"),
		legacy:      legacy,
		now:         time.Now,
	}
}

// NewSupabaseClient builds the Supabase client shared by the auth service.
func NewSupabaseClient(supabaseURL, anonKey string) (*supabase.Client, error) {
	client, err := supabase.NewClient(strings.TrimRight(supabaseURL, "/"), anonKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return client, nil
}

// IsSupportedProvider reports whether provider can be used for sign-in.
func IsSupportedProvider(provider string) bool {
	_, ok := providerScopes[provider]
	return ok
}

// SignInURL starts a PKCE sign-in with provider. Supabase redirects back to
// redirectTo with an authorization code.
func (s *AuthService) SignInURL(provider, redirectTo string) (*types.OAuthStart, error) {
	scopes, ok := providerScopes[provider]
	if !ok {
		return nil, apperrors.ValidationFailed("Unsupported sign-in provider", provider)
	}

	verifier, challenge, err := newPKCEPair()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ServerError, "Failed to start sign-in")
	}

	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("scopes", scopes)
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "s256")
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")

	return &types.OAuthStart{
		URL:      s.supabaseURL + "/auth/v1/authorize?" + q.Encode(),
		Verifier: verifier,
	}, nil
}

// ExchangeCode trades an authorization code for a session.
func (s *AuthService) ExchangeCode(ctx context.Context, code, verifier string) (*types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, apperrors.ValidationFailed("Missing authorization code", "")
	}
	if verifier == "" {
		return nil, apperrors.AuthenticationFailed("Missing PKCE verifier")
	}

	resp, err := s.auth.Token(gotruetypes.TokenRequest{
		GrantType:    "pkce",
		Code:         code,
		CodeVerifier: verifier,
	})
	if err != nil {
		logger.GetLogger().Warnw("Failed to exchange authorization code", "error", err)
		return nil, apperrors.Wrap(err, apperrors.AuthError, "Failed to exchange authorization code")
	}
	return s.toSession(resp.Session), nil
}

// RefreshSession obtains a new token pair from a refresh token.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, apperrors.AuthenticationFailed("Missing refresh token")
	}

	resp, err := s.auth.RefreshToken(refreshToken)
	if err != nil {
		logger.GetLogger().Debugw("Session refresh failed", "refresh_token", logger.MaskToken(refreshToken), "error", err)
		return nil, apperrors.Wrap(err, apperrors.AuthError, "Session expired")
	}
	return s.toSession(resp.Session), nil
}

// RecordSignIn stores where the user signed in from, both on the legacy
// profile row and in the auth user's metadata. Failures are logged only.
func (s *AuthService) RecordSignIn(ctx context.Context, session *types.Session, meta types.SignInMetadata) {
	log := logger.GetLogger()
	meta = meta.WithDefaults()

	if s.legacy != nil {
		updated, err := s.legacy.UpdateSignInMetadata(ctx, session.UserID, meta)
		switch {
		case err != nil:
			log.Errorw("Failed to update legacy profile metadata", "user_id", session.UserID, "error", err)
		case !updated:
			log.Debugw("No legacy profile row to update", "user_id", session.UserID)
		}
	}

	_, err := s.auth.WithToken(session.AccessToken).UpdateUser(gotruetypes.UpdateUserRequest{
		Data: map[string]interface{}{
			"platform":     meta.Platform,
			"browser":      meta.Browser,
			"location":     meta.Location,
			"last_sign_in": s.now().UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		log.Errorw("Failed to update auth user metadata", "user_id", session.UserID, "error", err)
	}
}

// SignOut revokes the user's refresh tokens.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if accessToken == "" {
		return nil
	}
	if err := s.auth.WithToken(accessToken).Logout(); err != nil {
		return apperrors.Upstream(err, "Failed to sign out")
	}
	return nil
}

func (s *AuthService) toSession(sess gotruetypes.Session) *types.Session {
	out := &types.Session{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		UserID:       sess.User.ID.String(),
		Email:        sess.User.Email,
	}
	switch {
	case sess.ExpiresAt > 0:
		out.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	case sess.ExpiresIn > 0:
		out.ExpiresAt = s.now().Add(time.Duration(sess.ExpiresIn) * time.Second).UTC()
	}
	return out
}

// newPKCEPair returns a random verifier and its S256 challenge.
func newPKCEPair() (verifier, challenge string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate pkce verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	return verifier, base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
