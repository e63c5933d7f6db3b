package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/opendots/opendots-backend/errors"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/types"
)

// AccessTokenKey holds the validated access token for handlers that call
// Supabase Auth on the user's behalf.
const AccessTokenKey = "access_token"

const refreshCookieMaxAge = 30 * 24 * time.Hour

// SessionRefresher trades a refresh token for a new session.
type SessionRefresher interface {
	RefreshSession(ctx context.Context, refreshToken string) (*types.Session, error)
}

// OnboardingChecker reports whether a user has a profile.
type OnboardingChecker interface {
	OnboardingStatus(ctx context.Context, userID string) (bool, error)
}

// SessionOptions wires the session middleware.
type SessionOptions struct {
	Policy     *SessionPolicy
	Validator  Validator
	Refresher  SessionRefresher
	Onboarding OnboardingChecker
	// SecureCookies marks session cookies Secure; set in production.
	SecureCookies bool
	D1Available   bool
}

var sessionSkipPrefixes = []string{"/static", "/images", "/health", "/metrics", "/swagger"}

// SessionMiddleware authenticates the request from the session cookies (or a
// Bearer header), refreshes an expired session, and applies the redirect
// policy. Nothing is kept between requests.
func SessionMiddleware(opts SessionOptions) gin.HandlerFunc {
	policy := opts.Policy
	if policy == nil {
		policy = DefaultSessionPolicy()
	}
	d1Header := strconv.FormatBool(opts.D1Available)

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if skipSession(path) {
			c.Next()
			return
		}

		c.Set(D1AvailableKey, opts.D1Available)
		c.Header("X-D1-Available", d1Header)

		rawQuery := c.Request.URL.RawQuery
		if policy.IsSignOut(rawQuery) {
			d := policy.Decide(path, false, false, rawQuery)
			ClearCookies(c, d.ClearCookies, opts.SecureCookies)
			c.Redirect(http.StatusFound, d.Redirect)
			c.Abort()
			return
		}

		userID := authenticate(c, opts)

		onboarded := true
		if userID != "" && opts.Onboarding != nil && policy.NeedsOnboardingCheck(path, true) {
			done, err := opts.Onboarding.OnboardingStatus(c.Request.Context(), userID)
			if err != nil {
				logger.GetLogger().Warnw("Onboarding lookup failed, not redirecting", "user_id", userID, "error", err)
			} else {
				onboarded = done
			}
		}

		d := policy.Decide(path, userID != "", onboarded, rawQuery)
		if d.Redirect != "" {
			c.Redirect(http.StatusFound, d.Redirect)
			c.Abort()
			return
		}
		c.Next()
	}
}

func skipSession(path string) bool {
	if path == "/favicon.ico" {
		return true
	}
	for _, prefix := range sessionSkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// authenticate returns the user id, or "" for an anonymous request.
func authenticate(c *gin.Context, opts SessionOptions) string {
	log := logger.GetLogger()

	token, fromCookie := accessToken(c)
	if token != "" && opts.Validator != nil {
		userID, err := opts.Validator.Validate(token)
		if err == nil {
			setUser(c, userID, token)
			return userID
		}
		if !fromCookie || !errors.Is(err, ErrTokenExpired) {
			log.Debugw("Rejected access token", "path", c.Request.URL.Path, "error", err)
			return ""
		}
	}

	refreshToken, err := c.Cookie(RefreshTokenCookie)
	if err != nil || refreshToken == "" || opts.Refresher == nil {
		return ""
	}

	session, err := opts.Refresher.RefreshSession(c.Request.Context(), refreshToken)
	if err != nil {
		log.Infow("Session refresh failed, clearing session cookies", "error", err)
		ClearCookies(c, []string{AccessTokenCookie, RefreshTokenCookie}, opts.SecureCookies)
		return ""
	}
	SetSessionCookies(c, session, opts.SecureCookies)

	userID := session.UserID
	if userID == "" && opts.Validator != nil {
		if userID, err = opts.Validator.Validate(session.AccessToken); err != nil {
			return ""
		}
	}
	setUser(c, userID, session.AccessToken)
	return userID
}

func accessToken(c *gin.Context) (string, bool) {
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token, true
	}
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer "), false
	}
	return "", false
}

func setUser(c *gin.Context, userID, token string) {
	c.Set(UserIDKey, userID)
	c.Set(AccessTokenKey, token)
}

// SetSessionCookies writes the access and refresh cookies for session.
func SetSessionCookies(c *gin.Context, session *types.Session, secure bool) {
	accessMaxAge := int(time.Until(session.ExpiresAt).Seconds())
	if accessMaxAge <= 0 {
		accessMaxAge = int(time.Hour.Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, session.AccessToken, accessMaxAge, "/", "", secure, true)
	if session.RefreshToken != "" {
		c.SetCookie(RefreshTokenCookie, session.RefreshToken, int(refreshCookieMaxAge.Seconds()), "/", "", secure, true)
	}
}

// ClearCookies expires each named cookie.
func ClearCookies(c *gin.Context, names []string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	for _, name := range names {
		c.SetCookie(name, "", -1, "/", "", secure, true)
	}
}

// RequireUser rejects anonymous API requests with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Type:    string(apperrors.AuthError),
				Message: "Unauthorized",
				Code:    "401",
			})
			return
		}
		c.Next()
	}
}
