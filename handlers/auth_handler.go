package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opendots/opendots-backend/config"
	"github.com/opendots/opendots-backend/errors"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/middleware"
	"github.com/opendots/opendots-backend/types"
)

const (
	callbackPath          = "/auth/callback"
	codeVerifierMaxAge    = 10 * time.Minute
	defaultSignedInTarget = middleware.ProtectedPath
)

// AuthHandler runs the Supabase OAuth (PKCE) flow and keeps the session in
// cookies.
type AuthHandler struct {
	auth     AuthServiceInterface
	profiles ProfileServiceInterface
	policy   *middleware.SessionPolicy
	config   *config.ServerConfig
}

func NewAuthHandler(auth AuthServiceInterface, profiles ProfileServiceInterface, cfg *config.ServerConfig) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		profiles: profiles,
		policy:   middleware.DefaultSessionPolicy(),
		config:   cfg,
	}
}

func (h *AuthHandler) secureCookies() bool {
	return h.config.Environment == config.EnvProduction
}

// SignInHandler godoc
// @Summary Start an OAuth sign-in
// @Description Redirects to the provider through Supabase Auth. Platform and browser default to values derived from the User-Agent.
// @Tags auth
// @Param provider query string true "google, github or linkedin"
// @Param next query string false "Path to open after sign-in"
// @Param platform query string false "Client platform"
// @Param browser query string false "Client browser"
// @Param location query string false "Client location"
// @Success 302 "Redirect to the provider"
// @Router /auth/sign-in [get]
func (h *AuthHandler) SignInHandler(c *gin.Context) {
	provider := strings.ToLower(c.Query("provider"))

	ua := c.Request.UserAgent()
	meta := types.SignInMetadata{
		Platform: firstNonEmpty(c.Query("platform"), PlatformFromUserAgent(ua)),
		Browser:  firstNonEmpty(c.Query("browser"), BrowserFromUserAgent(ua)),
		Location: c.Query("location"),
	}.WithDefaults()

	params := url.Values{}
	params.Set("platform", meta.Platform)
	params.Set("browser", meta.Browser)
	params.Set("location", meta.Location)
	if next := safeNext(c.Query("next")); next != "" {
		params.Set("next", next)
	}
	redirectTo := h.origin(c) + callbackPath + "?" + params.Encode()

	start, err := h.auth.SignInURL(provider, redirectTo)
	if err != nil {
		h.redirectWithError(c, err, "Unsupported sign-in provider")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CodeVerifierCookie, start.Verifier, int(codeVerifierMaxAge.Seconds()), "/", "", h.secureCookies(), true)
	c.Redirect(http.StatusFound, start.URL)
}

// CallbackHandler godoc
// @Summary Finish an OAuth sign-in
// @Description Exchanges the authorization code, stores the session cookies and records sign-in metadata.
// @Tags auth
// @Param code query string true "Authorization code"
// @Param next query string false "Path to open after sign-in"
// @Param platform query string false "Client platform"
// @Param browser query string false "Client browser"
// @Param location query string false "Client location"
// @Success 302 "Redirect into the app or to onboarding"
// @Router /auth/callback [get]
func (h *AuthHandler) CallbackHandler(c *gin.Context) {
	log := logger.GetLogger()
	ctx := c.Request.Context()

	code := c.Query("code")
	if code == "" {
		log.Warn("No code provided in OAuth callback")
		h.redirectWithError(c, nil, "Missing authorization code")
		return
	}

	verifier, _ := c.Cookie(middleware.CodeVerifierCookie)
	session, err := h.auth.ExchangeCode(ctx, code, verifier)
	if err != nil {
		log.Warnw("Error exchanging code for session", "error", err)
		h.redirectWithError(c, err, "Failed to exchange authorization code")
		return
	}

	middleware.ClearCookies(c, []string{middleware.CodeVerifierCookie}, h.secureCookies())
	middleware.SetSessionCookies(c, session, h.secureCookies())

	h.auth.RecordSignIn(ctx, session, types.SignInMetadata{
		Platform: c.Query("platform"),
		Browser:  c.Query("browser"),
		Location: c.Query("location"),
	})

	next := safeNext(c.Query("next"))
	if next == "" {
		next = defaultSignedInTarget
	}
	if !h.profiles.HasCompletedOnboarding(ctx, session.UserID) {
		next = middleware.OnboardingPath
	}

	log.Infow("User signed in", "user_id", session.UserID, "email", logger.MaskEmail(session.Email))
	c.Redirect(http.StatusFound, h.redirectBase(c)+next)
}

// SignOutHandler godoc
// @Summary Sign out
// @Description Revokes the Supabase session and clears the session cookies.
// @Tags auth
// @Success 302 "Redirect to /?signout=true"
// @Router /auth/sign-out [post]
func (h *AuthHandler) SignOutHandler(c *gin.Context) {
	token := c.GetString(middleware.AccessTokenKey)
	if token == "" {
		token, _ = c.Cookie(middleware.AccessTokenCookie)
	}
	if err := h.auth.SignOut(c.Request.Context(), token); err != nil {
		logger.GetLogger().Warnw("Supabase sign-out failed, clearing cookies anyway", "error", err)
	}

	middleware.ClearCookies(c, h.policy.SignOutCookies(), h.secureCookies())
	c.Redirect(http.StatusFound, "/?signout=true")
}

// RefreshTokenHandler godoc
// @Summary Refresh a session
// @Description Token refresh for API clients that do not use cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body object true "refresh_token"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} middleware.ErrorResponse "Invalid request"
// @Failure 401 {object} middleware.ErrorResponse "Session expired"
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshTokenHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(FormatValidationErrors(err))
		return
	}

	session, err := h.auth.RefreshSession(c.Request.Context(), req.RefreshToken)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  session.AccessToken,
		"refresh_token": session.RefreshToken,
		"expires_at":    session.ExpiresAt.Unix(),
		"token_type":    "bearer",
		"user_id":       session.UserID,
	})
}

// redirectWithError sends the browser to the landing page with an error
// banner. The message shown is the AppError message when there is one.
func (h *AuthHandler) redirectWithError(c *gin.Context, err error, fallback string) {
	message := fallback
	if appErr, ok := err.(*errors.AppError); ok && appErr.Message != "" {
		message = appErr.Message
	}
	q := url.Values{}
	q.Set("error", "true")
	q.Set("message", message)
	q.Set("type", "error")
	c.Redirect(http.StatusFound, h.origin(c)+"/?"+q.Encode())
}

// origin is the scheme and host the request arrived on.
func (h *AuthHandler) origin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}

// redirectBase honours X-Forwarded-Host outside development, where the
// service sits behind a load balancer.
func (h *AuthHandler) redirectBase(c *gin.Context) string {
	if h.config.Environment != config.EnvDevelopment {
		if host := c.GetHeader("X-Forwarded-Host"); host != "" {
			return "https://" + host
		}
	}
	return h.origin(c)
}

// safeNext keeps only same-site relative paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	return next
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
