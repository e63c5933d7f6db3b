package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/opendots/opendots-backend/config"
	"github.com/opendots/opendots-backend/handlers"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/metrics"
	"github.com/opendots/opendots-backend/middleware"
	"github.com/opendots/opendots-backend/services"
	"github.com/opendots/opendots-backend/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func init() {
	logger.IsTest = true
	gin.SetMode(gin.TestMode)
}

type stubProfiles struct{}

func (stubProfiles) CheckUsernameAvailable(context.Context, string) (bool, error) { return true, nil }
func (stubProfiles) GetProfile(_ context.Context, userID string) (*types.UserProfile, error) {
	return &types.UserProfile{UserID: userID, Username: "john_doe"}, nil
}
func (stubProfiles) HasCompletedOnboarding(context.Context, string) bool { return true }
func (stubProfiles) CreateProfile(context.Context, string, types.CreateProfileInput) (*types.ProfileResult, error) {
	return &types.ProfileResult{}, nil
}
func (stubProfiles) UpdateProfile(context.Context, string, types.ProfileUpdate) (*types.ProfileResult, error) {
	return &types.ProfileResult{}, nil
}

type stubAuth struct{}

func (stubAuth) SignInURL(string, string) (*types.OAuthStart, error) {
	return &types.OAuthStart{URL: "https://auth.test/authorize", Verifier: "v"}, nil
}
func (stubAuth) ExchangeCode(context.Context, string, string) (*types.Session, error) {
	return &types.Session{}, nil
}
func (stubAuth) RefreshSession(context.Context, string) (*types.Session, error) {
	return &types.Session{}, nil
}
func (stubAuth) RecordSignIn(context.Context, *types.Session, types.SignInMetadata) {}
func (stubAuth) SignOut(context.Context, string) error                            { return nil }

type stubImages struct{}

func (stubImages) Upload(context.Context, string, string, string, io.Reader, int64) (*types.UploadResult, error) {
	return &types.UploadResult{}, nil
}
func (stubImages) Get(context.Context, string) (*services.Image, error) {
	return &services.Image{Body: io.NopCloser(strings.NewReader("img")), ContentType: "image/png"}, nil
}

type stubStatus struct{}

func (stubStatus) Status(context.Context) (types.D1Status, error) {
	return types.D1Status{Status: types.D1StatusNotAvailable, Tables: []string{}}, nil
}

type stubHealth struct{}

func (stubHealth) CheckHealth(context.Context) types.HealthCheck {
	return types.HealthCheck{Status: types.HealthStatusUp}
}
func (stubHealth) Ready(context.Context) bool { return true }

// tokenValidator accepts any token as its own user id.
type tokenValidator struct{}

func (tokenValidator) Validate(token string) (string, error) { return token, nil }

func newTestEngine() *gin.Engine {
	cfg := &config.Config{Server: config.ServerConfig{
		Environment:    config.EnvDevelopment,
		AllowedOrigins: []string{"*"},
	}}
	reg := prometheus.NewRegistry()
	return SetupRouter(Dependencies{
		Config:          cfg,
		Session:         middleware.SessionOptions{Validator: tokenValidator{}, Onboarding: nil},
		AuthHandler:     handlers.NewAuthHandler(stubAuth{}, stubProfiles{}, &cfg.Server),
		ProfileHandler:  handlers.NewProfileHandler(stubProfiles{}),
		UploadHandler:   handlers.NewUploadHandler(stubImages{}),
		D1StatusHandler: handlers.NewD1StatusHandler(stubStatus{}),
		HealthHandler:   handlers.NewHealthHandler(stubHealth{}),
		HTTPMetrics:     metrics.NewHTTPMetrics(reg),
		Gatherer:        reg,
	})
}

func serve(r http.Handler, method, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter(t *testing.T) {
	r := newTestEngine()

	tests := []struct {
		name     string
		method   string
		target   string
		bearer   string
		status   int
		location string
	}{
		{"liveness", http.MethodGet, "/health/liveness", "", http.StatusOK, ""},
		{"readiness", http.MethodGet, "/health/readiness", "", http.StatusOK, ""},
		{"d1 status is public", http.MethodGet, "/api/d1-status", "", http.StatusOK, ""},
		{"profile requires a user", http.MethodGet, "/api/profile", "", http.StatusUnauthorized, ""},
		{"profile with bearer token", http.MethodGet, "/api/profile", "user-1", http.StatusOK, ""},
		{"protected page redirects anonymous users", http.MethodGet, "/protected", "", http.StatusFound, "/sign-in?next=%2Fprotected"},
		{"signout query clears the session", http.MethodGet, "/?signout=true", "user-1", http.StatusFound, "/sign-in"},
		{"sign-in starts oauth", http.MethodGet, "/auth/sign-in?provider=google", "", http.StatusFound, "https://auth.test/authorize"},
		{"images are public", http.MethodGet, "/images/user-1/a.png", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, tt.target, tt.bearer)
			assert.Equal(t, tt.status, w.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, w.Header().Get("Location"))
			}
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestEngine()
	serve(r, http.MethodGet, "/health/liveness", "")

	w := serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `http_requests_total{method="GET",route="/health/liveness",status="200"} 1`)
}
