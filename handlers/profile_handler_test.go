package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/opendots/opendots-backend/errors"
	"github.com/opendots/opendots-backend/middleware"
	"github.com/opendots/opendots-backend/services"
	"github.com/opendots/opendots-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func profileRouter(svc *MockProfileService, userID string) http.Handler {
	h := NewProfileHandler(svc)
	r := newTestRouter(userID)
	api := r.Group("/api", middleware.RequireUser())
	api.GET("/profile/username-available", h.UsernameAvailableHandler)
	api.GET("/profile", h.GetProfileHandler)
	api.GET("/profile/onboarding", h.OnboardingStatusHandler)
	api.POST("/profile", h.CreateProfileHandler)
	api.PUT("/profile", h.UpdateProfileHandler)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var body middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func testProfile() *types.UserProfile {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	age := 28
	return &types.UserProfile{
		ID:          "11111111-2222-3333-4444-555555555555",
		UserID:      "user-1",
		Username:    "john_doe",
		DisplayName: "John",
		Age:         &age,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestUsernameAvailableHandler(t *testing.T) {
	svc := new(MockProfileService)
	svc.On("CheckUsernameAvailable", mock.Anything, "john_doe").Return(false, nil)
	svc.On("CheckUsernameAvailable", mock.Anything, "free_name").Return(true, nil)
	r := profileRouter(svc, "user-1")

	w := doJSON(t, r, http.MethodGet, "/api/profile/username-available?username=john_doe", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"available":false}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/profile/username-available?username=free_name", nil)
	assert.JSONEq(t, `{"available":true}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/api/profile/username-available?username=a!", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "CheckUsernameAvailable", 2)
}

func TestGetProfileHandler(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockProfileService)
		svc.On("GetProfile", mock.Anything, "user-1").Return(testProfile(), nil)

		w := doJSON(t, profileRouter(svc, "user-1"), http.MethodGet, "/api/profile", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got types.UserProfile
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "john_doe", got.Username)
	})

	t.Run("absent in both stores", func(t *testing.T) {
		svc := new(MockProfileService)
		svc.On("GetProfile", mock.Anything, "user-1").Return(nil, nil)

		w := doJSON(t, profileRouter(svc, "user-1"), http.MethodGet, "/api/profile", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", decodeError(t, w).Type)
	})

	t.Run("upstream failure", func(t *testing.T) {
		svc := new(MockProfileService)
		svc.On("GetProfile", mock.Anything, "user-1").
			Return(nil, apperrors.Upstream(errors.New("pool closed"), "Failed to load profile"))

		w := doJSON(t, profileRouter(svc, "user-1"), http.MethodGet, "/api/profile", nil)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "Failed to load profile", body.Message)
		assert.NotContains(t, w.Body.String(), "pool closed")
	})

	t.Run("anonymous", func(t *testing.T) {
		svc := new(MockProfileService)
		w := doJSON(t, profileRouter(svc, ""), http.MethodGet, "/api/profile", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
	})
}

func TestOnboardingStatusHandler(t *testing.T) {
	svc := new(MockProfileService)
	svc.On("HasCompletedOnboarding", mock.Anything, "user-1").Return(true)

	w := doJSON(t, profileRouter(svc, "user-1"), http.MethodGet, "/api/profile/onboarding", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"completed":true}`, w.Body.String())
}

func TestCreateProfileHandler(t *testing.T) {
	age := 28
	input := types.CreateProfileInput{Username: "john_doe", DisplayName: "John", Age: &age}

	t.Run("created in both stores", func(t *testing.T) {
		svc := new(MockProfileService)
		svc.On("CreateProfile", mock.Anything, "user-1", input).
			Return(&types.ProfileResult{Profile: testProfile()}, nil)

		w := doJSON(t, profileRouter(svc, "user-1"), http.MethodPost, "/api/profile", input)
		require.Equal(t, http.StatusCreated, w.Code)
		var got map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Contains(t, got, "data")
		assert.NotContains(t, got, "warning")
	})

	t.Run("created in D1 only", func(t *testing.T) {
		svc := new(MockProfileService)
		svc.On("CreateProfile", mock.Anything, "user-1", input).Return(&types.ProfileResult{
			Profile: testProfile(),
			Warning: services.WarningCreatedSecondaryOnly,
		}, nil)

		w := doJSON(t, profileRouter(svc, "user-1"), http.MethodPost, "/api/profile", input)
		require.Equal(t, http.StatusCreated, w.Code)
		var got types.ProfileResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "Profile created in D1 only, Supabase sync failed", got.Warning)
		assert.Equal(t, "john_doe", got.Profile.Username)
	})

	t.Run("already onboarded", func(t *testing.T) {
		svc := new(MockProfileService)
		svc.On("CreateProfile", mock.Anything, "user-1", input).
			Return(nil, apperrors.Conflict("Onboarding already completed", ""))

		w := doJSON(t, profileRouter(svc, "user-1"), http.MethodPost, "/api/profile", input)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "Onboarding already completed", decodeError(t, w).Message)
	})

	t.Run("invalid fields are reported by JSON name", func(t *testing.T) {
		svc := new(MockProfileService)
		tooYoung := 9
		bad := types.CreateProfileInput{Username: "x", DisplayName: "", Age: &tooYoung}

		w := doJSON(t, profileRouter(svc, "user-1"), http.MethodPost, "/api/profile", bad)
		require.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, usernameRule, body.Fields["username"])
		assert.Equal(t, "is required", body.Fields["display_name"])
		assert.Equal(t, "must be at least 13", body.Fields["age"])
		svc.AssertNotCalled(t, "CreateProfile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		svc := new(MockProfileService)
		req := httptest.NewRequest(http.MethodPost, "/api/profile", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		profileRouter(svc, "user-1").ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateProfileHandler(t *testing.T) {
	t.Run("username in payload is ignored", func(t *testing.T) {
		svc := new(MockProfileService)
		want := types.ProfileUpdate{DisplayName: "Johnny"}
		svc.On("UpdateProfile", mock.Anything, "user-1", want).
			Return(&types.ProfileResult{Profile: testProfile()}, nil)

		w := doJSON(t, profileRouter(svc, "user-1"), http.MethodPut, "/api/profile",
			map[string]any{"display_name": " Johnny ", "username": "hijacked"})
		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockProfileService)
		svc.On("UpdateProfile", mock.Anything, "user-1", mock.Anything).
			Return(nil, apperrors.NotFound("profile", "user-1"))

		w := doJSON(t, profileRouter(svc, "user-1"), http.MethodPut, "/api/profile",
			types.ProfileUpdate{DisplayName: "Johnny"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("updated in D1 only", func(t *testing.T) {
		svc := new(MockProfileService)
		svc.On("UpdateProfile", mock.Anything, "user-1", mock.Anything).Return(&types.ProfileResult{
			Profile: testProfile(),
			Warning: services.WarningUpdatedSecondaryOnly,
		}, nil)

		w := doJSON(t, profileRouter(svc, "user-1"), http.MethodPut, "/api/profile",
			types.ProfileUpdate{DisplayName: "Johnny"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), services.WarningUpdatedSecondaryOnly)
	})
}
