package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opendots/opendots-backend/errors"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/middleware"
	"github.com/opendots/opendots-backend/types"
)

// ProfileHandler serves the onboarding profile API.
type ProfileHandler struct {
	profiles ProfileServiceInterface
}

func NewProfileHandler(profiles ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// UsernameAvailableHandler godoc
// @Summary Check username availability
// @Description Checks the secondary store first; a "taken" answer there is final
// @Tags profile
// @Produce json
// @Param username query string true "Username to check"
// @Success 200 {object} map[string]bool "available"
// @Failure 400 {object} middleware.ErrorResponse "Invalid username"
// @Failure 502 {object} middleware.ErrorResponse "Profile stores unavailable"
// @Router /api/profile/username-available [get]
func (h *ProfileHandler) UsernameAvailableHandler(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if !ValidUsername(username) {
		_ = c.Error(errors.ValidationFailed("Invalid username", "username "+usernameRule))
		return
	}

	available, err := h.profiles.CheckUsernameAvailable(c.Request.Context(), username)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}

// GetProfileHandler godoc
// @Summary Get the current user's profile
// @Tags profile
// @Produce json
// @Success 200 {object} types.UserProfile
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Failure 404 {object} middleware.ErrorResponse "Profile not found"
// @Router /api/profile [get]
// @Security BearerAuth
func (h *ProfileHandler) GetProfileHandler(c *gin.Context) {
	userID := middleware.UserID(c)

	profile, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if profile == nil {
		_ = c.Error(errors.NotFound("profile", userID))
		return
	}
	c.JSON(http.StatusOK, profile)
}

// OnboardingStatusHandler godoc
// @Summary Report whether onboarding is complete
// @Tags profile
// @Produce json
// @Success 200 {object} map[string]bool "completed"
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Router /api/profile/onboarding [get]
// @Security BearerAuth
func (h *ProfileHandler) OnboardingStatusHandler(c *gin.Context) {
	completed := h.profiles.HasCompletedOnboarding(c.Request.Context(), middleware.UserID(c))
	c.JSON(http.StatusOK, gin.H{"completed": completed})
}

// CreateProfileHandler godoc
// @Summary Complete onboarding
// @Description Creates the profile in both stores. A warning is returned when only D1 accepted it.
// @Tags profile
// @Accept json
// @Produce json
// @Param profile body types.CreateProfileInput true "Onboarding form"
// @Success 201 {object} types.ProfileResult
// @Failure 400 {object} middleware.ErrorResponse "Invalid input or username taken"
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Failure 409 {object} middleware.ErrorResponse "Onboarding already completed"
// @Failure 502 {object} middleware.ErrorResponse "Profile stores unavailable"
// @Router /api/profile [post]
// @Security BearerAuth
func (h *ProfileHandler) CreateProfileHandler(c *gin.Context) {
	var input types.CreateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		_ = c.Error(FormatValidationErrors(err))
		return
	}
	input.Username = strings.TrimSpace(input.Username)
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	userID := middleware.UserID(c)
	result, err := h.profiles.CreateProfile(c.Request.Context(), userID, input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if result.Warning != "" {
		logger.GetLogger().Warnw("Profile created with warning", "user_id", userID, "warning", result.Warning)
	}
	c.JSON(http.StatusCreated, result)
}

// UpdateProfileHandler godoc
// @Summary Update the current user's profile
// @Description Username cannot be changed. A warning is returned when only D1 accepted the update.
// @Tags profile
// @Accept json
// @Produce json
// @Param profile body types.ProfileUpdate true "Mutable profile fields"
// @Success 200 {object} types.ProfileResult
// @Failure 400 {object} middleware.ErrorResponse "Invalid input"
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Failure 404 {object} middleware.ErrorResponse "Profile not found"
// @Failure 502 {object} middleware.ErrorResponse "Profile stores unavailable"
// @Router /api/profile [put]
// @Security BearerAuth
func (h *ProfileHandler) UpdateProfileHandler(c *gin.Context) {
	var update types.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		_ = c.Error(FormatValidationErrors(err))
		return
	}
	update.DisplayName = strings.TrimSpace(update.DisplayName)

	userID := middleware.UserID(c)
	result, err := h.profiles.UpdateProfile(c.Request.Context(), userID, update)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if result.Warning != "" {
		logger.GetLogger().Warnw("Profile updated with warning", "user_id", userID, "warning", result.Warning)
	}
	c.JSON(http.StatusOK, result)
}
