package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/opendots/opendots-backend/logger"
)

// Gin context keys set by the session middleware.
const (
	// UserIDKey holds the authenticated user's id (string).
	UserIDKey = logger.UserIDKey
	// RequestIDKey holds the request id (string).
	RequestIDKey = logger.RequestIDKey
	// D1AvailableKey holds whether the secondary store is enabled (bool).
	D1AvailableKey = "d1_available"
)

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
