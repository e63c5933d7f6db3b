package middleware

import (
	stderrors "errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opendots/opendots-backend/errors"
	"github.com/opendots/opendots-backend/logger"
)

// ErrorResponse is the JSON body rendered for failed requests.
type ErrorResponse struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorHandler renders the last error attached with c.Error. Handlers that
// already wrote a response are left alone.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		err := last.Err

		var appError *errors.AppError
		if stderrors.As(err, &appError) {
			statusCode := appError.GetHTTPStatus()
			logger.LogHTTPError(c, err, statusCode, fmt.Sprintf("%s error", appError.Type))

			response := ErrorResponse{
				Type:    string(appError.Type),
				Message: appError.Message,
				Code:    strconv.Itoa(statusCode),
				Fields:  appError.Fields,
			}
			// Details of upstream and server failures stay in the logs.
			if appError.Detail != "" && (gin.IsDebugging() ||
				appError.Type == errors.ValidationError ||
				appError.Type == errors.NotFoundError ||
				appError.Type == errors.RateLimitError) {
				response.Details = appError.Detail
			}
			c.JSON(statusCode, response)
			return
		}

		switch last.Type {
		case gin.ErrorTypeBind:
			logger.LogHTTPError(c, err, 400, "Request binding error")
			response := ErrorResponse{
				Type:    string(errors.ValidationError),
				Message: "Failed to bind request",
				Code:    "400",
			}
			if gin.IsDebugging() {
				response.Details = err.Error()
			}
			c.JSON(400, response)
		case gin.ErrorTypePublic:
			logger.LogHTTPError(c, err, 400, "Public error")
			c.JSON(400, ErrorResponse{
				Type:    string(errors.ValidationError),
				Message: err.Error(),
				Code:    "400",
			})
		default:
			logger.LogHTTPError(c, err, 500, "Unexpected server error")
			response := ErrorResponse{
				Type:    string(errors.ServerError),
				Message: "Internal Server Error",
				Code:    "500",
			}
			if gin.IsDebugging() {
				response.Details = err.Error()
			}
			c.JSON(500, response)
		}
	}
}
