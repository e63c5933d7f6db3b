package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opendots/opendots-backend/logger"
)

type D1StatusHandler struct {
	status D1StatusInterface
}

func NewD1StatusHandler(status D1StatusInterface) *D1StatusHandler {
	return &D1StatusHandler{status: status}
}

// GetStatus godoc
// @Summary Report the D1 secondary store status
// @Tags diagnostics
// @Produce json
// @Success 200 {object} types.D1Status
// @Failure 500 {object} types.D1Status
// @Router /api/d1-status [get]
func (h *D1StatusHandler) GetStatus(c *gin.Context) {
	status, err := h.status.Status(c.Request.Context())
	if err != nil {
		logger.GetLogger().Errorw("D1 status check failed", "error", err)
		c.JSON(http.StatusInternalServerError, status)
		return
	}
	c.JSON(http.StatusOK, status)
}
