package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/store"
)

// ServeImageHandler godoc
// @Summary Serve a stored image
// @Description Streams an image from R2 with long-lived cache headers. Width and height are passed through as resize hints for the CDN.
// @Tags images
// @Produce image/jpeg,image/png,image/gif,image/webp,image/heic
// @Param userId path string true "Owner user ID"
// @Param imageName path string true "Object name"
// @Param width query int false "Resize hint"
// @Param height query int false "Resize hint"
// @Success 200 {file} binary
// @Success 304 "Not modified"
// @Failure 404 {string} string "Image not found"
// @Router /images/{userId}/{imageName} [get]
func (h *UploadHandler) ServeImageHandler(c *gin.Context) {
	key := c.Param("userId") + "/" + c.Param("imageName")

	img, err := h.images.Get(c.Request.Context(), key)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			c.String(http.StatusNotFound, "Image not found")
			return
		}
		logger.GetLogger().Errorw("Failed to read image from R2", "key", key, "error", err)
		c.String(http.StatusInternalServerError, "Error serving image")
		return
	}
	defer img.Body.Close()

	c.Header("Cache-Control", "public, max-age=31536000")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Cross-Origin-Resource-Policy", "cross-origin")
	if img.ETag != "" {
		c.Header("ETag", img.ETag)
		if match := c.GetHeader("If-None-Match"); match != "" && match == img.ETag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	length := img.ContentLength
	if length <= 0 {
		length = -1
	}
	c.DataFromReader(http.StatusOK, length, img.ContentType, img.Body, nil)
}
