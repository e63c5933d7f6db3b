package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/opendots/opendots-backend/errors"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/middleware"
)

// MaxImageSize is the largest accepted profile image.
const MaxImageSize = 10 * 1024 * 1024

var allowedImageMimes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// UploadHandler accepts profile images and serves them back from R2.
type UploadHandler struct {
	images ImageStoreInterface
}

func NewUploadHandler(images ImageStoreInterface) *UploadHandler {
	return &UploadHandler{images: images}
}

// UploadImageHandler godoc
// @Summary Upload a profile image
// @Description Multipart upload with a "file" field. The type is sniffed from the content.
// @Tags upload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image (jpeg, png, gif, webp or heic, up to 10MB)"
// @Success 200 {object} types.UploadResult
// @Failure 400 {object} middleware.ErrorResponse "Missing, oversized or unsupported file"
// @Failure 401 {object} middleware.ErrorResponse "Unauthorized"
// @Failure 502 {object} middleware.ErrorResponse "R2 unavailable"
// @Router /api/upload [post]
// @Security BearerAuth
func (h *UploadHandler) UploadImageHandler(c *gin.Context) {
	userID := middleware.UserID(c)

	// Leave room for multipart framing around the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxImageSize+1024*1024)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		_ = c.Error(errors.ValidationFailed("No file provided", "file field is required"))
		return
	}
	if fileHeader.Size > MaxImageSize {
		_ = c.Error(errors.ValidationFailed("File too large",
			fmt.Sprintf("file size %d exceeds maximum of %d bytes", fileHeader.Size, MaxImageSize)))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		_ = c.Error(errors.ValidationFailed("Invalid file", "failed to open uploaded file"))
		return
	}
	defer file.Close()

	sniffBuf := make([]byte, 512)
	n, err := io.ReadFull(file, sniffBuf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		_ = c.Error(fmt.Errorf("failed to read file header: %w", err))
		return
	}
	detected := mimetype.Detect(sniffBuf[:n]).String()
	if !allowedImageMimes[detected] {
		_ = c.Error(errors.ValidationFailed("Unsupported file type",
			fmt.Sprintf("MIME type %s is not allowed. Allowed: jpeg, png, gif, webp, heic", detected)))
		return
	}

	body := io.MultiReader(bytes.NewReader(sniffBuf[:n]), file)
	result, err := h.images.Upload(c.Request.Context(), userID, fileHeader.Filename, detected, body, fileHeader.Size)
	if err != nil {
		_ = c.Error(err)
		return
	}

	logger.GetLogger().Infow("Profile image uploaded", "user_id", userID, "key", result.Key, "mime", detected, "size", fileHeader.Size)
	c.JSON(http.StatusOK, result)
}
