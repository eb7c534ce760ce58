package api

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lennartp/chatstore/internal/identity"
	"github.com/lennartp/chatstore/internal/media"
	"github.com/lennartp/chatstore/internal/middleware"
	"go.uber.org/zap"
)

// Attachment uploads are capped well above what mobile clients send for a
// single photo or short clip.
const maxUploadBytes = 32 << 20

// MediaHandler stores attachments and resolves storage keys to
// time-limited download URLs.
type MediaHandler struct {
	resolver media.Resolver
	logger   *zap.Logger
}

func NewMediaHandler(resolver media.Resolver, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{resolver: resolver, logger: logger}
}

// Upload handles POST /v1/media/:kind with a multipart "file" part. kind
// selects the key layout: "profile" keys off the caller's identity,
// "photo" and "video" key off the uploaded file name.
func (h *MediaHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart file field is required"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	// Strip any path components a hostile client put in the file name.
	fileName := path.Base(fileHeader.Filename)

	var key string
	switch c.Param("kind") {
	case "profile":
		key = media.ProfilePictureKey(identity.SafeEmail(middleware.GetEmail(c)))
	case "photo":
		key = media.MessagePhotoKey(fileName)
	case "video":
		key = media.MessageVideoKey(fileName)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be profile, photo or video"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := h.resolver.Upload(c.Request.Context(), key, contentType, data); err != nil {
		h.logger.Error("media upload failed", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	url, err := h.resolver.URL(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("media url resolve failed after upload", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"key": key, "url": url})
}

// URL handles GET /v1/media/url?key=<storage key>. Only keys under the
// known prefixes resolve; anything else is rejected before touching
// storage.
func (h *MediaHandler) URL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key query parameter is required"})
		return
	}
	if !validMediaKey(key) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown key prefix"})
		return
	}

	url, err := h.resolver.URL(c.Request.Context(), key)
	if errors.Is(err, media.ErrEmptyKey) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key query parameter is required"})
		return
	}
	if err != nil {
		h.logger.Error("media url resolve failed", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve url"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func validMediaKey(key string) bool {
	for _, prefix := range []string{"images/", "message_images/", "message_videos/"} {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			return rest != "" && !strings.Contains(rest, "/")
		}
	}
	return false
}
