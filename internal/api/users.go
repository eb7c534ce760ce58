package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lennartp/chatstore/internal/models"
	"github.com/lennartp/chatstore/internal/store"
	"go.uber.org/zap"
)

// UserHandler serves the flat user directory backing client-side search.
type UserHandler struct {
	directory *store.Directory
	logger    *zap.Logger
}

func NewUserHandler(directory *store.Directory, logger *zap.Logger) *UserHandler {
	return &UserHandler{directory: directory, logger: logger}
}

// List handles GET /v1/users. The whole directory is returned; clients
// filter locally by name prefix.
func (h *UserHandler) List(c *gin.Context) {
	entries, err := h.directory.ListAllUsers(c.Request.Context())
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"users": []models.DirectoryEntry{}})
		return
	}
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": entries})
}

// Exists handles GET /v1/users/exists?email=<addr>.
func (h *UserHandler) Exists(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter is required"})
		return
	}
	exists, err := h.directory.UserExists(c.Request.Context(), email)
	if err != nil {
		h.logger.Error("failed to check user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}
