package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lennartp/chatstore/internal/middleware"
	"github.com/lennartp/chatstore/internal/models"
	"github.com/lennartp/chatstore/internal/store"
	"go.uber.org/zap"
)

// ConversationHandler exposes the conversation and message operations for
// the authenticated caller. Identity never comes from the request body;
// the middleware-extracted email is the sender on every write.
type ConversationHandler struct {
	convs  *store.ConversationStore
	logger *zap.Logger
}

func NewConversationHandler(convs *store.ConversationStore, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{convs: convs, logger: logger}
}

// messagePayload is the wire shape of an outgoing message. Exactly one of
// text, media_url or the coordinate pair is meaningful, selected by type.
type messagePayload struct {
	ID        string  `json:"id" binding:"required"`
	Type      string  `json:"type" binding:"required"`
	Text      string  `json:"text"`
	MediaURL  string  `json:"media_url"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	SentAt    string  `json:"sent_at"`
}

func (p messagePayload) toDraft() (models.Draft, error) {
	d := models.Draft{
		ID:        p.ID,
		Kind:      models.Kind(p.Type),
		Text:      p.Text,
		MediaURL:  p.MediaURL,
		Longitude: p.Longitude,
		Latitude:  p.Latitude,
	}
	if p.SentAt != "" {
		sentAt, err := time.Parse(time.RFC3339, p.SentAt)
		if err != nil {
			return models.Draft{}, err
		}
		d.SentAt = sentAt
	}
	return d, nil
}

type createConversationRequest struct {
	OtherUserEmail string         `json:"other_user_email" binding:"required,email"`
	Name           string         `json:"name" binding:"required"`
	Message        messagePayload `json:"message" binding:"required"`
}

type appendMessageRequest struct {
	OtherUserEmail string         `json:"other_user_email" binding:"required,email"`
	Name           string         `json:"name" binding:"required"`
	Message        messagePayload `json:"message" binding:"required"`
}

// Create handles POST /v1/conversations. If a conversation between the two
// users already exists it is reused: the message is appended to it instead
// of creating a duplicate thread.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draft, err := req.Message.toDraft()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sent_at, want RFC 3339"})
		return
	}
	caller := middleware.GetEmail(c)
	ctx := c.Request.Context()

	if id, err := h.convs.ConversationExists(ctx, caller, req.OtherUserEmail); err == nil {
		if err := h.convs.AppendMessage(ctx, id, caller, req.OtherUserEmail, req.Name, draft); err != nil {
			h.logger.Error("failed to append to existing conversation",
				zap.String("conversation_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "reused": true})
		return
	}

	id, err := h.convs.CreateConversation(ctx, caller, req.OtherUserEmail, req.Name, draft)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}
	if err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create conversation"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "reused": false})
}

// List handles GET /v1/conversations. A user with no conversations yet
// gets an empty list, not an error.
func (h *ConversationHandler) List(c *gin.Context) {
	sums, err := h.convs.ListConversations(c.Request.Context(), middleware.GetEmail(c))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"conversations": []models.ConversationSummary{}})
		return
	}
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": sums})
}

// Delete handles DELETE /v1/conversations/:id. Only the caller's own
// summary entry is removed; the other participant keeps the thread.
func (h *ConversationHandler) Delete(c *gin.Context) {
	err := h.convs.DeleteConversation(c.Request.Context(), middleware.GetEmail(c), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete conversation",
			zap.String("conversation_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete conversation"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Messages handles GET /v1/conversations/:id/messages.
func (h *ConversationHandler) Messages(c *gin.Context) {
	msgs, err := h.convs.ListMessages(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to list messages",
			zap.String("conversation_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Append handles POST /v1/conversations/:id/messages.
func (h *ConversationHandler) Append(c *gin.Context) {
	var req appendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draft, err := req.Message.toDraft()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sent_at, want RFC 3339"})
		return
	}

	err = h.convs.AppendMessage(c.Request.Context(), c.Param("id"), middleware.GetEmail(c), req.OtherUserEmail, req.Name, draft)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to append message",
			zap.String("conversation_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}
	c.Status(http.StatusCreated)
}
