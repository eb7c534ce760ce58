package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lennartp/chatstore/internal/middleware"
	"github.com/lennartp/chatstore/internal/store"
	"go.uber.org/zap"
)

// WSHandler streams live snapshots over WebSocket. Each connection carries
// one subscription; every change to the watched aggregate delivers the
// full refreshed snapshot as a JSON frame.
type WSHandler struct {
	convs    *store.ConversationStore
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWSHandler(convs *store.ConversationStore, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		convs: convs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers never talk to this API directly; tokens gate access.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Conversations handles GET /v1/ws/conversations: the caller's summary
// list, re-sent on every change.
func (h *WSHandler) Conversations(c *gin.Context) {
	sub, err := h.convs.WatchConversations(c.Request.Context(), middleware.GetEmail(c))
	if err != nil {
		h.logger.Error("failed to watch conversations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}
	defer sub.Cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}
	defer conn.Close()

	go func() {
		readUntilClosed(conn)
		sub.Cancel()
	}()

	for snap := range sub.C {
		if err := conn.WriteJSON(gin.H{"conversations": snap}); err != nil {
			return
		}
	}
}

// Messages handles GET /v1/ws/conversations/:id/messages: one
// conversation's log, re-sent on every change.
func (h *WSHandler) Messages(c *gin.Context) {
	sub, err := h.convs.WatchMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("failed to watch messages",
			zap.String("conversation_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}
	defer sub.Cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	go func() {
		readUntilClosed(conn)
		sub.Cancel()
	}()

	for snap := range sub.C {
		if err := conn.WriteJSON(gin.H{"messages": snap}); err != nil {
			return
		}
	}
}

// readUntilClosed drains incoming frames so close and ping control
// messages are processed; a read error means the peer is gone and the
// caller's subscription should be cancelled. The stream is one-way; data
// frames are ignored.
func readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
