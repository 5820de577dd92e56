package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/middleware"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/service"
	"go.uber.org/zap"
)

type MessageHandler struct {
	messages *service.MessageService
	logger   *zap.Logger
}

func NewMessageHandler(messages *service.MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

type createMessageRequest struct {
	ReceiverID  int64              `json:"receiver_id" binding:"required"`
	ContentType models.ContentType `json:"content_type"`
	Content     string             `json:"content"`
	MediaURL    string             `json:"media_url"`
	Metadata    map[string]any     `json:"metadata"`
}

// Create handles POST /v1/messages. The sender is always the caller.
func (h *MessageHandler) Create(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.messages.Append(c.Request.Context(), service.AppendParams{
		SenderID:    middleware.GetUserID(c),
		ReceiverID:  req.ReceiverID,
		ContentType: req.ContentType,
		Content:     req.Content,
		MediaURL:    req.MediaURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		respondError(c, h.logger, "create message", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Conversation handles GET /v1/messages/:userA/:userB
//
// Returns the whole thread oldest first. Fetching it counts as delivery for
// the caller's inbound messages.
func (h *MessageHandler) Conversation(c *gin.Context) {
	a, b, ok := h.pair(c)
	if !ok {
		return
	}

	msgs, err := h.messages.Conversation(c.Request.Context(), a, b)
	if err != nil {
		respondError(c, h.logger, "load conversation", err)
		return
	}
	h.messages.AcknowledgeDelivery(c.Request.Context(), middleware.GetUserID(c), msgs)

	c.JSON(http.StatusOK, msgs)
}

// MarkRead handles PUT /v1/messages/read/:sender/:receiver. Only the
// receiver can mark messages read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	sender, ok := paramID(c, "sender")
	if !ok {
		return
	}
	receiver, ok := paramID(c, "receiver")
	if !ok {
		return
	}
	if receiver != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the receiver can mark messages read"})
		return
	}

	n, err := h.messages.MarkRead(c.Request.Context(), sender, receiver)
	if err != nil {
		respondError(c, h.logger, "mark read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// MarkDelivered handles PUT /v1/messages/delivered/:id. Unknown ids are a
// no-op.
func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.messages.MarkDeliveredAs(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, h.logger, "mark delivered", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteConversation handles DELETE /v1/messages/:userA/:userB
func (h *MessageHandler) DeleteConversation(c *gin.Context) {
	a, b, ok := h.pair(c)
	if !ok {
		return
	}

	n, err := h.messages.DeleteConversation(c.Request.Context(), a, b)
	if err != nil {
		respondError(c, h.logger, "clear conversation", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// pair reads :userA and :userB and checks the caller may see that thread:
// participants always, admins for any pair.
func (h *MessageHandler) pair(c *gin.Context) (int64, int64, bool) {
	a, ok := paramID(c, "userA")
	if !ok {
		return 0, 0, false
	}
	b, ok := paramID(c, "userB")
	if !ok {
		return 0, 0, false
	}
	caller := middleware.GetUserID(c)
	if caller != a && caller != b && !middleware.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this conversation"})
		return 0, 0, false
	}
	return a, b, true
}
