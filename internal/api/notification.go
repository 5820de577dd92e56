package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/middleware"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/service"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *zap.Logger
}

func NewNotificationHandler(notifications *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// List handles GET /v1/notifications. Callers only ever see their own.
func (h *NotificationHandler) List(c *gin.Context) {
	feed, err := h.notifications.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, "list notifications", err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

type createNotificationRequest struct {
	UserID   int64                   `json:"user_id" binding:"required"`
	Title    string                  `json:"title" binding:"required"`
	Content  string                  `json:"content"`
	Type     models.NotificationType `json:"type"`
	Metadata map[string]any          `json:"metadata"`
}

// Create handles POST /v1/notifications (admin only).
func (h *NotificationHandler) Create(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	n, err := h.notifications.Create(c.Request.Context(), models.NewNotification{
		UserID:   req.UserID,
		Title:    req.Title,
		Content:  req.Content,
		Type:     req.Type,
		Metadata: req.Metadata,
	})
	if err != nil {
		respondError(c, h.logger, "create notification", err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// MarkRead handles PUT /v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, h.logger, "mark notification read", err)
		return
	}
	c.Status(http.StatusNoContent)
}
