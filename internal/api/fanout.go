package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/middleware"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/service"
	"go.uber.org/zap"
)

// FanoutHandler serves the admin-only one-to-many endpoints.
type FanoutHandler struct {
	fanout *service.FanoutService
	logger *zap.Logger
}

func NewFanoutHandler(fanout *service.FanoutService, logger *zap.Logger) *FanoutHandler {
	return &FanoutHandler{fanout: fanout, logger: logger}
}

type broadcastRequest struct {
	ContentType models.ContentType `json:"content_type"`
	Content     string             `json:"content"`
	MediaURL    string             `json:"media_url"`
}

// Broadcast handles POST /v1/broadcast. The response carries how many hosts
// actually got the message, which may be fewer than exist.
func (h *FanoutHandler) Broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	n, err := h.fanout.Broadcast(c.Request.Context(), service.BroadcastParams{
		SenderID:    middleware.GetUserID(c),
		ContentType: req.ContentType,
		Content:     req.Content,
		MediaURL:    req.MediaURL,
	})
	if err != nil {
		respondError(c, h.logger, "broadcast", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sent": n})
}

type financialRequest struct {
	RecipientID *int64 `json:"recipient_id"`
	Title       string `json:"title" binding:"required"`
	Content     string `json:"content"`
	// Amount is a number or a numeric string.
	Amount   any    `json:"amount" binding:"required"`
	MediaURL string `json:"media_url"`
}

// SendFinancial handles POST /v1/financial-notifications. Without
// recipient_id the notice goes to every host.
func (h *FanoutHandler) SendFinancial(c *gin.Context) {
	var req financialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	amount, ok := service.ParseAmount(req.Amount)
	if !ok {
		badRequest(c, "amount must be a number")
		return
	}

	n, err := h.fanout.SendFinancial(c.Request.Context(), service.FinancialParams{
		SenderID:    middleware.GetUserID(c),
		RecipientID: req.RecipientID,
		Title:       req.Title,
		Content:     req.Content,
		Amount:      amount,
		MediaURL:    req.MediaURL,
	})
	if err != nil {
		respondError(c, h.logger, "send financial notice", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sent": n})
}
