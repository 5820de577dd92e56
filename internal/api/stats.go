package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/middleware"
	"github.com/lalith-99/hostchat/internal/service"
	"go.uber.org/zap"
)

type StatsHandler struct {
	stats  *service.StatsService
	logger *zap.Logger
}

func NewStatsHandler(stats *service.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// Dashboard handles GET /v1/stats (admin only).
func (h *StatsHandler) Dashboard(c *gin.Context) {
	st, err := h.stats.Dashboard(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, "load stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
