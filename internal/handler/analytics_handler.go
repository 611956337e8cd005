package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ventureops/internal/service/analytics"
)

type AnalyticsHandler struct {
	analytics *analytics.Service
	logger    *zap.Logger
}

func NewAnalyticsHandler(a *analytics.Service, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: a, logger: logger}
}

// Dashboard handles GET /api/v1/analytics/dashboard
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	report, err := h.analytics.Dashboard(c.Request.Context(), p)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
