package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ventureops/internal/service/announcement"
)

type AnnouncementHandler struct {
	announcements *announcement.Service
	logger        *zap.Logger
}

func NewAnnouncementHandler(announcements *announcement.Service, logger *zap.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{announcements: announcements, logger: logger}
}

// List handles GET /api/v1/announcements
func (h *AnnouncementHandler) List(c *gin.Context) {
	page, ok := parsePage(c, h.logger)
	if !ok {
		return
	}
	list, err := h.announcements.Active(c.Request.Context(), page)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Create handles POST /api/v1/announcements
func (h *AnnouncementHandler) Create(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	var req announcement.CreateRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	a, err := h.announcements.Publish(c.Request.Context(), p, req)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// Acknowledge handles POST /api/v1/announcements/:id/acknowledge
func (h *AnnouncementHandler) Acknowledge(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	ack, err := h.announcements.Acknowledge(c.Request.Context(), p, id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, ack)
}
