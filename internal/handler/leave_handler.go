package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/service/leave"
)

type LeaveHandler struct {
	leaves *leave.Service
	logger *zap.Logger
}

func NewLeaveHandler(leaves *leave.Service, logger *zap.Logger) *LeaveHandler {
	return &LeaveHandler{leaves: leaves, logger: logger}
}

// List handles GET /api/v1/leaves
func (h *LeaveHandler) List(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	page, ok := parsePage(c, h.logger)
	if !ok {
		return
	}
	leaves, err := h.leaves.List(c.Request.Context(), p, page)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, leaves)
}

// Apply handles POST /api/v1/leaves
func (h *LeaveHandler) Apply(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	var req leave.Request
	if !bindJSON(c, h.logger, &req) {
		return
	}
	l, err := h.leaves.Apply(c.Request.Context(), p, req)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

// Review handles PUT /api/v1/leaves/:id/status
func (h *LeaveHandler) Review(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	var req struct {
		Status model.LeaveStatus `json:"status"`
	}
	if !bindJSON(c, h.logger, &req) {
		return
	}
	l, err := h.leaves.Review(c.Request.Context(), p, id, req.Status)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// Holidays handles GET /api/v1/leaves/holidays
func (h *LeaveHandler) Holidays(c *gin.Context) {
	page, ok := parsePage(c, h.logger)
	if !ok {
		return
	}
	holidays, err := h.leaves.Holidays(c.Request.Context(), page)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, holidays)
}

// DeclareHoliday handles POST /api/v1/leaves/holidays
func (h *LeaveHandler) DeclareHoliday(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	var req leave.HolidayRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	holiday, err := h.leaves.DeclareHoliday(c.Request.Context(), p, req)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, holiday)
}
