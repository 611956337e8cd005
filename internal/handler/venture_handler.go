package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/service/venture"
)

type VentureHandler struct {
	ventures *venture.Service
	logger   *zap.Logger
}

func NewVentureHandler(ventures *venture.Service, logger *zap.Logger) *VentureHandler {
	return &VentureHandler{ventures: ventures, logger: logger}
}

// List handles GET /api/v1/ventures
func (h *VentureHandler) List(c *gin.Context) {
	page, ok := parsePage(c, h.logger)
	if !ok {
		return
	}
	ventures, err := h.ventures.List(c.Request.Context(), page)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ventures)
}

// Get handles GET /api/v1/ventures/:id
func (h *VentureHandler) Get(c *gin.Context) {
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	v, err := h.ventures.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Create handles POST /api/v1/ventures
func (h *VentureHandler) Create(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	var req venture.CreateRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	v, err := h.ventures.Create(c.Request.Context(), p, req)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// Update handles PUT /api/v1/ventures/:id
func (h *VentureHandler) Update(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	var patch model.VenturePatch
	if !bindJSON(c, h.logger, &patch) {
		return
	}
	v, err := h.ventures.Update(c.Request.Context(), p, id, patch)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
