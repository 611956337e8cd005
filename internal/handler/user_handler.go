package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/service/user"
)

type UserHandler struct {
	users  *user.Service
	logger *zap.Logger
}

func NewUserHandler(users *user.Service, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// List handles GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	page, ok := parsePage(c, h.logger)
	if !ok {
		return
	}
	users, err := h.users.List(c.Request.Context(), p, page)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Me handles GET /api/v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	u, err := h.users.Me(c.Request.Context(), p)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Get handles GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	u, err := h.users.Get(c.Request.Context(), p, id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// Create handles POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	var req user.CreateRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	u, err := h.users.Create(c.Request.Context(), p, req)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// Update handles PUT /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	var patch model.UserPatch
	if !bindJSON(c, h.logger, &patch) {
		return
	}
	u, err := h.users.Update(c.Request.Context(), p, id, patch)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
