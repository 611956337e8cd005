package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ventureops/internal/model"
	"ventureops/internal/service/ledger"
	"ventureops/internal/service/task"
	"ventureops/pkg/rbac"
)

type TaskHandler struct {
	tasks  *task.Service
	ledger *ledger.Ledger
	logger *zap.Logger
}

func NewTaskHandler(tasks *task.Service, l *ledger.Ledger, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, ledger: l, logger: logger}
}

// createTaskRequest accepts assignee_ids and the older single assigned_to_id.
type createTaskRequest struct {
	model.TaskSpec
	AssigneeIDs  []int `json:"assignee_ids"`
	AssignedToID *int  `json:"assigned_to_id"`
}

// List handles GET /api/v1/tasks
func (h *TaskHandler) List(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	page, ok := parsePage(c, h.logger)
	if !ok {
		return
	}
	tasks, err := h.tasks.List(c.Request.Context(), p, page)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// Create handles POST /api/v1/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	var req createTaskRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	assignees := req.AssigneeIDs
	if req.AssignedToID != nil {
		assignees = append(assignees, *req.AssignedToID)
	}

	tasks, err := h.tasks.Create(c.Request.Context(), p, req.TaskSpec, assignees)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, tasks)
}

// Get handles GET /api/v1/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	t, err := h.tasks.Get(c.Request.Context(), p, id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Update handles PUT /api/v1/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	var patch model.TaskPatch
	if !bindJSON(c, h.logger, &patch) {
		return
	}
	t, err := h.tasks.Update(c.Request.Context(), p, id, patch)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// StartTimer handles POST /api/v1/tasks/:id/timer/start
func (h *TaskHandler) StartTimer(c *gin.Context) {
	h.timer(c, h.tasks.StartTimer)
}

// StopTimer handles POST /api/v1/tasks/:id/timer/stop
func (h *TaskHandler) StopTimer(c *gin.Context) {
	h.timer(c, h.tasks.StopTimer)
}

func (h *TaskHandler) timer(c *gin.Context, op func(ctx context.Context, p rbac.Principal, id int) (model.Task, error)) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	t, err := op(c.Request.Context(), p, id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// TimeLogs handles GET /api/v1/tasks/:id/time-logs
func (h *TaskHandler) TimeLogs(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	logs, err := h.ledger.ForTask(c.Request.Context(), p, id)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// Activity handles GET /api/v1/tasks/:id/activity
func (h *TaskHandler) Activity(c *gin.Context) {
	p, ok := mustPrincipal(c, h.logger)
	if !ok {
		return
	}
	id, ok := pathID(c, h.logger)
	if !ok {
		return
	}
	page, ok := parsePage(c, h.logger)
	if !ok {
		return
	}
	entries, err := h.tasks.Activity(c.Request.Context(), p, id, page)
	if err != nil {
		RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
