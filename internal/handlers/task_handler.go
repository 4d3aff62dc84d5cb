package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/services/task"
)

// TaskHandler handles task catalogue requests
type TaskHandler struct {
	tasks *task.Service
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks *task.Service) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// CreateTaskRequest represents the request body for a new task
type CreateTaskRequest struct {
	Title       string            `json:"title" binding:"required,max=255"`
	Description string            `json:"description"`
	Points      int64             `json:"points" binding:"required,gt=0"`
	Status      models.TaskStatus `json:"status" binding:"omitempty,oneof=ACTIVE INACTIVE ARCHIVED"`
}

// UpdateTaskRequest represents a partial task update
type UpdateTaskRequest struct {
	Title       *string            `json:"title" binding:"omitempty,max=255"`
	Description *string            `json:"description"`
	Points      *int64             `json:"points" binding:"omitempty,gt=0"`
	Status      *models.TaskStatus `json:"status" binding:"omitempty,oneof=ACTIVE INACTIVE ARCHIVED"`
}

// List returns a page of tasks
func (h *TaskHandler) List(c *gin.Context) {
	p := getPagination(c)

	tasks, total, err := h.tasks.List(c.Request.Context(), task.Filter{
		Status: models.TaskStatus(c.Query("status")),
		Search: c.Query("search"),
		Limit:  p.PageSize,
		Offset: p.Offset(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, p, tasks, total)
}

// Get returns one task
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	t, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

// Create adds a task
func (h *TaskHandler) Create(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	t, err := h.tasks.Create(c.Request.Context(), actor(c), task.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Points:      req.Points,
		Status:      req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

// Update changes a task
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	t, err := h.tasks.Update(c.Request.Context(), actor(c), id, task.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Points:      req.Points,
		Status:      req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

// Delete archives a task
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	t, err := h.tasks.Archive(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}
