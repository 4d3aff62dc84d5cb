package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/services/workflow"
	"gorm.io/gorm"
)

// SubmissionHandler handles task submission review
type SubmissionHandler struct {
	db     *gorm.DB
	engine *workflow.Engine
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(db *gorm.DB, engine *workflow.Engine) *SubmissionHandler {
	return &SubmissionHandler{db: db, engine: engine}
}

// CreateSubmissionRequest files a submission on behalf of a user
type CreateSubmissionRequest struct {
	UserID   uuid.UUID `json:"user_id" binding:"required"`
	TaskID   uuid.UUID `json:"task_id" binding:"required"`
	ProofURL string    `json:"proof_url" binding:"omitempty,url"`
}

// DecisionRequest approves or rejects a submission
type DecisionRequest struct {
	Decision models.SubmissionStatus `json:"decision" binding:"required"`
	Reason   string                  `json:"reason"`
}

// List returns a page of submissions, optionally filtered by status and user
func (h *SubmissionHandler) List(c *gin.Context) {
	p := getPagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.TaskSubmission{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if userID := c.Query("user_id"); userID != "" {
		id, err := uuid.Parse(userID)
		if err != nil {
			respondError(c, errutil.InvalidArgument("invalid user_id"))
			return
		}
		query = query.Where("user_id = ?", id)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		respondError(c, errutil.Internal("failed to count submissions", err))
		return
	}

	var submissions []models.TaskSubmission
	if err := query.Preload("User").Preload("Task").
		Order("created_at DESC").
		Offset(p.Offset()).Limit(p.PageSize).
		Find(&submissions).Error; err != nil {
		respondError(c, errutil.Internal("failed to list submissions", err))
		return
	}

	respondPage(c, p, submissions, total)
}

// Create files a new pending submission
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	submission, err := h.engine.SubmitTask(c.Request.Context(), req.UserID, req.TaskID, req.ProofURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, submission)
}

// Decide approves or rejects a pending submission
func (h *SubmissionHandler) Decide(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.engine.ProcessSubmission(c.Request.Context(), actor(c), id, req.Decision, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
