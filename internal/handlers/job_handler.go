package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/queue"
	"github.com/referralhub/backend/internal/security/audit"
)

// JobHandler exposes the notification outbox to operators
type JobHandler struct {
	queue *queue.Queue
	audit *audit.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(q *queue.Queue, logger *audit.Logger) *JobHandler {
	return &JobHandler{queue: q, audit: logger}
}

// List returns a page of outbox jobs
func (h *JobHandler) List(c *gin.Context) {
	p := getPagination(c)

	jobs, total, err := h.queue.List(c.Request.Context(), queue.Filter{
		Status: queue.JobStatus(c.Query("status")),
		Type:   queue.JobType(c.Query("type")),
		Limit:  p.PageSize,
		Offset: p.Offset(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondPage(c, p, jobs, total)
}

// Retry runs a failed job again. The returned job shows whether it succeeded.
func (h *JobHandler) Retry(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	job, err := h.queue.Retry(c.Request.Context(), id.String())
	if err != nil {
		respondError(c, err)
		return
	}

	if _, err := h.audit.Record(nil, audit.Entry{
		AdminID:    actor(c),
		Action:     audit.ActionRetryJob,
		EntityID:   job.ID,
		EntityType: audit.EntityJob,
		Details:    fmt.Sprintf("Retried %s job, now %s", job.Type, job.Status),
	}); err != nil {
		respondError(c, errutil.Internal("failed to write audit log", err))
		return
	}

	c.JSON(http.StatusOK, job)
}
