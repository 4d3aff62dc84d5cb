package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/security/audit"
)

// AuditHandler serves the read-only audit trail
type AuditHandler struct {
	logger *audit.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(logger *audit.Logger) *AuditHandler {
	return &AuditHandler{logger: logger}
}

func parseTimeQuery(c *gin.Context, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errutil.InvalidArgument("%s must be an RFC3339 timestamp", name)
	}
	return &t, nil
}

// List returns a page of audit log entries, newest first
func (h *AuditHandler) List(c *gin.Context) {
	p := getPagination(c)

	filter := audit.Filter{
		Action:     audit.Action(c.Query("action")),
		EntityType: audit.EntityType(c.Query("entity_type")),
		EntityID:   c.Query("entity_id"),
		Limit:      p.PageSize,
		Offset:     p.Offset(),
	}

	if adminID := c.Query("admin_id"); adminID != "" {
		id, err := uuid.Parse(adminID)
		if err != nil {
			respondError(c, errutil.InvalidArgument("invalid admin_id"))
			return
		}
		filter.AdminID = &id
	}

	var err error
	if filter.Since, err = parseTimeQuery(c, "since"); err != nil {
		respondError(c, err)
		return
	}
	if filter.Until, err = parseTimeQuery(c, "until"); err != nil {
		respondError(c, err)
		return
	}

	logs, total, err := h.logger.Query(c.Request.Context(), filter)
	if err != nil {
		respondError(c, errutil.Internal("failed to query audit logs", err))
		return
	}

	respondPage(c, p, logs, total)
}
