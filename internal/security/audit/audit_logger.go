package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Action is the tag recorded for an administrative action
type Action string

const (
	ActionApproveSubmission Action = "APPROVE_SUBMISSION"
	ActionRejectSubmission  Action = "REJECT_SUBMISSION"
	ActionApprovePayout     Action = "APPROVE_PAYOUT"
	ActionRejectPayout      Action = "REJECT_PAYOUT"
	ActionCompletePayout    Action = "COMPLETE_PAYOUT"
	ActionCreateTask        Action = "CREATE_TASK"
	ActionUpdateTask        Action = "UPDATE_TASK"
	ActionArchiveTask       Action = "ARCHIVE_TASK"
	ActionResendCertificate Action = "RESEND_CERTIFICATE"
	ActionRetryJob          Action = "RETRY_JOB"
	ActionEnableTOTP        Action = "ENABLE_TOTP"
)

// EntityType names the kind of record an action targeted
type EntityType string

const (
	EntityTaskSubmission EntityType = "TaskSubmission"
	EntityRedeemRequest  EntityType = "RedeemRequest"
	EntityTask           EntityType = "Task"
	EntityCertificate    EntityType = "Certificate"
	EntityJob            EntityType = "Job"
	EntityAdmin          EntityType = "Admin"
)

// AuditLog is an append-only record of an administrative action.
// AdminID is nil when the acting session could not be attributed.
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AdminID    *uuid.UUID `gorm:"type:uuid;index" json:"admin_id"`
	Action     Action     `gorm:"type:varchar(64);index;not null" json:"action"`
	EntityID   string     `gorm:"type:varchar(64);index;not null" json:"entity_id"`
	EntityType EntityType `gorm:"type:varchar(64);index;not null" json:"entity_type"`
	Details    string     `gorm:"type:text" json:"details"`
	Timestamp  time.Time  `gorm:"index;not null" json:"timestamp"`
}

// Entry describes an action to record
type Entry struct {
	AdminID    *uuid.UUID
	Action     Action
	EntityID   uuid.UUID
	EntityType EntityType
	Details    string
}

// Filter narrows audit log queries
type Filter struct {
	AdminID    *uuid.UUID
	Action     Action
	EntityType EntityType
	EntityID   string
	Since      *time.Time
	Until      *time.Time
	Limit      int
	Offset     int
}

// Logger writes and reads the audit trail. It exposes no update or delete.
type Logger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLogger creates a new audit logger
func NewLogger(db *gorm.DB) *Logger {
	return &Logger{
		db:  db,
		now: time.Now,
	}
}

// Record appends one audit row. Pass the workflow transaction as tx so the
// row commits or rolls back together with the change it describes; a nil tx
// writes through the logger's own handle.
func (l *Logger) Record(tx *gorm.DB, entry Entry) (*AuditLog, error) {
	if tx == nil {
		tx = l.db
	}

	row := AuditLog{
		ID:         uuid.New(),
		AdminID:    entry.AdminID,
		Action:     entry.Action,
		EntityID:   entry.EntityID.String(),
		EntityType: entry.EntityType,
		Details:    entry.Details,
		Timestamp:  l.now().UTC(),
	}

	if err := tx.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to create audit log: %w", err)
	}
	return &row, nil
}

// Query returns matching rows newest first, with the total match count
func (l *Logger) Query(ctx context.Context, filter Filter) ([]AuditLog, int64, error) {
	var logs []AuditLog
	var count int64

	query := l.db.WithContext(ctx).Model(&AuditLog{})

	if filter.AdminID != nil {
		query = query.Where("admin_id = ?", *filter.AdminID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Since != nil {
		query = query.Where("timestamp >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("timestamp <= ?", *filter.Until)
	}

	if err := query.Count(&count).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	if err := query.Order("timestamp DESC").Limit(limit).Offset(filter.Offset).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query audit logs: %w", err)
	}

	return logs, count, nil
}
