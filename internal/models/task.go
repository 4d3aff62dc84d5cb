package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus controls whether a task is offered to users
type TaskStatus string

const (
	TaskStatusActive   TaskStatus = "ACTIVE"
	TaskStatusInactive TaskStatus = "INACTIVE"
	TaskStatusArchived TaskStatus = "ARCHIVED"
)

// Valid reports whether s is a known task status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusActive, TaskStatusInactive, TaskStatusArchived:
		return true
	}
	return false
}

// Task is a rewarded activity users can complete
type Task struct {
	Base
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Slug        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"slug"`
	Description string     `gorm:"type:text" json:"description"`
	Points      int64      `gorm:"not null" json:"points"`
	Status      TaskStatus `gorm:"type:varchar(20);not null;index" json:"status"`
}

// SubmissionStatus is the review state of a task submission
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "PENDING"
	SubmissionApproved SubmissionStatus = "APPROVED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// TaskSubmission is a user's proof that a task was completed
type TaskSubmission struct {
	Base
	UserID          uuid.UUID        `gorm:"type:uuid;index;not null" json:"user_id"`
	User            User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	TaskID          uuid.UUID        `gorm:"type:uuid;index;not null" json:"task_id"`
	Task            Task             `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	Status          SubmissionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ProofURL        string           `gorm:"type:text" json:"proof_url"`
	RejectionReason *string          `gorm:"type:text" json:"rejection_reason"`
	ReviewedBy      *uuid.UUID       `gorm:"type:uuid" json:"reviewed_by"`
	ReviewedAt      *time.Time       `json:"reviewed_at"`
}
