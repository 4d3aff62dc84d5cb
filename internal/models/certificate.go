package models

import (
	"time"

	"github.com/google/uuid"
)

// CertificatePendingURL marks a certificate whose PDF has not been stored yet
const CertificatePendingURL = "pending"

// Certificate is the proof-of-completion issued when a submission is approved
type Certificate struct {
	Base
	UserID       uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User         User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SubmissionID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"submission_id"`
	CourseName   string    `gorm:"type:varchar(255);not null" json:"course_name"`
	AccessCode   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"access_code"`
	PDFURL       string    `gorm:"type:text;not null" json:"pdf_url"`
	IssuedAt     time.Time `json:"issued_at"`
}

// HasArtifact reports whether a rendered PDF has been stored for the certificate
func (c *Certificate) HasArtifact() bool {
	return c.PDFURL != "" && c.PDFURL != CertificatePendingURL
}
