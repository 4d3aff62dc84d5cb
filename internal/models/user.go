package models

import (
	"time"
)

// Admin is a dashboard operator. Admins are the actors recorded in the audit log.
type Admin struct {
	Base
	Email         string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name          string     `gorm:"type:varchar(255)" json:"name"`
	PasswordHash  string     `gorm:"type:varchar(255)" json:"-"`
	GoogleSubject *string    `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	TOTPSecret    *string    `gorm:"type:varchar(255)" json:"-"`
	TOTPEnabled   bool       `gorm:"default:false" json:"totp_enabled"`
	LastLoginAt   *time.Time `json:"last_login_at"`
}

// User is a student enrolled in the referral program
type User struct {
	Base
	Name           string  `gorm:"type:varchar(255)" json:"name"`
	Email          string  `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Points         int64   `gorm:"not null;default:0" json:"points"`
	ReferralCode   string  `gorm:"type:varchar(32);uniqueIndex;not null" json:"referral_code"`
	ReferredByCode *string `gorm:"type:varchar(32);index" json:"referred_by_code"`
}
