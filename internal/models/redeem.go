package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RedeemStatus is the lifecycle state of a redeem request
type RedeemStatus string

const (
	RedeemPending  RedeemStatus = "PENDING"
	RedeemApproved RedeemStatus = "APPROVED"
	RedeemRejected RedeemStatus = "REJECTED"
	RedeemPaid     RedeemStatus = "PAID"
)

// RedeemRequest is a user's request to turn points into a cash payout.
// Amount is in points and is debited from the user when the request is filed.
type RedeemRequest struct {
	Base
	UserID      uuid.UUID    `gorm:"type:uuid;index;not null" json:"user_id"`
	User        User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Amount      int64        `gorm:"not null" json:"amount"`
	Status      RedeemStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	AdminNote   *string      `gorm:"type:text" json:"admin_note"`
	ProcessedBy *uuid.UUID   `gorm:"type:uuid" json:"processed_by"`
	ProcessedAt *time.Time   `json:"processed_at"`
}

// PayoutStatus is the disbursement state of a payout
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "PENDING"
	PayoutCompleted PayoutStatus = "COMPLETED"
)

// Payout tracks the money side of an approved redeem request
type Payout struct {
	Base
	UserID          uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	RedeemRequestID uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"redeem_request_id"`
	RedeemRequest   *RedeemRequest  `gorm:"foreignKey:RedeemRequestID" json:"redeem_request,omitempty"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status          PayoutStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	TransactionID   *string         `gorm:"type:varchar(100)" json:"transaction_id"`
	ProcessedAt     *time.Time      `json:"processed_at"`
}
