package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/queue"
	"github.com/referralhub/backend/internal/security/audit"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Action is an operator command on a redeem request
type Action string

const (
	ActionApprove  Action = "APPROVE"
	ActionReject   Action = "REJECT"
	ActionComplete Action = "COMPLETE"
)

// PointsToCurrency converts points into a payout amount: one point is one cent
func PointsToCurrency(points int64) decimal.Decimal {
	return decimal.New(points, -2)
}

// RedeemResult is the outcome of a redeem transition. Payout is set for
// approvals and completions.
type RedeemResult struct {
	Request *models.RedeemRequest `json:"redeem_request"`
	Payout  *models.Payout        `json:"payout,omitempty"`
}

// ProcessRedeemRequest applies an operator action to a redeem request:
//
//	PENDING  --REJECT-->   REJECTED (points refunded)
//	PENDING  --APPROVE-->  APPROVED (payout created)
//	APPROVED --COMPLETE--> PAID     (payout completed)
func (e *Engine) ProcessRedeemRequest(ctx context.Context, actor *uuid.UUID, requestID uuid.UUID, action Action, transactionID, adminNote string) (*RedeemResult, error) {
	var job *queue.Job

	err := e.inTx(ctx, func(tx *gorm.DB) error {
		var request models.RedeemRequest
		if err := forUpdate(tx).First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("redeem request %s not found", requestID)
			}
			return errutil.Internal("failed to load redeem request", err)
		}

		var err error
		switch action {
		case ActionReject:
			err = e.rejectRedeem(tx, actor, &request, adminNote)
		case ActionApprove:
			err = e.approveRedeem(tx, actor, &request, adminNote)
		case ActionComplete:
			err = e.completeRedeem(tx, actor, &request, transactionID, adminNote)
		default:
			return errutil.InvalidArgument("action must be APPROVE, REJECT or COMPLETE")
		}
		if err != nil {
			return err
		}

		job, err = e.enqueue(tx, queue.JobTypePayoutNotify, queue.PayoutNotifyPayload{
			RedeemRequestID: requestID,
			Action:          string(action),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("redeem request processed",
		zap.String("redeem_request_id", requestID.String()),
		zap.String("action", string(action)))

	e.outbox.Dispatch(ctx, job)

	result := &RedeemResult{}

	var request models.RedeemRequest
	if err := e.db.WithContext(ctx).Preload("User").First(&request, "id = ?", requestID).Error; err != nil {
		return nil, errutil.Internal("failed to reload redeem request", err)
	}
	result.Request = &request

	if action != ActionReject {
		var payout models.Payout
		if err := e.db.WithContext(ctx).First(&payout, "redeem_request_id = ?", requestID).Error; err != nil {
			return nil, errutil.Internal("failed to reload payout", err)
		}
		result.Payout = &payout
	}

	return result, nil
}

// transition moves the request from one status to another, failing when a
// concurrent caller got there first
func (e *Engine) transition(tx *gorm.DB, actor *uuid.UUID, request *models.RedeemRequest, from, to models.RedeemStatus, adminNote string) error {
	now := e.now()
	updates := map[string]interface{}{
		"status":       to,
		"processed_by": actor,
		"processed_at": now,
		"updated_at":   now,
	}
	if adminNote != "" {
		updates["admin_note"] = adminNote
	}

	res := tx.Model(&models.RedeemRequest{}).
		Where("id = ? AND status = ?", request.ID, from).
		Updates(updates)
	if res.Error != nil {
		return errutil.Internal("failed to update redeem request", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.InvalidState("redeem request %s was processed concurrently", request.ID)
	}
	return nil
}

func (e *Engine) rejectRedeem(tx *gorm.DB, actor *uuid.UUID, request *models.RedeemRequest, adminNote string) error {
	if request.Status != models.RedeemPending {
		return errutil.InvalidState("redeem request %s is %s and cannot be rejected", request.ID, request.Status)
	}

	if err := e.transition(tx, actor, request, models.RedeemPending, models.RedeemRejected, adminNote); err != nil {
		return err
	}

	res := tx.Model(&models.User{}).
		Where("id = ?", request.UserID).
		Updates(map[string]interface{}{
			"points":     gorm.Expr("points + ?", request.Amount),
			"updated_at": e.now(),
		})
	if res.Error != nil {
		return errutil.Internal("failed to refund points", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("user %s not found", request.UserID)
	}

	details := fmt.Sprintf("Rejected redeem request, refunded %d points", request.Amount)
	return e.record(tx, actor, audit.ActionRejectPayout, audit.EntityRedeemRequest, request.ID, details)
}

func (e *Engine) approveRedeem(tx *gorm.DB, actor *uuid.UUID, request *models.RedeemRequest, adminNote string) error {
	if request.Status != models.RedeemPending {
		return errutil.InvalidState("redeem request %s is %s and cannot be approved", request.ID, request.Status)
	}

	if err := e.transition(tx, actor, request, models.RedeemPending, models.RedeemApproved, adminNote); err != nil {
		return err
	}

	payout := models.Payout{
		UserID:          request.UserID,
		RedeemRequestID: request.ID,
		Amount:          PointsToCurrency(request.Amount),
		Status:          models.PayoutPending,
	}
	if err := tx.Omit(clause.Associations).Create(&payout).Error; err != nil {
		return errutil.Internal("failed to create payout", err)
	}

	details := fmt.Sprintf("Approved redeem request of %d points, payout %s", request.Amount, payout.Amount.StringFixed(2))
	return e.record(tx, actor, audit.ActionApprovePayout, audit.EntityRedeemRequest, request.ID, details)
}

func (e *Engine) completeRedeem(tx *gorm.DB, actor *uuid.UUID, request *models.RedeemRequest, transactionID, adminNote string) error {
	var payout models.Payout
	err := forUpdate(tx).First(&payout, "redeem_request_id = ?", request.ID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return errutil.Internal("failed to load payout", err)
	}
	found := err == nil

	if found && payout.Status == models.PayoutCompleted {
		return errutil.AlreadyProcessed("payout for redeem request %s is already completed", request.ID)
	}

	if request.Status != models.RedeemApproved {
		return errutil.InvalidState("redeem request %s is %s and cannot be completed", request.ID, request.Status)
	}

	if !found {
		return errutil.NotFound("payout for redeem request %s not found", request.ID)
	}

	if transactionID == "" {
		transactionID = e.txids.Next()
	}

	now := e.now()
	res := tx.Model(&models.Payout{}).
		Where("id = ? AND status = ?", payout.ID, models.PayoutPending).
		Updates(map[string]interface{}{
			"status":         models.PayoutCompleted,
			"transaction_id": transactionID,
			"processed_at":   now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return errutil.Internal("failed to complete payout", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.AlreadyProcessed("payout for redeem request %s is already completed", request.ID)
	}

	if err := e.transition(tx, actor, request, models.RedeemApproved, models.RedeemPaid, adminNote); err != nil {
		return err
	}

	details := fmt.Sprintf("Completed payout %s with transaction %s", payout.Amount.StringFixed(2), transactionID)
	return e.record(tx, actor, audit.ActionCompletePayout, audit.EntityRedeemRequest, request.ID, details)
}
