package workflow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmitTask files a pending submission for an active task. A user may hold
// only one pending submission per task.
func (e *Engine) SubmitTask(ctx context.Context, userID, taskID uuid.UUID, proofURL string) (*models.TaskSubmission, error) {
	var submission models.TaskSubmission

	err := e.inTx(ctx, func(tx *gorm.DB) error {
		// serializes intake per user
		var user models.User
		if err := forUpdate(tx).First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("user %s not found", userID)
			}
			return errutil.Internal("failed to load user", err)
		}

		var task models.Task
		if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("task %s not found", taskID)
			}
			return errutil.Internal("failed to load task", err)
		}

		if task.Status != models.TaskStatusActive {
			return errutil.InvalidState("task %s is %s and not accepting submissions", taskID, task.Status)
		}

		var pending int64
		if err := tx.Model(&models.TaskSubmission{}).
			Where("user_id = ? AND task_id = ? AND status = ?", userID, taskID, models.SubmissionPending).
			Count(&pending).Error; err != nil {
			return errutil.Internal("failed to check pending submissions", err)
		}
		if pending > 0 {
			return errutil.AlreadyProcessed("user already has a pending submission for task %s", taskID)
		}

		submission = models.TaskSubmission{
			UserID:   userID,
			TaskID:   taskID,
			Status:   models.SubmissionPending,
			ProofURL: proofURL,
		}
		if err := tx.Omit(clause.Associations).Create(&submission).Error; err != nil {
			return errutil.Internal("failed to create submission", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &submission, nil
}

// RequestRedeem debits amount points from the user and files a pending
// redeem request for them
func (e *Engine) RequestRedeem(ctx context.Context, userID uuid.UUID, amount int64) (*models.RedeemRequest, error) {
	if amount <= 0 {
		return nil, errutil.InvalidArgument("amount must be positive")
	}
	if amount < e.opts.MinimumRedeemPoints {
		return nil, errutil.InvalidArgument("amount must be at least %d points", e.opts.MinimumRedeemPoints)
	}

	var request models.RedeemRequest

	err := e.inTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND points >= ?", userID, amount).
			Updates(map[string]interface{}{
				"points":     gorm.Expr("points - ?", amount),
				"updated_at": e.now(),
			})
		if res.Error != nil {
			return errutil.Internal("failed to debit points", res.Error)
		}

		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
				return errutil.Internal("failed to load user", err)
			}
			if count == 0 {
				return errutil.NotFound("user %s not found", userID)
			}
			return errutil.InsufficientPoints("user %s has fewer than %d points", userID, amount)
		}

		request = models.RedeemRequest{
			UserID: userID,
			Amount: amount,
			Status: models.RedeemPending,
		}
		if err := tx.Omit(clause.Associations).Create(&request).Error; err != nil {
			return errutil.Internal("failed to create redeem request", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &request, nil
}
