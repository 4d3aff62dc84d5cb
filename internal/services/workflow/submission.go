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
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionResult is the outcome of a review decision. Certificate is set
// only for approvals.
type SubmissionResult struct {
	Submission  *models.TaskSubmission `json:"submission"`
	Certificate *models.Certificate    `json:"certificate,omitempty"`
}

// ProcessSubmission approves or rejects a pending task submission. Approval
// credits the task's points to the submitter and issues a certificate whose
// PDF is rendered and mailed after commit.
func (e *Engine) ProcessSubmission(ctx context.Context, actor *uuid.UUID, submissionID uuid.UUID, decision models.SubmissionStatus, reason string) (*SubmissionResult, error) {
	var (
		certificate *models.Certificate
		job         *queue.Job
	)

	err := e.inTx(ctx, func(tx *gorm.DB) error {
		var submission models.TaskSubmission
		if err := forUpdate(tx).First(&submission, "id = ?", submissionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("submission %s not found", submissionID)
			}
			return errutil.Internal("failed to load submission", err)
		}

		if submission.Status != models.SubmissionPending {
			return errutil.InvalidState("submission %s is already %s", submissionID, submission.Status)
		}

		if decision != models.SubmissionApproved && decision != models.SubmissionRejected {
			return errutil.InvalidArgument("decision must be APPROVED or REJECTED")
		}

		now := e.now()
		updates := map[string]interface{}{
			"status":      decision,
			"reviewed_by": actor,
			"reviewed_at": now,
			"updated_at":  now,
		}
		if decision == models.SubmissionRejected {
			updates["rejection_reason"] = optionalString(reason)
		}

		res := tx.Model(&models.TaskSubmission{}).
			Where("id = ? AND status = ?", submissionID, models.SubmissionPending).
			Updates(updates)
		if res.Error != nil {
			return errutil.Internal("failed to update submission", res.Error)
		}
		if res.RowsAffected == 0 {
			return errutil.InvalidState("submission %s was processed concurrently", submissionID)
		}

		if decision == models.SubmissionRejected {
			details := "Rejected submission"
			if reason != "" {
				details = fmt.Sprintf("Rejected submission: %s", reason)
			}
			if err := e.record(tx, actor, audit.ActionRejectSubmission, audit.EntityTaskSubmission, submissionID, details); err != nil {
				return err
			}

			var err error
			job, err = e.enqueue(tx, queue.JobTypeSubmissionNotify, queue.SubmissionNotifyPayload{SubmissionID: submissionID})
			return err
		}

		var task models.Task
		if err := tx.First(&task, "id = ?", submission.TaskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("task %s not found", submission.TaskID)
			}
			return errutil.Internal("failed to load task", err)
		}

		res = tx.Model(&models.User{}).
			Where("id = ?", submission.UserID).
			Updates(map[string]interface{}{
				"points":     gorm.Expr("points + ?", task.Points),
				"updated_at": now,
			})
		if res.Error != nil {
			return errutil.Internal("failed to credit points", res.Error)
		}
		if res.RowsAffected == 0 {
			return errutil.NotFound("user %s not found", submission.UserID)
		}

		code, err := e.accessCode()
		if err != nil {
			return errutil.Internal("failed to generate access code", err)
		}

		certificate = &models.Certificate{
			UserID:       submission.UserID,
			SubmissionID: submissionID,
			CourseName:   task.Title,
			AccessCode:   code,
			PDFURL:       models.CertificatePendingURL,
			IssuedAt:     now,
		}
		if err := tx.Omit(clause.Associations).Create(certificate).Error; err != nil {
			return errutil.Internal("failed to create certificate", err)
		}

		details := fmt.Sprintf("Approved submission for task %q (+%d points), certificate %s", task.Title, task.Points, certificate.AccessCode)
		if err := e.record(tx, actor, audit.ActionApproveSubmission, audit.EntityTaskSubmission, submissionID, details); err != nil {
			return err
		}

		job, err = e.enqueue(tx, queue.JobTypeCertificateDeliver, queue.CertificateDeliverPayload{CertificateID: certificate.ID})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("submission processed",
		zap.String("submission_id", submissionID.String()),
		zap.String("decision", string(decision)))

	e.outbox.Dispatch(ctx, job)

	result := &SubmissionResult{}

	var submission models.TaskSubmission
	if err := e.db.WithContext(ctx).Preload("Task").Preload("User").First(&submission, "id = ?", submissionID).Error; err != nil {
		return nil, errutil.Internal("failed to reload submission", err)
	}
	result.Submission = &submission

	if certificate != nil {
		// pick up the pdf_url written by delivery
		if err := e.db.WithContext(ctx).First(certificate, "id = ?", certificate.ID).Error; err != nil {
			return nil, errutil.Internal("failed to reload certificate", err)
		}
		result.Certificate = certificate
	}

	return result, nil
}
