package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/queue"
	"github.com/referralhub/backend/internal/services/email"
	"gorm.io/gorm"
)

// NotificationMailer sends the status emails that follow admin decisions
type NotificationMailer interface {
	SendSubmissionRejectedEmail(toEmail, name, taskTitle string, reason *string) error
	SendPayoutStatusEmail(toEmail, name string, status email.PayoutStatus) error
}

// NotificationResult is recorded on completed notification jobs
type NotificationResult struct {
	SentTo  string `json:"sent_to,omitempty"`
	Skipped string `json:"skipped,omitempty"`
}

// SubmissionNotifyJob handles submission.notify jobs
type SubmissionNotifyJob struct {
	db     *gorm.DB
	mailer NotificationMailer
}

// RegisterSubmissionNotifyJobHandlers registers the submission notification handler
func RegisterSubmissionNotifyJobHandlers(q Registrar, db *gorm.DB, mailer NotificationMailer) {
	handler := &SubmissionNotifyJob{db: db, mailer: mailer}
	q.RegisterHandler(queue.JobTypeSubmissionNotify, handler.Process)
}

// Process emails the submitter about a rejected submission
func (j *SubmissionNotifyJob) Process(ctx context.Context, job queue.Job) (interface{}, error) {
	var payload queue.SubmissionNotifyPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submission notification payload: %w", err)
	}

	var submission models.TaskSubmission
	if err := j.db.WithContext(ctx).Preload("User").Preload("Task").
		First(&submission, "id = ?", payload.SubmissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("submission %s not found", payload.SubmissionID)
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}

	if submission.Status != models.SubmissionRejected {
		return NotificationResult{Skipped: fmt.Sprintf("submission is %s", submission.Status)}, nil
	}

	if err := j.mailer.SendSubmissionRejectedEmail(submission.User.Email, submission.User.Name, submission.Task.Title, submission.RejectionReason); err != nil {
		return nil, err
	}

	return NotificationResult{SentTo: submission.User.Email}, nil
}

// PayoutNotifyJob handles payout.notify jobs
type PayoutNotifyJob struct {
	db     *gorm.DB
	mailer NotificationMailer
}

// RegisterPayoutNotifyJobHandlers registers the payout notification handler
func RegisterPayoutNotifyJobHandlers(q Registrar, db *gorm.DB, mailer NotificationMailer) {
	handler := &PayoutNotifyJob{db: db, mailer: mailer}
	q.RegisterHandler(queue.JobTypePayoutNotify, handler.Process)
}

// Process emails the user the current state of their redeem request
func (j *PayoutNotifyJob) Process(ctx context.Context, job queue.Job) (interface{}, error) {
	var payload queue.PayoutNotifyPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payout notification payload: %w", err)
	}

	var request models.RedeemRequest
	if err := j.db.WithContext(ctx).Preload("User").
		First(&request, "id = ?", payload.RedeemRequestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("redeem request %s not found", payload.RedeemRequestID)
		}
		return nil, fmt.Errorf("failed to load redeem request: %w", err)
	}

	status := email.PayoutStatus{
		Status: string(request.Status),
		Points: request.Amount,
		Note:   request.AdminNote,
	}

	var payout models.Payout
	err := j.db.WithContext(ctx).First(&payout, "redeem_request_id = ?", request.ID).Error
	switch {
	case err == nil:
		status.Amount = payout.Amount.StringFixed(2)
		status.TransactionID = payout.TransactionID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load payout: %w", err)
	}

	if err := j.mailer.SendPayoutStatusEmail(request.User.Email, request.User.Name, status); err != nil {
		return nil, err
	}

	return NotificationResult{SentTo: request.User.Email}, nil
}
