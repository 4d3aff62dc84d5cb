package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/config"
	"github.com/referralhub/backend/internal/errutil"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeCertificateDeliver JobType = "certificate.deliver"
	JobTypeSubmissionNotify   JobType = "submission.notify"
	JobTypePayoutNotify       JobType = "payout.notify"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending        JobStatus = "pending"
	JobStatusProcessing     JobStatus = "processing"
	JobStatusCompleted      JobStatus = "completed"
	JobStatusFailed         JobStatus = "failed"
	JobStatusRetryScheduled JobStatus = "retry_scheduled"
)

// Job is an outbox row. It is written in the same transaction as the change
// that caused it and executed after that transaction commits.
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type       JobType         `json:"type" gorm:"type:varchar(64);index;not null"`
	Payload    datatypes.JSON  `json:"payload" gorm:"type:jsonb"`
	Status     JobStatus       `json:"status" gorm:"type:varchar(32);index;not null"`
	RetryCount int             `json:"retry_count" gorm:"default:0"`
	MaxRetries int             `json:"max_retries" gorm:"default:0"`
	RetryAt    *time.Time      `json:"retry_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Error      string          `json:"error,omitempty" gorm:"type:text"`
	Result     datatypes.JSON  `json:"result,omitempty" gorm:"type:jsonb"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) (interface{}, error)

// Filter narrows job listings
type Filter struct {
	Status JobStatus
	Type   JobType
	Limit  int
	Offset int
}

// Queue persists outbox jobs and runs them through registered handlers
type Queue struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          config.OutboxConfig
	mu           sync.RWMutex
	handlers     map[JobType]JobHandler
	retryHandler *RetryHandler
	now          func() time.Time
}

// NewQueue creates a new queue
func NewQueue(db *gorm.DB, cfg config.OutboxConfig, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}

	q := &Queue{
		db:       db,
		log:      log.Named("outbox"),
		cfg:      cfg,
		handlers: make(map[JobType]JobHandler),
		now:      time.Now,
	}

	q.retryHandler = NewRetryHandler(db, q, cfg.MaxRetries)

	return q
}

// RegisterHandler registers a handler for a job type
func (q *Queue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

func (q *Queue) handler(jobType JobType) (JobHandler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

// Enqueue writes a pending job through tx. Callers pass their open
// transaction so the job only exists if the business change commits.
func (q *Queue) Enqueue(tx *gorm.DB, jobType JobType, payload interface{}) (*Job, error) {
	if tx == nil {
		tx = q.db
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	now := q.now()
	job := Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: q.cfg.MaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := tx.Create(&job).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}

	return &job, nil
}

// Dispatch runs the given jobs one after another. Handler failures are
// recorded on the job row and logged; they are never returned.
func (q *Queue) Dispatch(ctx context.Context, jobs ...*Job) {
	for _, job := range jobs {
		if job == nil {
			continue
		}
		q.processJob(ctx, *job, JobStatusPending)
	}
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(jobID string) (*Job, error) {
	var job Job
	err := q.db.Model(&Job{}).Where("id = ?", jobID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("job %s not found", jobID)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// List returns jobs newest first together with the total match count
func (q *Queue) List(ctx context.Context, filter Filter) ([]Job, int64, error) {
	var jobs []Job
	var total int64

	query := q.db.WithContext(ctx).Model(&Job{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	if err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, total, nil
}

// UpdateJobStatus updates the status of a job
func (q *Queue) UpdateJobStatus(jobID string, status JobStatus, result interface{}, err error) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": q.now(),
	}

	if err != nil {
		updates["error"] = err.Error()
	} else {
		updates["error"] = ""
	}

	if result != nil {
		resultBytes, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			return fmt.Errorf("failed to marshal result: %w", marshalErr)
		}
		updates["result"] = datatypes.JSON(resultBytes)
	}

	res := q.db.Model(&Job{}).Where("id = ?", jobID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update job status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("job %s not found", jobID)
	}
	return nil
}

// Retry runs a failed or retry-scheduled job again right away and returns
// its refreshed row. This is the operator's manual resend path.
func (q *Queue) Retry(ctx context.Context, jobID string) (*Job, error) {
	job, err := q.GetJob(jobID)
	if err != nil {
		return nil, err
	}

	if job.Status != JobStatusFailed && job.Status != JobStatusRetryScheduled {
		return nil, errutil.InvalidState("job %s is %s and cannot be retried", jobID, job.Status)
	}

	if !q.processJob(ctx, *job, job.Status) {
		return nil, errutil.InvalidState("job %s is already being processed", jobID)
	}

	return q.GetJob(jobID)
}

// ProcessStale dispatches pending jobs older than the configured threshold.
// These are left behind when the process stops between commit and dispatch.
func (q *Queue) ProcessStale(ctx context.Context) {
	var jobs []Job
	cutoff := q.now().Add(-q.cfg.StaleAfter)

	if err := q.db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", JobStatusPending, cutoff).
		Order("created_at ASC").
		Limit(100).
		Find(&jobs).Error; err != nil {
		q.log.Error("failed to query stale jobs", zap.Error(err))
		return
	}

	for _, job := range jobs {
		q.log.Info("dispatching stale job", zap.String("job_id", job.ID.String()), zap.String("type", string(job.Type)))
		q.processJob(ctx, job, JobStatusPending)
	}
}

// claim moves a job from one of the given statuses to processing. Only one
// caller can win the conditional update.
func (q *Queue) claim(jobID uuid.UUID, from JobStatus) bool {
	res := q.db.Model(&Job{}).
		Where("id = ? AND status = ?", jobID, from).
		Updates(map[string]interface{}{
			"status":     JobStatusProcessing,
			"updated_at": q.now(),
		})
	if res.Error != nil {
		q.log.Error("failed to claim job", zap.String("job_id", jobID.String()), zap.Error(res.Error))
		return false
	}
	return res.RowsAffected == 1
}

// processJob claims and runs one job. It reports whether the job was claimed.
func (q *Queue) processJob(ctx context.Context, job Job, from JobStatus) bool {
	if !q.claim(job.ID, from) {
		return false
	}

	log := q.log.With(zap.String("job_id", job.ID.String()), zap.String("type", string(job.Type)))

	handler, ok := q.handler(job.Type)
	if !ok {
		err := fmt.Errorf("no handler registered for job type %s", job.Type)
		log.Error("job has no handler")
		if updErr := q.UpdateJobStatus(job.ID.String(), JobStatusFailed, nil, err); updErr != nil {
			log.Error("failed to update job status", zap.Error(updErr))
		}
		return true
	}

	result, err := q.safeRun(ctx, handler, job)
	if err != nil {
		log.Warn("job failed", zap.Error(err))
		q.retryHandler.HandleFailedJob(job, err)
		return true
	}

	if err := q.UpdateJobStatus(job.ID.String(), JobStatusCompleted, result, nil); err != nil {
		log.Error("failed to update job result", zap.Error(err))
		return true
	}

	log.Debug("job completed")
	return true
}

func (q *Queue) safeRun(ctx context.Context, handler JobHandler, job Job) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}
