package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RetryConfig defines the configuration for job retries
type RetryConfig struct {
	InitialInterval time.Duration // Initial retry interval
	MaxInterval     time.Duration // Maximum retry interval
	Multiplier      float64       // Backoff multiplier for subsequent retries
}

// RetryHandler manages job retries with exponential backoff
type RetryHandler struct {
	db         *gorm.DB
	queue      *Queue
	retryConf  RetryConfig
	maxRetries int
}

// NewRetryHandler creates a new retry handler. maxRetries is the default
// for jobs that carry no limit of their own.
func NewRetryHandler(db *gorm.DB, queue *Queue, maxRetries int) *RetryHandler {
	return &RetryHandler{
		db:    db,
		queue: queue,
		retryConf: RetryConfig{
			InitialInterval: 30 * time.Second,
			MaxInterval:     1 * time.Hour,
			Multiplier:      2.0,
		},
		maxRetries: maxRetries,
	}
}

// HandleFailedJob records the failure and schedules a retry if the job has
// attempts left
func (h *RetryHandler) HandleFailedJob(job Job, err error) {
	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = h.maxRetries
	}

	retryCount := job.RetryCount + 1

	if retryCount > maxRetries {
		msg := err.Error()
		if maxRetries > 0 {
			msg = fmt.Sprintf("exceeded max retries (%d): %v", maxRetries, err)
		}
		h.updateJobStatus(job.ID, JobStatusFailed, msg)
		h.queue.log.Error("job permanently failed",
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)),
			zap.Int("retries", job.RetryCount),
			zap.Error(err))
		return
	}

	nextRetryDelay := h.calculateBackoff(retryCount)
	nextRetryTime := h.queue.now().Add(nextRetryDelay)

	h.queue.log.Info("scheduling job retry",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", retryCount),
		zap.Int("max_retries", maxRetries),
		zap.Duration("delay", nextRetryDelay))

	h.updateJobForRetry(job.ID, retryCount, nextRetryTime, err.Error())
}

// calculateBackoff returns initialInterval * multiplier^(attempt-1), capped
// at maxInterval
func (h *RetryHandler) calculateBackoff(attempt int) time.Duration {
	interval := h.retryConf.InitialInterval
	for i := 1; i < attempt; i++ {
		interval = time.Duration(float64(interval) * h.retryConf.Multiplier)
		if interval > h.retryConf.MaxInterval {
			interval = h.retryConf.MaxInterval
			break
		}
	}
	return interval
}

func (h *RetryHandler) updateJobStatus(jobID uuid.UUID, status JobStatus, errorMsg string) {
	if err := h.db.Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":     status,
			"error":      errorMsg,
			"updated_at": h.queue.now(),
		}).Error; err != nil {
		h.queue.log.Error("failed to update job status", zap.Error(err))
	}
}

func (h *RetryHandler) updateJobForRetry(jobID uuid.UUID, retryCount int, nextRetry time.Time, errorMsg string) {
	if err := h.db.Model(&Job{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":      JobStatusRetryScheduled,
			"retry_count": retryCount,
			"retry_at":    nextRetry,
			"error":       errorMsg,
			"updated_at":  h.queue.now(),
		}).Error; err != nil {
		h.queue.log.Error("failed to update job for retry", zap.Error(err))
	}
}

// ProcessRetryQueue runs jobs whose scheduled retry time has passed
func (h *RetryHandler) ProcessRetryQueue(ctx context.Context) {
	var jobsToRetry []Job

	if err := h.db.WithContext(ctx).Where("status = ? AND retry_at <= ?", JobStatusRetryScheduled, h.queue.now()).
		Order("retry_at ASC").
		Find(&jobsToRetry).Error; err != nil {
		h.queue.log.Error("failed to query retry queue", zap.Error(err))
		return
	}

	for _, job := range jobsToRetry {
		h.queue.processJob(ctx, job, JobStatusRetryScheduled)
	}
}
