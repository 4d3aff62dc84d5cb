package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/config"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockJobHandler is a mock implementation of a job handler
type MockJobHandler struct {
	mock.Mock
}

func (m *MockJobHandler) Handle(ctx context.Context, job Job) (interface{}, error) {
	args := m.Called(ctx, job)
	return args.Get(0), args.Error(1)
}

// TestPayload represents a simple job payload for testing
type TestPayload struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func setupTestQueue(t *testing.T, cfg config.OutboxConfig) (*Queue, *gorm.DB) {
	db := testutil.NewTestDB(t, &Job{})
	return NewQueue(db, cfg, nil), db
}

func TestNewQueue(t *testing.T) {
	q, db := setupTestQueue(t, config.OutboxConfig{})

	assert.NotNil(t, q)
	assert.Equal(t, db, q.db)
	assert.NotNil(t, q.retryHandler)
}

func TestEnqueueInsideTransaction(t *testing.T) {
	q, db := setupTestQueue(t, config.OutboxConfig{MaxRetries: 2})

	payload := TestPayload{ID: "test-123", Message: "Test message"}

	tx := db.Begin()
	job, err := q.Enqueue(tx, JobTypeSubmissionNotify, payload)
	require.NoError(t, err)
	require.NoError(t, tx.Commit().Error)

	stored, err := q.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, JobTypeSubmissionNotify, stored.Type)
	assert.Equal(t, JobStatusPending, stored.Status)
	assert.Equal(t, 2, stored.MaxRetries)

	var storedPayload TestPayload
	require.NoError(t, json.Unmarshal(stored.Payload, &storedPayload))
	assert.Equal(t, payload, storedPayload)
}

func TestEnqueueRolledBack(t *testing.T) {
	q, db := setupTestQueue(t, config.OutboxConfig{})

	tx := db.Begin()
	job, err := q.Enqueue(tx, JobTypePayoutNotify, TestPayload{ID: "x"})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback().Error)

	_, err = q.GetJob(job.ID.String())
	assert.True(t, errors.Is(err, errutil.ErrNotFound))
}

func TestDispatchSuccess(t *testing.T) {
	q, _ := setupTestQueue(t, config.OutboxConfig{})

	handler := new(MockJobHandler)
	handler.On("Handle", mock.Anything, mock.AnythingOfType("queue.Job")).
		Return(map[string]string{"sent_to": "student@example.com"}, nil).Once()
	q.RegisterHandler(JobTypeSubmissionNotify, handler.Handle)

	job, err := q.Enqueue(nil, JobTypeSubmissionNotify, TestPayload{ID: "1"})
	require.NoError(t, err)

	q.Dispatch(context.Background(), job)

	stored, err := q.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, stored.Status)
	assert.Empty(t, stored.Error)
	assert.JSONEq(t, `{"sent_to":"student@example.com"}`, string(stored.Result))
	handler.AssertExpectations(t)
}

func TestDispatchFailureIsRecordedNotReturned(t *testing.T) {
	q, _ := setupTestQueue(t, config.OutboxConfig{MaxRetries: 0})

	q.RegisterHandler(JobTypePayoutNotify, func(ctx context.Context, job Job) (interface{}, error) {
		return nil, errors.New("smtp unavailable")
	})

	job, err := q.Enqueue(nil, JobTypePayoutNotify, TestPayload{ID: "1"})
	require.NoError(t, err)

	q.Dispatch(context.Background(), job)

	stored, err := q.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Equal(t, "smtp unavailable", stored.Error)
}

func TestDispatchPanicIsRecovered(t *testing.T) {
	q, _ := setupTestQueue(t, config.OutboxConfig{})

	q.RegisterHandler(JobTypePayoutNotify, func(ctx context.Context, job Job) (interface{}, error) {
		panic("boom")
	})

	job, err := q.Enqueue(nil, JobTypePayoutNotify, TestPayload{ID: "1"})
	require.NoError(t, err)

	assert.NotPanics(t, func() { q.Dispatch(context.Background(), job) })

	stored, err := q.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "boom")
}

func TestDispatchWithoutHandler(t *testing.T) {
	q, _ := setupTestQueue(t, config.OutboxConfig{})

	job, err := q.Enqueue(nil, JobTypeCertificateDeliver, TestPayload{ID: "1"})
	require.NoError(t, err)

	q.Dispatch(context.Background(), job)

	stored, err := q.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "no handler registered")
}

func TestDispatchSchedulesRetryWhenEnabled(t *testing.T) {
	q, _ := setupTestQueue(t, config.OutboxConfig{MaxRetries: 3})

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	q.RegisterHandler(JobTypePayoutNotify, func(ctx context.Context, job Job) (interface{}, error) {
		return nil, errors.New("temporary")
	})

	job, err := q.Enqueue(nil, JobTypePayoutNotify, TestPayload{ID: "1"})
	require.NoError(t, err)

	q.Dispatch(context.Background(), job)

	stored, err := q.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetryScheduled, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.RetryAt)
	assert.True(t, stored.RetryAt.Equal(now.Add(30*time.Second)))
}

func TestProcessRetryQueue(t *testing.T) {
	q, _ := setupTestQueue(t, config.OutboxConfig{MaxRetries: 3})

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	calls := 0
	q.RegisterHandler(JobTypePayoutNotify, func(ctx context.Context, job Job) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("temporary")
		}
		return nil, nil
	})

	job, err := q.Enqueue(nil, JobTypePayoutNotify, TestPayload{ID: "1"})
	require.NoError(t, err)
	q.Dispatch(context.Background(), job)

	// not due yet
	q.retryHandler.ProcessRetryQueue(context.Background())
	assert.Equal(t, 1, calls)

	now = now.Add(time.Minute)
	q.retryHandler.ProcessRetryQueue(context.Background())
	assert.Equal(t, 2, calls)

	stored, err := q.GetJob(job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, stored.Status)
}

func TestRetryFailedJob(t *testing.T) {
	q, _ := setupTestQueue(t, config.OutboxConfig{})

	fail := true
	q.RegisterHandler(JobTypeSubmissionNotify, func(ctx context.Context, job Job) (interface{}, error) {
		if fail {
			return nil, errors.New("mailbox full")
		}
		return nil, nil
	})

	job, err := q.Enqueue(nil, JobTypeSubmissionNotify, TestPayload{ID: "1"})
	require.NoError(t, err)
	q.Dispatch(context.Background(), job)

	fail = false
	retried, err := q.Retry(context.Background(), job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, retried.Status)
	assert.Empty(t, retried.Error)

	_, err = q.Retry(context.Background(), job.ID.String())
	assert.True(t, errors.Is(err, errutil.ErrInvalidState))

	_, err = q.Retry(context.Background(), uuid.New().String())
	assert.True(t, errors.Is(err, errutil.ErrNotFound))
}

func TestDispatchTwiceRunsOnce(t *testing.T) {
	q, _ := setupTestQueue(t, config.OutboxConfig{})

	calls := 0
	q.RegisterHandler(JobTypeSubmissionNotify, func(ctx context.Context, job Job) (interface{}, error) {
		calls++
		return nil, nil
	})

	job, err := q.Enqueue(nil, JobTypeSubmissionNotify, TestPayload{ID: "1"})
	require.NoError(t, err)

	q.Dispatch(context.Background(), job, job)
	assert.Equal(t, 1, calls)
}

func TestProcessStale(t *testing.T) {
	q, db := setupTestQueue(t, config.OutboxConfig{StaleAfter: 5 * time.Minute})

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }

	var handled []string
	q.RegisterHandler(JobTypeSubmissionNotify, func(ctx context.Context, job Job) (interface{}, error) {
		var p TestPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return nil, err
		}
		handled = append(handled, p.ID)
		return nil, nil
	})

	old, err := q.Enqueue(nil, JobTypeSubmissionNotify, TestPayload{ID: "old"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&Job{}).Where("id = ?", old.ID).Update("created_at", now.Add(-10*time.Minute)).Error)

	_, err = q.Enqueue(nil, JobTypeSubmissionNotify, TestPayload{ID: "fresh"})
	require.NoError(t, err)

	q.ProcessStale(context.Background())
	assert.Equal(t, []string{"old"}, handled)
}

func TestListJobs(t *testing.T) {
	q, _ := setupTestQueue(t, config.OutboxConfig{})

	q.RegisterHandler(JobTypePayoutNotify, func(ctx context.Context, job Job) (interface{}, error) {
		return nil, errors.New("down")
	})

	failed, err := q.Enqueue(nil, JobTypePayoutNotify, TestPayload{ID: "1"})
	require.NoError(t, err)
	q.Dispatch(context.Background(), failed)

	_, err = q.Enqueue(nil, JobTypeSubmissionNotify, TestPayload{ID: "2"})
	require.NoError(t, err)

	jobs, total, err := q.List(context.Background(), Filter{Status: JobStatusFailed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, jobs, 1)
	assert.Equal(t, failed.ID, jobs[0].ID)

	_, total, err = q.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestCalculateBackoff(t *testing.T) {
	q, _ := setupTestQueue(t, config.OutboxConfig{})
	h := q.retryHandler

	assert.Equal(t, 30*time.Second, h.calculateBackoff(1))
	assert.Equal(t, 60*time.Second, h.calculateBackoff(2))
	assert.Equal(t, 120*time.Second, h.calculateBackoff(3))
	assert.Equal(t, time.Hour, h.calculateBackoff(20))
}
