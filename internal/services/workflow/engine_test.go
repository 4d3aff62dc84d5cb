package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/config"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/queue"
	"github.com/referralhub/backend/internal/security/audit"
	"github.com/referralhub/backend/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	queue  *queue.Queue
	engine *Engine
	admin  uuid.UUID
}

type stubTxIDs struct{}

func (stubTxIDs) Next() string { return "TXN-1234567890" }

type failingRecorder struct{}

func (failingRecorder) Record(tx *gorm.DB, entry audit.Entry) (*audit.AuditLog, error) {
	return nil, errors.New("audit store unavailable")
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&models.Admin{},
		&models.User{},
		&models.Task{},
		&models.TaskSubmission{},
		&models.RedeemRequest{},
		&models.Payout{},
		&models.Certificate{},
		&audit.AuditLog{},
		&queue.Job{},
	)

	q := queue.NewQueue(db, config.OutboxConfig{}, nil)
	q.RegisterHandler(queue.JobTypeSubmissionNotify, func(ctx context.Context, job queue.Job) (interface{}, error) {
		return nil, nil
	})
	q.RegisterHandler(queue.JobTypePayoutNotify, func(ctx context.Context, job queue.Job) (interface{}, error) {
		return nil, nil
	})
	q.RegisterHandler(queue.JobTypeCertificateDeliver, func(ctx context.Context, job queue.Job) (interface{}, error) {
		var payload queue.CertificateDeliverPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return nil, err
		}
		return nil, db.Model(&models.Certificate{}).
			Where("id = ?", payload.CertificateID).
			Update("pdf_url", "https://files.example.com/certificates/"+payload.CertificateID.String()+".pdf").Error
	})

	engine := NewEngine(db, q, audit.NewLogger(db), stubTxIDs{}, Options{MinimumRedeemPoints: 100}, nil)

	admin := models.Admin{Email: "ops@example.com", Name: "Ops"}
	require.NoError(t, db.Create(&admin).Error)

	return &fixture{db: db, queue: q, engine: engine, admin: admin.ID}
}

func (f *fixture) createUser(t *testing.T, points int64) *models.User {
	t.Helper()
	user := models.User{
		Name:         "Student",
		Email:        uuid.NewString() + "@example.com",
		Points:       points,
		ReferralCode: uuid.NewString()[:8],
	}
	require.NoError(t, f.db.Create(&user).Error)
	return &user
}

func (f *fixture) createTask(t *testing.T, points int64, status models.TaskStatus) *models.Task {
	t.Helper()
	task := models.Task{
		Title:  "Intro to Go",
		Slug:   uuid.NewString(),
		Points: points,
		Status: status,
	}
	require.NoError(t, f.db.Create(&task).Error)
	return &task
}

func (f *fixture) createSubmission(t *testing.T, userID, taskID uuid.UUID) *models.TaskSubmission {
	t.Helper()
	submission := models.TaskSubmission{
		UserID:   userID,
		TaskID:   taskID,
		Status:   models.SubmissionPending,
		ProofURL: "https://example.com/proof.png",
	}
	require.NoError(t, f.db.Omit("User", "Task").Create(&submission).Error)
	return &submission
}

func (f *fixture) createRedeemRequest(t *testing.T, userID uuid.UUID, amount int64) *models.RedeemRequest {
	t.Helper()
	request := models.RedeemRequest{
		UserID: userID,
		Amount: amount,
		Status: models.RedeemPending,
	}
	require.NoError(t, f.db.Omit("User").Create(&request).Error)
	return &request
}

func (f *fixture) points(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var user models.User
	require.NoError(t, f.db.First(&user, "id = ?", userID).Error)
	return user.Points
}

func (f *fixture) auditCount(t *testing.T, action audit.Action) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&audit.AuditLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}

func (f *fixture) jobs(t *testing.T, jobType queue.JobType) []queue.Job {
	t.Helper()
	var jobs []queue.Job
	require.NoError(t, f.db.Where("type = ?", jobType).Find(&jobs).Error)
	return jobs
}
