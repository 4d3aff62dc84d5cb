package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/queue"
	"github.com/referralhub/backend/internal/services/certificate"
	"github.com/referralhub/backend/internal/services/email"
	"github.com/referralhub/backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendSubmissionRejectedEmail(toEmail, name, taskTitle string, reason *string) error {
	args := m.Called(toEmail, name, taskTitle, reason)
	return args.Error(0)
}

func (m *MockMailer) SendPayoutStatusEmail(toEmail, name string, status email.PayoutStatus) error {
	args := m.Called(toEmail, name, status)
	return args.Error(0)
}

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, certificateID uuid.UUID, regenerate bool) (*certificate.DeliveryResult, error) {
	args := m.Called(certificateID, regenerate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*certificate.DeliveryResult), args.Error(1)
}

type recordingRegistrar struct {
	handlers map[queue.JobType]queue.JobHandler
}

func (r *recordingRegistrar) RegisterHandler(jobType queue.JobType, handler queue.JobHandler) {
	r.handlers[jobType] = handler
}

func setupDB(t *testing.T) (*gorm.DB, *models.User) {
	db := testutil.NewTestDB(t, &models.User{}, &models.Task{}, &models.TaskSubmission{}, &models.RedeemRequest{}, &models.Payout{})
	user := models.User{Name: "Ada", Email: "ada@example.com", ReferralCode: "ADA00001"}
	require.NoError(t, db.Create(&user).Error)
	return db, &user
}

func jobWith(t *testing.T, jobType queue.JobType, payload interface{}) queue.Job {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return queue.Job{ID: uuid.New(), Type: jobType, Payload: data, Status: queue.JobStatusProcessing}
}

func TestRegisterAllJobHandlers(t *testing.T) {
	db, _ := setupDB(t)
	r := &recordingRegistrar{handlers: make(map[queue.JobType]queue.JobHandler)}

	RegisterAllJobHandlers(r, db, new(MockDeliverer), new(MockMailer))

	assert.Contains(t, r.handlers, queue.JobTypeCertificateDeliver)
	assert.Contains(t, r.handlers, queue.JobTypeSubmissionNotify)
	assert.Contains(t, r.handlers, queue.JobTypePayoutNotify)
}

func TestCertificateDeliveryJob(t *testing.T) {
	deliverer := new(MockDeliverer)
	certID := uuid.New()
	deliverer.On("Deliver", certID, true).Return(&certificate.DeliveryResult{CertificateID: certID, SentTo: "ada@example.com"}, nil)

	result, err := NewCertificateDeliveryJob(deliverer).Process(context.Background(),
		jobWith(t, queue.JobTypeCertificateDeliver, queue.CertificateDeliverPayload{CertificateID: certID, Regenerate: true}))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", result.(*certificate.DeliveryResult).SentTo)
	deliverer.AssertExpectations(t)
}

func TestCertificateDeliveryJobError(t *testing.T) {
	deliverer := new(MockDeliverer)
	deliverer.On("Deliver", mock.Anything, false).Return(nil, errors.New("render failed"))

	_, err := NewCertificateDeliveryJob(deliverer).Process(context.Background(),
		jobWith(t, queue.JobTypeCertificateDeliver, queue.CertificateDeliverPayload{CertificateID: uuid.New()}))
	assert.EqualError(t, err, "render failed")

	_, err = NewCertificateDeliveryJob(deliverer).Process(context.Background(), queue.Job{Payload: []byte("{")})
	assert.Error(t, err)
}

func TestSubmissionNotifyJob(t *testing.T) {
	db, user := setupDB(t)
	mailer := new(MockMailer)

	task := models.Task{Title: "Share a post", Slug: "share-a-post", Points: 5, Status: models.TaskStatusActive}
	require.NoError(t, db.Create(&task).Error)

	reason := "link missing"
	rejected := models.TaskSubmission{UserID: user.ID, TaskID: task.ID, Status: models.SubmissionRejected, RejectionReason: &reason}
	require.NoError(t, db.Omit("User", "Task").Create(&rejected).Error)

	approved := models.TaskSubmission{UserID: user.ID, TaskID: task.ID, Status: models.SubmissionApproved}
	require.NoError(t, db.Omit("User", "Task").Create(&approved).Error)

	mailer.On("SendSubmissionRejectedEmail", "ada@example.com", "Ada", "Share a post", mock.MatchedBy(func(r *string) bool {
		return r != nil && *r == "link missing"
	})).Return(nil).Once()

	handler := &SubmissionNotifyJob{db: db, mailer: mailer}

	result, err := handler.Process(context.Background(), jobWith(t, queue.JobTypeSubmissionNotify, queue.SubmissionNotifyPayload{SubmissionID: rejected.ID}))
	require.NoError(t, err)
	assert.Equal(t, NotificationResult{SentTo: "ada@example.com"}, result)

	result, err = handler.Process(context.Background(), jobWith(t, queue.JobTypeSubmissionNotify, queue.SubmissionNotifyPayload{SubmissionID: approved.ID}))
	require.NoError(t, err)
	assert.NotEmpty(t, result.(NotificationResult).Skipped)

	_, err = handler.Process(context.Background(), jobWith(t, queue.JobTypeSubmissionNotify, queue.SubmissionNotifyPayload{SubmissionID: uuid.New()}))
	assert.Error(t, err)

	mailer.AssertExpectations(t)
}

func TestPayoutNotifyJob(t *testing.T) {
	db, user := setupDB(t)
	mailer := new(MockMailer)

	request := models.RedeemRequest{UserID: user.ID, Amount: 1000, Status: models.RedeemPaid}
	require.NoError(t, db.Omit("User").Create(&request).Error)

	txID := "TXN-99"
	payout := models.Payout{
		UserID:          user.ID,
		RedeemRequestID: request.ID,
		Amount:          decimal.New(1000, -2),
		Status:          models.PayoutCompleted,
		TransactionID:   &txID,
	}
	require.NoError(t, db.Omit("RedeemRequest").Create(&payout).Error)

	mailer.On("SendPayoutStatusEmail", "ada@example.com", "Ada", mock.MatchedBy(func(s email.PayoutStatus) bool {
		return s.Status == "PAID" && s.Amount == "10.00" && s.TransactionID != nil && *s.TransactionID == "TXN-99"
	})).Return(nil).Once()

	handler := &PayoutNotifyJob{db: db, mailer: mailer}
	_, err := handler.Process(context.Background(), jobWith(t, queue.JobTypePayoutNotify, queue.PayoutNotifyPayload{RedeemRequestID: request.ID, Action: "COMPLETE"}))
	require.NoError(t, err)
	mailer.AssertExpectations(t)
}

func TestPayoutNotifyJobWithoutPayout(t *testing.T) {
	db, user := setupDB(t)
	mailer := new(MockMailer)

	request := models.RedeemRequest{UserID: user.ID, Amount: 200, Status: models.RedeemRejected}
	require.NoError(t, db.Omit("User").Create(&request).Error)

	mailer.On("SendPayoutStatusEmail", "ada@example.com", "Ada", mock.MatchedBy(func(s email.PayoutStatus) bool {
		return s.Status == "REJECTED" && s.Points == 200 && s.Amount == ""
	})).Return(errors.New("smtp down")).Once()

	handler := &PayoutNotifyJob{db: db, mailer: mailer}
	_, err := handler.Process(context.Background(), jobWith(t, queue.JobTypePayoutNotify, queue.PayoutNotifyPayload{RedeemRequestID: request.ID, Action: "REJECT"}))
	assert.EqualError(t, err, "smtp down")
	mailer.AssertExpectations(t)
}
