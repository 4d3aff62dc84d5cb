package certificate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/config"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/queue"
	"github.com/referralhub/backend/internal/security/audit"
	"github.com/referralhub/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	getErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.puts++
	return "https://files.example.com/certificates-bucket/" + key, nil
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendCertificateEmail(toEmail, name, courseName, accessCode string, pdf []byte) error {
	args := m.Called(toEmail, name, courseName, accessCode, pdf)
	return args.Error(0)
}

type testEnv struct {
	db      *gorm.DB
	store   *memoryStore
	mailer  *MockMailer
	queue   *queue.Queue
	service *Service
	cert    *models.Certificate
}

func setup(t *testing.T, regenerateOnResend bool) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t, &models.User{}, &models.Certificate{}, &audit.AuditLog{}, &queue.Job{})
	store := newMemoryStore()
	mailer := new(MockMailer)
	q := queue.NewQueue(db, config.OutboxConfig{}, nil)

	service := NewService(db, NewRenderer("ReferralHub Academy"), store, mailer, q, audit.NewLogger(db),
		config.CertificateConfig{RegenerateOnResend: regenerateOnResend}, nil)

	q.RegisterHandler(queue.JobTypeCertificateDeliver, func(ctx context.Context, job queue.Job) (interface{}, error) {
		var payload queue.CertificateDeliverPayload
		require.NoError(t, json.Unmarshal(job.Payload, &payload))
		return service.Deliver(ctx, payload.CertificateID, payload.Regenerate)
	})

	user := models.User{Name: "Ada Lovelace", Email: "ada@example.com", ReferralCode: "ADA12345"}
	require.NoError(t, db.Create(&user).Error)

	cert := models.Certificate{
		UserID:       user.ID,
		SubmissionID: uuid.New(),
		CourseName:   "Intro to Go",
		AccessCode:   "CERT-ABCD-EFGH",
		PDFURL:       models.CertificatePendingURL,
		IssuedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Omit("User").Create(&cert).Error)

	return &testEnv{db: db, store: store, mailer: mailer, queue: q, service: service, cert: &cert}
}

func TestRender(t *testing.T) {
	pdf, err := NewRenderer("ReferralHub Academy").Render(Document{
		RecipientName: "Zoë Example",
		CourseName:    "Intro to Go",
		AccessCode:    "CERT-ABCD-EFGH",
		IssuedAt:      time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}

func TestDeliverRendersAndStores(t *testing.T) {
	env := setup(t, true)
	env.mailer.On("SendCertificateEmail", "ada@example.com", "Ada Lovelace", "Intro to Go", "CERT-ABCD-EFGH", mock.Anything).Return(nil).Once()

	result, err := env.service.Deliver(context.Background(), env.cert.ID, false)
	require.NoError(t, err)

	assert.True(t, result.Regenerated)
	assert.Equal(t, "ada@example.com", result.SentTo)
	assert.Equal(t, "https://files.example.com/certificates-bucket/"+ObjectKey(env.cert.ID), result.PDFURL)

	var stored models.Certificate
	require.NoError(t, env.db.First(&stored, "id = ?", env.cert.ID).Error)
	assert.Equal(t, result.PDFURL, stored.PDFURL)
	assert.Equal(t, 1, env.store.puts)
	env.mailer.AssertExpectations(t)
}

func TestDeliverReusesStoredArtifact(t *testing.T) {
	env := setup(t, false)
	env.mailer.On("SendCertificateEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

	_, err := env.service.Deliver(context.Background(), env.cert.ID, false)
	require.NoError(t, err)

	result, err := env.service.Deliver(context.Background(), env.cert.ID, false)
	require.NoError(t, err)
	assert.False(t, result.Regenerated)
	assert.Equal(t, 1, env.store.puts)
}

func TestDeliverFallsBackWhenStoreUnreadable(t *testing.T) {
	env := setup(t, false)
	env.mailer.On("SendCertificateEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

	_, err := env.service.Deliver(context.Background(), env.cert.ID, false)
	require.NoError(t, err)

	env.store.getErr = errors.New("bucket offline")
	result, err := env.service.Deliver(context.Background(), env.cert.ID, false)
	require.NoError(t, err)
	assert.True(t, result.Regenerated)
	assert.Equal(t, 2, env.store.puts)
}

func TestDeliverMailFailureKeepsStoredURL(t *testing.T) {
	env := setup(t, true)
	env.mailer.On("SendCertificateEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	_, err := env.service.Deliver(context.Background(), env.cert.ID, false)
	require.Error(t, err)

	var stored models.Certificate
	require.NoError(t, env.db.First(&stored, "id = ?", env.cert.ID).Error)
	assert.True(t, stored.HasArtifact())
}

func TestDeliverUnknownCertificate(t *testing.T) {
	env := setup(t, true)
	_, err := env.service.Deliver(context.Background(), uuid.New(), false)
	assert.True(t, errors.Is(err, errutil.ErrNotFound))
}

func TestResendRegenerates(t *testing.T) {
	env := setup(t, true)
	env.mailer.On("SendCertificateEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := env.service.Deliver(context.Background(), env.cert.ID, false)
	require.NoError(t, err)

	admin := uuid.New()
	result, err := env.service.Resend(context.Background(), &admin, env.cert.ID)
	require.NoError(t, err)

	assert.Equal(t, queue.JobStatusCompleted, result.Job.Status)
	assert.True(t, result.Certificate.HasArtifact())
	assert.Equal(t, 2, env.store.puts)

	var logs []audit.AuditLog
	require.NoError(t, env.db.Where("action = ?", audit.ActionResendCertificate).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, env.cert.ID.String(), logs[0].EntityID)
}

func TestResendReusesWhenConfigured(t *testing.T) {
	env := setup(t, false)
	env.mailer.On("SendCertificateEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := env.service.Deliver(context.Background(), env.cert.ID, false)
	require.NoError(t, err)

	result, err := env.service.Resend(context.Background(), nil, env.cert.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusCompleted, result.Job.Status)
	assert.Equal(t, 1, env.store.puts)
}

func TestResendReportsDeliveryFailureOnJob(t *testing.T) {
	env := setup(t, true)
	env.mailer.On("SendCertificateEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	result, err := env.service.Resend(context.Background(), nil, env.cert.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.JobStatusFailed, result.Job.Status)
	assert.Contains(t, result.Job.Error, "smtp down")
}

func TestResendUnknownCertificate(t *testing.T) {
	env := setup(t, true)
	_, err := env.service.Resend(context.Background(), nil, uuid.New())
	assert.True(t, errors.Is(err, errutil.ErrNotFound))
}
