package certificate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/config"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/queue"
	"github.com/referralhub/backend/internal/security/audit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Mailer sends the certificate email
type Mailer interface {
	SendCertificateEmail(toEmail, name, courseName, accessCode string, pdf []byte) error
}

// Outbox persists and runs delivery jobs
type Outbox interface {
	Enqueue(tx *gorm.DB, jobType queue.JobType, payload interface{}) (*queue.Job, error)
	Dispatch(ctx context.Context, jobs ...*queue.Job)
	GetJob(jobID string) (*queue.Job, error)
}

// AuditRecorder appends audit rows through the given transaction
type AuditRecorder interface {
	Record(tx *gorm.DB, entry audit.Entry) (*audit.AuditLog, error)
}

// Service renders, stores and mails certificates
type Service struct {
	db                 *gorm.DB
	renderer           *Renderer
	store              ArtifactStore
	mailer             Mailer
	outbox             Outbox
	audit              AuditRecorder
	regenerateOnResend bool
	log                *zap.Logger
}

// NewService creates a certificate service
func NewService(db *gorm.DB, renderer *Renderer, store ArtifactStore, mailer Mailer, outbox Outbox, recorder AuditRecorder, cfg config.CertificateConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		db:                 db,
		renderer:           renderer,
		store:              store,
		mailer:             mailer,
		outbox:             outbox,
		audit:              recorder,
		regenerateOnResend: cfg.RegenerateOnResend,
		log:                log.Named("certificate"),
	}
}

// ObjectKey is the storage key of a certificate's PDF
func ObjectKey(certificateID uuid.UUID) string {
	return fmt.Sprintf("certificates/%s.pdf", certificateID)
}

// DeliveryResult is recorded as the outcome of a certificate.deliver job
type DeliveryResult struct {
	CertificateID uuid.UUID `json:"certificate_id"`
	PDFURL        string    `json:"pdf_url"`
	Regenerated   bool      `json:"regenerated"`
	SentTo        string    `json:"sent_to"`
}

// Deliver makes sure the certificate has a stored PDF and emails it to its
// owner. A stored PDF is reused unless regenerate is set or it cannot be read.
func (s *Service) Deliver(ctx context.Context, certificateID uuid.UUID, regenerate bool) (*DeliveryResult, error) {
	var cert models.Certificate
	if err := s.db.WithContext(ctx).Preload("User").First(&cert, "id = ?", certificateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("certificate %s not found", certificateID)
		}
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	log := s.log.With(zap.String("certificate_id", certificateID.String()))
	key := ObjectKey(cert.ID)

	var pdf []byte
	if !regenerate && cert.HasArtifact() {
		data, err := s.store.Get(ctx, key)
		if err != nil {
			log.Warn("stored certificate unreadable, rendering again", zap.Error(err))
		} else {
			pdf = data
		}
	}

	result := &DeliveryResult{
		CertificateID: cert.ID,
		PDFURL:        cert.PDFURL,
		SentTo:        cert.User.Email,
	}

	if pdf == nil {
		data, err := s.renderer.Render(Document{
			RecipientName: cert.User.Name,
			CourseName:    cert.CourseName,
			AccessCode:    cert.AccessCode,
			IssuedAt:      cert.IssuedAt,
		})
		if err != nil {
			return nil, err
		}

		url, err := s.store.Put(ctx, key, data)
		if err != nil {
			return nil, err
		}

		if err := s.db.WithContext(ctx).Model(&models.Certificate{}).
			Where("id = ?", cert.ID).
			Update("pdf_url", url).Error; err != nil {
			return nil, fmt.Errorf("failed to save certificate url: %w", err)
		}

		pdf = data
		result.PDFURL = url
		result.Regenerated = true
	}

	if err := s.mailer.SendCertificateEmail(cert.User.Email, cert.User.Name, cert.CourseName, cert.AccessCode, pdf); err != nil {
		return nil, err
	}

	log.Info("certificate delivered", zap.Bool("regenerated", result.Regenerated))
	return result, nil
}

// ResendResult reports a resend request and the job that carried it out
type ResendResult struct {
	Certificate *models.Certificate `json:"certificate"`
	Job         *queue.Job          `json:"job"`
}

// Resend queues a new delivery of an issued certificate and runs it right
// away. Delivery failures show up on the returned job, not as an error.
func (s *Service) Resend(ctx context.Context, actor *uuid.UUID, certificateID uuid.UUID) (*ResendResult, error) {
	var job *queue.Job

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cert models.Certificate
		if err := tx.First(&cert, "id = ?", certificateID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errutil.NotFound("certificate %s not found", certificateID)
			}
			return errutil.Internal("failed to load certificate", err)
		}

		details := fmt.Sprintf("Resent certificate %s (regenerate=%t)", cert.AccessCode, s.regenerateOnResend)
		if _, err := s.audit.Record(tx, audit.Entry{
			AdminID:    actor,
			Action:     audit.ActionResendCertificate,
			EntityID:   cert.ID,
			EntityType: audit.EntityCertificate,
			Details:    details,
		}); err != nil {
			return errutil.Internal("failed to write audit log", err)
		}

		var err error
		job, err = s.outbox.Enqueue(tx, queue.JobTypeCertificateDeliver, queue.CertificateDeliverPayload{
			CertificateID: cert.ID,
			Regenerate:    s.regenerateOnResend,
		})
		if err != nil {
			return errutil.Internal("failed to enqueue certificate delivery", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.outbox.Dispatch(ctx, job)

	refreshed, err := s.outbox.GetJob(job.ID.String())
	if err != nil {
		return nil, errutil.Internal("failed to reload job", err)
	}

	var cert models.Certificate
	if err := s.db.WithContext(ctx).First(&cert, "id = ?", certificateID).Error; err != nil {
		return nil, errutil.Internal("failed to reload certificate", err)
	}

	return &ResendResult{Certificate: &cert, Job: refreshed}, nil
}
