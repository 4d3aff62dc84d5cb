package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/referralhub/backend/internal/queue"
	"github.com/referralhub/backend/internal/services/certificate"
)

// CertificateDeliverer renders, stores and mails a certificate
type CertificateDeliverer interface {
	Deliver(ctx context.Context, certificateID uuid.UUID, regenerate bool) (*certificate.DeliveryResult, error)
}

// CertificateDeliveryJob handles certificate.deliver jobs
type CertificateDeliveryJob struct {
	certificates CertificateDeliverer
}

// NewCertificateDeliveryJob creates a new certificate delivery job handler
func NewCertificateDeliveryJob(certificates CertificateDeliverer) *CertificateDeliveryJob {
	return &CertificateDeliveryJob{certificates: certificates}
}

// RegisterCertificateJobHandlers registers the certificate delivery handler
func RegisterCertificateJobHandlers(q Registrar, certificates CertificateDeliverer) {
	handler := NewCertificateDeliveryJob(certificates)
	q.RegisterHandler(queue.JobTypeCertificateDeliver, handler.Process)
}

// Process delivers the certificate named in the job payload
func (j *CertificateDeliveryJob) Process(ctx context.Context, job queue.Job) (interface{}, error) {
	var payload queue.CertificateDeliverPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal certificate delivery payload: %w", err)
	}

	result, err := j.certificates.Deliver(ctx, payload.CertificateID, payload.Regenerate)
	if err != nil {
		return nil, err
	}
	return result, nil
}
