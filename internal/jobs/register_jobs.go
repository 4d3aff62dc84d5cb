package jobs

import (
	"github.com/referralhub/backend/internal/queue"
	"gorm.io/gorm"
)

// Registrar is the part of the queue job handlers are registered on
type Registrar interface {
	RegisterHandler(jobType queue.JobType, handler queue.JobHandler)
}

// RegisterAllJobHandlers registers all job handlers with the queue
func RegisterAllJobHandlers(q Registrar, db *gorm.DB, certificates CertificateDeliverer, mailer NotificationMailer) {
	RegisterCertificateJobHandlers(q, certificates)
	RegisterSubmissionNotifyJobHandlers(q, db, mailer)
	RegisterPayoutNotifyJobHandlers(q, db, mailer)
}
