package queue

import "github.com/google/uuid"

// CertificateDeliverPayload is the payload of certificate.deliver jobs.
// Regenerate forces a fresh render even when a stored PDF exists.
type CertificateDeliverPayload struct {
	CertificateID uuid.UUID `json:"certificate_id"`
	Regenerate    bool      `json:"regenerate"`
}

// SubmissionNotifyPayload is the payload of submission.notify jobs
type SubmissionNotifyPayload struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}

// PayoutNotifyPayload is the payload of payout.notify jobs
type PayoutNotifyPayload struct {
	RedeemRequestID uuid.UUID `json:"redeem_request_id"`
	Action          string    `json:"action"`
}
