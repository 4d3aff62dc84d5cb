package email

import (
	"bytes"
	"errors"
	"testing"

	"github.com/referralhub/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

func newTestService(t *testing.T) (*EmailService, *[]*gomail.Message) {
	t.Helper()

	s := NewEmailService(config.SMTPConfig{
		Host:      "smtp.example.com",
		Port:      587,
		FromEmail: "no-reply@example.com",
		FromName:  "ReferralHub",
	}, "https://app.example.com")

	var sent []*gomail.Message
	s.send = func(m *gomail.Message) error {
		sent = append(sent, m)
		return nil
	}
	return s, &sent
}

func TestSendCertificateEmail(t *testing.T) {
	s, sent := newTestService(t)

	err := s.SendCertificateEmail("ada@example.com", "Ada", "Intro to Go", "CERT-ABCD-EFGH", []byte("%PDF-1.3"))
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	m := (*sent)[0]
	assert.Equal(t, []string{"Your certificate for Intro to Go"}, m.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "certificate-CERT-ABCD-EFGH.pdf")
}

func TestSendSubmissionRejectedEmail(t *testing.T) {
	s, sent := newTestService(t)

	reason := "proof link is broken"
	require.NoError(t, s.SendSubmissionRejectedEmail("ada@example.com", "Ada", "Intro", &reason))
	require.Len(t, *sent, 1)
	assert.Equal(t, []string{"Update on your submission for Intro"}, (*sent)[0].GetHeader("Subject"))
}

func TestRejectionMessageEscapesReason(t *testing.T) {
	reason := "<script>alert(1)</script>"
	msg := rejectionMessage("ada@example.com", "Ada", "Intro", &reason)

	assert.NotContains(t, msg.HTMLBody, "<script>")
	assert.Contains(t, msg.HTMLBody, "&lt;script&gt;")

	msg = rejectionMessage("ada@example.com", "Ada", "Intro", nil)
	assert.NotContains(t, msg.HTMLBody, "Reviewer note")
}

func TestCertificateMessageAttachment(t *testing.T) {
	msg := certificateMessage("ada@example.com", "Ada", "Intro", "CERT-1", []byte("pdf"))
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "certificate-CERT-1.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, []byte("pdf"), msg.Attachments[0].Content)
}

func TestPayoutStatusEmailSubjects(t *testing.T) {
	s, sent := newTestService(t)

	txID := "TXN-1"
	require.NoError(t, s.SendPayoutStatusEmail("ada@example.com", "Ada", PayoutStatus{Status: "PAID", Points: 1000, Amount: "10.00", TransactionID: &txID}))
	require.NoError(t, s.SendPayoutStatusEmail("ada@example.com", "Ada", PayoutStatus{Status: "REJECTED", Points: 200}))

	require.Len(t, *sent, 2)
	assert.Equal(t, []string{"Redeem request PAID"}, (*sent)[0].GetHeader("Subject"))
	assert.Equal(t, []string{"Redeem request REJECTED"}, (*sent)[1].GetHeader("Subject"))
}

func TestSendWithoutHost(t *testing.T) {
	s := NewEmailService(config.SMTPConfig{}, "")
	err := s.SendCertificateEmail("ada@example.com", "Ada", "Intro", "CERT-1", nil)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestSendWrapsTransportError(t *testing.T) {
	s, _ := newTestService(t)
	s.send = func(m *gomail.Message) error { return errors.New("dial tcp: refused") }

	err := s.Send(Message{To: "ada@example.com", Subject: "x", HTMLBody: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ada@example.com")
}

func TestLayoutEscapesName(t *testing.T) {
	body := layout("<b>Ada</b>", "<p>content</p>")
	assert.Contains(t, body, "&lt;b&gt;Ada&lt;/b&gt;")
	assert.Contains(t, body, "<p>content</p>")

	assert.Contains(t, layout("", ""), "Hello there,")
}
