package email

import (
	"errors"
	"fmt"
	"html"
	"io"

	"github.com/referralhub/backend/internal/config"
	"gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned when no SMTP host is set
var ErrNotConfigured = errors.New("email service not configured")

// Attachment is a file sent along with a message
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is a rendered email ready to send
type Message struct {
	To          string
	ToName      string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// EmailService renders and sends the program's transactional emails
type EmailService struct {
	cfg         config.SMTPConfig
	frontendURL string
	send        func(*gomail.Message) error
}

// NewEmailService creates a new email service
func NewEmailService(cfg config.SMTPConfig, frontendURL string) *EmailService {
	s := &EmailService{
		cfg:         cfg,
		frontendURL: frontendURL,
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	s.send = func(m *gomail.Message) error {
		return dialer.DialAndSend(m)
	}

	return s
}

// SendCertificateEmail sends the certificate PDF to the student
func (s *EmailService) SendCertificateEmail(toEmail, name, courseName, accessCode string, pdf []byte) error {
	return s.Send(certificateMessage(toEmail, name, courseName, accessCode, pdf))
}

func certificateMessage(toEmail, name, courseName, accessCode string, pdf []byte) Message {
	return Message{
		To:      toEmail,
		ToName:  name,
		Subject: fmt.Sprintf("Your certificate for %s", courseName),
		HTMLBody: layout(name, fmt.Sprintf(`
				<p>Congratulations! Your submission for <strong>%s</strong> has been approved.</p>
				<p>Your certificate is attached to this email. You can also verify it with the access code <strong>%s</strong>.</p>`,
			html.EscapeString(courseName), html.EscapeString(accessCode))),
		Attachments: []Attachment{{
			Filename: fmt.Sprintf("certificate-%s.pdf", accessCode),
			Content:  pdf,
		}},
	}
}

// SendSubmissionRejectedEmail tells the student a submission was not accepted
func (s *EmailService) SendSubmissionRejectedEmail(toEmail, name, taskTitle string, reason *string) error {
	return s.Send(rejectionMessage(toEmail, name, taskTitle, reason))
}

func rejectionMessage(toEmail, name, taskTitle string, reason *string) Message {
	detail := "<p>You are welcome to submit again.</p>"
	if reason != nil && *reason != "" {
		detail = fmt.Sprintf("<p>Reviewer note: %s</p>%s", html.EscapeString(*reason), detail)
	}

	return Message{
		To:      toEmail,
		ToName:  name,
		Subject: fmt.Sprintf("Update on your submission for %s", taskTitle),
		HTMLBody: layout(name, fmt.Sprintf(`
				<p>Your submission for <strong>%s</strong> was not approved.</p>
				%s`, html.EscapeString(taskTitle), detail)),
	}
}

// PayoutStatus describes a redeem request change for the status email
type PayoutStatus struct {
	Status        string
	Points        int64
	Amount        string
	TransactionID *string
	Note          *string
}

// SendPayoutStatusEmail notifies the student of a redeem request change
func (s *EmailService) SendPayoutStatusEmail(toEmail, name string, status PayoutStatus) error {
	var summary string
	switch status.Status {
	case "APPROVED":
		summary = fmt.Sprintf("Your request to redeem %d points has been approved. A payout of %s is being prepared.", status.Points, status.Amount)
	case "REJECTED":
		summary = fmt.Sprintf("Your request to redeem %d points was declined. The points have been returned to your balance.", status.Points)
	case "PAID":
		summary = fmt.Sprintf("Your payout of %s has been sent.", status.Amount)
		if status.TransactionID != nil {
			summary += fmt.Sprintf(" Reference: %s.", *status.TransactionID)
		}
	default:
		summary = fmt.Sprintf("Your redeem request is now %s.", status.Status)
	}

	body := fmt.Sprintf("<p>%s</p>", html.EscapeString(summary))
	if status.Note != nil && *status.Note != "" {
		body += fmt.Sprintf("<p>Note from the team: %s</p>", html.EscapeString(*status.Note))
	}
	if s.frontendURL != "" {
		body += fmt.Sprintf(`<p><a href="%s/rewards" class="button">View your rewards</a></p>`, html.EscapeString(s.frontendURL))
	}

	msg := Message{
		To:       toEmail,
		ToName:   name,
		Subject:  fmt.Sprintf("Redeem request %s", status.Status),
		HTMLBody: layout(name, body),
	}

	return s.Send(msg)
}

// Send delivers a rendered message over SMTP
func (s *EmailService) Send(msg Message) error {
	if s.cfg.Host == "" {
		return ErrNotConfigured
	}

	if err := s.send(s.buildMessage(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

func (s *EmailService) buildMessage(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.FromEmail, s.cfg.FromName)
	if msg.ToName != "" {
		m.SetAddressHeader("To", msg.To, msg.ToName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)

	for _, a := range msg.Attachments {
		content := a.Content
		m.Attach(a.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}

	return m
}

func layout(name, content string) string {
	if name == "" {
		name = "there"
	}

	return fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: Arial, sans-serif; line-height: 1.6; }
			.container { max-width: 600px; margin: 0 auto; padding: 20px; }
			.header { background-color: #0F766E; color: white; padding: 10px; text-align: center; }
			.content { padding: 20px; }
			.button { display: inline-block; background-color: #0F766E; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header">
				<h1>ReferralHub</h1>
			</div>
			<div class="content">
				<h2>Hello %s,</h2>
				%s
				<p>Best regards,<br>The ReferralHub Team</p>
			</div>
		</div>
	</body>
	</html>
	`, html.EscapeString(name), content)
}
