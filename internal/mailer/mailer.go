package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"cakeshop/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer sends outbound notification email. A single attempt, no retry.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

type smtpMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer creates a Mailer backed by a plain SMTP transport
func NewSMTPMailer(cfg config.SMTPConfig) Mailer {
	return &smtpMailer{cfg: cfg}
}

// Send delivers a plain-text message. It blocks until the SMTP exchange
// completes or fails; ctx is accepted for interface symmetry but the
// underlying transport does not support cancellation.
func (m *smtpMailer) Send(_ context.Context, to, subject, body string) error {
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	return nil
}
