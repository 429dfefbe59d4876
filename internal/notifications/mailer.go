package notifications

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/warehouse-flow/pkg/config"
	"gopkg.in/gomail.v2"
)

// Alert is one email sent to the warehouse recipients.
type Alert struct {
	Subject  string
	HTMLBody string
}

// Mailer delivers alerts.
type Mailer interface {
	Send(ctx context.Context, alert Alert) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends alerts through the configured SMTP relay.
type SMTPMailer struct {
	dialer dialer
	from   string
	to     []string
}

func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("smtp host and recipients are required")
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(strings.TrimSpace(cfg.SMTPHost), cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:   cfg.From,
		to:     cfg.RecipientList(),
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", alert.Subject)
	msg.SetBody("text/html", alert.HTMLBody)
	return m.dialer.DialAndSend(msg)
}
