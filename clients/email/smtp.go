package email

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	mail "gopkg.in/gomail.v2"
)

// SMTPConfig configures the SMTP relay
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	SkipTLSVerify bool
}

// dialer is the part of *mail.Dialer the sender uses
type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPSender implements Sender over an SMTP relay. SMTP has no provider-side message id,
// so one is generated locally and set as the Message-ID header.
type SMTPSender struct {
	config SMTPConfig
	dialer dialer
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	d := mail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         config.Host,
		InsecureSkipVerify: config.SkipTLSVerify,
	}
	return &SMTPSender{config: config, dialer: d}
}

// Name returns the provider name
func (s *SMTPSender) Name() string {
	return "smtp"
}

// Send builds the MIME message and hands it to the relay
func (s *SMTPSender) Send(ctx context.Context, msg Message) (*Result, error) {
	if s.config.Host == "" {
		return nil, newSendError(s.Name(), "NOT_CONFIGURED", "SMTP host is not set", 0, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, newSendError(s.Name(), "CANCELED", "send canceled", 0, err)
	}

	id := uuid.NewString()

	m := mail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", id, s.config.Host))
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return nil, newSendError(s.Name(), "SMTP_ERROR", "relay rejected message", 0, err)
	}

	return &Result{ID: id}, nil
}
