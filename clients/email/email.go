// Package email sends rendered warning messages through a transactional email provider.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/clubpulse/activity-monitor/config"
)

// Message is a single outbound email
type Message struct {
	To      string
	Subject string
	HTML    string
	From    string
	ReplyTo string
}

// Result is the provider's acknowledgement of an accepted message
type Result struct {
	ID string
}

// Sender delivers one message. Ordinary delivery failures are returned as *SendError.
type Sender interface {
	Send(ctx context.Context, msg Message) (*Result, error)
	Name() string
}

// SendError represents a delivery failure reported by a provider
type SendError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface
func (e *SendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap implements error unwrapping
func (e *SendError) Unwrap() error {
	return e.Cause
}

func newSendError(provider, code, message string, statusCode int, cause error) *SendError {
	return &SendError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewSender builds the sender selected by cfg.Provider
func NewSender(cfg config.EmailConfig) (Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "resend":
		return NewResendSender(ResendConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}), nil
	case "smtp":
		return NewSMTPSender(SMTPConfig{
			Host:          cfg.SMTP.Host,
			Port:          cfg.SMTP.Port,
			Username:      cfg.SMTP.Username,
			Password:      cfg.SMTP.Password,
			SkipTLSVerify: cfg.SMTP.SkipTLSVerify,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported email provider %q", cfg.Provider)
	}
}
