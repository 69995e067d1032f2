package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultResendBaseURL = "https://api.resend.com"

// ResendConfig configures the Resend HTTP API client
type ResendConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// ResendSender implements Sender over the Resend REST API
type ResendSender struct {
	config     ResendConfig
	httpClient *http.Client
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// NewResendSender creates a new Resend sender
func NewResendSender(config ResendConfig) *ResendSender {
	if config.BaseURL == "" {
		config.BaseURL = defaultResendBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}

	return &ResendSender{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider name
func (s *ResendSender) Name() string {
	return "resend"
}

// Send posts the message to /emails
func (s *ResendSender) Send(ctx context.Context, msg Message) (*Result, error) {
	if s.config.APIKey == "" {
		return nil, newSendError(s.Name(), "NOT_CONFIGURED", "API key is not set", 0, nil)
	}

	reqBody, err := json.Marshal(resendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return nil, newSendError(s.Name(), "MARSHAL_ERROR", "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.config.BaseURL, "/")+"/emails", bytes.NewReader(reqBody))
	if err != nil {
		return nil, newSendError(s.Name(), "REQUEST_ERROR", "failed to create request", 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, newSendError(s.Name(), "HTTP_ERROR", "request failed", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, newSendError(s.Name(), "READ_ERROR", "failed to read response", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp resendErrorResponse
		message := fmt.Sprintf("unexpected status %d", httpResp.StatusCode)
		code := "API_ERROR"
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			message = errResp.Message
			if errResp.Name != "" {
				code = errResp.Name
			}
		}
		return nil, newSendError(s.Name(), code, message, httpResp.StatusCode, nil)
	}

	var resp resendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, newSendError(s.Name(), "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, err)
	}
	if resp.ID == "" {
		return nil, newSendError(s.Name(), "MISSING_ID", "response did not include a message id", httpResp.StatusCode, nil)
	}

	return &Result{ID: resp.ID}, nil
}
