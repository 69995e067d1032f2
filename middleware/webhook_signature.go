package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clubpulse/activity-monitor/utils"
	"go.uber.org/zap"
)

// Svix-style webhook headers used by the email provider
const (
	WebhookIDHeader        = "svix-id"
	WebhookTimestampHeader = "svix-timestamp"
	WebhookSignatureHeader = "svix-signature"

	webhookSecretPrefix = "whsec_"
	maxWebhookBody      = 1 << 20
)

// WebhookTolerance is the accepted clock skew for signed webhooks
var WebhookTolerance = 5 * time.Minute

// VerifyWebhookSignature checks the body HMAC against the signature headers.
// An empty secret disables verification. The body is restored for the next handler.
func VerifyWebhookSignature(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				_ = utils.WriteBadRequest(w, "Failed to read request body", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if secret != "" {
				if err := verifySignature(secret, r.Header, body, time.Now()); err != nil {
					logger.Warn("webhook signature rejected",
						zap.String("request_id", GetRequestIDFromContext(r.Context())),
						zap.Error(err))
					_ = utils.WriteUnauthorized(w, "Invalid webhook signature")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func verifySignature(secret string, header http.Header, body []byte, now time.Time) error {
	id := header.Get(WebhookIDHeader)
	timestamp := header.Get(WebhookTimestampHeader)
	signatures := header.Get(WebhookSignatureHeader)
	if id == "" || timestamp == "" || signatures == "" {
		return fmt.Errorf("missing signature headers")
	}

	sec, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	if skew := now.Sub(time.Unix(sec, 0)); skew > WebhookTolerance || skew < -WebhookTolerance {
		return fmt.Errorf("timestamp outside tolerance")
	}

	key, err := webhookKey(secret)
	if err != nil {
		return err
	}

	expected := SignWebhook(key, id, timestamp, body)
	for _, candidate := range strings.Fields(signatures) {
		version, sig, ok := strings.Cut(candidate, ",")
		if !ok || version != "v1" {
			continue
		}
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("signature mismatch")
}

// webhookKey decodes a "whsec_" prefixed base64 secret; other secrets are used as raw bytes
func webhookKey(secret string) ([]byte, error) {
	if !strings.HasPrefix(secret, webhookSecretPrefix) {
		return []byte(secret), nil
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, webhookSecretPrefix))
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret encoding: %w", err)
	}
	return key, nil
}

// SignWebhook computes the base64 HMAC-SHA256 of "id.timestamp.body"
func SignWebhook(key []byte, id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
