package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCronAuth(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		skip   bool
		header string
		want   int
	}{
		{"matching secret", "s3cret", false, "Bearer s3cret", http.StatusOK},
		{"wrong secret", "s3cret", false, "Bearer nope", http.StatusUnauthorized},
		{"missing header", "s3cret", false, "", http.StatusUnauthorized},
		{"unset secret rejects everything", "", false, "Bearer ", http.StatusUnauthorized},
		{"skip in development", "", true, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/cron/scan", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			CronAuth(tt.secret, tt.skip, zap.NewNop())(http.HandlerFunc(okHandler)).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}
