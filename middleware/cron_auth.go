package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/clubpulse/activity-monitor/utils"
	"go.uber.org/zap"
)

// CronAuth guards the scheduled trigger endpoints with a shared-secret bearer token.
// When skip is true (development) every request passes.
func CronAuth(secret string, skip bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearerToken(r)
			if secret == "" || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				logger.Warn("cron trigger rejected",
					zap.String("request_id", GetRequestIDFromContext(r.Context())),
					zap.String("path", r.URL.Path))
				_ = utils.WriteUnauthorized(w, "Invalid cron secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
