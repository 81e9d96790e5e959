package middleware

import (
	"net/http"

	"go.uber.org/zap"

	logpkg "github.com/tensai-22/penal-sub001/internal/logger"
	"github.com/tensai-22/penal-sub001/internal/request"
)

// auditEvents maps the statuses worth a security log line to their event name
var auditEvents = map[int]string{
	http.StatusTooManyRequests:       "rate_limit_violation",
	http.StatusRequestEntityTooLarge: "oversized_request",
	http.StatusUnsupportedMediaType:  "unsupported_media_type",
}

// Audit logs abuse-related responses for monitoring
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			event, ok := auditEvents[wrapped.statusCode]
			if !ok {
				return
			}
			logger.Warn(event,
				zap.Int("status_code", wrapped.statusCode),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				zap.String("request_id", request.RequestIDFromContext(r.Context())),
			)
		})
	}
}
