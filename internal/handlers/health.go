package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/logger"
)

const healthCheckTimeout = 5 * time.Second

// HealthCheck is one named dependency probe
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthChecker handles health check requests
type HealthChecker struct {
	checks []HealthCheck
	logger *zap.Logger
}

// NewHealthChecker creates a new health checker. Checks run in the given order
// in extended mode.
func NewHealthChecker(logger *zap.Logger, checks ...HealthCheck) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthChecker{checks: checks, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthCheck handles the /healthz endpoint
func (h *HealthChecker) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	statusCode := http.StatusOK

	if r.URL.Query().Get("mode") == "extended" {
		response.Checks = make(map[string]string, len(h.checks))
		for _, c := range h.checks {
			if err := h.run(r.Context(), c); err != nil {
				response.Status = "unhealthy"
				response.Checks[c.Name] = "unhealthy: " + sanitizeErrorMessage(logger.SanitizeError(err))
				h.logger.Warn("health_check_failed", zap.String("check", c.Name), zap.Error(err))
				continue
			}
			response.Checks[c.Name] = "healthy"
		}
		if response.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Debug("failed_to_write_health_response", zap.Error(err))
	}
}

func (h *HealthChecker) run(ctx context.Context, c HealthCheck) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return c.Check(ctx)
}
