package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker(t *testing.T) {
	t.Parallel()

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }
	needsDeadline := func(ctx context.Context) error {
		if _, has := ctx.Deadline(); !has {
			return errors.New("no deadline")
		}
		return nil
	}

	tests := []struct {
		name       string
		mode       string
		checks     []HealthCheck
		wantStatus int
		wantBody   string
		wantChecks map[string]string
	}{
		{
			name:       "basic mode skips checks",
			checks:     []HealthCheck{{Name: "database", Check: down}},
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
		},
		{
			name:       "extended all healthy",
			mode:       "extended",
			checks:     []HealthCheck{{Name: "database", Check: ok}, {Name: "redis", Check: needsDeadline}},
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
			wantChecks: map[string]string{"database": "healthy", "redis": "healthy"},
		},
		{
			name:       "extended one failing",
			mode:       "extended",
			checks:     []HealthCheck{{Name: "database", Check: ok}, {Name: "queue", Check: down}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unhealthy",
			wantChecks: map[string]string{"database": "healthy", "queue": "unhealthy: dial tcp: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewHealthChecker(nil, tt.checks...)
			rr := httptest.NewRecorder()
			h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/healthz?mode="+tt.mode, nil))

			require.Equal(t, tt.wantStatus, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, tt.wantBody, body["status"])
			if tt.wantChecks == nil {
				assert.NotContains(t, body, "checks")
				return
			}
			got := map[string]string{}
			for k, v := range body["checks"].(map[string]any) {
				got[k] = v.(string)
			}
			assert.Equal(t, tt.wantChecks, got)
		})
	}
}

func TestVersionHandler(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	VersionHandler(BuildInfo{Commit: "abc123"})(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	data := decodeBody(t, rr)["data"].(map[string]any)
	assert.Equal(t, "dev", data["version"])
	assert.Equal(t, "abc123", data["commit"])
	assert.NotEmpty(t, data["go_version"])
}
