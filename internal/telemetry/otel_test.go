package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "host and port", cfg: Config{ServiceName: "casedesk-api", Endpoint: "localhost:4318"}},
		{name: "url endpoint", cfg: Config{ServiceName: "casedesk-api", ServiceVersion: "1.2.3", Endpoint: "https://otel.example.com:4318"}},
		{name: "default endpoint", cfg: Config{ServiceName: "casedesk-worker"}},
		{name: "empty service name", cfg: Config{SampleRatio: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			tp, err := InitTracer(ctx, tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, tp)

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			assert.NoError(t, Shutdown(shutdownCtx, tp))
		})
	}
}

func TestSampler(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AlwaysOnSampler", sampler(0).Description())
	assert.Equal(t, "AlwaysOnSampler", sampler(1).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestShutdown_NilProvider(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Shutdown(context.Background(), nil))
}
