package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherboard/weatherboard/internal/config"
	"github.com/weatherboard/weatherboard/internal/telemetry"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:  "weatherboard-api",
		OTLPEndpoint: "localhost:4317",
		Enabled:      false,
	})

	require.NoError(t, err)
	assert.Nil(t, provider.TracerProvider)
	assert.Nil(t, provider.MeterProvider)
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, telemetry.Sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, telemetry.Sampler(1.5).Description(), "AlwaysOnSampler")
	assert.Contains(t, telemetry.Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
	assert.Contains(t, telemetry.Sampler(0.25).Description(), "ParentBased")
}

func TestInit_EnabledWithoutEndpoint(t *testing.T) {
	_, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "weatherboard-api",
		Enabled:     true,
	})
	assert.ErrorIs(t, err, telemetry.ErrMissingEndpoint)
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		Env: "production",
		Telemetry: config.TelemetryConfig{
			Enabled:        true,
			OTLPEndpoint:   "otel-collector:4317",
			SampleRatio:    0.5,
			MetricInterval: time.Minute,
		},
	}

	cfg := telemetry.FromAppConfig(app, "weatherboard-worker", "1.2.3")

	assert.Equal(t, telemetry.Config{
		ServiceName:    "weatherboard-worker",
		ServiceVersion: "1.2.3",
		Environment:    "production",
		OTLPEndpoint:   "otel-collector:4317",
		Enabled:        true,
		SampleRatio:    0.5,
		MetricInterval: time.Minute,
	}, cfg)
}
