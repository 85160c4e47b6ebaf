package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherboard/weatherboard/internal/provider/resilience"
)

func newRegisteredClient(registry *resilience.Registry, name string) *resilience.Client {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Registry = registry
	return resilience.NewClient(cfg)
}

func TestRegistry_RegisterAndGetHealth(t *testing.T) {
	registry := resilience.NewRegistry()
	client := newRegisteredClient(registry, "openweathermap")

	assert.Equal(t, 1, registry.ProviderCount())
	assert.Equal(t, "openweathermap", client.Name())

	health := registry.GetHealth("openweathermap")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.Equal(t, resilience.StatusHealthy, health.Status())
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	_ = newRegisteredClient(registry, "ip-api")

	registry.Unregister("ip-api")

	assert.Equal(t, 0, registry.ProviderCount())
	assert.Nil(t, registry.GetHealth("ip-api"))
}

func TestRegistry_RecordOutcomes(t *testing.T) {
	registry := resilience.NewRegistry()
	_ = newRegisteredClient(registry, "openweathermap")

	registry.RecordSuccess("openweathermap")
	registry.RecordFailure("openweathermap", assert.AnError)

	health := registry.GetHealth("openweathermap")
	require.NotNil(t, health)
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)
	assert.Equal(t, assert.AnError.Error(), health.LastError)
}

func TestRegistry_UnknownNamesIgnored(t *testing.T) {
	registry := resilience.NewRegistry()

	assert.NotPanics(t, func() {
		registry.RecordSuccess("missing")
		registry.RecordFailure("missing", assert.AnError)
	})
	assert.Nil(t, registry.GetHealth("missing"))
}

func TestRegistry_SortedListings(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"b", "c", "a"} {
		_ = newRegisteredClient(registry, name)
	}

	assert.Equal(t, []string{"a", "b", "c"}, registry.GetProviderNames())

	all := registry.GetAllHealth()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "c", all[2].Name)
}

func TestRegistry_ClientReportsOutcomes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("upstream")
	cfg.Registry = registry
	cfg.DisableRetries = true
	client := resilience.NewClient(cfg)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL+"/ok", http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	health := registry.GetHealth("upstream")
	require.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	req, err = http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL+"/fail", http.NoBody)
	require.NoError(t, err)
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	health = registry.GetHealth("upstream")
	require.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "Bad Gateway")
}

func TestProviderHealth_Status(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  string
	}{
		{gobreaker.StateClosed, resilience.StatusHealthy},
		{gobreaker.StateHalfOpen, resilience.StatusDegraded},
		{gobreaker.StateOpen, resilience.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.ProviderHealth{CircuitState: tt.state}
			assert.Equal(t, tt.want, h.Status())
			assert.Equal(t, tt.state == gobreaker.StateClosed, h.IsHealthy())
			assert.Equal(t, tt.state == gobreaker.StateHalfOpen, h.IsDegraded())
			assert.Equal(t, tt.state == gobreaker.StateOpen, h.IsUnhealthy())
		})
	}
}
