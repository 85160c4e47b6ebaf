// Package handler provides HTTP handlers for the weatherboard API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/weatherboard/weatherboard/internal/api/models"
	"github.com/weatherboard/weatherboard/internal/api/response"
	"github.com/weatherboard/weatherboard/internal/provider/resilience"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	userStore Pinger
	registry  *resilience.Registry
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. userStore and registry may be nil.
func NewOpsHandler(version, buildTime string, userStore Pinger, registry *resilience.Registry) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		userStore: userStore,
		registry:  registry,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. The user store failing makes the
// service unready; an unhealthy weather provider only degrades it, since
// cached forecasts can still be served.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := models.Readiness{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.userStore != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		sub := models.SubsystemStatus{Name: "user-store", Status: models.HealthStatusOK}
		if err := h.userStore.Ping(ctx); err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			ready.Status = models.HealthStatusFail
		}
		ready.Subsystems = append(ready.Subsystems, sub)
	}

	if h.registry != nil {
		for _, ph := range h.registry.GetAllHealth() {
			ps := models.ProviderStatus{
				Provider:            ph.Name,
				Status:              providerStatus(ph),
				CircuitState:        ph.CircuitState.String(),
				ConsecutiveFailures: int(ph.Counts.ConsecutiveFailures),
			}
			if ph.LastSuccessAt != nil {
				ts := models.Timestamp(*ph.LastSuccessAt)
				ps.LastSuccessAt = &ts
			}
			if ph.LastFailureAt != nil {
				ts := models.Timestamp(*ph.LastFailureAt)
				ps.LastFailureAt = &ts
			}
			if ph.LastError != "" {
				msg := ph.LastError
				ps.Message = &msg
			}
			if ps.Status != models.HealthStatusOK && ready.Status == models.HealthStatusOK {
				ready.Status = models.HealthStatusDegraded
			}
			ready.Providers = append(ready.Providers, ps)
		}
	}

	status := http.StatusOK
	if ready.Status == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, ready)
}

func providerStatus(ph *resilience.ProviderHealth) models.HealthStatus {
	switch ph.Status() {
	case resilience.StatusHealthy:
		return models.HealthStatusOK
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}
