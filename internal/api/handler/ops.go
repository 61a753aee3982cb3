package handler

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/api/response"
	"github.com/safewalk/safewalk/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	db        *pgxpool.Pool
}

// NewOpsHandler creates a new OpsHandler. registry and db may be nil when the
// corresponding subsystem is not configured.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, db *pgxpool.Pool) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		db:        db,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Fails when the
// database is configured but unreachable.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"postgres": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(now),
		Subsystems: h.subsystems(r),
		Providers:  []models.ProviderStatus{},
	}

	for _, sub := range status.Subsystems {
		if sub.Status == models.HealthStatusFail {
			status.Status = models.HealthStatusDegraded
		}
	}

	if h.registry != nil {
		for _, health := range h.registry.GetAllHealth() {
			status.Providers = append(status.Providers, providerStatus(health))
		}
	}
	for _, p := range status.Providers {
		if p.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) subsystems(r *http.Request) []models.SubsystemStatus {
	subs := []models.SubsystemStatus{
		{Name: "cache", Status: models.HealthStatusOK},
	}

	if h.db != nil {
		pg := models.SubsystemStatus{Name: "postgres", Status: models.HealthStatusOK}
		if err := h.db.Ping(r.Context()); err != nil {
			msg := err.Error()
			pg.Status = models.HealthStatusFail
			pg.Detail = &msg
		}
		subs = append(subs, pg)
	}

	return subs
}

func providerStatus(health *resilience.ProviderHealth) models.ProviderStatus {
	p := models.ProviderStatus{
		Provider: health.Name,
		Status:   models.HealthStatusOK,
	}

	switch {
	case health.IsUnhealthy():
		p.Status = models.HealthStatusFail
	case health.IsDegraded():
		p.Status = models.HealthStatusDegraded
	}

	if health.LastSuccessAt != nil {
		ts := models.Timestamp(*health.LastSuccessAt)
		p.LastSuccessAt = &ts
	}
	if health.LastFailureAt != nil {
		ts := models.Timestamp(*health.LastFailureAt)
		p.LastFailureAt = &ts
	}
	if health.LastError != "" {
		msg := health.LastError
		p.Message = &msg
	}

	return p
}
