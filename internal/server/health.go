package server

import (
	"net/http"
	"os"
	"time"
)

// HealthStatus represents the overall health of the system.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component.
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health is the complete health check response.
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth is the health of a single component.
type ComponentHealth struct {
	Status  ComponentStatus `json:"status"`
	Message string          `json:"message,omitempty"`
	Details any             `json:"details,omitempty"`
}

// handleHealth serves the unauthenticated health probe. Degraded still
// answers 200 so load balancers keep routing; only unhealthy returns 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	health := s.checkHealth()
	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

func (s *Server) checkHealth() Health {
	health := Health{
		Timestamp:  time.Now().UTC(),
		Version:    s.cfg.Build.Version,
		Components: make(map[string]ComponentHealth),
	}

	health.Components["storage"] = s.checkStorageHealth()
	if s.backup != nil {
		health.Components["backup"] = s.backup.Health()
	}

	health.Status = determineOverallHealth(health.Components)
	return health
}

// checkStorageHealth verifies the storage root is both readable and
// writable, since every archive operation depends on it.
func (s *Server) checkStorageHealth() ComponentHealth {
	names, err := s.store.List()
	if err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "storage root unreadable: " + err.Error(),
		}
	}

	probe, err := os.CreateTemp(s.store.Root(), ".probe-*")
	if err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDegraded,
			Message: "storage root not writable: " + err.Error(),
			Details: map[string]any{"archives": len(names)},
		}
	}
	probe.Close()
	os.Remove(probe.Name())

	return ComponentHealth{
		Status:  ComponentStatusUp,
		Message: "storage healthy",
		Details: map[string]any{"archives": len(names)},
	}
}

func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var downCount, degradedCount int
	for _, c := range components {
		switch c.Status {
		case ComponentStatusDown:
			downCount++
		case ComponentStatusDegraded:
			degradedCount++
		}
	}
	if downCount > 0 {
		return HealthStatusUnhealthy
	}
	if degradedCount > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
