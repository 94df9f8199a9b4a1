package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClientCounter is satisfied by *live.Hub.
type ClientCounter interface {
	ClientCount() int
}

type HealthHandlers struct {
	db      Pinger
	live    ClientCounter
	version string
}

// NewHealthHandlers creates health handlers. db and live may be nil when the
// journal or the live feed is disabled.
func NewHealthHandlers(db Pinger, live ClientCounter, version string) *HealthHandlers {
	return &HealthHandlers{
		db:      db,
		live:    live,
		version: version,
	}
}

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Latency string       `json:"latency,omitempty"`
	Message string       `json:"message,omitempty"`
}

type HealthResponse struct {
	Status      HealthStatus               `json:"status"`
	Version     string                     `json:"version"`
	Uptime      string                     `json:"uptime"`
	Timestamp   string                     `json:"timestamp"`
	LiveClients int                        `json:"live_clients"`
	Components  map[string]ComponentHealth `json:"components"`
}

var startTime = time.Now()

const healthCheckTimeout = 5 * time.Second

func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	components := make(map[string]ComponentHealth)
	overallStatus := HealthStatusHealthy

	journal := h.checkJournal(ctx)
	components["journal"] = journal
	if journal.Status != HealthStatusHealthy {
		// Every accepted webhook is journaled, so deliveries fail with it.
		overallStatus = HealthStatusUnhealthy
	}

	resp := HealthResponse{
		Status:     overallStatus,
		Version:    h.version,
		Uptime:     time.Since(startTime).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	if h.live != nil {
		resp.LiveClients = h.live.ClientCount()
		components["live"] = ComponentHealth{Status: HealthStatusHealthy}
	} else {
		components["live"] = ComponentHealth{Status: HealthStatusHealthy, Message: "disabled"}
	}

	status := http.StatusOK
	if overallStatus == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	JSON(w, status, resp)
}

func (h *HealthHandlers) checkJournal(ctx context.Context) ComponentHealth {
	if h.db == nil {
		return ComponentHealth{
			Status:  HealthStatusHealthy,
			Message: "disabled",
		}
	}

	start := time.Now()
	err := h.db.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  HealthStatusUnhealthy,
			Latency: latency.String(),
			Message: "database ping failed",
		}
	}

	return ComponentHealth{
		Status:  HealthStatusHealthy,
		Latency: latency.String(),
	}
}
