// Package handlers serves the processor's operational endpoints.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/telhawk-systems/sportsagg/common/database"
	"github.com/telhawk-systems/sportsagg/common/httputil"
	"github.com/telhawk-systems/sportsagg/processor/internal/service"
	"github.com/telhawk-systems/sportsagg/processor/internal/sourcestats"
)

// StatsSource reports processor counters.
type StatsSource interface {
	Health() service.Stats
}

// DLQStats reports dead-letter queue counters.
type DLQStats interface {
	Stats(ctx context.Context) map[string]any
}

// SourceStats reports per-source outcome counters shared across instances.
type SourceStats interface {
	All(ctx context.Context) (map[string]*sourcestats.Stats, error)
}

// Check is one readiness dependency. A failing optional check is reported
// but does not make the service unready.
type Check struct {
	Name     string
	Optional bool
	Probe    func(ctx context.Context) error
}

// CheckResult is the outcome of one Check.
type CheckResult struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ReadyResponse is returned by /readyz.
type ReadyResponse struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]CheckResult `json:"checks"`
}

// StatsResponse is returned by /stats.
type StatsResponse struct {
	Processor    service.Stats                 `json:"processor"`
	DLQ          map[string]any                `json:"dlq,omitempty"`
	Sources      map[string]*sourcestats.Stats `json:"sources,omitempty"`
	SourcesError string                        `json:"sources_error,omitempty"`
}

// OpsHandler manages the health and stats endpoints.
type OpsHandler struct {
	stats   StatsSource
	dlq     DLQStats
	sources SourceStats
	checks  []Check
}

// NewOpsHandler constructs a new handler. dlq may be nil.
func NewOpsHandler(stats StatsSource, dlq DLQStats, checks ...Check) *OpsHandler {
	return &OpsHandler{stats: stats, dlq: dlq, checks: checks}
}

// WithSourceStats adds per-source counters to /stats.
func (h *OpsHandler) WithSourceStats(sources SourceStats) *OpsHandler {
	h.sources = sources
	return h
}

// Health handles GET /healthz. It only reports that the process is serving.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": h.stats.Health().UptimeSeconds,
	})
}

// Ready handles GET /readyz by probing every dependency.
func (h *OpsHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := database.PingContext(r.Context())
	defer cancel()

	resp := ReadyResponse{Ready: true, Checks: make(map[string]CheckResult, len(h.checks))}
	for _, check := range h.checks {
		result := CheckResult{Status: "ok", Optional: check.Optional}
		if err := check.Probe(ctx); err != nil {
			result.Status = "failed"
			result.Error = err.Error()
			if !check.Optional {
				resp.Ready = false
			}
		}
		resp.Checks[check.Name] = result
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

// Stats handles GET /stats.
func (h *OpsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := StatsResponse{Processor: h.stats.Health()}
	if h.dlq != nil {
		resp.DLQ = h.dlq.Stats(ctx)
	}
	if h.sources != nil {
		sources, err := h.sources.All(ctx)
		if err != nil {
			resp.SourcesError = err.Error()
		} else {
			resp.Sources = sources
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
