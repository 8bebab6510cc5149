// Package server exposes the ingestion service's ops endpoints.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/sportsagg/common/httputil"
	"github.com/telhawk-systems/sportsagg/common/middleware"
	"github.com/telhawk-systems/sportsagg/ingestion/internal/scheduler"
)

// StatsSource reports per-source counters.
type StatsSource interface {
	Stats() map[string]scheduler.SourceStats
}

// ConnChecker reports whether the bus connection is up.
type ConnChecker interface {
	IsConnected() bool
}

type opsHandler struct {
	stats     StatsSource
	conn      ConnChecker
	startedAt time.Time
}

// NewRouter wires /healthz, /readyz, /stats and /metrics.
func NewRouter(stats StatsSource, conn ConnChecker) http.Handler {
	h := &opsHandler{stats: stats, conn: conn, startedAt: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	mux.HandleFunc("/readyz", h.ready)
	mux.HandleFunc("/stats", h.sources)
	mux.Handle("/metrics", promhttp.Handler())
	return middleware.RequestID(mux)
}

func (h *opsHandler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

func (h *opsHandler) ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if h.conn != nil && !h.conn.IsConnected() {
		httputil.WriteError(w, http.StatusServiceUnavailable, "not_ready", "nats: not connected")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (h *opsHandler) sources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sources": h.stats.Stats()})
}
