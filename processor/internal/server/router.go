package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/sportsagg/common/middleware"
	"github.com/telhawk-systems/sportsagg/processor/internal/handlers"
)

// NewRouter wires the ops routes for the processor service.
func NewRouter(h *handlers.OpsHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)
	mux.HandleFunc("/stats", h.Stats)
	mux.Handle("/metrics", promhttp.Handler())
	return middleware.RequestID(mux)
}
