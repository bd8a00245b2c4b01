package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linkage/internal/platform/metrics"
	"linkage/internal/platform/middleware"
)

// NewRouter wires the public endpoints behind the standard middleware
// chain. /metrics sits outside the request-logging chain to keep scrape
// noise out of the logs.
func NewRouter(h *Handler, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	root := chi.NewRouter()
	root.Handle("/metrics", promhttp.Handler())

	api := chi.NewRouter()
	api.Use(middleware.Recovery(logger))
	api.Use(middleware.RequestID)
	api.Use(middleware.Logger(logger))
	api.Use(middleware.Timeout(30 * time.Second))
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.Latency(m))
	h.Register(api)

	root.Mount("/", api)
	return root
}
