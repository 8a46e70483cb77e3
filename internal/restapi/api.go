// Package restapi exposes the engine's HTTP query surface.
package restapi

import (
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nowtrain.tokyo/internal/app"
	"nowtrain.tokyo/internal/appconf"
)

// queryTimeout bounds the in-memory work of a single position query.
const queryTimeout = 5 * time.Second

// RestAPI wires HTTP handlers to the application.
type RestAPI struct {
	*app.Application

	rateLimiter *RateLimitMiddleware
}

// NewRestAPI creates the API for the given application.
func NewRestAPI(application *app.Application) *RestAPI {
	return &RestAPI{
		Application: application,
		rateLimiter: NewRateLimitMiddleware(application.Config.RateLimit, time.Second, application.Clock),
	}
}

// Shutdown releases background resources held by middleware.
func (api *RestAPI) Shutdown() {
	if api.rateLimiter != nil {
		api.rateLimiter.Stop()
	}
}

// Routes builds the full handler chain.
func (api *RestAPI) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /positions", api.positionsHandler)
	mux.HandleFunc("GET /lines", api.linesHandler)
	mux.HandleFunc("GET /stations", api.stationsHandler)
	mux.HandleFunc("GET /shape", api.shapeHandler)
	mux.HandleFunc("PUT /stations/{id}/rank", api.stationRankHandler)
	mux.HandleFunc("GET /health", api.healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))

	if api.Config.Env != appconf.Production {
		mux.HandleFunc("GET /debug/fused", api.debugFusedHandler)
	}

	var handler http.Handler = mux
	handler = api.rateLimiter.Handler()(handler)
	handler = MetricsHandler(api.Metrics)(handler)
	handler = NewRequestLoggingMiddleware(api.Logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = CORSMiddleware(api.Config.CORSAllowOrigins)(handler)
	handler = gzhttp.GzipHandler(handler)

	return handler
}
