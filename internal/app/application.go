package app

import (
	"log/slog"

	"nowtrain.tokyo/internal/appconf"
	"nowtrain.tokyo/internal/clock"
	"nowtrain.tokyo/internal/engine"
	"nowtrain.tokyo/internal/metrics"
)

// Application holds the dependencies for our HTTP handlers, helpers,
// and middleware.
type Application struct {
	Config  appconf.Config
	Logger  *slog.Logger
	Manager *engine.Manager
	Clock   clock.Clock
	Metrics *metrics.Metrics
}
