package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nowtrain.tokyo/internal/app"
	"nowtrain.tokyo/internal/appconf"
	"nowtrain.tokyo/internal/clock"
	"nowtrain.tokyo/internal/engine"
	"nowtrain.tokyo/internal/logging"
	"nowtrain.tokyo/internal/metrics"
	"nowtrain.tokyo/internal/restapi"
)

const (
	exitOK        = 0
	exitDataLoad  = 1
	exitBadConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := appconf.LoadConfig()
	if err != nil {
		logging.LogError(logger, "fatal configuration error", err)
		return exitBadConfig
	}

	coreApp, err := BuildApplication(cfg)
	if err != nil {
		logging.LogError(logger, "static data load failed", err)
		return exitDataLoad
	}

	srv, api := CreateServer(coreApp, cfg)
	defer api.Shutdown()

	coreApp.Manager.Start()
	defer coreApp.Manager.Shutdown()

	if err := serveUntilSignal(srv, logger); err != nil {
		logging.LogError(logger, "server error", err)
		return exitDataLoad
	}

	return exitOK
}

// BuildApplication loads static data and assembles the application's
// dependencies.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	logger := slog.Default()
	clk := clock.RealClock{}
	m := metrics.NewWithLogger(logger)

	manager, err := engine.NewManager(cfg, clk, m)
	if err != nil {
		return nil, err
	}

	return &app.Application{
		Config:  cfg,
		Logger:  logger,
		Manager: manager,
		Clock:   clk,
		Metrics: m,
	}, nil
}

// CreateServer builds the HTTP server and its API. The caller owns both and
// must call api.Shutdown when done.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	api := restapi.NewRestAPI(coreApp)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return srv, api
}

// serveUntilSignal runs the server until SIGINT/SIGTERM, then shuts down
// gracefully.
func serveUntilSignal(srv *http.Server, logger *slog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logging.LogOperation(logger, "server_started", slog.String("addr", srv.Addr))

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logging.LogOperation(logger, "shutting_down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
