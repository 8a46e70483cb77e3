// Package engine assembles the position engine: static catalog, timetable,
// segment index, fusion worker, and the query-time materializer.
package engine

import (
	"log/slog"

	"nowtrain.tokyo/internal/appconf"
	"nowtrain.tokyo/internal/catalog"
	"nowtrain.tokyo/internal/clock"
	"nowtrain.tokyo/internal/fusion"
	"nowtrain.tokyo/internal/logging"
	"nowtrain.tokyo/internal/metrics"
	"nowtrain.tokyo/internal/position"
	"nowtrain.tokyo/internal/segment"
	"nowtrain.tokyo/internal/timetable"
)

// Manager owns the engine's components and their lifecycle. The catalog's
// static fields, the timetable, and the segment index are frozen after
// NewManager returns. After startup the fusion worker publishes fused sets
// and admin edits write station rank and dwell; nothing else writes.
type Manager struct {
	Catalog      *catalog.Catalog
	Store        *timetable.Store
	Index        *segment.Index
	Calendar     *segment.Calendar
	Publisher    *fusion.Publisher
	Materializer *position.Materializer

	worker *fusion.Worker
	clock  clock.Clock
	ready  bool
}

// NewManager loads all static data and wires the engine. Load failures are
// fatal; callers exit with status 1.
func NewManager(cfg appconf.Config, clk clock.Clock, m *metrics.Metrics) (*Manager, error) {
	logger := slog.Default().With(slog.String("component", "engine"))

	cat, err := catalog.Load(cfg.StaticDataDir, catalog.DefaultBounds)
	if err != nil {
		return nil, err
	}

	store, err := timetable.Load(cfg.StaticDataDir, cat)
	if err != nil {
		return nil, err
	}

	cal, err := segment.NewCalendar(cfg.Location, cfg.StaticDataDir)
	if err != nil {
		return nil, err
	}

	lineIDs := make([]string, 0)
	for _, line := range cat.Lines() {
		lineIDs = append(lineIDs, line.ID)
	}
	index := segment.BuildIndex(store, lineIDs)

	publisher := fusion.NewPublisher(clk.Now())
	fuser := fusion.NewFuser(store, index, cal, m)
	worker := fusion.NewWorker(fuser, publisher, fusion.Config{
		FeedURL:         cfg.GTFSRTURL,
		APIKey:          cfg.GTFSRTKey,
		RefreshInterval: cfg.RefreshInterval(),
	}, clk, m)

	mgr := &Manager{
		Catalog:      cat,
		Store:        store,
		Index:        index,
		Calendar:     cal,
		Publisher:    publisher,
		Materializer: position.NewMaterializer(cat, index, cal, publisher, cfg.RefreshInterval()),
		worker:       worker,
		clock:        clk,
		ready:        true,
	}

	logging.LogOperation(logger, "engine_initialized",
		slog.Int("lines", len(lineIDs)),
		slog.Int("trips", store.TripCount()))

	return mgr, nil
}

// Start launches the fusion worker.
func (m *Manager) Start() {
	m.worker.Start()
}

// Shutdown stops the fusion worker and waits for it to exit.
func (m *Manager) Shutdown() {
	m.worker.Shutdown()
}

// IsReady reports whether static data is loaded and indexed.
func (m *Manager) IsReady() bool {
	return m != nil && m.ready
}
