package fusion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/OneBusAway/go-gtfs"

	"nowtrain.tokyo/internal/clock"
	"nowtrain.tokyo/internal/logging"
	"nowtrain.tokyo/internal/metrics"
	"nowtrain.tokyo/internal/segment"
	"nowtrain.tokyo/internal/timetable"
)

// Config holds the fusion worker's feed settings.
type Config struct {
	FeedURL         string
	APIKey          string
	RefreshInterval time.Duration
}

// Fuser matches realtime trips against the timetable and builds fused sets.
// It never mutates the segment index or the timetable store.
type Fuser struct {
	store   *timetable.Store
	index   *segment.Index
	cal     *segment.Calendar
	metrics *metrics.Metrics
}

// NewFuser wires the fusion dependencies.
func NewFuser(store *timetable.Store, index *segment.Index, cal *segment.Calendar, m *metrics.Metrics) *Fuser {
	return &Fuser{store: store, index: index, cal: cal, metrics: m}
}

// Fuse converts one decoded feed snapshot into an immutable FusedTripSet.
// Unmatched realtime trips are counted and skipped; matched trips with no
// usable delay information still publish a zero-offset schedule so quality
// tags can propagate.
func (f *Fuser) Fuse(rt *gtfs.Realtime, now time.Time) *FusedTripSet {
	logger := slog.Default().With(slog.String("component", "fusion"))

	serviceType := f.cal.ServiceTypeAt(now)
	effectiveSec := f.cal.EffectiveSeconds(now)

	set := &FusedTripSet{
		Generated:     now,
		FeedTimestamp: rt.CreatedAt,
		ByTripID:      make(map[string]*TripOffsets, len(rt.Trips)),
	}

	matched, unmatched, suspect := 0, 0, 0
	for i := range rt.Trips {
		rtTrip := &rt.Trips[i]
		if len(rtTrip.StopTimeUpdates) == 0 {
			continue
		}

		trip := f.matchTrip(rtTrip, serviceType, effectiveSec, logger)
		if trip == nil {
			unmatched++
			continue
		}

		offsets, _ := buildOffsets(trip, rtTrip)
		if offsets.Suspect {
			suspect++
		}
		set.ByTripID[trip.ID] = offsets
		matched++
	}

	if f.metrics != nil {
		f.metrics.TripsMatched.Set(float64(matched))
		f.metrics.TripsUnmatchedTotal.Add(float64(unmatched))
		f.metrics.TripsSuspectTotal.Add(float64(suspect))
	}

	logging.LogOperation(logger, "fused_trip_set_built",
		slog.Int("matched", matched),
		slog.Int("unmatched", unmatched),
		slog.Int("suspect", suspect),
		slog.Int("feed_entities", len(rt.Trips)))

	return set
}

// Worker is the single long-running fusion task. It fetches the feed every
// refresh interval and publishes complete sets through the Publisher.
type Worker struct {
	fuser     *Fuser
	publisher *Publisher
	config    Config
	clock     clock.Clock
	metrics   *metrics.Metrics

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// NewWorker creates a fusion worker. Call Start to begin the refresh loop.
func NewWorker(fuser *Fuser, publisher *Publisher, config Config, clk clock.Clock, m *metrics.Metrics) *Worker {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = 30 * time.Second
	}
	return &Worker{
		fuser:        fuser,
		publisher:    publisher,
		config:       config,
		clock:        clk,
		metrics:      m,
		shutdownChan: make(chan struct{}),
	}
}

// Start launches the background refresh loop. It is a no-op when no feed URL
// is configured; the engine then serves pure timetable positions.
func (w *Worker) Start() {
	if w.config.FeedURL == "" {
		logging.LogOperation(slog.Default().With(slog.String("component", "fusion_updater")),
			"no_feed_configured_skipping_realtime_updates")
		return
	}

	w.wg.Add(1)
	go w.run()
}

// Shutdown stops the refresh loop and waits for it to exit. Safe to call
// multiple times.
func (w *Worker) Shutdown() {
	w.shutdownOnce.Do(func() {
		close(w.shutdownChan)
	})
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()

	logger := slog.Default().With(slog.String("component", "fusion_updater"))

	ticker := time.NewTicker(w.config.RefreshInterval)
	defer ticker.Stop()

	// One immediate cycle so the first queries are not a full period behind.
	w.cycle(logger)

	for {
		select {
		case <-ticker.C:
			w.cycle(logger)
		case <-w.shutdownChan:
			logging.LogOperation(logger, "shutting_down_realtime_updates")
			return
		}
	}
}

// cycle performs one fetch-parse-match-publish round. Transport and parse
// failures retain the previous set and count toward the degrade threshold.
func (w *Worker) cycle(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	logging.LogOperation(logger, "updating_gtfs_realtime_data")

	rt, err := fetchFeed(ctx, w.config.FeedURL, w.config.APIKey)
	if err != nil {
		w.publisher.RecordFailure()
		w.observeHealth()
		logging.LogError(logger, "Error loading GTFS-RT trip updates data", err,
			slog.String("url", w.config.FeedURL),
			slog.Int("consecutive_failures", w.publisher.ConsecutiveFailures()),
			slog.String("publisher_status", w.publisher.Status().String()))
		if w.metrics != nil {
			w.metrics.FusionCyclesTotal.WithLabelValues("failure").Inc()
		}
		return
	}

	now := w.clock.Now()
	set := w.fuser.Fuse(rt, now)
	w.publisher.Publish(set)
	w.observeHealth()

	if w.metrics != nil {
		w.metrics.FusionCyclesTotal.WithLabelValues("success").Inc()
		if !set.FeedTimestamp.IsZero() {
			w.metrics.FeedAgeSeconds.Set(now.Sub(set.FeedTimestamp).Seconds())
		}
	}
}

func (w *Worker) observeHealth() {
	if w.metrics != nil {
		w.metrics.FusionConsecutiveFailures.Set(float64(w.publisher.ConsecutiveFailures()))
	}
}
