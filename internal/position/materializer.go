// Package position materializes train positions: given a line and an
// instant it fuses the segment index with the latest delay schedules and
// projects every active trip onto the line geometry.
package position

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"nowtrain.tokyo/internal/catalog"
	"nowtrain.tokyo/internal/fusion"
	"nowtrain.tokyo/internal/segment"
	"nowtrain.tokyo/internal/timetable"
	"nowtrain.tokyo/internal/utils"
)

// ErrCanceled is returned when the query deadline elapses mid-enumeration.
var ErrCanceled = errors.New("query canceled")

// Status is the motion state of one train.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusUnknown Status = "unknown"
	StatusInvalid Status = "invalid"
)

// Quality tags the trustworthiness of one position.
type Quality string

const (
	QualityGood     Quality = "good"
	QualityStale    Quality = "stale"
	QualityRejected Quality = "rejected"
	QualitySuspect  Quality = "suspect"
)

// Position is one train's stable snapshot at the query instant.
type Position struct {
	TrainNumber string
	TripID      string
	LineID      string
	Direction   string
	Status      Status

	// StationID is set while stopped.
	StationID string

	// FromStationID/ToStationID/Progress describe a running train.
	FromStationID string
	ToStationID   string
	Progress      float64

	Coord        catalog.Coord
	Bearing      float64
	DelaySeconds int
	Quality      Quality
}

// Materializer answers position queries. All fields are read-only; the fused
// snapshot is taken once per query.
type Materializer struct {
	catalog   *catalog.Catalog
	index     *segment.Index
	cal       *segment.Calendar
	publisher *fusion.Publisher
	refresh   time.Duration
}

// NewMaterializer wires the query-time dependencies.
func NewMaterializer(cat *catalog.Catalog, index *segment.Index, cal *segment.Calendar, publisher *fusion.Publisher, refresh time.Duration) *Materializer {
	return &Materializer{
		catalog:   cat,
		index:     index,
		cal:       cal,
		publisher: publisher,
		refresh:   refresh,
	}
}

// Positions enumerates every train on the line at the given instant. A
// malformed trip never fails the call; it is either omitted or returned with
// an invalid status. The context deadline is honored at segment-iteration
// boundaries.
func (m *Materializer) Positions(ctx context.Context, lineID string, at time.Time) ([]Position, error) {
	line, err := m.catalog.Line(lineID)
	if err != nil {
		return nil, err
	}

	effectiveSec := m.cal.EffectiveSeconds(at)
	serviceType := m.cal.ServiceTypeAt(at)

	// One snapshot for the whole call; a concurrent publish is invisible.
	snapshot := m.publisher.Snapshot()
	stale := m.publisher.Stale(at, m.refresh)

	active := m.index.TrainsAt(lineID, effectiveSec, serviceType)

	positions := make([]Position, 0, len(active))
	for _, a := range active {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
		}

		pos, ok := m.materialize(line, a, snapshot, effectiveSec, stale)
		if !ok {
			continue
		}
		positions = append(positions, pos)
	}

	sort.Slice(positions, func(i, j int) bool {
		if positions[i].TrainNumber != positions[j].TrainNumber {
			return positions[i].TrainNumber < positions[j].TrainNumber
		}
		return positions[i].TripID < positions[j].TripID
	})

	return positions, nil
}

// materialize turns one schedule-active segment into a position, applying
// the trip's delay schedule first.
func (m *Materializer) materialize(line *catalog.Line, a segment.Active, snapshot *fusion.FusedTripSet, effectiveSec int, stale bool) (Position, bool) {
	trip := a.Segment.Trip
	offsets := snapshot.Offsets(trip.ID)

	pos := Position{
		TrainNumber: trainNumberOf(trip),
		TripID:      trip.ID,
		LineID:      line.ID,
		Direction:   trip.Direction,
	}

	if a.Invalid {
		pos.Status = StatusInvalid
		pos.Quality = QualityRejected
		pos.StationID = a.Segment.FromStationID
		if pos.StationID == "" {
			pos.StationID = a.Segment.StationID
		}
		m.placeAtStation(&pos, line, pos.StationID)
		return pos, true
	}

	seg, shiftedStart, held := m.resolveShifted(line, a.Segment, offsets, effectiveSec)
	if seg == nil {
		// The delay schedule moved the whole trip off this instant
		// (early-running beyond its final stop); nothing to report.
		return Position{}, false
	}

	switch {
	case held:
		// The trip has not yet reached this segment under its delay
		// schedule; it is being held at the segment's origin.
		pos.Status = StatusStopped
		pos.StationID = originStation(seg)
		pos.DelaySeconds = offsets.OffsetAt(originIdx(seg))
		m.placeAtStation(&pos, line, pos.StationID)

	case seg.Kind == segment.KindDwell:
		pos.Status = StatusStopped
		pos.StationID = seg.StationID
		pos.DelaySeconds = offsets.OffsetAt(seg.StationIdx)
		m.placeAtStation(&pos, line, seg.StationID)

	default:
		start := shiftedStart
		end := seg.EndSec + offsets.OffsetAt(seg.ToIdx)

		// Timetables that write arrival == departure at the origin assume
		// the dwell; hold the train at the platform for the station's dwell
		// allowance before the run begins.
		if seg.OriginZeroDwell {
			hold := m.catalog.StationDwell(seg.FromStationID)
			if start+hold < end && effectiveSec < start+hold {
				pos.Status = StatusStopped
				pos.StationID = seg.FromStationID
				pos.DelaySeconds = offsets.OffsetAt(seg.FromIdx)
				m.placeAtStation(&pos, line, seg.FromStationID)
				break
			}
			if start+hold < end {
				start += hold
			}
		}

		progress := 0.0
		if end > start {
			progress = float64(effectiveSec-start) / float64(end-start)
		}
		if progress < 0 {
			progress = 0
		} else if progress > 1 {
			progress = 1
		}

		pos.Status = StatusRunning
		pos.FromStationID = seg.FromStationID
		pos.ToStationID = seg.ToStationID
		pos.Progress = progress
		pos.DelaySeconds = offsets.OffsetAt(seg.ToIdx)
		m.placeOnRun(&pos, line, seg, progress)
	}

	switch {
	case pos.Status == StatusInvalid || pos.Status == StatusUnknown:
		pos.Quality = QualityRejected
	case offsets != nil && offsets.Suspect:
		pos.Quality = QualitySuspect
	case stale:
		pos.Quality = QualityStale
	default:
		pos.Quality = QualityGood
	}

	return pos, true
}

// resolveShifted finds the trip segment whose delay-shifted window covers
// the instant. The schedule-active segment usually still covers it; when the
// shift moved the window, the trip's other segments are searched so the trip
// reports exactly one position. held is true when the instant falls before
// the trip's first shifted window: the train is late reaching the returned
// segment and sits at its origin.
func (m *Materializer) resolveShifted(line *catalog.Line, active *segment.Segment, offsets *fusion.TripOffsets, effectiveSec int) (seg *segment.Segment, shiftedStart int, held bool) {
	start, end := shiftedWindow(active, offsets)
	if effectiveSec >= start && effectiveSec < end {
		return active, start, false
	}

	trip := active.Trip
	segs := m.index.TripSegments(line.ID, trip.ID)
	for _, s := range segs {
		if s.Degenerate() {
			continue
		}
		sStart, sEnd := shiftedWindow(s, offsets)
		if effectiveSec >= sStart && effectiveSec < sEnd {
			return s, sStart, false
		}
		// Monotone offsets keep the shifted windows ordered, so the first
		// window starting past the instant is where the trip is headed.
		if sStart > effectiveSec {
			if effectiveSec < trip.FirstArrivalSec() {
				return nil, 0, false
			}
			return s, sStart, true
		}
	}

	return nil, 0, false
}

// shiftedWindow applies the trip's delay schedule to one segment: a dwell
// shifts by its station's offset, a run by its origin-departure and
// destination-arrival offsets.
func shiftedWindow(s *segment.Segment, offsets *fusion.TripOffsets) (start, end int) {
	if s.Kind == segment.KindDwell {
		off := offsets.OffsetAt(s.StationIdx)
		return s.StartSec + off, s.EndSec + off
	}
	return s.StartSec + offsets.OffsetAt(s.FromIdx), s.EndSec + offsets.OffsetAt(s.ToIdx)
}

func originStation(s *segment.Segment) string {
	if s.Kind == segment.KindDwell {
		return s.StationID
	}
	return s.FromStationID
}

func originIdx(s *segment.Segment) int {
	if s.Kind == segment.KindDwell {
		return s.StationIdx
	}
	return s.FromIdx
}

// placeAtStation sets the coordinate and bearing for a train sitting at a
// station: the station's catalog coordinate and the line's tangent at its
// anchor, oriented by travel direction.
func (m *Materializer) placeAtStation(pos *Position, line *catalog.Line, stationID string) {
	st, ok := m.catalog.Station(stationID)
	if !ok {
		pos.Status = StatusUnknown
		return
	}
	pos.Coord = st.Coord

	shape := line.Shape
	if shape == nil {
		return
	}
	anchor, ok := shape.Anchors[stationID]
	if !ok {
		return
	}
	pos.Bearing = shape.BearingAtDistance(shape.CumDist[anchor], m.tripRunsForward(line, pos.TripID, stationID))
}

// placeOnRun interpolates the coordinate along the stitched polyline by arc
// length between the two station anchors, wrapping across the seam on loop
// lines. Lines without usable geometry fall back to the straight chord
// between station coordinates.
func (m *Materializer) placeOnRun(pos *Position, line *catalog.Line, seg *segment.Segment, progress float64) {
	from, okFrom := m.catalog.Station(seg.FromStationID)
	to, okTo := m.catalog.Station(seg.ToStationID)
	if !okFrom || !okTo {
		pos.Status = StatusUnknown
		return
	}

	shape := line.Shape
	if shape == nil {
		pos.Coord = catalog.Coord{
			Lon: from.Coord.Lon + (to.Coord.Lon-from.Coord.Lon)*progress,
			Lat: from.Coord.Lat + (to.Coord.Lat-from.Coord.Lat)*progress,
		}
		pos.Bearing = chordBearing(from.Coord, to.Coord)
		return
	}

	anchorFrom, okA := shape.Anchors[seg.FromStationID]
	anchorTo, okB := shape.Anchors[seg.ToStationID]
	if !okA || !okB {
		pos.Coord = catalog.Coord{
			Lon: from.Coord.Lon + (to.Coord.Lon-from.Coord.Lon)*progress,
			Lat: from.Coord.Lat + (to.Coord.Lat-from.Coord.Lat)*progress,
		}
		pos.Bearing = chordBearing(from.Coord, to.Coord)
		return
	}

	distFrom := shape.CumDist[anchorFrom]
	distTo := shape.CumDist[anchorTo]
	total := shape.TotalLength()

	var target float64
	forward := true
	switch {
	case distTo > distFrom:
		target = distFrom + progress*(distTo-distFrom)
	case distTo < distFrom && shape.Loop:
		// The run bridges the polyline seam: walk forward through the end
		// of the vertex list and wrap to its head.
		span := (total - distFrom) + distTo
		target = distFrom + progress*span
		if target > total {
			target -= total
		}
	case distTo < distFrom:
		forward = false
		target = distFrom - progress*(distFrom-distTo)
	default:
		// Anchors collapse to one vertex; sit on it.
		target = distFrom
	}

	pos.Coord = shape.PointAtDistance(target)
	pos.Bearing = shape.BearingAtDistance(target, forward)
}

// tripRunsForward reports whether the trip traverses the polyline in
// increasing arc-length order around the given station.
func (m *Materializer) tripRunsForward(line *catalog.Line, tripID, stationID string) bool {
	shape := line.Shape
	if shape == nil {
		return true
	}

	segs := m.index.TripSegments(line.ID, tripID)
	for _, s := range segs {
		if s.Kind != segment.KindMotion {
			continue
		}
		if s.FromStationID != stationID && s.ToStationID != stationID {
			continue
		}
		a, okA := shape.Anchors[s.FromStationID]
		b, okB := shape.Anchors[s.ToStationID]
		if !okA || !okB || a == b {
			continue
		}
		if shape.Loop && shape.CumDist[b] < shape.CumDist[a] {
			return true
		}
		return shape.CumDist[b] > shape.CumDist[a]
	}
	return true
}

func chordBearing(from, to catalog.Coord) float64 {
	return utils.Bearing(from.Lat, from.Lon, to.Lat, to.Lon)
}

func trainNumberOf(trip *timetable.Trip) string {
	if trip.NormalizedNumber != "" {
		return trip.NormalizedNumber
	}
	return trip.Number
}
