package segment

import (
	"log/slog"
	"sort"

	"nowtrain.tokyo/internal/logging"
	"nowtrain.tokyo/internal/timetable"
)

// bucketSeconds is the coarse time-bucket width of the per-line index.
const bucketSeconds = 300

// Active is one trip's unique covering segment at a query instant.
type Active struct {
	Segment *Segment

	// Progress in [0,1] for motion segments; 0 for dwells and degenerate
	// segments.
	Progress float64

	// Invalid is set for degenerate (zero-duration) segments.
	Invalid bool
}

type bucketRange struct {
	lo, hi int // index range into the sorted segment array, half-open
}

type lineIndex struct {
	segments []Segment
	buckets  []bucketRange
	firstSec int

	// tripSegments maps a trip ID to its segment indices in chronological
	// order, for neighbor re-search under delay shifts.
	tripSegments map[string][]int
}

// Index is the per-line segment index. Built once from the timetable store
// and frozen.
type Index struct {
	lines map[string]*lineIndex
}

// BuildIndex derives all segments from the store and indexes them per line.
func BuildIndex(store *timetable.Store, lineIDs []string) *Index {
	logger := slog.Default().With(slog.String("component", "segment_index"))

	idx := &Index{lines: make(map[string]*lineIndex, len(lineIDs))}
	total := 0

	for _, lineID := range lineIDs {
		li := buildLineIndex(store.TripsOnLine(lineID))
		if li == nil {
			continue
		}
		idx.lines[lineID] = li
		total += len(li.segments)
	}

	logging.LogOperation(logger, "segment_index_built",
		slog.Int("lines", len(idx.lines)),
		slog.Int("segments", total))

	return idx
}

func buildLineIndex(trips []*timetable.Trip) *lineIndex {
	var segments []Segment
	for _, trip := range trips {
		segments = append(segments, buildTripSegments(trip)...)
	}
	if len(segments) == 0 {
		return nil
	}

	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].StartSec < segments[j].StartSec
	})

	li := &lineIndex{
		segments:     segments,
		tripSegments: make(map[string][]int),
	}

	minSec, maxSec := segments[0].StartSec, 0
	for _, s := range segments {
		if s.StartSec < minSec {
			minSec = s.StartSec
		}
		end := s.EndSec
		if end < s.StartSec {
			end = s.StartSec
		}
		if end > maxSec {
			maxSec = end
		}
	}
	li.firstSec = (minSec / bucketSeconds) * bucketSeconds

	nBuckets := (maxSec-li.firstSec)/bucketSeconds + 1
	li.buckets = make([]bucketRange, nBuckets)
	for b := range li.buckets {
		li.buckets[b] = bucketRange{lo: len(segments), hi: 0}
	}

	for i, s := range segments {
		end := s.EndSec
		if end <= s.StartSec {
			// Degenerate segments occupy the single instant StartSec.
			end = s.StartSec + 1
		}
		bLo := (s.StartSec - li.firstSec) / bucketSeconds
		bHi := (end - 1 - li.firstSec) / bucketSeconds
		for b := bLo; b <= bHi && b < len(li.buckets); b++ {
			if b < 0 {
				continue
			}
			if i < li.buckets[b].lo {
				li.buckets[b].lo = i
			}
			if i+1 > li.buckets[b].hi {
				li.buckets[b].hi = i + 1
			}
		}
	}

	// Segments are indexed per trip in chronological order; the stable sort
	// preserves build order for equal start times.
	for i := range segments {
		id := segments[i].Trip.ID
		li.tripSegments[id] = append(li.tripSegments[id], i)
	}

	return li
}

// TrainsAt returns, for every trip on the line with a segment covering the
// instant and a service type matching the calendar, exactly one Active entry.
// Trips with ServiceUnknown are always excluded. Degenerate segments match
// only at their start instant and come back tagged invalid.
func (idx *Index) TrainsAt(lineID string, effectiveSec int, serviceType timetable.ServiceType) []Active {
	li, ok := idx.lines[lineID]
	if !ok {
		return nil
	}

	b := (effectiveSec - li.firstSec) / bucketSeconds
	if b < 0 || b >= len(li.buckets) {
		return nil
	}
	r := li.buckets[b]

	// A trip reports exactly one segment per instant. A degenerate segment
	// shares its single instant with an adjacent real segment, so real
	// segments win and the degenerate entry only surfaces when the trip has
	// nothing else covering t.
	byTrip := make(map[string]int)
	var out []Active

	add := func(a Active) {
		id := a.Segment.Trip.ID
		if prev, seen := byTrip[id]; seen {
			if out[prev].Invalid && !a.Invalid {
				out[prev] = a
			}
			return
		}
		byTrip[id] = len(out)
		out = append(out, a)
	}

	for i := r.lo; i < r.hi; i++ {
		s := &li.segments[i]
		if s.Trip.ServiceType == timetable.ServiceUnknown || s.Trip.ServiceType != serviceType {
			continue
		}

		if s.Degenerate() {
			if effectiveSec == s.StartSec {
				add(Active{Segment: s, Progress: 0, Invalid: true})
			}
			continue
		}
		if !s.Covers(effectiveSec) {
			continue
		}

		progress := 0.0
		if s.Kind == KindMotion {
			progress = float64(effectiveSec-s.StartSec) / float64(s.EndSec-s.StartSec)
			if progress < 0 {
				progress = 0
			} else if progress > 1 {
				progress = 1
			}
		}
		add(Active{Segment: s, Progress: progress})
	}

	return out
}

// TripSegments returns the trip's segments on the line in chronological
// order. The returned slice is shared; callers must not mutate it.
func (idx *Index) TripSegments(lineID, tripID string) []*Segment {
	li, ok := idx.lines[lineID]
	if !ok {
		return nil
	}
	indices := li.tripSegments[tripID]
	out := make([]*Segment, len(indices))
	for i, si := range indices {
		out[i] = &li.segments[si]
	}
	return out
}

// LineSegmentCount reports how many segments the line carries; used by
// tests.
func (idx *Index) LineSegmentCount(lineID string) int {
	if li, ok := idx.lines[lineID]; ok {
		return len(li.segments)
	}
	return 0
}
