package fusion

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/OneBusAway/go-gtfs"

	"nowtrain.tokyo/internal/segment"
	"nowtrain.tokyo/internal/timetable"
)

// Offsets outside this range are clamped and the trip tagged suspect.
const (
	minOffsetSec = -600
	maxOffsetSec = 7200
)

// directionFromRawID infers the trip direction from the operator prefix of a
// raw feed trip identifier. The 4-digit prefixes and the odd/even fallback
// reflect the upstream's numbering scheme for loop services.
func directionFromRawID(rawID string) string {
	s := rawID
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[i+1:]
	}

	if strings.HasPrefix(s, "4201") {
		return "OuterLoop"
	}
	if strings.HasPrefix(s, "4211") {
		return "InnerLoop"
	}

	if len(s) > 4 {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, s[4:])
		if digits != "" {
			if n, err := strconv.Atoi(digits); err == nil {
				if n%2 == 1 {
					return "OuterLoop"
				}
				return "InnerLoop"
			}
		}
	}

	return ""
}

// firstUpcomingStopID returns the stop_id of the feed trip's first
// StopTimeUpdate that carries one, or "".
func firstUpcomingStopID(rt *gtfs.Trip) string {
	for _, stu := range rt.StopTimeUpdates {
		if stu.StopID != nil && *stu.StopID != "" {
			return *stu.StopID
		}
	}
	return ""
}

// matchTrip resolves a realtime trip to at most one timetable trip sharing
// its normalized number on the current calendar. With several candidates the
// tiebreak is: direction determinable from the feed identifier, then the
// candidate whose active segment touches the feed's first upcoming stop,
// else the trip is dropped with a diagnostic.
func (f *Fuser) matchTrip(rt *gtfs.Trip, serviceType timetable.ServiceType, effectiveSec int, logger *slog.Logger) *timetable.Trip {
	normalized := timetable.NormalizeTrainNumber(rt.ID.ID)
	if normalized == "" {
		return nil
	}

	candidates := f.store.TripsByNumber(serviceType, normalized)
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	if dir := directionFromRawID(rt.ID.ID); dir != "" {
		var filtered []*timetable.Trip
		for _, c := range candidates {
			if c.Direction == dir {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 1 {
			return filtered[0]
		}
		if len(filtered) > 1 {
			candidates = filtered
		}
	}

	if stopID := firstUpcomingStopID(rt); stopID != "" {
		for _, c := range candidates {
			if activeSegmentTouches(f.index, c, effectiveSec, stopID) {
				return c
			}
		}
	}

	logger.Warn("ambiguous realtime trip dropped",
		slog.String("raw_trip_id", rt.ID.ID),
		slog.String("normalized", normalized),
		slog.Int("candidates", len(candidates)))
	return nil
}

// activeSegmentTouches reports whether the trip's segment covering the
// instant involves the given stop.
func activeSegmentTouches(index *segment.Index, trip *timetable.Trip, effectiveSec int, stopID string) bool {
	for _, seg := range index.TripSegments(trip.LineID, trip.ID) {
		if !seg.Covers(effectiveSec) {
			continue
		}
		switch seg.Kind {
		case segment.KindDwell:
			return seg.StationID == stopID
		case segment.KindMotion:
			return seg.FromStationID == stopID || seg.ToStationID == stopID
		}
	}
	return false
}

// buildOffsets expands a realtime trip's StopTimeUpdates into a per-stop
// offset array for the matched timetable trip. Stops are addressed by ID
// first, then by 1-based sequence. Unmentioned stops forward-fill from the
// previous mentioned stop; stops before the first mention take its value so
// early-running trips stay monotone. Offsets never decrease along the trip,
// and values outside the accepted range are clamped with the suspect tag.
func buildOffsets(trip *timetable.Trip, rt *gtfs.Trip) (*TripOffsets, bool) {
	n := len(trip.Stops)
	mentioned := make([]bool, n)
	raw := make([]int, n)

	stopIdxByID := make(map[string]int, n)
	for i, st := range trip.Stops {
		stopIdxByID[st.StationID] = i
	}

	any := false
	for _, stu := range rt.StopTimeUpdates {
		idx := -1
		if stu.StopID != nil {
			if i, ok := stopIdxByID[*stu.StopID]; ok {
				idx = i
			}
		}
		if idx < 0 && stu.StopSequence != nil {
			seq := int(*stu.StopSequence)
			if seq >= 1 && seq <= n {
				idx = seq - 1
			}
		}
		if idx < 0 {
			continue
		}

		offset, ok := offsetFromUpdate(stu)
		if !ok {
			continue
		}
		raw[idx] = offset
		mentioned[idx] = true
		any = true
	}

	offsets := make([]int, n)
	if any {
		first := 0
		for i := 0; i < n; i++ {
			if mentioned[i] {
				first = raw[i]
				break
			}
		}
		fill := first
		for i := 0; i < n; i++ {
			if mentioned[i] {
				fill = raw[i]
			}
			offsets[i] = fill
		}
	}

	// Delays do not recover across stops within a single update.
	for i := 1; i < n; i++ {
		if offsets[i] < offsets[i-1] {
			offsets[i] = offsets[i-1]
		}
	}

	suspect := false
	for i := range offsets {
		if offsets[i] < minOffsetSec {
			offsets[i] = minOffsetSec
			suspect = true
		} else if offsets[i] > maxOffsetSec {
			offsets[i] = maxOffsetSec
			suspect = true
		}
	}

	return &TripOffsets{Offsets: offsets, Suspect: suspect}, any
}

func offsetFromUpdate(stu gtfs.StopTimeUpdate) (int, bool) {
	if stu.Arrival != nil && stu.Arrival.Delay != nil {
		return int(stu.Arrival.Delay.Seconds()), true
	}
	if stu.Departure != nil && stu.Departure.Delay != nil {
		return int(stu.Departure.Delay.Seconds()), true
	}
	return 0, false
}
