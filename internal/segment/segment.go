// Package segment derives the time-indexed motion/dwell model from the
// timetable and answers "which trains exist at instant t" in bounded time.
package segment

import (
	"nowtrain.tokyo/internal/timetable"
)

// Kind tags the two segment shapes.
type Kind uint8

const (
	// KindDwell: the trip is stopped at StationID for [StartSec, EndSec).
	KindDwell Kind = iota
	// KindMotion: the trip runs FromStationID -> ToStationID over
	// [StartSec, EndSec).
	KindMotion
)

// Segment is one half-open interval of a trip's day.
type Segment struct {
	Trip *timetable.Trip
	Kind Kind

	// Dwell fields.
	StationID  string
	StationIdx int

	// Motion fields.
	FromStationID string
	ToStationID   string
	FromIdx       int
	ToIdx         int

	// OriginZeroDwell marks motion segments whose origin stop was written
	// with arrival == departure. The materializer holds such trips at the
	// origin for the station's dwell assumption before the run begins.
	OriginZeroDwell bool

	StartSec int
	EndSec   int
}

// buildTripSegments produces a trip's dwell and motion segments in strict
// time order. Zero-length dwells and the final stop yield no dwell segment,
// so the segments end at the last arrival; zero- or negative-length runs are
// emitted as degenerate markers so queries can tag the trip invalid rather
// than lose it.
func buildTripSegments(trip *timetable.Trip) []Segment {
	stops := trip.Stops
	if len(stops) < 2 {
		return nil
	}

	segments := make([]Segment, 0, 2*len(stops))

	for i := 0; i < len(stops); i++ {
		st := stops[i]

		if st.DepartureSec > st.ArrivalSec && i < len(stops)-1 {
			segments = append(segments, Segment{
				Trip:       trip,
				Kind:       KindDwell,
				StationID:  st.StationID,
				StationIdx: i,
				StartSec:   st.ArrivalSec,
				EndSec:     st.DepartureSec,
			})
		}

		if i == len(stops)-1 {
			break
		}
		next := stops[i+1]
		segments = append(segments, Segment{
			Trip:            trip,
			Kind:            KindMotion,
			FromStationID:   st.StationID,
			ToStationID:     next.StationID,
			FromIdx:         i,
			ToIdx:           i + 1,
			OriginZeroDwell: st.DepartureSec == st.ArrivalSec,
			StartSec:        st.DepartureSec,
			EndSec:          next.ArrivalSec,
		})
	}

	return segments
}

// Degenerate reports whether the segment's interval has no positive length.
// Such segments come from timetable degeneracies and are served with the
// invalid tag.
func (s *Segment) Degenerate() bool {
	return s.EndSec <= s.StartSec
}

// Covers reports whether the half-open interval contains t.
func (s *Segment) Covers(t int) bool {
	return t >= s.StartSec && t < s.EndSec
}
