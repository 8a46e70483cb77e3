package timetable

import "errors"

// ErrTripMalformed marks a trip dropped at parse time: non-monotonic stop
// times, unknown stations, or a stopping pattern that teleports around the
// line.
var ErrTripMalformed = errors.New("trip malformed")

// ServiceType is the operating calendar a trip belongs to, inferred from the
// trip-ID suffix.
type ServiceType int

const (
	// ServiceUnknown tags trips whose ID suffix matched no known calendar.
	// They are retained in the store but excluded from queries.
	ServiceUnknown ServiceType = iota
	ServiceWeekday
	ServiceSaturdayHoliday
)

func (s ServiceType) String() string {
	switch s {
	case ServiceWeekday:
		return "Weekday"
	case ServiceSaturdayHoliday:
		return "SaturdayHoliday"
	default:
		return "Unknown"
	}
}

// StopTime is one stop of a trip with both times normalized to effective
// seconds of the service day. Times written past 24:00 ("25:30") and times
// in the 00:00-03:59 band have already been folded forward by 86400 so the
// sequence stays monotonic (equal consecutive times are allowed).
type StopTime struct {
	StationID    string
	ArrivalSec   int
	DepartureSec int
}

// Trip is one timetable trip on one line.
type Trip struct {
	// ID is the full trip identifier, e.g. "JR-East.Yamanote.400G.Weekday".
	ID string

	LineID string

	// Number is the operator's train number, e.g. "400G".
	Number string

	// NormalizedNumber is Number run through NormalizeTrainNumber; empty when
	// the number does not conform, in which case the trip can never match a
	// realtime update.
	NormalizedNumber string

	TrainType   string
	Direction   string
	ServiceType ServiceType

	// Terminal stations may be lists for trips that split; only the first
	// entry participates in segment generation.
	OriginStations      []string
	DestinationStations []string

	Stops []StopTime
}

// FirstArrivalSec returns the trip's earliest scheduled instant.
func (t *Trip) FirstArrivalSec() int {
	if len(t.Stops) == 0 {
		return 0
	}
	return t.Stops[0].ArrivalSec
}

// LastArrivalSec returns the trip's final scheduled instant.
func (t *Trip) LastArrivalSec() int {
	if len(t.Stops) == 0 {
		return 0
	}
	return t.Stops[len(t.Stops)-1].ArrivalSec
}
