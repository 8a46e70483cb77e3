// Package timetable parses the per-line trip corpus into normalized trips
// whose stop times are non-decreasing effective seconds of the service day.
package timetable

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"nowtrain.tokyo/internal/catalog"
	"nowtrain.tokyo/internal/logging"
)

// serviceDayStartHour is when a new service day begins. Times parsed with an
// hour below this belong to the previous service day and are folded forward.
const serviceDayStartHour = 4

// serviceTypeSuffixes maps trip-ID suffixes to calendars. Suffixes outside
// this table yield ServiceUnknown.
var serviceTypeSuffixes = map[string]ServiceType{
	"Weekday":         ServiceWeekday,
	"SaturdayHoliday": ServiceSaturdayHoliday,
	"Holiday":         ServiceSaturdayHoliday,
	"Saturday":        ServiceSaturdayHoliday,
}

// Store holds every accepted trip, indexed by line and by normalized train
// number per calendar. Read-only after Load.
type Store struct {
	tripsByLine map[string][]*Trip
	tripsByID   map[string]*Trip

	// byNumber[serviceType][normalizedNumber] lists candidate trips for
	// realtime matching.
	byNumber map[ServiceType]map[string][]*Trip
}

type tripJSON struct {
	ID        string         `json:"id"`
	Railway   string         `json:"r"`
	TrainType string         `json:"y"`
	Number    string         `json:"n"`
	Direction string         `json:"d"`
	Origin    []string       `json:"os"`
	Dest      []string       `json:"ds"`
	Stops     []stopTimeJSON `json:"tt"`
}

type stopTimeJSON struct {
	Station   string `json:"s"`
	Arrival   string `json:"a"`
	Departure string `json:"d"`
}

// Load reads one timetable JSON per catalog line from dataDir/timetables and
// returns the populated store. A line without a timetable file is served with
// no trips; a malformed trip is dropped with one diagnostic.
func Load(dataDir string, cat *catalog.Catalog) (*Store, error) {
	logger := slog.Default().With(slog.String("component", "timetable_loader"))

	store := &Store{
		tripsByLine: make(map[string][]*Trip),
		tripsByID:   make(map[string]*Trip),
		byNumber: map[ServiceType]map[string][]*Trip{
			ServiceWeekday:         {},
			ServiceSaturdayHoliday: {},
			ServiceUnknown:         {},
		},
	}

	unknownSuffixes := make(map[string]bool)
	loaded, dropped := 0, 0

	for _, line := range cat.Lines() {
		path := filepath.Join(dataDir, "timetables", line.ID+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading timetable for %s: %w", line.ID, err)
		}

		var raw []tripJSON
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid timetable JSON for %s: %w", line.ID, err)
		}

		for _, tj := range raw {
			trip, err := buildTrip(tj, line.ID, cat, unknownSuffixes, logger)
			if err != nil {
				logging.LogError(logger, "dropping malformed trip", err,
					slog.String("trip_id", tj.ID),
					slog.String("line_id", line.ID))
				dropped++
				continue
			}
			store.add(trip)
			loaded++
		}
	}

	logging.LogOperation(logger, "timetable_loaded",
		slog.Int("trips", loaded),
		slog.Int("dropped", dropped))

	return store, nil
}

// NewStoreFromTrips builds a store from already-assembled trips. Used by
// fixtures and by tests that bypass the JSON corpus.
func NewStoreFromTrips(trips ...*Trip) *Store {
	store := &Store{
		tripsByLine: make(map[string][]*Trip),
		tripsByID:   make(map[string]*Trip),
		byNumber: map[ServiceType]map[string][]*Trip{
			ServiceWeekday:         {},
			ServiceSaturdayHoliday: {},
			ServiceUnknown:         {},
		},
	}
	for _, trip := range trips {
		store.add(trip)
	}
	return store
}

func (s *Store) add(trip *Trip) {
	s.tripsByLine[trip.LineID] = append(s.tripsByLine[trip.LineID], trip)
	s.tripsByID[trip.ID] = trip
	if trip.NormalizedNumber != "" {
		byNum := s.byNumber[trip.ServiceType]
		byNum[trip.NormalizedNumber] = append(byNum[trip.NormalizedNumber], trip)
	}
}

func buildTrip(tj tripJSON, lineID string, cat *catalog.Catalog, unknownSuffixes map[string]bool, logger *slog.Logger) (*Trip, error) {
	if tj.ID == "" {
		return nil, fmt.Errorf("%w: missing trip id", ErrTripMalformed)
	}
	if len(tj.Stops) < 2 {
		return nil, fmt.Errorf("%w: fewer than 2 stops", ErrTripMalformed)
	}

	serviceType := serviceTypeFromID(tj.ID)
	if serviceType == ServiceUnknown {
		suffix := idSuffix(tj.ID)
		if !unknownSuffixes[suffix] {
			unknownSuffixes[suffix] = true
			logger.Warn("unknown service-type suffix, trips will be excluded from queries",
				slog.String("suffix", suffix),
				slog.String("trip_id", tj.ID))
		}
	}

	trip := &Trip{
		ID:                  tj.ID,
		LineID:              lineID,
		Number:              tj.Number,
		NormalizedNumber:    NormalizeTrainNumber(tj.Number),
		TrainType:           tj.TrainType,
		Direction:           tj.Direction,
		ServiceType:         serviceType,
		OriginStations:      tj.Origin,
		DestinationStations: tj.Dest,
	}

	prev := -1
	for i, st := range tj.Stops {
		if _, ok := cat.Station(st.Station); !ok {
			return nil, fmt.Errorf("%w: unknown station %s", ErrTripMalformed, st.Station)
		}

		arr, arrOK, err := parseClockTime(st.Arrival)
		if err != nil {
			return nil, fmt.Errorf("%w: stop %d arrival: %v", ErrTripMalformed, i, err)
		}
		dep, depOK, err := parseClockTime(st.Departure)
		if err != nil {
			return nil, fmt.Errorf("%w: stop %d departure: %v", ErrTripMalformed, i, err)
		}

		// Single-sided entries fall back to the other side: terminal stops
		// commonly carry only an arrival or only a departure.
		switch {
		case arrOK && !depOK:
			dep = arr
		case depOK && !arrOK:
			arr = dep
		case !arrOK && !depOK:
			return nil, fmt.Errorf("%w: stop %d has no times", ErrTripMalformed, i)
		}

		if dep < arr {
			return nil, fmt.Errorf("%w: stop %d departure %d before arrival %d", ErrTripMalformed, i, dep, arr)
		}
		if arr < prev {
			return nil, fmt.Errorf("%w: stop %d arrival %d breaks monotonicity", ErrTripMalformed, i, arr)
		}
		prev = dep

		trip.Stops = append(trip.Stops, StopTime{
			StationID:    st.Station,
			ArrivalSec:   arr,
			DepartureSec: dep,
		})
	}

	if err := checkTraversal(trip, lineID, cat); err != nil {
		return nil, err
	}

	return trip, nil
}

// checkTraversal verifies the stopping pattern walks the line's station
// sequence in one direction without teleporting. Skipped stations are fine
// (rapid services); direction reversals are not, except the single wrap a
// loop line permits.
func checkTraversal(trip *Trip, lineID string, cat *catalog.Catalog) error {
	line, err := cat.Line(lineID)
	if err != nil {
		return err
	}
	loop := line.Shape != nil && line.Shape.Loop
	n := len(line.StationIDs)

	indices := make([]int, len(trip.Stops))
	for i, st := range trip.Stops {
		idx := cat.StationIndexOnLine(lineID, st.StationID)
		if idx < 0 {
			return fmt.Errorf("%w: station %s not on line %s", ErrTripMalformed, st.StationID, lineID)
		}
		indices[i] = idx
	}

	sign := 0
	wraps := 0
	for i := 1; i < len(indices); i++ {
		step := indices[i] - indices[i-1]
		if step == 0 {
			return fmt.Errorf("%w: repeated station %s", ErrTripMalformed, trip.Stops[i].StationID)
		}
		dir := 1
		if step < 0 {
			dir = -1
		}
		if sign == 0 {
			sign = dir
			continue
		}
		if dir != sign {
			if loop && wraps == 0 && n > 0 {
				// One wrap across the sequence boundary is the loop closing.
				wraps++
				continue
			}
			return fmt.Errorf("%w: stopping pattern reverses at %s", ErrTripMalformed, trip.Stops[i].StationID)
		}
	}

	return nil
}

// parseClockTime converts "HH:MM" to effective seconds of the service day.
// Hours at or past 24 are accepted as-is ("25:30" -> 91800); hours below the
// 04:00 service-day boundary fold forward a day so sequences remain
// monotonic. Empty strings report ok=false.
func parseClockTime(s string) (sec int, ok bool, err error) {
	if s == "" {
		return 0, false, nil
	}

	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false, fmt.Errorf("malformed time %q", s)
	}

	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 {
		return 0, false, fmt.Errorf("malformed hour in %q", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, false, fmt.Errorf("malformed minute in %q", s)
	}

	if hh < serviceDayStartHour {
		hh += 24
	}
	return hh*3600 + mm*60, true, nil
}

func serviceTypeFromID(tripID string) ServiceType {
	if st, ok := serviceTypeSuffixes[idSuffix(tripID)]; ok {
		return st
	}
	return ServiceUnknown
}

func idSuffix(tripID string) string {
	if i := strings.LastIndex(tripID, "."); i >= 0 {
		return tripID[i+1:]
	}
	return tripID
}

// TripsOnLine returns the line's accepted trips in file order.
func (s *Store) TripsOnLine(lineID string) []*Trip {
	return s.tripsByLine[lineID]
}

// Trip resolves a trip by its full identifier.
func (s *Store) Trip(id string) (*Trip, bool) {
	t, ok := s.tripsByID[id]
	return t, ok
}

// TripsByNumber returns the timetable trips sharing a normalized train
// number on the given calendar. Matching is many-to-one; callers apply the
// tiebreak.
func (s *Store) TripsByNumber(serviceType ServiceType, normalized string) []*Trip {
	return s.byNumber[serviceType][normalized]
}

// TripCount returns the total number of accepted trips.
func (s *Store) TripCount() int {
	return len(s.tripsByID)
}
