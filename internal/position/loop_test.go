package position

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nowtrain.tokyo/internal/catalog"
	"nowtrain.tokyo/internal/fusion"
	"nowtrain.tokyo/internal/segment"
	"nowtrain.tokyo/internal/timetable"
	"nowtrain.tokyo/internal/utils"
)

const (
	loopLineID = "JR-East.TestLoop"
	stationL01 = loopLineID + ".L01"
	stationL02 = loopLineID + ".L02"
	stationL03 = loopLineID + ".L03"
	stationL04 = loopLineID + ".L04"
)

// loopLineData writes a closed square loop: corners at L01 (SW), L02 (SE),
// L03 (NE), L04 (NW), traversed counterclockwise, with the final vertex
// returning to the first.
func loopLineData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	const (
		lonW, lonE = 139.00, 139.02
		latS, latN = 35.60, 35.62
		step       = 0.001
	)

	var coords [][]float64
	for lon := lonW; lon < lonE-1e-9; lon += step { // south edge, eastbound
		coords = append(coords, []float64{lon, latS})
	}
	for lat := latS; lat < latN-1e-9; lat += step { // east edge, northbound
		coords = append(coords, []float64{lonE, lat})
	}
	for lon := lonE; lon > lonW+1e-9; lon -= step { // north edge, westbound
		coords = append(coords, []float64{lon, latN})
	}
	for lat := latN; lat > latS+1e-9; lat -= step { // west edge, southbound
		coords = append(coords, []float64{lonW, lat})
	}
	coords = append(coords, []float64{lonW, latS}) // close the loop

	railways := []map[string]any{
		{
			"id":       loopLineID,
			"title":    map[string]string{"ja": "テスト環状線", "en": "Test Loop"},
			"stations": []string{stationL01, stationL02, stationL03, stationL04},
			"color":    "#9ACD32",
		},
	}
	stations := []map[string]any{
		{"id": stationL01, "railway": loopLineID, "title": map[string]string{"en": "L01"}, "coord": []float64{lonW, latS}},
		{"id": stationL02, "railway": loopLineID, "title": map[string]string{"en": "L02"}, "coord": []float64{lonE, latS}},
		{"id": stationL03, "railway": loopLineID, "title": map[string]string{"en": "L03"}, "coord": []float64{lonE, latN}},
		{"id": stationL04, "railway": loopLineID, "title": map[string]string{"en": "L04"}, "coord": []float64{lonW, latN}},
	}
	shape := map[string]any{
		"railways": []map[string]any{
			{"id": loopLineID, "sublines": []map[string]any{{"coords": coords}}},
		},
	}

	for name, v := range map[string]any{
		"railways.json":    railways,
		"stations.json":    stations,
		"coordinates.json": shape,
	} {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}

	return dir
}

func newLoopWorld(t *testing.T, trips ...*timetable.Trip) *testWorld {
	t.Helper()

	dir := loopLineData(t)
	cat, err := catalog.Load(dir, catalog.DefaultBounds)
	require.NoError(t, err)

	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	cal, err := segment.NewCalendar(loc, dir)
	require.NoError(t, err)

	store := timetable.NewStoreFromTrips(trips...)
	index := segment.BuildIndex(store, []string{loopLineID})
	pub := fusion.NewPublisher(time.Date(2025, 1, 15, 8, 0, 0, 0, loc))

	return &testWorld{
		catalog:   cat,
		index:     index,
		cal:       cal,
		publisher: pub,
		mat:       NewMaterializer(cat, index, cal, pub, refreshInterval),
		loc:       loc,
	}
}

func TestLoopSeamRunProjectsOntoClosingEdge(t *testing.T) {
	// The run bridges the last-listed station back to the first.
	trip := &timetable.Trip{
		ID:               "loop-301G",
		LineID:           loopLineID,
		Number:           "301G",
		NormalizedNumber: "301G",
		Direction:        "OuterLoop",
		ServiceType:      timetable.ServiceWeekday,
		Stops: []timetable.StopTime{
			{StationID: stationL04, ArrivalSec: 28800, DepartureSec: 28860},
			{StationID: stationL01, ArrivalSec: 28980, DepartureSec: 29040},
		},
	}
	w := newLoopWorld(t, trip)

	line, err := w.catalog.Line(loopLineID)
	require.NoError(t, err)
	require.NotNil(t, line.Shape)
	require.True(t, line.Shape.Loop)

	// Halfway through the seam run: the midpoint of the west edge.
	positions, err := w.mat.Positions(context.Background(), loopLineID, w.at(28920))
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	require.Equal(t, StatusRunning, p.Status)
	assert.InDelta(t, 0.5, p.Progress, 1e-9)

	westMidLat, westMidLon := 35.61, 139.00
	d := utils.Distance(westMidLat, westMidLon, p.Coord.Lat, p.Coord.Lon)
	assert.Less(t, d, 60.0,
		"seam run must project onto the polyline section joining L04 to L01, got (%f, %f)", p.Coord.Lat, p.Coord.Lon)

	// Heading south along the west edge.
	assert.InDelta(t, 180.0, p.Bearing, 5.0)
}
