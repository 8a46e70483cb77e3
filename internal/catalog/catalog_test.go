package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nowtrain.tokyo/internal/utils"
)

const testLineID = "JR-East.TestLine"

type fixture struct {
	stations []map[string]any
	sublines []map[string]any
}

func writeFixture(t *testing.T, f fixture) string {
	t.Helper()
	dir := t.TempDir()

	stationIDs := make([]string, 0, len(f.stations))
	for _, s := range f.stations {
		stationIDs = append(stationIDs, s["id"].(string))
	}

	railways := []map[string]any{
		{
			"id":             testLineID,
			"title":          map[string]string{"ja": "テスト線", "en": "Test Line"},
			"stations":       stationIDs,
			"color":          "#80C241",
			"ascending":      "Outbound",
			"descending":     "Inbound",
			"carComposition": 11,
		},
	}

	coords := map[string]any{
		"railways": []map[string]any{
			{"id": testLineID, "sublines": f.sublines},
		},
	}

	writeJSON(t, filepath.Join(dir, "railways.json"), railways)
	writeJSON(t, filepath.Join(dir, "stations.json"), f.stations)
	writeJSON(t, filepath.Join(dir, "coordinates.json"), coords)
	return dir
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func station(suffix string, lon, lat float64) map[string]any {
	return map[string]any{
		"id":      testLineID + "." + suffix,
		"railway": testLineID,
		"title":   map[string]string{"ja": suffix, "en": suffix},
		"coord":   []float64{lon, lat},
	}
}

func straightFixture() fixture {
	return fixture{
		stations: []map[string]any{
			station("T01", 139.00, 35.65),
			station("T02", 139.01, 35.65),
			station("T03", 139.02, 35.65),
		},
		sublines: []map[string]any{
			{"coords": [][]float64{{139.00, 35.65}, {139.005, 35.65}, {139.01, 35.65}}},
			{"coords": [][]float64{{139.01, 35.65}, {139.015, 35.65}, {139.02, 35.65}}},
		},
	}
}

func TestLoadBuildsCatalog(t *testing.T) {
	dir := writeFixture(t, straightFixture())

	cat, err := Load(dir, DefaultBounds)
	require.NoError(t, err)

	line, err := cat.Line(testLineID)
	require.NoError(t, err)
	assert.Equal(t, "Test Line", line.NameEN)
	assert.Equal(t, "JR-East", line.Operator)
	assert.Equal(t, 11, line.CarComposition)
	require.NotNil(t, line.Shape)
	assert.Len(t, line.Shape.Points, 6)
	assert.False(t, line.Shape.Loop)

	_, err = cat.Line("JR-East.Nowhere")
	assert.ErrorIs(t, err, ErrLineUnknown)

	stations, err := cat.StationsOnLine(testLineID)
	require.NoError(t, err)
	require.Len(t, stations, 3)
	assert.Equal(t, []string{testLineID}, stations[0].Lines)
}

func TestLoadRejectsOutOfBoundsStations(t *testing.T) {
	f := straightFixture()
	f.stations = append(f.stations, station("Atlantis", 0.0, 0.0))
	dir := writeFixture(t, f)

	cat, err := Load(dir, DefaultBounds)
	require.NoError(t, err)

	_, ok := cat.Station(testLineID + ".Atlantis")
	assert.False(t, ok, "out-of-bounds station must be rejected at load")
}

func TestStitchingIsOrientationInvariant(t *testing.T) {
	forward := straightFixture()

	reversedSecond := straightFixture()
	reversedSecond.sublines = []map[string]any{
		{"coords": [][]float64{{139.00, 35.65}, {139.005, 35.65}, {139.01, 35.65}}},
		// Same sub-line stored back to front.
		{"coords": [][]float64{{139.02, 35.65}, {139.015, 35.65}, {139.01, 35.65}}},
	}

	catA, err := Load(writeFixture(t, forward), DefaultBounds)
	require.NoError(t, err)
	catB, err := Load(writeFixture(t, reversedSecond), DefaultBounds)
	require.NoError(t, err)

	lineA, err := catA.Line(testLineID)
	require.NoError(t, err)
	lineB, err := catB.Line(testLineID)
	require.NoError(t, err)

	require.NotNil(t, lineA.Shape)
	require.NotNil(t, lineB.Shape)
	assert.Equal(t, lineA.Shape.Points, lineB.Shape.Points,
		"stitched polyline must not depend on sub-line orientation")
}

func TestStationAnchorsNearStations(t *testing.T) {
	dir := writeFixture(t, straightFixture())
	cat, err := Load(dir, DefaultBounds)
	require.NoError(t, err)

	line, err := cat.Line(testLineID)
	require.NoError(t, err)
	shape := line.Shape
	require.NotNil(t, shape)

	for _, suffix := range []string{"T01", "T02", "T03"} {
		id := testLineID + "." + suffix
		st, ok := cat.Station(id)
		require.True(t, ok)
		anchor, ok := shape.Anchors[id]
		require.True(t, ok, "station %s must have an anchor", id)

		d := utils.Distance(st.Coord.Lat, st.Coord.Lon, shape.Points[anchor].Lat, shape.Points[anchor].Lon)
		assert.Less(t, d, 5.0, "anchor for %s should be within 5 m of the station", id)
	}
}

func TestShapeArcInterpolation(t *testing.T) {
	dir := writeFixture(t, straightFixture())
	cat, err := Load(dir, DefaultBounds)
	require.NoError(t, err)

	line, err := cat.Line(testLineID)
	require.NoError(t, err)
	shape := line.Shape
	require.NotNil(t, shape)

	total := shape.TotalLength()
	require.Greater(t, total, 0.0)

	mid := shape.PointAtDistance(total / 2)
	assert.InDelta(t, 139.01, mid.Lon, 1e-4)
	assert.InDelta(t, 35.65, mid.Lat, 1e-9)

	// Clamping at both ends.
	assert.Equal(t, shape.Points[0], shape.PointAtDistance(-10))
	assert.Equal(t, shape.Points[len(shape.Points)-1], shape.PointAtDistance(total+10))

	// The line runs due east, so the forward tangent is ~90 degrees.
	assert.InDelta(t, 90.0, shape.BearingAtDistance(total/2, true), 1.0)
	assert.InDelta(t, 270.0, shape.BearingAtDistance(total/2, false), 1.0)
}

func TestLoadServesLineWithoutShape(t *testing.T) {
	f := straightFixture()
	f.sublines = []map[string]any{{"coords": [][]float64{{139.00, 35.65}}}}
	dir := writeFixture(t, f)

	cat, err := Load(dir, DefaultBounds)
	require.NoError(t, err)

	line, err := cat.Line(testLineID)
	require.NoError(t, err)
	assert.Nil(t, line.Shape, "one-vertex geometry is unusable, line served without shape")
}

func TestStationRankAdminWrites(t *testing.T) {
	dir := writeFixture(t, straightFixture())
	cat, err := Load(dir, DefaultBounds)
	require.NoError(t, err)

	id := testLineID + ".T02"

	// Defaults: rank B, 20 seconds.
	assert.Equal(t, RankB, cat.StationRank(id))
	assert.Equal(t, 20, cat.StationDwell(id))

	require.NoError(t, cat.SetStationRank(id, RankS, 50))
	assert.Equal(t, RankS, cat.StationRank(id))
	assert.Equal(t, 50, cat.StationDwell(id))

	require.NoError(t, cat.SetStationRank(id, RankA, 42))
	assert.Equal(t, 42, cat.StationDwell(id))

	require.NoError(t, cat.SetStationRank(id, RankA, 0))
	assert.Equal(t, 0, cat.StationDwell(id), "explicit zero dwell sticks")

	assert.Error(t, cat.SetStationRank(id, Rank("X"), 10))
	assert.Error(t, cat.SetStationRank(id, RankA, -1))
	assert.Error(t, cat.SetStationRank(testLineID+".Nope", RankA, 10))
}

func TestLoopDetection(t *testing.T) {
	f := fixture{
		stations: []map[string]any{
			station("L01", 139.00, 35.60),
			station("L02", 139.02, 35.60),
			station("L03", 139.02, 35.62),
			station("L04", 139.00, 35.62),
		},
		sublines: []map[string]any{
			{"coords": [][]float64{{139.00, 35.60}, {139.02, 35.60}, {139.02, 35.62}, {139.00, 35.62}, {139.00, 35.60}}},
		},
	}
	dir := writeFixture(t, f)

	cat, err := Load(dir, DefaultBounds)
	require.NoError(t, err)

	line, err := cat.Line(testLineID)
	require.NoError(t, err)
	require.NotNil(t, line.Shape)
	assert.True(t, line.Shape.Loop)
}
