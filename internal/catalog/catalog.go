// Package catalog loads and serves the static network description: lines,
// stations, and per-line polyline geometry. Everything except station rank
// and dwell time is frozen after load.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"nowtrain.tokyo/internal/logging"
	"nowtrain.tokyo/internal/utils"
)

// DefaultBounds is the geographic sanity range for station coordinates.
// It covers the Japanese archipelago; entries outside it are rejected at load.
var DefaultBounds = utils.CoordinateBounds{
	MinLat: 20,
	MaxLat: 46,
	MinLon: 122,
	MaxLon: 154,
}

// Catalog is the in-memory static catalog. Lines, geometry, and station
// identity are read-only after Load; station rank and dwell are guarded by mu.
type Catalog struct {
	lines    map[string]*Line
	lineIDs  []string
	stations map[string]*Station

	mu sync.RWMutex
}

type railwayJSON struct {
	ID             string            `json:"id"`
	Title          map[string]string `json:"title"`
	Stations       []string          `json:"stations"`
	Color          string            `json:"color"`
	Ascending      string            `json:"ascending"`
	Descending     string            `json:"descending"`
	CarComposition int               `json:"carComposition"`
}

type stationJSON struct {
	ID      string            `json:"id"`
	Railway string            `json:"railway"`
	Title   map[string]string `json:"title"`
	Coord   []float64         `json:"coord"`
	Rank    string            `json:"rank"`
	Dwell   int               `json:"dwellTime"`
}

type coordinatesJSON struct {
	Railways []struct {
		ID       string `json:"id"`
		Color    string `json:"color"`
		Sublines []struct {
			Coords [][]float64 `json:"coords"`
		} `json:"sublines"`
	} `json:"railways"`
}

// Load reads railways.json, stations.json, and coordinates.json from dataDir
// and assembles the catalog. Missing or malformed files are fatal; a line with
// unusable geometry is kept without a shape.
func Load(dataDir string, bounds utils.CoordinateBounds) (*Catalog, error) {
	logger := slog.Default().With(slog.String("component", "catalog_loader"))

	var railways []railwayJSON
	if err := readJSON(filepath.Join(dataDir, "railways.json"), &railways); err != nil {
		return nil, err
	}

	var stations []stationJSON
	if err := readJSON(filepath.Join(dataDir, "stations.json"), &stations); err != nil {
		return nil, err
	}

	var coords coordinatesJSON
	if err := readJSON(filepath.Join(dataDir, "coordinates.json"), &coords); err != nil {
		return nil, err
	}

	c := &Catalog{
		lines:    make(map[string]*Line, len(railways)),
		stations: make(map[string]*Station, len(stations)),
	}

	for _, r := range railways {
		if r.ID == "" {
			continue
		}
		line := &Line{
			ID:             r.ID,
			NameJA:         r.Title["ja"],
			NameEN:         r.Title["en"],
			Color:          r.Color,
			Operator:       operatorOf(r.ID),
			StationIDs:     r.Stations,
			Ascending:      r.Ascending,
			Descending:     r.Descending,
			CarComposition: r.CarComposition,
		}
		c.lines[line.ID] = line
		c.lineIDs = append(c.lineIDs, line.ID)
	}

	rejected := 0
	for _, s := range stations {
		if s.ID == "" || len(s.Coord) < 2 {
			rejected++
			continue
		}
		coord := Coord{Lon: s.Coord[0], Lat: s.Coord[1]}
		if !bounds.Contains(coord.Lat, coord.Lon) {
			logging.LogError(logger, "station coordinate out of bounds, rejecting", nil,
				slog.String("station_id", s.ID),
				slog.Float64("lon", coord.Lon),
				slog.Float64("lat", coord.Lat))
			rejected++
			continue
		}

		rank := Rank(s.Rank)
		if !rank.Valid() {
			rank = RankB
		}
		dwell := s.Dwell
		if dwell <= 0 {
			dwell = rank.DefaultDwellSeconds()
		}

		station := &Station{
			ID:        s.ID,
			LineID:    s.Railway,
			NameJA:    s.Title["ja"],
			NameEN:    s.Title["en"],
			Coord:     coord,
			rank:      rank,
			dwellTime: dwell,
		}
		c.stations[station.ID] = station
	}

	// Record which lines pass through each station, in catalog order.
	for _, lineID := range c.lineIDs {
		for _, stationID := range c.lines[lineID].StationIDs {
			if st, ok := c.stations[stationID]; ok {
				st.Lines = append(st.Lines, lineID)
			}
		}
	}

	for _, entry := range coords.Railways {
		line, ok := c.lines[entry.ID]
		if !ok {
			continue
		}
		sublines := make([][]Coord, 0, len(entry.Sublines))
		for _, sl := range entry.Sublines {
			pts := make([]Coord, 0, len(sl.Coords))
			for _, pair := range sl.Coords {
				if len(pair) < 2 {
					continue
				}
				pts = append(pts, Coord{Lon: pair[0], Lat: pair[1]})
			}
			if len(pts) > 0 {
				sublines = append(sublines, pts)
			}
		}

		shape, err := buildShape(sublines, c.lineStations(line))
		if err != nil {
			logging.LogError(logger, "line geometry unusable, serving without shape", err,
				slog.String("line_id", line.ID))
			continue
		}
		line.Shape = shape
	}

	logging.LogOperation(logger, "catalog_loaded",
		slog.Int("lines", len(c.lines)),
		slog.Int("stations", len(c.stations)),
		slog.Int("rejected_stations", rejected))

	return c, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading static data file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return nil
}

func operatorOf(lineID string) string {
	for i, ch := range lineID {
		if ch == '.' {
			return lineID[:i]
		}
	}
	return ""
}

// lineStations resolves a line's station sequence against loaded stations,
// skipping IDs rejected at validation.
func (c *Catalog) lineStations(line *Line) []*Station {
	out := make([]*Station, 0, len(line.StationIDs))
	for _, id := range line.StationIDs {
		if st, ok := c.stations[id]; ok {
			out = append(out, st)
		}
	}
	return out
}

// Line resolves a line by ID.
func (c *Catalog) Line(id string) (*Line, error) {
	line, ok := c.lines[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLineUnknown, id)
	}
	return line, nil
}

// Lines returns all lines in the order they appeared in railways.json.
func (c *Catalog) Lines() []*Line {
	out := make([]*Line, 0, len(c.lineIDs))
	for _, id := range c.lineIDs {
		out = append(out, c.lines[id])
	}
	return out
}

// Station resolves a station by ID.
func (c *Catalog) Station(id string) (*Station, bool) {
	st, ok := c.stations[id]
	return st, ok
}

// StationsOnLine returns the line's stations in traversal order.
func (c *Catalog) StationsOnLine(lineID string) ([]*Station, error) {
	line, err := c.Line(lineID)
	if err != nil {
		return nil, err
	}
	return c.lineStations(line), nil
}

// StationIndexOnLine returns the position of the station in the line's
// ordered sequence, or -1 if the station is not on the line.
func (c *Catalog) StationIndexOnLine(lineID, stationID string) int {
	line, ok := c.lines[lineID]
	if !ok {
		return -1
	}
	for i, id := range line.StationIDs {
		if id == stationID {
			return i
		}
	}
	return -1
}
