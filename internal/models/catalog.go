package models

import "nowtrain.tokyo/internal/catalog"

// LineSummary is one line in the /lines listing.
type LineSummary struct {
	ID           string `json:"id"`
	NameJA       string `json:"name_ja"`
	NameEN       string `json:"name_en"`
	Color        string `json:"color"`
	Operator     string `json:"operator"`
	StationCount int    `json:"station_count"`
	HasShape     bool   `json:"has_shape"`
}

// LinesResponse is the body of GET /lines.
type LinesResponse struct {
	Lines []LineSummary `json:"lines"`
}

// NewLineSummary converts a catalog line to its API shape.
func NewLineSummary(line *catalog.Line) LineSummary {
	return LineSummary{
		ID:           line.ID,
		NameJA:       line.NameJA,
		NameEN:       line.NameEN,
		Color:        line.Color,
		Operator:     line.Operator,
		StationCount: len(line.StationIDs),
		HasShape:     line.Shape != nil,
	}
}

// StationCoord is a station's coordinate in API responses.
type StationCoord struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Station is one station in the /stations listing.
type Station struct {
	ID        string       `json:"id"`
	LineID    string       `json:"line_id"`
	NameJA    string       `json:"name_ja"`
	NameEN    string       `json:"name_en"`
	Coord     StationCoord `json:"coord"`
	Rank      string       `json:"rank"`
	DwellTime int          `json:"dwell_time"`
}

// StationsResponse is the body of GET /stations.
type StationsResponse struct {
	Stations []Station `json:"stations"`
}

// GeoJSONGeometry is a GeoJSON LineString geometry.
type GeoJSONGeometry struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// GeoJSONFeature is one GeoJSON feature.
type GeoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   GeoJSONGeometry `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// ShapeResponse is the body of GET /shape: a FeatureCollection holding the
// line's stitched polyline.
type ShapeResponse struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}
