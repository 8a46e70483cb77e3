package models

import (
	"time"

	"nowtrain.tokyo/internal/position"
)

// Location is a position's projected point and heading.
type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Bearing float64 `json:"bearing"`
}

// Position is one train in a positions response.
type Position struct {
	TrainNumber   string   `json:"train_number"`
	TripID        string   `json:"trip_id"`
	Line          string   `json:"line"`
	Direction     string   `json:"direction"`
	Status        string   `json:"status"`
	StationID     string   `json:"station_id,omitempty"`
	FromStationID string   `json:"from_station_id,omitempty"`
	ToStationID   string   `json:"to_station_id,omitempty"`
	Progress      *float64 `json:"progress,omitempty"`
	Location      Location `json:"location"`
	Delay         int      `json:"delay"`
	Quality       string   `json:"quality"`
}

// PositionsResponse is the body of GET /positions.
type PositionsResponse struct {
	Positions []Position `json:"positions"`
	Timestamp string     `json:"timestamp"`
	Line      string     `json:"line"`
	Quality   string     `json:"quality"`
}

// NewPosition converts an engine position to its API shape.
func NewPosition(p position.Position) Position {
	out := Position{
		TrainNumber:   p.TrainNumber,
		TripID:        p.TripID,
		Line:          p.LineID,
		Direction:     p.Direction,
		Status:        string(p.Status),
		StationID:     p.StationID,
		FromStationID: p.FromStationID,
		ToStationID:   p.ToStationID,
		Location: Location{
			Lat:     p.Coord.Lat,
			Lon:     p.Coord.Lon,
			Bearing: p.Bearing,
		},
		Delay:   p.DelaySeconds,
		Quality: string(p.Quality),
	}
	if p.Status == position.StatusRunning {
		progress := p.Progress
		out.Progress = &progress
	}
	return out
}

// NewPositionsResponse assembles the full response body.
func NewPositionsResponse(lineID string, at time.Time, positions []position.Position, quality string) PositionsResponse {
	out := PositionsResponse{
		Positions: make([]Position, 0, len(positions)),
		Timestamp: at.Format(time.RFC3339),
		Line:      lineID,
		Quality:   quality,
	}
	for _, p := range positions {
		out.Positions = append(out.Positions, NewPosition(p))
	}
	return out
}
