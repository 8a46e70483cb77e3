package restapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"nowtrain.tokyo/internal/catalog"
	"nowtrain.tokyo/internal/logging"
)

type stationRankRequest struct {
	Rank      string `json:"rank"`
	DwellTime int    `json:"dwell_time"`
}

// stationRankHandler answers PUT /stations/{id}/rank: the admin write-through
// update of a station's rank and dwell assumption. Returns 204 on success.
func (api *RestAPI) stationRankHandler(w http.ResponseWriter, r *http.Request) {
	stationID := r.PathValue("id")
	if stationID == "" {
		api.sendError(w, r, http.StatusBadRequest, "station id is required")
		return
	}

	var req stationRankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.sendError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	rank := catalog.Rank(req.Rank)
	if !rank.Valid() {
		api.sendError(w, r, http.StatusBadRequest, `rank must be one of "S", "A", "B"`)
		return
	}
	if req.DwellTime < 0 {
		api.sendError(w, r, http.StatusBadRequest, "dwell_time must be non-negative")
		return
	}

	if _, ok := api.Manager.Catalog.Station(stationID); !ok {
		api.sendNotFound(w, r, "station not found: "+stationID)
		return
	}

	if err := api.Manager.Catalog.SetStationRank(stationID, rank, req.DwellTime); err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	logging.LogOperation(api.Logger, "station_rank_updated",
		slog.String("station_id", stationID),
		slog.String("rank", req.Rank),
		slog.Int("dwell_time", req.DwellTime))

	w.WriteHeader(http.StatusNoContent)
}
