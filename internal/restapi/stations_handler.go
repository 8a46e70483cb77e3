package restapi

import (
	"errors"
	"net/http"

	"nowtrain.tokyo/internal/catalog"
	"nowtrain.tokyo/internal/models"
)

// stationsHandler answers GET /stations?line=<id> with the line's ordered
// station list.
func (api *RestAPI) stationsHandler(w http.ResponseWriter, r *http.Request) {
	lineID := r.URL.Query().Get("line")
	if lineID == "" {
		api.sendError(w, r, http.StatusBadRequest, "line query parameter is required")
		return
	}

	cat := api.Manager.Catalog
	stations, err := cat.StationsOnLine(lineID)
	if errors.Is(err, catalog.ErrLineUnknown) {
		api.sendNotFound(w, r, "line not found: "+lineID)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	response := models.StationsResponse{Stations: make([]models.Station, 0, len(stations))}
	for _, st := range stations {
		response.Stations = append(response.Stations, models.Station{
			ID:     st.ID,
			LineID: st.LineID,
			NameJA: st.NameJA,
			NameEN: st.NameEN,
			Coord: models.StationCoord{
				Lon: st.Coord.Lon,
				Lat: st.Coord.Lat,
			},
			Rank:      string(cat.StationRank(st.ID)),
			DwellTime: cat.StationDwell(st.ID),
		})
	}

	api.sendResponse(w, r, response)
}
