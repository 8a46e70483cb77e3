package restapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nowtrain.tokyo/internal/catalog"
	"nowtrain.tokyo/internal/fusion"
	"nowtrain.tokyo/internal/models"
	"nowtrain.tokyo/internal/position"
)

// positionsHandler answers GET /positions?line=<id>&at=<ISO8601?>.
func (api *RestAPI) positionsHandler(w http.ResponseWriter, r *http.Request) {
	lineID := r.URL.Query().Get("line")
	if lineID == "" {
		api.sendError(w, r, http.StatusBadRequest, "line query parameter is required")
		return
	}

	at := api.Clock.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			api.sendError(w, r, http.StatusBadRequest, "at must be an ISO8601 timestamp")
			return
		}
		at = parsed
	}
	at = at.In(api.Config.Location)

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	mgr := api.Manager
	positions, err := mgr.Materializer.Positions(ctx, lineID, at)
	switch {
	case errors.Is(err, catalog.ErrLineUnknown):
		api.sendNotFound(w, r, "line not found: "+lineID)
		return
	case errors.Is(err, position.ErrCanceled):
		api.sendError(w, r, http.StatusServiceUnavailable, "query canceled: deadline elapsed")
		return
	case err != nil:
		api.serverErrorResponse(w, r, err)
		return
	}

	api.Metrics.ActiveTrains.WithLabelValues(lineID).Set(float64(len(positions)))

	api.sendResponse(w, r, models.NewPositionsResponse(lineID, at, positions, api.overallQuality(at)))
}

// overallQuality summarizes the fused-set health for the response envelope.
func (api *RestAPI) overallQuality(at time.Time) string {
	mgr := api.Manager
	if mgr.Publisher.Status() == fusion.StatusDegraded {
		return "degraded"
	}
	if mgr.Publisher.Stale(at, api.Config.RefreshInterval()) {
		return "stale"
	}
	return "good"
}
