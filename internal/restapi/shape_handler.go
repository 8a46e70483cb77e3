package restapi

import (
	"errors"
	"net/http"

	"github.com/twpayne/go-polyline"

	"nowtrain.tokyo/internal/catalog"
	"nowtrain.tokyo/internal/models"
)

// shapeHandler answers GET /shape?line=<id> with the stitched polyline as a
// GeoJSON LineString. An encoded polyline rendition rides along in the
// feature properties for lightweight clients.
func (api *RestAPI) shapeHandler(w http.ResponseWriter, r *http.Request) {
	lineID := r.URL.Query().Get("line")
	if lineID == "" {
		api.sendError(w, r, http.StatusBadRequest, "line query parameter is required")
		return
	}

	line, err := api.Manager.Catalog.Line(lineID)
	if errors.Is(err, catalog.ErrLineUnknown) {
		api.sendNotFound(w, r, "line not found: "+lineID)
		return
	}
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	if line.Shape == nil {
		api.sendNotFound(w, r, "shape not available for line: "+lineID)
		return
	}

	coords := make([][2]float64, len(line.Shape.Points))
	encodeInput := make([][]float64, len(line.Shape.Points))
	for i, p := range line.Shape.Points {
		coords[i] = [2]float64{p.Lon, p.Lat}
		encodeInput[i] = []float64{p.Lat, p.Lon}
	}

	response := models.ShapeResponse{
		Type: "FeatureCollection",
		Features: []models.GeoJSONFeature{
			{
				Type: "Feature",
				Geometry: models.GeoJSONGeometry{
					Type:        "LineString",
					Coordinates: coords,
				},
				Properties: map[string]any{
					"line_id":          lineID,
					"color":            line.Color,
					"loop":             line.Shape.Loop,
					"length_m":         line.Shape.TotalLength(),
					"encoded_polyline": string(polyline.EncodeCoords(encodeInput)),
				},
			},
		},
	}

	api.sendResponse(w, r, response)
}
