package restapi

import (
	"net/http"

	"nowtrain.tokyo/internal/models"
)

// linesHandler answers GET /lines with the catalog's line metadata.
func (api *RestAPI) linesHandler(w http.ResponseWriter, r *http.Request) {
	lines := api.Manager.Catalog.Lines()

	response := models.LinesResponse{Lines: make([]models.LineSummary, 0, len(lines))}
	for _, line := range lines {
		response.Lines = append(response.Lines, models.NewLineSummary(line))
	}

	api.sendResponse(w, r, response)
}
