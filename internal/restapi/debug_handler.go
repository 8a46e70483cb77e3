package restapi

import (
	"net/http"

	"github.com/davecgh/go-spew/spew"
)

// debugFusedHandler dumps the current fused trip set for inspection.
// Registered outside production only.
func (api *RestAPI) debugFusedHandler(w http.ResponseWriter, r *http.Request) {
	set := api.Manager.Publisher.Snapshot()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(spew.Sdump(set)))
}
