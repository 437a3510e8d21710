package api

import (
	"net/http"

	"github.com/ignite/bulkmailer/internal/pkg/httputil"
)

// IngestBounce accepts one raw feedback message (DSN or complaint) and
// runs it through the classification pipeline.
func (h *Handlers) IngestBounce(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Raw           string `json:"raw"`
		SourceAccount string `json:"source_account"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.Raw == "" {
		httputil.BadRequest(w, "raw is required")
		return
	}

	rec, err := h.bounces.Process(r.Context(), body.Raw, body.SourceAccount)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// ListBounces returns recent bounce evidence, newest first.
func (h *Handlers) ListBounces(w http.ResponseWriter, r *http.Request) {
	items, total, err := h.bounceList.List(r.Context(),
		queryInt(r, "limit", 100), queryInt(r, "offset", 0))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"bounces": items, "total": total})
}
