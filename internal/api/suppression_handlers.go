package api

import (
	"encoding/csv"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/httputil"
	"github.com/ignite/bulkmailer/internal/service/suppression"
)

// ListSuppressions returns suppression entries matching the filter.
func (h *Handlers) ListSuppressions(w http.ResponseWriter, r *http.Request) {
	f := suppression.ListFilter{
		Reason: r.URL.Query().Get("reason"),
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}
	items, total, err := h.suppressions.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"suppressions": items, "total": total})
}

// AddSuppression manually suppresses an address.
func (h *Handlers) AddSuppression(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email  string `json:"email"`
		Reason string `json:"reason"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	reason := domain.SuppressionReason(body.Reason)
	if reason == "" {
		reason = domain.SuppressManual
	}
	s, err := h.suppressions.Add(r.Context(), body.Email, reason, "api")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, s)
}

// RemoveSuppression deletes an address from the suppression list.
func (h *Handlers) RemoveSuppression(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if err := h.suppressions.Remove(r.Context(), email); err != nil {
		if errors.Is(err, suppression.ErrNotFound) {
			httputil.NotFound(w, "suppression not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "removed"})
}

// ExportSuppressions streams the full suppression list as CSV.
func (h *Handlers) ExportSuppressions(w http.ResponseWriter, r *http.Request) {
	items, _, err := h.suppressions.List(r.Context(), suppression.ListFilter{Limit: -1})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="suppressions.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"email", "reason", "source", "added_at"})
	for _, s := range items {
		cw.Write([]string{
			s.Email, string(s.Reason), s.Source,
			s.AddedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	cw.Flush()
}
