package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/bulkmailer/internal/dispatch"
	"github.com/ignite/bulkmailer/internal/pkg/httputil"
	"github.com/ignite/bulkmailer/internal/service/campaign"
)

// ListCampaigns returns campaigns matching the query filters.
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	f := campaign.ListFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	items, total, err := h.campaigns.List(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"campaigns": items, "total": total})
}

// CreateCampaign creates a draft campaign.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), input)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, c)
}

// GetCampaign returns a single campaign.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// UpdateCampaign applies partial updates to a campaign.
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var u campaign.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.campaigns.Update(r.Context(), id, u); err != nil {
		h.campaignError(w, err)
		return
	}
	c, err := h.campaigns.Get(r.Context(), id)
	if err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteCampaign removes a draft or cancelled campaign.
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "deleted"})
}

// StartCampaign begins or resumes a campaign run.
func (h *Handlers) StartCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderID string `json:"provider_id"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.ProviderID == "" {
		httputil.BadRequest(w, "provider_id is required")
		return
	}

	id := chi.URLParam(r, "id")
	err := h.dispatcher.Start(r.Context(), id, body.ProviderID)
	switch {
	case err == nil:
		httputil.OK(w, map[string]string{"status": "sending"})
	case errors.Is(err, dispatch.ErrAlreadyRunning):
		httputil.Conflict(w, "campaign is already running")
	case errors.Is(err, dispatch.ErrInvalidState):
		httputil.Conflict(w, err.Error())
	case errors.Is(err, dispatch.ErrNoPending), errors.Is(err, dispatch.ErrProviderDisabled):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	default:
		httputil.BadRequest(w, err.Error())
	}
}

// PauseCampaign requests a graceful stop of an active run.
func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.Pause(chi.URLParam(r, "id")); err != nil {
		httputil.Conflict(w, err.Error())
		return
	}
	httputil.OK(w, map[string]string{"status": "pausing"})
}

// CancelCampaign permanently cancels a draft or paused campaign.
func (h *Handlers) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "cancelled"})
}

// GetProgress returns a live or stored progress snapshot.
func (h *Handlers) GetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.dispatcher.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, p)
}

// AddRecipients attaches a JSON recipient list to a draft campaign.
func (h *Handlers) AddRecipients(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Recipients []campaign.RecipientInput `json:"recipients"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	inserted, suppressed, err := h.campaigns.AddRecipients(r.Context(), chi.URLParam(r, "id"), body.Recipients)
	if err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"inserted": inserted, "suppressed": suppressed})
}

// UploadRecipients attaches a CSV recipient list to a draft campaign.
// The file must carry a header row with an "email" column; every other
// column becomes a personalization field.
func (h *Handlers) UploadRecipients(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		httputil.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		httputil.BadRequest(w, "cannot read CSV header: "+err.Error())
		return
	}
	emailCol := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "email") {
			emailCol = i
			break
		}
	}
	if emailCol < 0 {
		httputil.BadRequest(w, "CSV must have an email column")
		return
	}

	var inputs []campaign.RecipientInput
	for {
		row, err := reader.Read()
		if err != nil {
			break
		}
		if emailCol >= len(row) {
			continue
		}
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				fields[strings.TrimSpace(col)] = strings.TrimSpace(row[i])
			}
		}
		inputs = append(inputs, campaign.RecipientInput{
			Email:  row[emailCol],
			Fields: fields,
		})
	}
	if len(inputs) == 0 {
		httputil.BadRequest(w, "no data rows in upload")
		return
	}

	inserted, suppressed, err := h.campaigns.AddRecipients(r.Context(), chi.URLParam(r, "id"), inputs)
	if err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]int{
		"rows":       len(inputs),
		"inserted":   inserted,
		"suppressed": suppressed,
	})
}

// ListRecipients returns a campaign's recipients with their outcomes.
func (h *Handlers) ListRecipients(w http.ResponseWriter, r *http.Request) {
	f := campaign.RecipientFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
	}
	items, total, err := h.campaigns.ListRecipients(r.Context(), chi.URLParam(r, "id"), f)
	if err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"recipients": items, "total": total})
}

// ExportRecipients streams a campaign's per-recipient outcomes as CSV:
// address, personalization fields, final status, provider message id,
// attempts, sent time and error.
func (h *Handlers) ExportRecipients(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	items, _, err := h.campaigns.ListRecipients(r.Context(), id, campaign.RecipientFilter{Limit: -1})
	if err != nil {
		h.campaignError(w, err)
		return
	}

	// Union of field names across recipients, stable order.
	fieldSet := map[string]struct{}{}
	for _, rec := range items {
		for k := range rec.Fields {
			if k != "email" {
				fieldSet[k] = struct{}{}
			}
		}
	}
	fieldCols := make([]string, 0, len(fieldSet))
	for k := range fieldSet {
		fieldCols = append(fieldCols, k)
	}
	sort.Strings(fieldCols)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="campaign-%s-recipients.csv"`, id))

	cw := csv.NewWriter(w)
	header := append([]string{"email"}, fieldCols...)
	header = append(header, "status", "message_id", "attempts", "sent_at", "error")
	cw.Write(header)
	for _, rec := range items {
		row := []string{rec.Email}
		for _, col := range fieldCols {
			row = append(row, rec.Fields[col])
		}
		sentAt := ""
		if rec.SentAt != nil {
			sentAt = rec.SentAt.UTC().Format("2006-01-02 15:04:05")
		}
		row = append(row, string(rec.Status), rec.MessageID,
			fmt.Sprintf("%d", rec.Attempts), sentAt, rec.ErrorMessage)
		cw.Write(row)
	}
	cw.Flush()
}

// GetSendLog returns the campaign's per-attempt audit trail.
func (h *Handlers) GetSendLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.campaigns.SendLog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.campaignError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"entries": entries, "total": len(entries)})
}

func (h *Handlers) campaignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrNotDraft),
		errors.Is(err, campaign.ErrInvalidTransition):
		httputil.Conflict(w, err.Error())
	default:
		httputil.BadRequest(w, err.Error())
	}
}
