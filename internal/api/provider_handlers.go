package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/httputil"
	"github.com/ignite/bulkmailer/internal/sender"
	"github.com/ignite/bulkmailer/internal/service/provider"
)

// ListProviders returns all delivery channel configs. Credentials are
// omitted by the domain type's JSON tags.
func (h *Handlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	items, err := h.providers.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"providers": items, "total": len(items)})
}

// CreateProvider registers a new delivery channel.
func (h *Handlers) CreateProvider(w http.ResponseWriter, r *http.Request) {
	var p domain.ProviderConfig
	if !decodeProvider(w, r, &p) {
		return
	}
	created, err := h.providers.Create(r.Context(), &p)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Created(w, created)
}

// GetProvider returns one delivery channel config.
func (h *Handlers) GetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.providers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.providerError(w, err)
		return
	}
	httputil.OK(w, p)
}

// UpdateProvider replaces a delivery channel config. Blank credential
// fields keep the stored values.
func (h *Handlers) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	var p domain.ProviderConfig
	if !decodeProvider(w, r, &p) {
		return
	}
	updated, err := h.providers.Update(r.Context(), chi.URLParam(r, "id"), &p)
	if err != nil {
		h.providerError(w, err)
		return
	}
	httputil.OK(w, updated)
}

// DeleteProvider removes a delivery channel config.
func (h *Handlers) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.providers.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.providerError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"status": "deleted"})
}

// TestProvider verifies the stored credentials can reach the provider.
func (h *Handlers) TestProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.providers.TestConnection(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			httputil.NotFound(w, "provider not found")
			return
		}
		httputil.OK(w, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	httputil.OK(w, map[string]interface{}{"ok": true})
}

// SendTest delivers a single test message through a stored provider.
func (h *Handlers) SendTest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To       string `json:"to"`
		Subject  string `json:"subject"`
		BodyHTML string `json:"body_html"`
		From     string `json:"from_email"`
		FromName string `json:"from_name"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.To == "" {
		httputil.BadRequest(w, "to is required")
		return
	}
	if body.Subject == "" {
		body.Subject = "Test message"
	}
	if body.BodyHTML == "" {
		body.BodyHTML = "<p>This is a test message.</p>"
	}

	p, err := h.providers.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.providerError(w, err)
		return
	}
	from := body.From
	if from == "" {
		from = p.FromEmail
	}
	if from == "" {
		httputil.BadRequest(w, "from_email is required (neither request nor provider has one)")
		return
	}

	snd, err := sender.New(p)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	outcome, err := snd.Send(r.Context(), &sender.Message{
		To:        body.To,
		FromEmail: from,
		FromName:  body.FromName,
		ReplyTo:   p.ReplyTo,
		Subject:   body.Subject,
		BodyHTML:  body.BodyHTML,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"outcome":    outcome.Kind,
		"message_id": outcome.MessageID,
		"reason":     outcome.Reason,
	})
}

func decodeProvider(w http.ResponseWriter, r *http.Request, p *domain.ProviderConfig) bool {
	// Credentials carry json:"-" so they need a side channel on intake.
	var body struct {
		domain.ProviderConfig
		Password  string `json:"password"`
		APIKey    string `json:"api_key"`
		APISecret string `json:"api_secret"`
	}
	if !httputil.Decode(w, r, &body) {
		return false
	}
	*p = body.ProviderConfig
	p.Password = body.Password
	p.APIKey = body.APIKey
	p.APISecret = body.APISecret
	return true
}

func (h *Handlers) providerError(w http.ResponseWriter, err error) {
	if errors.Is(err, provider.ErrNotFound) {
		httputil.NotFound(w, "provider not found")
		return
	}
	httputil.BadRequest(w, err.Error())
}
