package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ignite/bulkmailer/internal/bounce"
	"github.com/ignite/bulkmailer/internal/dispatch"
	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/httputil"
	"github.com/ignite/bulkmailer/internal/service/campaign"
	"github.com/ignite/bulkmailer/internal/service/provider"
	"github.com/ignite/bulkmailer/internal/service/suppression"
)

// BounceLister reads back stored bounce evidence for the review endpoint.
type BounceLister interface {
	List(ctx context.Context, limit, offset int) ([]domain.BounceRecord, int, error)
}

// Handlers holds every HTTP handler's dependencies.
type Handlers struct {
	campaigns    *campaign.Service
	providers    *provider.Service
	suppressions *suppression.Service
	dispatcher   *dispatch.Dispatcher
	bounces      *bounce.Processor
	bounceList   BounceLister
}

// NewHandlers wires the services into the HTTP layer.
func NewHandlers(
	campaigns *campaign.Service,
	providers *provider.Service,
	suppressions *suppression.Service,
	dispatcher *dispatch.Dispatcher,
	bounces *bounce.Processor,
	bounceList BounceLister,
) *Handlers {
	return &Handlers{
		campaigns:    campaigns,
		providers:    providers,
		suppressions: suppressions,
		dispatcher:   dispatcher,
		bounces:      bounces,
		bounceList:   bounceList,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

// GetStats returns aggregate campaign and suppression counts.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.campaigns.Stats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{
		"campaigns":    stats,
		"suppressions": h.suppressions.Size(),
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
