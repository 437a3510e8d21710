package sender

import (
	"fmt"

	"github.com/ignite/bulkmailer/internal/domain"
)

// New builds the adapter for a provider record. The returned error is
// config-fatal: a run must not start with an unconstructible sender.
func New(cfg *domain.ProviderConfig) (Sender, error) {
	switch cfg.Type {
	case domain.ProviderSMTP:
		return NewSMTPSender(cfg)
	case domain.ProviderSES:
		return NewSESSender(cfg)
	case domain.ProviderSendGrid:
		return NewSendGridSender(cfg)
	case domain.ProviderMailgun:
		return NewMailgunSender(cfg)
	case domain.ProviderPostmark:
		return NewPostmarkSender(cfg)
	case domain.ProviderMailjet:
		return NewMailjetSender(cfg)
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}
