package bounce

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/logger"
)

// RecordStore persists bounce evidence.
type RecordStore interface {
	// AppendBounce writes one append-only bounce record.
	AppendBounce(ctx context.Context, rec *domain.BounceRecord) error

	// CampaignByMessageID resolves an outbound message id to the campaign
	// that sent it via the send log. Returns "" when unknown.
	CampaignByMessageID(ctx context.Context, messageID string) (string, error)
}

// Suppressor is the slice of the suppression service the processor needs.
type Suppressor interface {
	Add(ctx context.Context, email string, reason domain.SuppressionReason, source string) (*domain.Suppression, error)
}

// Processor runs classified feedback through the suppression pipeline.
type Processor struct {
	store      RecordStore
	suppressor Suppressor
}

// NewProcessor creates a bounce processor.
func NewProcessor(store RecordStore, suppressor Suppressor) *Processor {
	return &Processor{store: store, suppressor: suppressor}
}

// Process classifies one raw feedback message and persists the outcome.
// A BounceRecord is written for every message, matched or not; only hard
// bounces and complaints feed the suppression list. Unknown verdicts are
// kept for manual review and are not an error.
func (p *Processor) Process(ctx context.Context, raw, sourceAccount string) (*domain.BounceRecord, error) {
	c := Classify(raw)

	rec := &domain.BounceRecord{
		ID:            uuid.New().String(),
		Email:         c.Email,
		Verdict:       c.Verdict,
		Code:          c.Code,
		Reason:        c.Reason,
		MessageID:     c.MessageID,
		SourceAccount: sourceAccount,
		Timestamp:     time.Now().UTC(),
	}

	if c.MessageID != "" {
		campaignID, err := p.store.CampaignByMessageID(ctx, c.MessageID)
		if err != nil {
			logger.Warn("campaign lookup failed for bounce", "message_id", c.MessageID, "error", err.Error())
		} else if campaignID != "" {
			rec.CampaignID = &campaignID
		}
	}

	if err := p.store.AppendBounce(ctx, rec); err != nil {
		return nil, err
	}

	if c.Verdict.Suppresses() && c.Email != "" {
		reason := domain.SuppressHardBounce
		if c.Verdict == domain.BounceComplaint {
			reason = domain.SuppressComplaint
		}
		if _, err := p.suppressor.Add(ctx, c.Email, reason, "bounce:"+sourceAccount); err != nil {
			// The evidence is already persisted; suppression can be
			// replayed from it.
			logger.Error("suppression add failed", "email", c.Email, "error", err.Error())
		}
	}

	logger.Info("bounce processed",
		"verdict", string(c.Verdict),
		"email", c.Email,
		"code", c.Code,
		"source", sourceAccount)
	return rec, nil
}
