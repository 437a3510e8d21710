package dispatch

import (
	"context"
	"time"

	"github.com/ignite/bulkmailer/internal/domain"
)

// Store is the persistence contract the dispatch loop runs against.
// Implementations must be safe for concurrent use; each recipient-status
// update must be its own transaction so a crash never leaves partial
// recipient writes.
type Store interface {
	// GetCampaign returns the campaign or an error if it doesn't exist.
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)

	// UpdateCampaignStatus transitions the campaign and maintains the
	// started/completed timestamps.
	UpdateCampaignStatus(ctx context.Context, id string, status domain.CampaignStatus) error

	// PendingRecipients returns the next batch of pending recipients in
	// upload order.
	PendingRecipients(ctx context.Context, campaignID string, limit int) ([]domain.Recipient, error)

	// CountPending returns how many recipients are still pending.
	CountPending(ctx context.Context, campaignID string) (int, error)

	// MarkRecipientSent records a successful delivery.
	MarkRecipientSent(ctx context.Context, recipientID, messageID string, attempts int, sentAt time.Time) error

	// MarkRecipientFailed records a terminal delivery failure.
	MarkRecipientFailed(ctx context.Context, recipientID, errMsg string, attempts int) error

	// MarkRecipientSkipped records a suppression skip.
	MarkRecipientSkipped(ctx context.Context, recipientID string) error

	// AppendSendLog writes one append-only log entry.
	AppendSendLog(ctx context.Context, entry *domain.SendLogEntry) error

	// IncrementCounters bumps the campaign's outcome counters.
	IncrementCounters(ctx context.Context, campaignID string, sent, failed, skipped int) error

	// GetProvider returns a provider record by id.
	GetProvider(ctx context.Context, id string) (*domain.ProviderConfig, error)
}

// SuppressionChecker gates every recipient before a provider call.
type SuppressionChecker interface {
	IsSuppressed(email string) bool
}
