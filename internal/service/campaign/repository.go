package campaign

import (
	"context"

	"github.com/ignite/bulkmailer/internal/domain"
)

// Repository defines the data access contract for campaigns and their
// recipient lists. Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error)

	// Create inserts a new campaign and returns its ID.
	Create(ctx context.Context, c *domain.Campaign) (string, error)

	// Update applies the non-nil fields. Returns ErrNotFound if missing.
	Update(ctx context.Context, id string, u UpdateFields) error

	// Delete removes a campaign and its recipients.
	Delete(ctx context.Context, id string) error

	// UpdateStatus transitions a campaign's status.
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error

	// AddRecipients bulk-inserts recipients and bumps the campaign's
	// recipient total. Returns the number inserted.
	AddRecipients(ctx context.Context, campaignID string, recipients []domain.Recipient) (int, error)

	// ListRecipients returns a campaign's recipients, upload order.
	ListRecipients(ctx context.Context, campaignID string, f RecipientFilter) ([]domain.Recipient, int, error)

	// SendLog returns the campaign's append-only send log, oldest first.
	SendLog(ctx context.Context, campaignID string) ([]domain.SendLogEntry, error)

	// Stats returns aggregate counts across all campaigns.
	Stats(ctx context.Context) (*Stats, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// RecipientFilter controls pagination and filtering for recipient lists.
type RecipientFilter struct {
	Status string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a campaign update.
// Nil fields are not applied.
type UpdateFields struct {
	Name            *string  `json:"name"`
	Subject         *string  `json:"subject"`
	BodyHTML        *string  `json:"body_html"`
	BodyText        *string  `json:"body_text"`
	FromEmail       *string  `json:"from_email"`
	FromName        *string  `json:"from_name"`
	ReplyTo         *string  `json:"reply_to"`
	ThrottleSeconds *float64 `json:"throttle_seconds"`
}

// Stats aggregates totals across campaigns for the overview endpoint.
type Stats struct {
	Campaigns       int `json:"campaigns"`
	ActiveCampaigns int `json:"active_campaigns"`
	TotalSent       int `json:"total_sent"`
	TotalFailed     int `json:"total_failed"`
	TotalSkipped    int `json:"total_skipped"`
}
