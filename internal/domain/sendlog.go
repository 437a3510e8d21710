package domain

import "time"

// SendLogEntry is the append-only record of one delivery attempt (or
// suppression skip). Entries are never mutated after creation; they are
// the audit trail behind the CSV export.
type SendLogEntry struct {
	ID          string       `json:"id" db:"id"`
	CampaignID  string       `json:"campaign_id" db:"campaign_id"`
	RecipientID string       `json:"recipient_id" db:"recipient_id"`
	Email       string       `json:"email" db:"email"`
	Provider    ProviderType `json:"provider" db:"provider"`
	ProviderID  string       `json:"provider_id" db:"provider_id"`

	// Status is the attempt outcome: sent, failed, or skipped.
	Status    string    `json:"status" db:"status"`
	MessageID string    `json:"message_id" db:"message_id"`
	Response  string    `json:"response" db:"response"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// Send log status values.
const (
	LogStatusSent    = "sent"
	LogStatusFailed  = "failed"
	LogStatusSkipped = "skipped"
)
