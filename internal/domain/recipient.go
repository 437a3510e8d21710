package domain

import "time"

// RecipientStatus enumerates the per-recipient delivery state within a
// campaign run. A recipient is mutated at most once per send attempt and
// ends in exactly one terminal-or-pending status.
type RecipientStatus string

const (
	RecipientPending    RecipientStatus = "pending"
	RecipientSent       RecipientStatus = "sent"
	RecipientFailed     RecipientStatus = "failed"
	RecipientSuppressed RecipientStatus = "skipped_suppressed"
)

// Recipient is one addressee of a campaign, with the personalization
// fields supplied at upload time.
type Recipient struct {
	ID         string `json:"id" db:"id"`
	CampaignID string `json:"campaign_id" db:"campaign_id"`
	Email      string `json:"email" db:"email"`

	// Fields holds arbitrary key→value personalization data derived from
	// the uploaded list. The "email" key is always present.
	Fields map[string]string `json:"fields" db:"fields"`

	Status       RecipientStatus `json:"status" db:"status"`
	MessageID    string          `json:"message_id" db:"message_id"`
	ErrorMessage string          `json:"error_message" db:"error_message"`
	Attempts     int             `json:"attempts" db:"attempts"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	SentAt    *time.Time `json:"sent_at" db:"sent_at"`
}
