package domain

import "time"

// BounceVerdict classifies a piece of mailbox feedback.
type BounceVerdict string

const (
	BounceHard      BounceVerdict = "hard"
	BounceSoft      BounceVerdict = "soft"
	BounceComplaint BounceVerdict = "complaint"
	BounceUnknown   BounceVerdict = "unknown"
)

// Suppresses returns true if this verdict adds the address to the
// suppression list. Soft bounces and unknowns are recorded only.
func (v BounceVerdict) Suppresses() bool {
	return v == BounceHard || v == BounceComplaint
}

// BounceRecord is the append-only evidence of one classified piece of
// mailbox feedback, matched or not.
type BounceRecord struct {
	ID      string        `json:"id" db:"id"`
	Email   string        `json:"email" db:"email"`
	Verdict BounceVerdict `json:"verdict" db:"verdict"`

	// Code is the SMTP status code extracted from the notification,
	// if any (e.g. "5.1.1").
	Code string `json:"code" db:"code"`

	// Reason is the matched phrase or diagnostic line that drove the
	// classification. Empty for unknown verdicts.
	Reason string `json:"reason" db:"reason"`

	// MessageID references the original outbound message when it could
	// be resolved from the notification.
	MessageID  string  `json:"message_id" db:"message_id"`
	CampaignID *string `json:"campaign_id" db:"campaign_id"`

	// SourceAccount identifies the mailbox the feedback was read from.
	SourceAccount string    `json:"source_account" db:"source_account"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
}
