package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignSending   CampaignStatus = "sending"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
	CampaignCancelled CampaignStatus = "cancelled"
)

// Campaign represents an email campaign with its content and delivery settings.
type Campaign struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Subject  string `json:"subject" db:"subject"`
	BodyHTML string `json:"body_html" db:"body_html"`
	BodyText string `json:"body_text" db:"body_text"`

	FromEmail string `json:"from_email" db:"from_email"`
	FromName  string `json:"from_name" db:"from_name"`
	ReplyTo   string `json:"reply_to" db:"reply_to"`

	Status CampaignStatus `json:"status" db:"status"`

	// ThrottleSeconds is the pacing delay enforced between consecutive
	// sends. Zero disables throttling.
	ThrottleSeconds float64 `json:"throttle_seconds" db:"throttle_seconds"`

	TotalRecipients int `json:"total_recipients" db:"total_recipients"`
	SentCount       int `json:"sent_count" db:"sent_count"`
	FailedCount     int `json:"failed_count" db:"failed_count"`
	SkippedCount    int `json:"skipped_count" db:"skipped_count"`

	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	StartedAt   *time.Time `json:"started_at" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignCompleted || c.Status == CampaignFailed || c.Status == CampaignCancelled
}

// Throttle returns the throttle interval as a duration.
func (c *Campaign) Throttle() time.Duration {
	return time.Duration(c.ThrottleSeconds * float64(time.Second))
}
