package domain

import (
	"strings"
	"time"
)

// SuppressionReason explains why an address was suppressed.
type SuppressionReason string

const (
	SuppressHardBounce SuppressionReason = "hard_bounce"
	SuppressComplaint  SuppressionReason = "complaint"
	SuppressManual     SuppressionReason = "manual"
)

// Suppression marks an address as excluded from all future sends.
// Unique per address; re-adding an already-suppressed address is a no-op.
type Suppression struct {
	ID     string            `json:"id" db:"id"`
	Email  string            `json:"email" db:"email"`
	Reason SuppressionReason `json:"reason" db:"reason"`

	// Source records where the suppression came from (bounce classifier,
	// API, import).
	Source  string    `json:"source" db:"source"`
	AddedAt time.Time `json:"added_at" db:"added_at"`
}

// NormalizeEmail lowercases and trims an address for suppression matching.
// All suppression storage and lookup goes through this normalization.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
