package campaign

import "errors"

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrNotDraft          = errors.New("campaign is not in draft")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoRecipients      = errors.New("campaign has no recipients")
)
