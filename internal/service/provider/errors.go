package provider

import "errors"

var (
	// ErrNotFound is returned when a provider config does not exist.
	ErrNotFound = errors.New("provider not found")
)
