package domain

import (
	"fmt"
	"time"
)

// ProviderType enumerates the supported delivery channels. Selection at
// run start goes through ParseProviderType; there is no string dispatch
// without validation.
type ProviderType string

const (
	ProviderSMTP     ProviderType = "smtp"
	ProviderSES      ProviderType = "ses"
	ProviderSendGrid ProviderType = "sendgrid"
	ProviderMailgun  ProviderType = "mailgun"
	ProviderPostmark ProviderType = "postmark"
	ProviderMailjet  ProviderType = "mailjet"
)

// ParseProviderType validates a provider type string.
func ParseProviderType(s string) (ProviderType, error) {
	switch t := ProviderType(s); t {
	case ProviderSMTP, ProviderSES, ProviderSendGrid, ProviderMailgun, ProviderPostmark, ProviderMailjet:
		return t, nil
	default:
		return "", fmt.Errorf("unknown provider type %q", s)
	}
}

// ProviderConfig holds one delivery channel's credentials and settings.
// A disabled or unresolvable config fails a campaign run before any send
// begins.
type ProviderConfig struct {
	ID   string       `json:"id" db:"id"`
	Name string       `json:"name" db:"name"`
	Type ProviderType `json:"type" db:"type"`

	// SMTP transport settings (smtp type only).
	Host   string `json:"host" db:"host"`
	Port   int    `json:"port" db:"port"`
	UseTLS bool   `json:"use_tls" db:"use_tls"`
	UseSSL bool   `json:"use_ssl" db:"use_ssl"`

	// Credentials. SMTP uses Username/Password; HTTP APIs use
	// APIKey/APISecret; SES uses APIKey/APISecret as access/secret key.
	Username  string `json:"username" db:"username"`
	Password  string `json:"-" db:"password"`
	APIKey    string `json:"-" db:"api_key"`
	APISecret string `json:"-" db:"api_secret"`

	// Domain is required for Mailgun; Region selects regional endpoints
	// (Mailgun us/eu, SES AWS region).
	Domain string `json:"domain" db:"domain"`
	Region string `json:"region" db:"region"`

	FromEmail string `json:"from_email" db:"from_email"`
	FromName  string `json:"from_name" db:"from_name"`
	ReplyTo   string `json:"reply_to" db:"reply_to"`

	Enabled        bool `json:"enabled" db:"enabled"`
	TimeoutSeconds int  `json:"timeout_seconds" db:"timeout_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Timeout returns the transport timeout as a duration, defaulting to 30s.
// Adapters must always bound their requests so a stuck network call cannot
// hold a pause request indefinitely.
func (c *ProviderConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
