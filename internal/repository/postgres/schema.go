package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the schema if it does not exist. Statements are
// idempotent so the server can run this on every boot.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mailing_campaigns (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			subject TEXT NOT NULL,
			body_html TEXT NOT NULL,
			body_text TEXT DEFAULT '',
			from_email VARCHAR(320) NOT NULL,
			from_name VARCHAR(255) DEFAULT '',
			reply_to VARCHAR(320) DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'draft',
			throttle_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_recipients INT NOT NULL DEFAULT 0,
			sent_count INT NOT NULL DEFAULT 0,
			failed_count INT NOT NULL DEFAULT 0,
			skipped_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			started_at TIMESTAMP WITH TIME ZONE,
			completed_at TIMESTAMP WITH TIME ZONE
		)`,
		`CREATE TABLE IF NOT EXISTS mailing_recipients (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			campaign_id UUID NOT NULL REFERENCES mailing_campaigns(id) ON DELETE CASCADE,
			email VARCHAR(320) NOT NULL,
			fields JSONB NOT NULL DEFAULT '{}',
			status VARCHAR(30) NOT NULL DEFAULT 'pending',
			message_id VARCHAR(998) DEFAULT '',
			error_message TEXT DEFAULT '',
			attempts INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			sent_at TIMESTAMP WITH TIME ZONE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recipients_campaign_status
			ON mailing_recipients (campaign_id, status, seq)`,
		`CREATE TABLE IF NOT EXISTS mailing_send_log (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			campaign_id UUID NOT NULL,
			recipient_id UUID NOT NULL,
			email VARCHAR(320) NOT NULL,
			provider VARCHAR(20) NOT NULL,
			provider_id VARCHAR(36) DEFAULT '',
			status VARCHAR(20) NOT NULL,
			message_id VARCHAR(998) DEFAULT '',
			response TEXT DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_send_log_campaign ON mailing_send_log (campaign_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_send_log_message_id ON mailing_send_log (message_id)`,
		`CREATE TABLE IF NOT EXISTS mailing_suppressions (
			id UUID PRIMARY KEY,
			email VARCHAR(320) NOT NULL UNIQUE,
			reason VARCHAR(30) NOT NULL,
			source VARCHAR(100) DEFAULT '',
			added_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS mailing_bounces (
			id UUID PRIMARY KEY,
			email VARCHAR(320) DEFAULT '',
			verdict VARCHAR(20) NOT NULL,
			code VARCHAR(20) DEFAULT '',
			reason TEXT DEFAULT '',
			message_id VARCHAR(998) DEFAULT '',
			campaign_id UUID,
			source_account VARCHAR(255) DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS mailing_providers (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			type VARCHAR(20) NOT NULL,
			host VARCHAR(255) DEFAULT '',
			port INT DEFAULT 0,
			use_tls BOOLEAN DEFAULT false,
			use_ssl BOOLEAN DEFAULT false,
			username VARCHAR(255) DEFAULT '',
			password TEXT DEFAULT '',
			api_key TEXT DEFAULT '',
			api_secret TEXT DEFAULT '',
			domain VARCHAR(255) DEFAULT '',
			region VARCHAR(50) DEFAULT '',
			from_email VARCHAR(320) DEFAULT '',
			from_name VARCHAR(255) DEFAULT '',
			reply_to VARCHAR(320) DEFAULT '',
			enabled BOOLEAN DEFAULT true,
			timeout_seconds INT DEFAULT 0,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
