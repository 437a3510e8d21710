package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/bulkmailer/internal/domain"
)

// BounceRepo persists bounce evidence and resolves outbound message ids
// back to campaigns through the send log.
type BounceRepo struct{ db *sql.DB }

// NewBounceRepo creates a Postgres-backed bounce repository.
func NewBounceRepo(db *sql.DB) *BounceRepo { return &BounceRepo{db: db} }

func (r *BounceRepo) AppendBounce(ctx context.Context, rec *domain.BounceRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailing_bounces
			(id, email, verdict, code, reason, message_id, campaign_id,
			 source_account, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.Email, rec.Verdict, rec.Code, rec.Reason, rec.MessageID,
		rec.CampaignID, rec.SourceAccount, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("append bounce: %w", err)
	}
	return nil
}

func (r *BounceRepo) CampaignByMessageID(ctx context.Context, messageID string) (string, error) {
	var campaignID string
	err := r.db.QueryRowContext(ctx, `
		SELECT campaign_id FROM mailing_send_log
		WHERE message_id = $1 AND status = 'sent'
		ORDER BY seq DESC LIMIT 1
	`, messageID).Scan(&campaignID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("campaign by message id: %w", err)
	}
	return campaignID, nil
}

// List returns recent bounce records, newest first.
func (r *BounceRepo) List(ctx context.Context, limit, offset int) ([]domain.BounceRecord, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mailing_bounces`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bounces: %w", err)
	}

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(email,''), verdict, COALESCE(code,''), COALESCE(reason,''),
		       COALESCE(message_id,''), campaign_id, COALESCE(source_account,''), created_at
		FROM mailing_bounces
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bounces: %w", err)
	}
	defer rows.Close()

	var out []domain.BounceRecord
	for rows.Next() {
		var b domain.BounceRecord
		if err := rows.Scan(
			&b.ID, &b.Email, &b.Verdict, &b.Code, &b.Reason,
			&b.MessageID, &b.CampaignID, &b.SourceAccount, &b.Timestamp,
		); err != nil {
			return nil, 0, fmt.Errorf("scan bounce: %w", err)
		}
		out = append(out, b)
	}
	return out, total, rows.Err()
}
