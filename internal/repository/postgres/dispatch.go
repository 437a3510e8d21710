package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/bulkmailer/internal/domain"
)

// DispatchStore implements dispatch.Store. Campaign and provider reads
// delegate to the dedicated repos; recipient-status writes are its own
// single-statement transactions so a crash mid-run never leaves partial
// recipient state.
type DispatchStore struct {
	db        *sql.DB
	campaigns *CampaignRepo
	providers *ProviderRepo
}

// NewDispatchStore creates a Postgres-backed dispatch store.
func NewDispatchStore(db *sql.DB) *DispatchStore {
	return &DispatchStore{
		db:        db,
		campaigns: NewCampaignRepo(db),
		providers: NewProviderRepo(db),
	}
}

func (s *DispatchStore) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.campaigns.Get(ctx, id)
}

func (s *DispatchStore) UpdateCampaignStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	return s.campaigns.UpdateStatus(ctx, id, status)
}

func (s *DispatchStore) GetProvider(ctx context.Context, id string) (*domain.ProviderConfig, error) {
	return s.providers.Get(ctx, id)
}

func (s *DispatchStore) PendingRecipients(ctx context.Context, campaignID string, limit int) ([]domain.Recipient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recipientColumns+`
		FROM mailing_recipients
		WHERE campaign_id = $1 AND status = 'pending'
		ORDER BY seq
		LIMIT $2
	`, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("pending recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *DispatchStore) CountPending(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mailing_recipients WHERE campaign_id = $1 AND status = 'pending'`,
		campaignID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

func (s *DispatchStore) MarkRecipientSent(ctx context.Context, recipientID, messageID string, attempts int, sentAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mailing_recipients
		SET status = 'sent', message_id = $1, attempts = $2, sent_at = $3, error_message = ''
		WHERE id = $4
	`, messageID, attempts, sentAt, recipientID)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

func (s *DispatchStore) MarkRecipientFailed(ctx context.Context, recipientID, errMsg string, attempts int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mailing_recipients
		SET status = 'failed', error_message = $1, attempts = $2
		WHERE id = $3
	`, errMsg, attempts, recipientID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (s *DispatchStore) MarkRecipientSkipped(ctx context.Context, recipientID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mailing_recipients
		SET status = 'skipped_suppressed'
		WHERE id = $1
	`, recipientID)
	if err != nil {
		return fmt.Errorf("mark skipped: %w", err)
	}
	return nil
}

func (s *DispatchStore) AppendSendLog(ctx context.Context, e *domain.SendLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mailing_send_log
			(id, campaign_id, recipient_id, email, provider, provider_id,
			 status, message_id, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.CampaignID, e.RecipientID, e.Email, e.Provider, e.ProviderID,
		e.Status, e.MessageID, e.Response, e.Timestamp)
	if err != nil {
		return fmt.Errorf("append send log: %w", err)
	}
	return nil
}

func (s *DispatchStore) IncrementCounters(ctx context.Context, campaignID string, sent, failed, skipped int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE mailing_campaigns
		SET sent_count = sent_count + $1,
		    failed_count = failed_count + $2,
		    skipped_count = skipped_count + $3,
		    updated_at = NOW()
		WHERE id = $4
	`, sent, failed, skipped, campaignID)
	if err != nil {
		return fmt.Errorf("increment counters: %w", err)
	}
	return nil
}
