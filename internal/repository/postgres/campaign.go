package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, name, subject, body_html, COALESCE(body_text,''),
	from_email, COALESCE(from_name,''), COALESCE(reply_to,''), status,
	throttle_seconds, total_recipients, sent_count, failed_count, skipped_count,
	created_at, updated_at, started_at, completed_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.BodyHTML, &c.BodyText,
		&c.FromEmail, &c.FromName, &c.ReplyTo, &c.Status,
		&c.ThrottleSeconds, &c.TotalRecipients, &c.SentCount, &c.FailedCount, &c.SkippedCount,
		&c.CreatedAt, &c.UpdatedAt, &c.StartedAt, &c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM mailing_campaigns WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{}
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR subject ILIKE $%d)", idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mailing_campaigns`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM mailing_campaigns` + cond +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailing_campaigns
			(id, name, subject, body_html, body_text, from_email, from_name,
			 reply_to, status, throttle_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, c.ID, c.Name, c.Subject, c.BodyHTML, c.BodyText, c.FromEmail, c.FromName,
		c.ReplyTo, c.Status, c.ThrottleSeconds)
	if err != nil {
		return "", fmt.Errorf("create campaign: %w", err)
	}
	return c.ID, nil
}

func (r *CampaignRepo) Update(ctx context.Context, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.BodyHTML != nil {
		add("body_html", *u.BodyHTML)
	}
	if u.BodyText != nil {
		add("body_text", *u.BodyText)
	}
	if u.FromEmail != nil {
		add("from_email", *u.FromEmail)
	}
	if u.FromName != nil {
		add("from_name", *u.FromName)
	}
	if u.ReplyTo != nil {
		add("reply_to", *u.ReplyTo)
	}
	if u.ThrottleSeconds != nil {
		add("throttle_seconds", *u.ThrottleSeconds)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	q := fmt.Sprintf("UPDATE mailing_campaigns SET %s WHERE id = $%d",
		strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM mailing_campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	var extra string
	switch status {
	case domain.CampaignSending:
		extra = ", started_at = COALESCE(started_at, NOW())"
	case domain.CampaignCompleted, domain.CampaignFailed, domain.CampaignCancelled:
		extra = ", completed_at = NOW()"
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE mailing_campaigns SET status = $1, updated_at = NOW()`+extra+` WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) AddRecipients(ctx context.Context, campaignID string, recipients []domain.Recipient) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mailing_recipients (id, campaign_id, email, fields, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	suppressed := 0
	for i := range recipients {
		rec := &recipients[i]
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return 0, fmt.Errorf("marshal fields: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, campaignID, rec.Email, fields, rec.Status); err != nil {
			return 0, fmt.Errorf("insert recipient: %w", err)
		}
		// Addresses suppressed at upload count as skipped right away and
		// leave an audit entry, the same as a dispatch-time skip.
		if rec.Status == domain.RecipientSuppressed {
			suppressed++
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO mailing_send_log
					(id, campaign_id, recipient_id, email, provider, provider_id,
					 status, message_id, response, created_at)
				VALUES ($1, $2, $3, $4, '', '', $5, '', 'suppressed at upload', NOW())
			`, uuid.New().String(), campaignID, rec.ID, rec.Email, domain.LogStatusSkipped); err != nil {
				return 0, fmt.Errorf("log upload skip: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE mailing_campaigns
		SET total_recipients = total_recipients + $1,
			skipped_count = skipped_count + $2, updated_at = NOW()
		WHERE id = $3
	`, len(recipients), suppressed, campaignID); err != nil {
		return 0, fmt.Errorf("bump recipient total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(recipients), nil
}

const recipientColumns = `id, campaign_id, email, fields, status,
	COALESCE(message_id,''), COALESCE(error_message,''), attempts, created_at, sent_at`

func scanRecipient(row interface{ Scan(...interface{}) error }) (*domain.Recipient, error) {
	rec := &domain.Recipient{}
	var fields []byte
	err := row.Scan(
		&rec.ID, &rec.CampaignID, &rec.Email, &fields, &rec.Status,
		&rec.MessageID, &rec.ErrorMessage, &rec.Attempts, &rec.CreatedAt, &rec.SentAt,
	)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("unmarshal fields: %w", err)
		}
	}
	return rec, nil
}

func (r *CampaignRepo) ListRecipients(ctx context.Context, campaignID string, f campaign.RecipientFilter) ([]domain.Recipient, int, error) {
	countQ := `SELECT COUNT(*) FROM mailing_recipients WHERE campaign_id = $1`
	countArgs := []interface{}{campaignID}
	if f.Status != "" {
		countQ += " AND status = $2"
		countArgs = append(countArgs, f.Status)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQ, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recipients: %w", err)
	}

	// Negative limit means the full set, used by the CSV export.
	limit := f.Limit
	if limit == 0 {
		limit = 100
	}
	if limit < 0 {
		limit = total
	}

	q := `SELECT ` + recipientColumns + ` FROM mailing_recipients WHERE campaign_id = $1`
	args := []interface{}{campaignID}
	idx := 2
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	q += fmt.Sprintf(" ORDER BY seq LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) SendLog(ctx context.Context, campaignID string) ([]domain.SendLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, campaign_id, recipient_id, email, provider,
		       COALESCE(provider_id,''), status, COALESCE(message_id,''),
		       COALESCE(response,''), created_at
		FROM mailing_send_log
		WHERE campaign_id = $1
		ORDER BY seq
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("send log: %w", err)
	}
	defer rows.Close()

	var out []domain.SendLogEntry
	for rows.Next() {
		var e domain.SendLogEntry
		if err := rows.Scan(
			&e.ID, &e.CampaignID, &e.RecipientID, &e.Email, &e.Provider,
			&e.ProviderID, &e.Status, &e.MessageID, &e.Response, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Stats(ctx context.Context) (*campaign.Stats, error) {
	s := &campaign.Stats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status IN ('sending','paused')),
		       COALESCE(SUM(sent_count), 0),
		       COALESCE(SUM(failed_count), 0),
		       COALESCE(SUM(skipped_count), 0)
		FROM mailing_campaigns
	`).Scan(&s.Campaigns, &s.ActiveCampaigns, &s.TotalSent, &s.TotalFailed, &s.TotalSkipped)
	if err != nil {
		return nil, fmt.Errorf("campaign stats: %w", err)
	}
	return s, nil
}
