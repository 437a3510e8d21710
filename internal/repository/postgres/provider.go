package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/service/provider"
)

// ProviderRepo implements provider.Repository against PostgreSQL.
type ProviderRepo struct{ db *sql.DB }

// NewProviderRepo creates a Postgres-backed provider repository.
func NewProviderRepo(db *sql.DB) *ProviderRepo { return &ProviderRepo{db: db} }

const providerColumns = `id, name, type, COALESCE(host,''), port, use_tls, use_ssl,
	COALESCE(username,''), COALESCE(password,''), COALESCE(api_key,''), COALESCE(api_secret,''),
	COALESCE(domain,''), COALESCE(region,''), COALESCE(from_email,''), COALESCE(from_name,''),
	COALESCE(reply_to,''), enabled, timeout_seconds, created_at, updated_at`

func scanProvider(row interface{ Scan(...interface{}) error }) (*domain.ProviderConfig, error) {
	p := &domain.ProviderConfig{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Type, &p.Host, &p.Port, &p.UseTLS, &p.UseSSL,
		&p.Username, &p.Password, &p.APIKey, &p.APISecret,
		&p.Domain, &p.Region, &p.FromEmail, &p.FromName,
		&p.ReplyTo, &p.Enabled, &p.TimeoutSeconds, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProviderRepo) Get(ctx context.Context, id string) (*domain.ProviderConfig, error) {
	p, err := scanProvider(r.db.QueryRowContext(ctx,
		`SELECT `+providerColumns+` FROM mailing_providers WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return p, nil
}

func (r *ProviderRepo) List(ctx context.Context) ([]domain.ProviderConfig, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+providerColumns+` FROM mailing_providers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var out []domain.ProviderConfig
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *ProviderRepo) Create(ctx context.Context, p *domain.ProviderConfig) (string, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailing_providers
			(id, name, type, host, port, use_tls, use_ssl, username, password,
			 api_key, api_secret, domain, region, from_email, from_name, reply_to,
			 enabled, timeout_seconds, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
	`, p.ID, p.Name, p.Type, p.Host, p.Port, p.UseTLS, p.UseSSL, p.Username, p.Password,
		p.APIKey, p.APISecret, p.Domain, p.Region, p.FromEmail, p.FromName, p.ReplyTo,
		p.Enabled, p.TimeoutSeconds)
	if err != nil {
		return "", fmt.Errorf("create provider: %w", err)
	}
	return p.ID, nil
}

func (r *ProviderRepo) Update(ctx context.Context, p *domain.ProviderConfig) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mailing_providers SET
			name = $1, type = $2, host = $3, port = $4, use_tls = $5, use_ssl = $6,
			username = $7, password = $8, api_key = $9, api_secret = $10,
			domain = $11, region = $12, from_email = $13, from_name = $14,
			reply_to = $15, enabled = $16, timeout_seconds = $17, updated_at = NOW()
		WHERE id = $18
	`, p.Name, p.Type, p.Host, p.Port, p.UseTLS, p.UseSSL,
		p.Username, p.Password, p.APIKey, p.APISecret,
		p.Domain, p.Region, p.FromEmail, p.FromName,
		p.ReplyTo, p.Enabled, p.TimeoutSeconds, p.ID)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return provider.ErrNotFound
	}
	return nil
}

func (r *ProviderRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM mailing_providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return provider.ErrNotFound
	}
	return nil
}
