package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/service/suppression"
)

// SuppressionRepo implements suppression.Repository against PostgreSQL.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

func (r *SuppressionRepo) Insert(ctx context.Context, s *domain.Suppression) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	// DO NOTHING keeps the entry that first listed the address.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailing_suppressions (id, email, reason, source, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO NOTHING
	`, s.ID, s.Email, s.Reason, s.Source, s.AddedAt)
	if err != nil {
		return fmt.Errorf("insert suppression: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) Delete(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM mailing_suppressions WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("delete suppression: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return suppression.ErrNotFound
	}
	return nil
}

func (r *SuppressionRepo) Get(ctx context.Context, email string) (*domain.Suppression, error) {
	s := &domain.Suppression{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, reason, COALESCE(source,''), added_at
		FROM mailing_suppressions WHERE email = $1
	`, email).Scan(&s.ID, &s.Email, &s.Reason, &s.Source, &s.AddedAt)
	if err == sql.ErrNoRows {
		return nil, suppression.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get suppression: %w", err)
	}
	return s, nil
}

func (r *SuppressionRepo) List(ctx context.Context, f suppression.ListFilter) ([]domain.Suppression, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1
	if f.Reason != "" {
		where = append(where, fmt.Sprintf("reason = $%d", idx))
		args = append(args, f.Reason)
		idx++
	}
	if f.Search != "" {
		where = append(where, fmt.Sprintf("email ILIKE $%d", idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mailing_suppressions`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppressions: %w", err)
	}

	// Negative limit means the full set, used by the CSV export.
	limit := f.Limit
	if limit == 0 {
		limit = 100
	}
	if limit < 0 {
		limit = total
	}
	q := `SELECT id, email, reason, COALESCE(source,''), added_at FROM mailing_suppressions` +
		cond + fmt.Sprintf(" ORDER BY added_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()

	var out []domain.Suppression
	for rows.Next() {
		var s domain.Suppression
		if err := rows.Scan(&s.ID, &s.Email, &s.Reason, &s.Source, &s.AddedAt); err != nil {
			return nil, 0, fmt.Errorf("scan suppression: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *SuppressionRepo) AllEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT email FROM mailing_suppressions ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("all suppressed emails: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}
