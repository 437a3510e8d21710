package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/logger"
)

// SuppressionChecker reports list membership for recipient intake.
type SuppressionChecker interface {
	IsSuppressed(email string) bool
}

// Service implements campaign business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo            Repository
	suppression     SuppressionChecker
	defaultThrottle float64
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository, suppression SuppressionChecker) *Service {
	return &Service{repo: repo, suppression: suppression}
}

// SetDefaultThrottle sets the pacing applied to campaigns created
// without an explicit throttle.
func (s *Service) SetDefaultThrottle(seconds float64) {
	if seconds > 0 {
		s.defaultThrottle = seconds
	}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, f)
}

// CreateInput holds the fields for a new campaign.
type CreateInput struct {
	Name            string  `json:"name"`
	Subject         string  `json:"subject"`
	BodyHTML        string  `json:"body_html"`
	BodyText        string  `json:"body_text"`
	FromEmail       string  `json:"from_email"`
	FromName        string  `json:"from_name"`
	ReplyTo         string  `json:"reply_to"`
	ThrottleSeconds float64 `json:"throttle_seconds"`
}

// Create validates and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if input.Subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if input.BodyHTML == "" {
		return nil, fmt.Errorf("body_html is required")
	}
	if input.FromEmail == "" {
		return nil, fmt.Errorf("from_email is required")
	}
	if input.ThrottleSeconds < 0 {
		return nil, fmt.Errorf("throttle_seconds must not be negative")
	}
	if input.ThrottleSeconds == 0 {
		input.ThrottleSeconds = s.defaultThrottle
	}

	now := time.Now().UTC()
	c := &domain.Campaign{
		ID:              uuid.New().String(),
		Name:            input.Name,
		Subject:         input.Subject,
		BodyHTML:        input.BodyHTML,
		BodyText:        input.BodyText,
		FromEmail:       input.FromEmail,
		FromName:        input.FromName,
		ReplyTo:         input.ReplyTo,
		ThrottleSeconds: input.ThrottleSeconds,
		Status:          domain.CampaignDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	c.ID = id

	logger.Info("campaign created", "campaign_id", c.ID, "name", c.Name)
	return c, nil
}

// Update modifies mutable campaign fields. Template and envelope fields
// can only change while the campaign is a draft; a campaign that has
// started sending keeps the content its recipients saw.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	touchesTemplate := u.Subject != nil || u.BodyHTML != nil || u.BodyText != nil ||
		u.FromEmail != nil || u.FromName != nil || u.ReplyTo != nil
	if touchesTemplate && c.Status != domain.CampaignDraft {
		return ErrNotDraft
	}
	if c.IsTerminal() {
		return ErrInvalidTransition
	}
	if u.ThrottleSeconds != nil && *u.ThrottleSeconds < 0 {
		return fmt.Errorf("throttle_seconds must not be negative")
	}

	return s.repo.Update(ctx, id, u)
}

// Delete removes a campaign. Only drafts and cancelled campaigns can go;
// anything with send history is kept for exports.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignCancelled {
		return ErrInvalidTransition
	}
	return s.repo.Delete(ctx, id)
}

// Cancel moves a draft or paused campaign to the cancelled terminal
// state. Remaining pending recipients will never be attempted.
func (s *Service) Cancel(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft && c.Status != domain.CampaignPaused {
		return ErrInvalidTransition
	}
	if err := s.repo.UpdateStatus(ctx, id, domain.CampaignCancelled); err != nil {
		return err
	}
	logger.Info("campaign cancelled", "campaign_id", id, "previous_status", string(c.Status))
	return nil
}

// RecipientInput is one row of an uploaded recipient list.
type RecipientInput struct {
	Email  string            `json:"email"`
	Fields map[string]string `json:"fields"`
}

// AddRecipients attaches recipients to a draft campaign. Rows with a
// blank address or a duplicate within the batch are dropped. Addresses
// already on the suppression list are stored as skipped_suppressed so
// the upload report shows them, but they never become pending.
// Returns inserted count and suppressed count.
func (s *Service) AddRecipients(ctx context.Context, campaignID string, inputs []RecipientInput) (int, int, error) {
	c, err := s.repo.Get(ctx, campaignID)
	if err != nil {
		return 0, 0, err
	}
	if c.Status != domain.CampaignDraft {
		return 0, 0, ErrNotDraft
	}

	seen := make(map[string]struct{}, len(inputs))
	recipients := make([]domain.Recipient, 0, len(inputs))
	suppressed := 0
	now := time.Now().UTC()

	for _, in := range inputs {
		email := domain.NormalizeEmail(in.Email)
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		r := domain.Recipient{
			ID:         uuid.New().String(),
			CampaignID: campaignID,
			Email:      email,
			Fields:     in.Fields,
			Status:     domain.RecipientPending,
			CreatedAt:  now,
		}
		if s.suppression != nil && s.suppression.IsSuppressed(email) {
			r.Status = domain.RecipientSuppressed
			suppressed++
		}
		recipients = append(recipients, r)
	}

	if len(recipients) == 0 {
		return 0, 0, fmt.Errorf("no valid recipients in upload")
	}

	n, err := s.repo.AddRecipients(ctx, campaignID, recipients)
	if err != nil {
		return 0, 0, err
	}

	logger.Info("recipients added", "campaign_id", campaignID, "inserted", n, "suppressed", suppressed)
	return n, suppressed, nil
}

// ListRecipients returns a campaign's recipients.
func (s *Service) ListRecipients(ctx context.Context, campaignID string, f RecipientFilter) ([]domain.Recipient, int, error) {
	if _, err := s.repo.Get(ctx, campaignID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListRecipients(ctx, campaignID, f)
}

// SendLog returns the campaign's send log.
func (s *Service) SendLog(ctx context.Context, campaignID string) ([]domain.SendLogEntry, error) {
	if _, err := s.repo.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	return s.repo.SendLog(ctx, campaignID)
}

// Stats returns aggregate totals across all campaigns.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}
