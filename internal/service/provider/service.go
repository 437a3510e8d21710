package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/logger"
	"github.com/ignite/bulkmailer/internal/sender"
)

// SenderFactory builds a sender adapter from a config. Overridable so
// tests can verify connection checks without real network credentials.
type SenderFactory func(cfg *domain.ProviderConfig) (sender.Sender, error)

// Service implements provider config business logic.
type Service struct {
	repo      Repository
	newSender SenderFactory
}

// NewService creates a provider service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, newSender: sender.New}
}

// NewServiceWithFactory creates a provider service with a custom sender
// factory.
func NewServiceWithFactory(repo Repository, factory SenderFactory) *Service {
	return &Service{repo: repo, newSender: factory}
}

// Get returns a single provider config.
func (s *Service) Get(ctx context.Context, id string) (*domain.ProviderConfig, error) {
	return s.repo.Get(ctx, id)
}

// List returns all provider configs.
func (s *Service) List(ctx context.Context) ([]domain.ProviderConfig, error) {
	return s.repo.List(ctx)
}

// Create validates and persists a new provider config.
func (s *Service) Create(ctx context.Context, p *domain.ProviderConfig) (*domain.ProviderConfig, error) {
	if err := validate(p); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p.ID = uuid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now

	if _, err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.Info("provider created", "id", p.ID, "type", string(p.Type), "name", p.Name)
	return p, nil
}

// Update validates and replaces a provider config's mutable fields.
// Blank credential fields keep the stored values, so callers can submit
// the redacted form of a config unchanged.
func (s *Service) Update(ctx context.Context, id string, p *domain.ProviderConfig) (*domain.ProviderConfig, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.Password == "" {
		p.Password = existing.Password
	}
	if p.APIKey == "" {
		p.APIKey = existing.APIKey
	}
	if p.APISecret == "" {
		p.APISecret = existing.APISecret
	}

	if err := validate(p); err != nil {
		return nil, err
	}

	p.ID = id
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a provider config.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("provider deleted", "id", id)
	return nil
}

// TestConnection builds the adapter for a stored config and verifies it
// can reach the provider with the stored credentials.
func (s *Service) TestConnection(ctx context.Context, id string) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	snd, err := s.newSender(p)
	if err != nil {
		return err
	}
	if err := snd.TestConnection(ctx); err != nil {
		logger.Warn("provider connection test failed", "id", id, "type", string(p.Type), "error", err.Error())
		return err
	}
	return nil
}

func validate(p *domain.ProviderConfig) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if _, err := domain.ParseProviderType(string(p.Type)); err != nil {
		return err
	}
	switch p.Type {
	case domain.ProviderSMTP:
		if p.Host == "" {
			return fmt.Errorf("host is required for smtp providers")
		}
	case domain.ProviderMailgun:
		if p.Domain == "" {
			return fmt.Errorf("domain is required for mailgun providers")
		}
		if p.APIKey == "" {
			return fmt.Errorf("api_key is required for mailgun providers")
		}
	case domain.ProviderMailjet:
		if p.APIKey == "" || p.APISecret == "" {
			return fmt.Errorf("api_key and api_secret are required for mailjet providers")
		}
	case domain.ProviderSendGrid, domain.ProviderPostmark:
		if p.APIKey == "" {
			return fmt.Errorf("api_key is required for %s providers", p.Type)
		}
	}
	return nil
}
