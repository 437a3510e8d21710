package suppression

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/bulkmailer/internal/domain"
	"github.com/ignite/bulkmailer/internal/pkg/logger"
)

// Service maintains the suppression list and its in-memory index.
type Service struct {
	repo Repository

	mu    sync.RWMutex
	index map[string]struct{}
}

// NewService creates a suppression service backed by the given repository.
// Call Refresh before serving traffic to warm the index.
func NewService(repo Repository) *Service {
	return &Service{
		repo:  repo,
		index: make(map[string]struct{}),
	}
}

// Refresh rebuilds the in-memory index from the repository.
func (s *Service) Refresh(ctx context.Context) error {
	emails, err := s.repo.AllEmails(ctx)
	if err != nil {
		return err
	}

	index := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		index[domain.NormalizeEmail(e)] = struct{}{}
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()

	logger.Info("suppression index refreshed", "entries", len(index))
	return nil
}

// IsSuppressed reports whether an address is on the list. Matching is
// case-insensitive on the normalized form.
func (s *Service) IsSuppressed(email string) bool {
	key := domain.NormalizeEmail(email)
	s.mu.RLock()
	_, ok := s.index[key]
	s.mu.RUnlock()
	return ok
}

// Add puts an address on the list. Adding an already-suppressed address
// is a no-op that returns the existing entry unchanged.
func (s *Service) Add(ctx context.Context, email string, reason domain.SuppressionReason, source string) (*domain.Suppression, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" || !strings.Contains(normalized, "@") {
		return nil, ErrInvalidEmail
	}

	existing, err := s.repo.Get(ctx, normalized)
	if err == nil {
		s.mu.Lock()
		s.index[normalized] = struct{}{}
		s.mu.Unlock()
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	entry := &domain.Suppression{
		ID:      uuid.New().String(),
		Email:   normalized,
		Reason:  reason,
		Source:  source,
		AddedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.index[normalized] = struct{}{}
	s.mu.Unlock()

	logger.Info("address suppressed", "email", normalized, "reason", string(reason), "source", source)
	return entry, nil
}

// Remove takes an address off the list.
func (s *Service) Remove(ctx context.Context, email string) error {
	normalized := domain.NormalizeEmail(email)
	if err := s.repo.Delete(ctx, normalized); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.index, normalized)
	s.mu.Unlock()

	logger.Info("address unsuppressed", "email", normalized)
	return nil
}

// Get returns one suppression entry.
func (s *Service) Get(ctx context.Context, email string) (*domain.Suppression, error) {
	return s.repo.Get(ctx, domain.NormalizeEmail(email))
}

// List returns suppression entries matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Suppression, int, error) {
	return s.repo.List(ctx, f)
}

// Size returns the number of indexed addresses.
func (s *Service) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}
