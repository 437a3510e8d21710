package provider

import (
	"context"

	"github.com/ignite/bulkmailer/internal/domain"
)

// Repository defines the data access contract for provider configs.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns one config. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.ProviderConfig, error)

	// List returns all configs, newest first.
	List(ctx context.Context) ([]domain.ProviderConfig, error)

	// Create inserts a new config and returns its ID.
	Create(ctx context.Context, p *domain.ProviderConfig) (string, error)

	// Update replaces a config's mutable fields. Returns ErrNotFound if
	// missing.
	Update(ctx context.Context, p *domain.ProviderConfig) error

	// Delete removes a config. Returns ErrNotFound if missing.
	Delete(ctx context.Context, id string) error
}
