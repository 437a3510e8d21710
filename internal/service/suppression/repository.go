package suppression

import (
	"context"

	"github.com/ignite/bulkmailer/internal/domain"
)

// Repository defines the data access contract for the suppression list.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Insert adds an entry keyed by normalized email. Inserting an
	// address that is already listed leaves the stored entry untouched.
	Insert(ctx context.Context, s *domain.Suppression) error

	// Delete removes an entry. Returns ErrNotFound if it doesn't exist.
	Delete(ctx context.Context, email string) error

	// Get returns one entry. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, email string) (*domain.Suppression, error)

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]domain.Suppression, int, error)

	// AllEmails returns every suppressed address, used to warm the index.
	AllEmails(ctx context.Context) ([]string, error)
}

// ListFilter controls pagination and filtering for suppression lists.
type ListFilter struct {
	Reason string
	Search string
	Limit  int
	Offset int
}
