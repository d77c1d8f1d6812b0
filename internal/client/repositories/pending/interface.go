package pending

import (
	"context"

	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
)

// Repository is the offline queue. Removal is the only way out of it.
type Repository interface {
	// Enqueue stores a new capture with status pending. It fails with
	// common.ErrDuplicate when the owner already queued the same bytes.
	Enqueue(ctx context.Context, c *models.PendingCapture) error

	// List returns queued captures without their audio bytes, oldest first.
	// An empty ownerID lists every owner.
	List(ctx context.Context, ownerID string) ([]*models.PendingCapture, error)

	// ListByStatus is List narrowed to one status.
	ListByStatus(ctx context.Context, ownerID string, status models.PendingStatus) ([]*models.PendingCapture, error)

	// Get returns the full capture including its bytes.
	Get(ctx context.Context, id string) (*models.PendingCapture, error)

	// SetStatus moves a capture to status. A non-empty errMsg is recorded and
	// bumps the retry counter.
	SetStatus(ctx context.Context, id string, status models.PendingStatus, errMsg string) error

	Remove(ctx context.Context, id string) error

	Count(ctx context.Context, ownerID string) (int, error)
}
