package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
)

// EnsureFunc makes the backing store usable, typically by connecting and
// migrating it. It is called before every operation and must be cheap once
// it has succeeded.
type EnsureFunc func(ctx context.Context) error

// EnsuredRepository runs ensure before delegating to the wrapped Repository.
type EnsuredRepository struct {
	next   Repository
	ensure EnsureFunc
}

func NewEnsuredRepository(next Repository, ensure EnsureFunc) *EnsuredRepository {
	return &EnsuredRepository{next: next, ensure: ensure}
}

func (r *EnsuredRepository) Create(ctx context.Context, rec *models.RecordingRecord) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	return r.next.Create(ctx, rec)
}

func (r *EnsuredRepository) MarkDone(ctx context.Context, ownerID, id string, duration *float64) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	return r.next.MarkDone(ctx, ownerID, id, duration)
}

func (r *EnsuredRepository) MarkError(ctx context.Context, ownerID, id string, msg string) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	return r.next.MarkError(ctx, ownerID, id, msg)
}

func (r *EnsuredRepository) Delete(ctx context.Context, ownerID, id string) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	return r.next.Delete(ctx, ownerID, id)
}

func (r *EnsuredRepository) Touch(ctx context.Context, ownerID, id string) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	return r.next.Touch(ctx, ownerID, id)
}

func (r *EnsuredRepository) GetByID(ctx context.Context, id string) (*models.RecordingRecord, error) {
	if err := r.ensure(ctx); err != nil {
		return nil, err
	}
	return r.next.GetByID(ctx, id)
}

func (r *EnsuredRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.RecordingRecord, error) {
	if err := r.ensure(ctx); err != nil {
		return nil, err
	}
	return r.next.ListByOwner(ctx, ownerID)
}

func (r *EnsuredRepository) ListStaleUploading(ctx context.Context, ownerID string, olderThan time.Time) ([]*models.RecordingRecord, error) {
	if err := r.ensure(ctx); err != nil {
		return nil, err
	}
	return r.next.ListStaleUploading(ctx, ownerID, olderThan)
}
