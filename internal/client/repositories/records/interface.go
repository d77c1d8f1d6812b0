package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
)

// Repository is the record boundary for recording status rows.
type Repository interface {
	// Create inserts the record in the uploading state. Re-creating an id
	// the same owner already holds resets it to uploading, so a retried
	// capture keeps a single record.
	Create(ctx context.Context, r *models.RecordingRecord) error

	// Writes below only affect a row held by ownerID; any other id reports
	// common.ErrNotFound.
	MarkDone(ctx context.Context, ownerID, id string, duration *float64) error
	MarkError(ctx context.Context, ownerID, id string, msg string) error
	Delete(ctx context.Context, ownerID, id string) error
	// Touch refreshes updated_at of a record still uploading, so a long
	// transfer is not mistaken for an orphan.
	Touch(ctx context.Context, ownerID, id string) error

	GetByID(ctx context.Context, id string) (*models.RecordingRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.RecordingRecord, error)
	// ListStaleUploading returns the owner's records still uploading that
	// were last touched before olderThan.
	ListStaleUploading(ctx context.Context, ownerID string, olderThan time.Time) ([]*models.RecordingRecord, error)
}
