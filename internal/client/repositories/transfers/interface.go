package transfers

import (
	"context"

	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
)

// Repository keeps multipart upload progress so an interrupted upload of the
// same object can continue after its last acknowledged part.
type Repository interface {
	// Get returns the state for key with parts ordered by number, or
	// common.ErrNotFound.
	Get(ctx context.Context, key string) (*models.TransferState, error)
	// Begin records a freshly created multipart upload, replacing any
	// previous state for the key.
	Begin(ctx context.Context, st *models.TransferState) error
	AddPart(ctx context.Context, key string, part models.TransferPart) error
	// Forget drops all state for key. Missing keys are not an error.
	Forget(ctx context.Context, key string) error
}
