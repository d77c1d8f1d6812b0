package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/voxkeeper/internal/logging"
)

// ObjectChecker answers whether bytes exist at a storage key.
type ObjectChecker interface {
	Exists(ctx context.Context, key string) (bool, error)
}

type SweepReport struct {
	Checked   int
	Deleted   int
	Completed int
	Failed    int
}

// OrphanSweeper resolves records stuck in uploading: after the grace period
// a record whose bytes never landed is deleted, one whose bytes did land is
// marked done.
type OrphanSweeper struct {
	records records.Repository
	store   ObjectChecker
	grace   time.Duration
	now     func() time.Time
	log     logging.Logger
}

func NewOrphanSweeper(recs records.Repository, store ObjectChecker, grace time.Duration, log logging.Logger) *OrphanSweeper {
	if log == nil {
		log = logging.Nop{}
	}
	return &OrphanSweeper{records: recs, store: store, grace: grace, now: time.Now, log: log.With("component", "orphan-sweep")}
}

// Sweep handles each of ownerID's stale records once. Records of other
// owners are never touched. Per-record failures are counted and logged; only
// a failure to list records is returned.
func (s *OrphanSweeper) Sweep(ctx context.Context, ownerID string) (SweepReport, error) {
	var rep SweepReport

	stale, err := s.records.ListStaleUploading(ctx, ownerID, s.now().Add(-s.grace))
	if err != nil {
		return rep, fmt.Errorf("list stale records: %w", err)
	}

	for _, r := range stale {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		rep.Checked++
		log := s.log.With("record_id", r.Id, "owner_id", r.OwnerID)

		exists, err := s.store.Exists(ctx, r.StoragePath)
		if err != nil {
			rep.Failed++
			log.Warn(ctx, "orphan check failed", "error", err)
			continue
		}

		if exists {
			err = s.records.MarkDone(ctx, ownerID, r.Id, r.Duration)
		} else {
			err = s.records.Delete(ctx, ownerID, r.Id)
		}
		if err != nil {
			rep.Failed++
			log.Warn(ctx, "orphan resolve failed", "error", err)
			continue
		}

		if exists {
			rep.Completed++
			log.Info(ctx, "orphan had bytes, marked done", "key", r.StoragePath)
		} else {
			rep.Deleted++
			log.Info(ctx, "orphan record deleted", "key", r.StoragePath)
		}
	}
	return rep, nil
}
