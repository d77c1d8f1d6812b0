package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dmitrijs2005/voxkeeper/internal/logging"
)

// heartbeatInterval bounds how often a live upload refreshes its record.
// It must stay well below the orphan sweep grace period.
const heartbeatInterval = time.Minute

// heartbeat refreshes an uploading record's updated_at while bytes are in
// flight, at most once per interval.
type heartbeat struct {
	ctx      context.Context
	records  records.Repository
	rec      *models.RecordingRecord
	interval time.Duration
	now      func() time.Time
	log      logging.Logger

	mu   sync.Mutex
	last time.Time
}

func newHeartbeat(ctx context.Context, recs records.Repository, rec *models.RecordingRecord,
	interval time.Duration, now func() time.Time, log logging.Logger) *heartbeat {
	return &heartbeat{ctx: ctx, records: recs, rec: rec, interval: interval, now: now, log: log, last: now()}
}

// beat has the transport.ProgressFunc shape.
func (h *heartbeat) beat(_, _ int64) {
	h.mu.Lock()
	t := h.now()
	if t.Sub(h.last) < h.interval {
		h.mu.Unlock()
		return
	}
	h.last = t
	h.mu.Unlock()

	err := h.records.Touch(h.ctx, h.rec.OwnerID, h.rec.Id)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		h.log.Warn(h.ctx, "record heartbeat failed", "error", err)
	}
}

// markUploaded finishes rec once its bytes are stored. A record swept away
// while the upload ran is created again.
func markUploaded(ctx context.Context, recs records.Repository, rec *models.RecordingRecord, log logging.Logger) error {
	err := recs.MarkDone(ctx, rec.OwnerID, rec.Id, rec.Duration)
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	log.Warn(ctx, "record vanished during upload, recreating", "key", rec.StoragePath)
	if err := recs.Create(ctx, rec); err != nil {
		return err
	}
	return recs.MarkDone(ctx, rec.OwnerID, rec.Id, rec.Duration)
}
