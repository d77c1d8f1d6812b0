package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/auth"
	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/pending"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/records"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dmitrijs2005/voxkeeper/internal/logging"
	"github.com/dmitrijs2005/voxkeeper/internal/transport"
	"golang.org/x/sync/semaphore"
)

// Reconciler drains the offline queue through the live upload path. At most
// one pass runs at a time and items are uploaded strictly one after another,
// so only a single capture's bytes are held in memory.
type Reconciler struct {
	queue     pending.Repository
	records   records.Repository
	transport transport.Transport
	tokens    TokenSource
	status    *StatusBroadcaster
	log       logging.Logger

	// maxRetries parks an item in the error state once it has failed this
	// many times. Zero retries forever.
	maxRetries int

	sem *semaphore.Weighted

	now       func() time.Time
	heartbeat time.Duration
}

func NewReconciler(queue pending.Repository, recs records.Repository, tr transport.Transport,
	tokens TokenSource, status *StatusBroadcaster, maxRetries int, log logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Nop{}
	}
	if status == nil {
		status = NewStatusBroadcaster()
	}
	return &Reconciler{
		queue:      queue,
		records:    recs,
		transport:  tr,
		tokens:     tokens,
		status:     status,
		log:        log.With("component", "sync"),
		maxRetries: maxRetries,
		sem:        semaphore.NewWeighted(1),
		now:        time.Now,
		heartbeat:  heartbeatInterval,
	}
}

func (r *Reconciler) Status() *StatusBroadcaster { return r.status }

// SyncNow runs one pass over ownerID's pending captures. If a pass is already
// running it returns common.ErrSyncInProgress without doing anything.
func (r *Reconciler) SyncNow(ctx context.Context, ownerID string) (models.PassReport, error) {
	if !r.sem.TryAcquire(1) {
		return models.PassReport{}, common.ErrSyncInProgress
	}
	defer r.sem.Release(1)

	return r.pass(ctx, ownerID)
}

// Run triggers a pass whenever signal goes from offline to online, and once
// at start if already online. It returns when ctx is done.
func (r *Reconciler) Run(ctx context.Context, ownerID string, signal Signal) {
	id, ch := signal.Subscribe()
	defer signal.Unsubscribe(id)

	if signal.IsOnline() {
		r.trigger(ctx, ownerID)
	}

	for {
		select {
		case online, ok := <-ch:
			if !ok {
				return
			}
			if online {
				r.trigger(ctx, ownerID)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) trigger(ctx context.Context, ownerID string) {
	rep, err := r.SyncNow(ctx, ownerID)
	switch {
	case errors.Is(err, common.ErrSyncInProgress):
		r.log.Debug(ctx, "sync already running")
	case err != nil:
		r.log.Error(ctx, "sync pass failed", "owner_id", ownerID, "error", err)
	case rep.Total > 0:
		r.log.Info(ctx, "sync pass finished", "owner_id", ownerID,
			"total", rep.Total, "uploaded", rep.Uploaded, "failed", rep.Failed, "parked", rep.Parked)
	}
}

func (r *Reconciler) pass(ctx context.Context, ownerID string) (models.PassReport, error) {
	var rep models.PassReport

	if err := r.resetInterrupted(ctx, ownerID); err != nil {
		return rep, err
	}

	items, err := r.queue.ListByStatus(ctx, ownerID, models.PendingStatusPending)
	if err != nil {
		return rep, fmt.Errorf("list pending: %w", err)
	}
	rep.Total = len(items)
	if rep.Total == 0 {
		return rep, nil
	}

	r.log.Info(ctx, "sync pass started", "owner_id", ownerID, "items", rep.Total)
	r.status.Publish(models.SyncStatus{IsSyncing: true, TotalItems: rep.Total})

	var lastErr error
	for i, it := range items {
		if ctx.Err() != nil {
			lastErr = common.ErrCancelled
			break
		}

		ictx := logging.ContextWith(ctx, "capture_id", it.Id, "owner_id", it.OwnerID)
		log := r.log.With("attempt", it.RetryCount+1)
		parked, err := r.syncOne(ictx, it.Id, log)
		switch {
		case err == nil:
			rep.Uploaded++
			log.Info(ictx, "capture synced", "bytes", it.FileSize)
		case parked:
			rep.Parked++
			lastErr = err
			log.Warn(ictx, "capture parked after retry limit", "error", err)
		default:
			rep.Failed++
			lastErr = err
			log.Warn(ictx, "capture sync failed", "error", err)
		}

		done := i + 1
		r.status.Publish(models.SyncStatus{
			IsSyncing:       true,
			TotalItems:      rep.Total,
			CompletedItems:  done,
			ProgressPercent: done * 100 / rep.Total,
			Error:           errString(lastErr),
		})
	}

	r.status.Publish(models.SyncStatus{
		TotalItems:      rep.Total,
		CompletedItems:  rep.Uploaded + rep.Failed + rep.Parked,
		ProgressPercent: 100,
		Error:           errString(lastErr),
	})

	if errors.Is(lastErr, common.ErrCancelled) {
		return rep, lastErr
	}
	return rep, nil
}

// resetInterrupted returns items left uploading by a pass that never
// finished (crash or kill) to the pending set.
func (r *Reconciler) resetInterrupted(ctx context.Context, ownerID string) error {
	stuck, err := r.queue.ListByStatus(ctx, ownerID, models.PendingStatusUploading)
	if err != nil {
		return fmt.Errorf("list interrupted: %w", err)
	}
	for _, it := range stuck {
		if err := r.queue.SetStatus(ctx, it.Id, models.PendingStatusPending, ""); err != nil {
			return fmt.Errorf("reset %s: %w", it.Id, err)
		}
	}
	return nil
}

// syncOne uploads a single queued capture. The record is created with the
// capture's id so retries reuse it. parked reports whether a failure moved
// the item out of the retriable set.
func (r *Reconciler) syncOne(ctx context.Context, id string, log logging.Logger) (parked bool, err error) {
	pc, err := r.queue.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load capture: %w", err)
	}
	if err := r.queue.SetStatus(ctx, id, models.PendingStatusUploading, ""); err != nil {
		return false, fmt.Errorf("mark uploading: %w", err)
	}

	key := auth.ObjectKey(pc.OwnerID, pc.Id, pc.FileName)
	rec := &models.RecordingRecord{
		Id:          pc.Id,
		OwnerID:     pc.OwnerID,
		StoragePath: key,
		FileName:    pc.FileName,
		FileSize:    pc.FileSize,
		Duration:    durationPtr(pc.DurationSeconds),
	}
	if err := r.records.Create(ctx, rec); err != nil {
		return r.fail(ctx, pc, fmt.Errorf("create record: %w", err), false, log)
	}

	token, err := r.tokens(pc.OwnerID)
	if err != nil {
		return r.fail(ctx, pc, fmt.Errorf("credential: %w", err), true, log)
	}

	hb := newHeartbeat(ctx, r.records, rec, r.heartbeat, r.now, log)
	obj := transport.Object{Key: key, Data: pc.Data, ContentType: pc.MimeType}
	if err := r.transport.Upload(ctx, obj, token, hb.beat); err != nil {
		return r.fail(ctx, pc, err, true, log)
	}

	if err := markUploaded(ctx, r.records, rec, log); err != nil {
		return r.fail(ctx, pc, fmt.Errorf("mark done: %w", err), true, log)
	}
	if err := r.queue.Remove(ctx, pc.Id); err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	return false, nil
}

// fail puts a capture back in the queue after a failed attempt, dropping the
// attempt's record first when one was created.
func (r *Reconciler) fail(ctx context.Context, pc *models.PendingCapture, cause error, dropRecord bool, log logging.Logger) (bool, error) {
	cctx := context.WithoutCancel(ctx)

	if dropRecord {
		if err := r.records.Delete(cctx, pc.OwnerID, pc.Id); err != nil && !errors.Is(err, common.ErrNotFound) {
			log.Error(ctx, "failed to delete record of failed attempt", "error", err)
		}
	}

	if errors.Is(cause, common.ErrCancelled) {
		if err := r.queue.SetStatus(cctx, pc.Id, models.PendingStatusPending, ""); err != nil {
			return false, errors.Join(cause, err)
		}
		return false, cause
	}

	status := models.PendingStatusPending
	parked := r.maxRetries > 0 && pc.RetryCount+1 >= r.maxRetries
	if parked {
		status = models.PendingStatusError
	}
	if err := r.queue.SetStatus(cctx, pc.Id, status, cause.Error()); err != nil {
		return false, errors.Join(cause, err)
	}
	return parked, cause
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
