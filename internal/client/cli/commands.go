package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dustin/go-humanize"
)

// Pending lists the owner's queued captures.
func (a *App) Pending(ctx context.Context) error {
	items, err := a.queue.List(ctx, a.owner)
	if err != nil {
		a.printf("cannot read the offline queue: %v\n", err)
		return err
	}
	if len(items) == 0 {
		a.printf("no pending captures\n")
		return nil
	}

	for _, it := range items {
		a.printf("%s  %-28s %9s  %-9s retries=%d", it.Id, it.FileName,
			humanize.Bytes(uint64(it.FileSize)), it.Status, it.RetryCount)
		if it.ErrorMessage != "" {
			a.printf("  last error: %s", it.ErrorMessage)
		}
		a.printf("\n")
	}
	a.printf("%d pending\n", len(items))
	return nil
}

// Sync runs a sync pass now.
func (a *App) Sync(ctx context.Context) error {
	if a.mode() != ModeOnline {
		a.printf("offline: sync will start when the connection is back\n")
		return common.ErrOffline
	}

	rep, err := a.syncer.SyncNow(ctx, a.owner)
	switch {
	case errors.Is(err, common.ErrSyncInProgress):
		a.printf("sync already in progress\n")
		return err
	case err != nil:
		a.printf("sync failed: %v\n", err)
		return err
	case rep.Total == 0:
		a.printf("nothing to sync\n")
	default:
		a.printf("synced %d of %d (%d failed, %d parked)\n", rep.Uploaded, rep.Total, rep.Failed, rep.Parked)
	}
	a.touch(ctx, metadata.LastSyncAt)
	return nil
}

// Sweep resolves the owner's recordings stuck in uploading.
func (a *App) Sweep(ctx context.Context) error {
	rep, err := a.sweeper.Sweep(ctx, a.owner)
	if err != nil {
		a.printf("sweep failed: %v\n", err)
		return err
	}
	a.printf("checked %d stale records: %d deleted, %d completed, %d failed\n",
		rep.Checked, rep.Deleted, rep.Completed, rep.Failed)
	a.touch(ctx, metadata.LastSweepAt)
	return nil
}

func (a *App) touch(ctx context.Context, key metadata.Key) {
	if a.marks == nil {
		return
	}
	if err := a.marks.Touch(ctx, a.owner, key, a.now()); err != nil {
		a.log.Warn(ctx, "cannot record maintenance time", "key", key, "error", err)
	}
}

// Status shows connectivity, the queue size and the last sync snapshot.
func (a *App) Status(ctx context.Context) error {
	a.printf("mode: %s\n", a.mode())

	n, err := a.queue.Count(ctx, a.owner)
	if err != nil {
		a.printf("pending: unknown (%v)\n", err)
	} else {
		a.printf("pending: %d\n", n)
	}

	s := a.status.Current()
	switch {
	case s.IsSyncing:
		a.printf("sync: running, %d/%d (%d%%)\n", s.CompletedItems, s.TotalItems, s.ProgressPercent)
	case s.TotalItems > 0:
		a.printf("sync: last pass handled %d/%d\n", s.CompletedItems, s.TotalItems)
	default:
		a.printf("sync: idle\n")
	}
	if s.Error != "" {
		a.printf("last sync error: %s\n", s.Error)
	}

	if a.marks != nil {
		marks, err := a.marks.All(ctx, a.owner)
		if err != nil {
			a.log.Warn(ctx, "cannot read maintenance times", "error", err)
			return nil
		}
		if at, ok := marks[metadata.LastSyncAt]; ok {
			a.printf("last manual sync: %s\n", humanize.RelTime(at, a.now(), "ago", "from now"))
		}
		if at, ok := marks[metadata.LastSweepAt]; ok {
			a.printf("last sweep: %s\n", humanize.RelTime(at, a.now(), "ago", "from now"))
		}
	}
	return nil
}
