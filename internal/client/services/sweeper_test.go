package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/auth"
	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dmitrijs2005/voxkeeper/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrphanSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-2 * time.Hour)

	recs := newMemRecords()
	rec := func(id string, status models.RecordStatus, updated time.Time) {
		recs.put(&models.RecordingRecord{
			Id:          id,
			OwnerID:     owner,
			StoragePath: "recordings/" + owner + "/" + id + "/a.m4a",
			Status:      status,
			UpdatedAt:   updated,
		})
	}
	rec("landed", models.RecordStatusUploading, old)
	rec("lost", models.RecordStatusUploading, old)
	rec("unreachable", models.RecordStatusUploading, old)
	rec("fresh", models.RecordStatusUploading, now.Add(-time.Minute))
	rec("finished", models.RecordStatusDone, old)

	tr := newFakeTransport()
	tr.exists = func(key string) (bool, error) {
		switch key {
		case "recordings/" + owner + "/landed/a.m4a":
			return true, nil
		case "recordings/" + owner + "/unreachable/a.m4a":
			return false, errors.New("timeout")
		default:
			return false, nil
		}
	}

	s := NewOrphanSweeper(recs, tr, time.Hour, nil)
	s.now = func() time.Time { return now }

	rep, err := s.Sweep(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 3, Deleted: 1, Completed: 1, Failed: 1}, rep)

	r, err := recs.GetByID(ctx, "landed")
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusDone, r.Status)

	_, err = recs.GetByID(ctx, "lost")
	assert.ErrorIs(t, err, common.ErrNotFound)

	for _, id := range []string{"unreachable", "fresh"} {
		r, err := recs.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.RecordStatusUploading, r.Status, id)
	}
}

func TestOrphanSweeper_CrashedUploadIsSwept(t *testing.T) {
	ctx := context.Background()
	recs := newMemRecords()
	recs.now = func() time.Time { return time.Now().Add(-time.Hour) }

	// a record created just before the process died
	require.NoError(t, recs.Create(ctx, &models.RecordingRecord{Id: "crashed", OwnerID: owner, StoragePath: "k"}))

	s := NewOrphanSweeper(recs, newFakeTransport(), 10*time.Minute, nil)
	rep, err := s.Sweep(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deleted)
	assert.Zero(t, recs.len())
}

func TestOrphanSweeper_LeavesOtherOwnersAlone(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	old := now.Add(-2 * time.Hour)

	recs := newMemRecords()
	for _, r := range []struct{ id, owner string }{{"mine", owner}, {"theirs", "owner-2"}} {
		recs.put(&models.RecordingRecord{
			Id:          r.id,
			OwnerID:     r.owner,
			StoragePath: "recordings/" + r.owner + "/" + r.id + "/a.m4a",
			Status:      models.RecordStatusUploading,
			UpdatedAt:   old,
		})
	}

	s := NewOrphanSweeper(recs, newFakeTransport(), time.Hour, nil)
	s.now = func() time.Time { return now }

	rep, err := s.Sweep(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Checked: 1, Deleted: 1}, rep)

	_, err = recs.GetByID(ctx, "mine")
	assert.ErrorIs(t, err, common.ErrNotFound)

	r, err := recs.GetByID(ctx, "theirs")
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusUploading, r.Status)
}

func TestSubmit_HeartbeatKeepsLiveUploadFromSweep(t *testing.T) {
	ctx := context.Background()
	clk := newClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	f := newCaptureFixture(t, smallPolicy, true)
	f.recs.now = clk.Now
	f.svc.now = clk.Now

	sweeper := NewOrphanSweeper(f.recs, f.tr, 10*time.Minute, nil)
	sweeper.now = clk.Now

	var mid SweepReport
	f.tr.upload = func(ctx context.Context, obj transport.Object, progress transport.ProgressFunc) error {
		total := int64(len(obj.Data))
		for sent := int64(1); sent <= total; sent++ {
			clk.Advance(5 * time.Minute)
			progress(sent, total)
		}
		var err error
		mid, err = sweeper.Sweep(ctx, owner)
		return err
	}

	res, err := f.svc.Submit(ctx, owner, mp3(5), SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeUploaded, res.Outcome)

	assert.Zero(t, mid.Checked, "a record touched during upload is not stale")
	assert.Equal(t, 5, f.recs.touchCount())

	rec, err := f.recs.GetByID(ctx, res.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusDone, rec.Status)
}

func TestSubmit_HeartbeatIsThrottled(t *testing.T) {
	clk := newClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	f := newCaptureFixture(t, smallPolicy, true)
	f.svc.now = clk.Now

	f.tr.upload = func(_ context.Context, obj transport.Object, progress transport.ProgressFunc) error {
		total := int64(len(obj.Data))
		for sent := int64(1); sent <= total; sent++ {
			clk.Advance(10 * time.Second)
			progress(sent, total)
		}
		return nil
	}

	_, err := f.svc.Submit(context.Background(), owner, mp3(8), SubmitOptions{})
	require.NoError(t, err)
	// 80s of progress in 10s steps crosses the one minute mark once
	assert.Equal(t, 1, f.recs.touchCount())
}

func TestSubmit_RecordSweptMidUploadIsRecreated(t *testing.T) {
	ctx := context.Background()
	clk := newClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	f := newCaptureFixture(t, smallPolicy, true)
	f.recs.now = clk.Now
	f.svc.now = clk.Now

	sweeper := NewOrphanSweeper(f.recs, f.tr, 10*time.Minute, nil)
	sweeper.now = clk.Now

	f.tr.upload = func(ctx context.Context, _ transport.Object, _ transport.ProgressFunc) error {
		clk.Advance(time.Hour)
		rep, err := sweeper.Sweep(ctx, owner)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, rep.Deleted)
		return nil
	}

	res, err := f.svc.Submit(ctx, owner, mp3(5), SubmitOptions{})
	require.NoError(t, err)

	rec, err := f.recs.GetByID(ctx, res.RecordID)
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusDone, rec.Status)
	assert.Equal(t, int64(5), rec.FileSize)
}

func TestReconciler_LiveUploadSurvivesSweep(t *testing.T) {
	ctx := context.Background()
	clk := newClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	q := setupQueue(t)
	recs := newMemRecords()
	recs.now = clk.Now
	tr := newFakeTransport()

	r := NewReconciler(q, recs, tr, staticTokens, nil, 0, nil)
	r.now = clk.Now
	sweeper := NewOrphanSweeper(recs, tr, 10*time.Minute, nil)
	sweeper.now = clk.Now

	enqueue(t, q, "cap-1", "voice")
	enqueue(t, q, "cap-2", "again")

	var reports []SweepReport
	tr.upload = func(ctx context.Context, obj transport.Object, progress transport.ProgressFunc) error {
		if obj.Key == auth.ObjectKey(owner, "cap-1", "cap-1.m4a") {
			// slow transfer that keeps reporting progress
			total := int64(len(obj.Data))
			for sent := int64(1); sent <= total; sent++ {
				clk.Advance(5 * time.Minute)
				progress(sent, total)
			}
		} else {
			// silent transfer that outlives the grace period
			clk.Advance(time.Hour)
		}
		rep, err := sweeper.Sweep(ctx, owner)
		reports = append(reports, rep)
		return err
	}

	rep, err := r.SyncNow(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, models.PassReport{Total: 2, Uploaded: 2}, rep)

	require.Len(t, reports, 2)
	assert.Zero(t, reports[0].Checked)
	assert.Equal(t, 1, reports[1].Deleted)

	for _, id := range []string{"cap-1", "cap-2"} {
		rec, err := recs.GetByID(ctx, id)
		require.NoError(t, err, id)
		assert.Equal(t, models.RecordStatusDone, rec.Status, id)
	}
}
