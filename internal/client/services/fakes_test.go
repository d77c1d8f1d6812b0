package services

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/audio/transcode"
	"github.com/dmitrijs2005/voxkeeper/internal/client/client"
	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dmitrijs2005/voxkeeper/internal/client/repositories/pending"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dmitrijs2005/voxkeeper/internal/transport"
	"github.com/stretchr/testify/require"
)

const owner = "owner-1"

func setupQueue(t *testing.T) *pending.SQLiteRepository {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return pending.NewSQLiteRepository(db)
}

func staticTokens(ownerID string) (string, error) { return "token-" + ownerID, nil }

// memRecords is an in-memory records.Repository.
type memRecords struct {
	mu   sync.Mutex
	rows    map[string]*models.RecordingRecord
	now     func() time.Time
	touches int
}

func newMemRecords() *memRecords {
	return &memRecords{rows: map[string]*models.RecordingRecord{}, now: time.Now}
}

// clock is a settable time source shared by fakes and services under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (m *memRecords) put(r *models.RecordingRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rows[r.Id] = &cp
}

func (m *memRecords) Create(_ context.Context, r *models.RecordingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rows[r.Id]; ok && cur.OwnerID != r.OwnerID {
		return common.ErrUnauthorized
	}
	r.Status = models.RecordStatusUploading
	r.CreatedAt = m.now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.rows[r.Id] = &cp
	return nil
}

func (m *memRecords) update(ownerID, id string, fn func(r *models.RecordingRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.OwnerID != ownerID {
		return common.ErrNotFound
	}
	fn(r)
	r.UpdatedAt = m.now()
	return nil
}

func (m *memRecords) MarkDone(_ context.Context, ownerID, id string, duration *float64) error {
	return m.update(ownerID, id, func(r *models.RecordingRecord) {
		r.Status = models.RecordStatusDone
		if duration != nil {
			r.Duration = duration
		}
	})
}

func (m *memRecords) MarkError(_ context.Context, ownerID, id string, msg string) error {
	return m.update(ownerID, id, func(r *models.RecordingRecord) {
		r.Status = models.RecordStatusError
		r.ErrorMessage = msg
	})
}

func (m *memRecords) Touch(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	r, ok := m.rows[id]
	uploading := ok && r.Status == models.RecordStatusUploading
	m.touches++
	m.mu.Unlock()
	if !uploading {
		return common.ErrNotFound
	}
	return m.update(ownerID, id, func(*models.RecordingRecord) {})
}

func (m *memRecords) Delete(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; !ok || r.OwnerID != ownerID {
		return common.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memRecords) GetByID(_ context.Context, id string) (*models.RecordingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRecords) ListByOwner(_ context.Context, ownerID string) ([]*models.RecordingRecord, error) {
	return m.filter(func(r *models.RecordingRecord) bool { return r.OwnerID == ownerID }), nil
}

func (m *memRecords) ListStaleUploading(_ context.Context, ownerID string, olderThan time.Time) ([]*models.RecordingRecord, error) {
	return m.filter(func(r *models.RecordingRecord) bool {
		return r.OwnerID == ownerID && r.Status == models.RecordStatusUploading && r.UpdatedAt.Before(olderThan)
	}), nil
}

func (m *memRecords) filter(keep func(r *models.RecordingRecord) bool) []*models.RecordingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RecordingRecord
	for _, r := range m.rows {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}

func (m *memRecords) touchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.touches
}

func (m *memRecords) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// fakeTransport records uploads. When upload is set it decides the outcome.
type fakeTransport struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   []transport.Object
	tokens  []string
	upload  func(ctx context.Context, obj transport.Object, progress transport.ProgressFunc) error
	exists  func(key string) (bool, error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{objects: map[string][]byte{}}
}

func (f *fakeTransport) Upload(ctx context.Context, obj transport.Object, credential string, progress transport.ProgressFunc) error {
	f.mu.Lock()
	f.calls = append(f.calls, obj)
	f.tokens = append(f.tokens, credential)
	hook := f.upload
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, obj, progress); err != nil {
			return err
		}
	} else if progress != nil {
		progress(int64(len(obj.Data)), int64(len(obj.Data)))
	}

	f.mu.Lock()
	f.objects[obj.Key] = obj.Data
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Exists(_ context.Context, key string) (bool, error) {
	if f.exists != nil {
		return f.exists(key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeTranscoder struct {
	calls  int
	result func(req transcode.Request) (transcode.Result, error)
}

func (f *fakeTranscoder) Transcode(_ context.Context, req transcode.Request, progress transcode.ProgressFunc) (transcode.Result, error) {
	f.calls++
	if progress != nil {
		progress(50)
		progress(100)
	}
	if f.result != nil {
		return f.result(req)
	}
	return transcode.Result{
		Data:     req.Data[:len(req.Data)/2],
		MimeType: "audio/mpeg",
		FileName: "out.mp3",
		Rung:     transcode.RungFull,
	}, nil
}

type staticOnline bool

func (s staticOnline) IsOnline() bool { return bool(s) }
