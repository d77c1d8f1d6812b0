package metadata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/client/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteRepository(db)
}

func TestTouchAndGet(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()

	at, err := r.Get(ctx, "owner-1", LastSyncAt)
	require.NoError(t, err)
	assert.True(t, at.IsZero(), "never touched")

	first := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, r.Touch(ctx, "owner-1", LastSyncAt, first))
	require.NoError(t, r.Touch(ctx, "owner-1", LastSyncAt, first.Add(time.Hour)))

	at, err = r.Get(ctx, "owner-1", LastSyncAt)
	require.NoError(t, err)
	assert.Equal(t, first.Add(time.Hour), at)
}

func TestAll_ScopedByOwner(t *testing.T) {
	r := setupRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, r.Touch(ctx, "owner-1", LastSyncAt, now))
	require.NoError(t, r.Touch(ctx, "owner-1", LastSweepAt, now.Add(time.Minute)))
	require.NoError(t, r.Touch(ctx, "owner-2", LastSyncAt, now.Add(time.Hour)))

	all, err := r.All(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, map[Key]time.Time{
		LastSyncAt:  now,
		LastSweepAt: now.Add(time.Minute),
	}, all)

	none, err := r.All(ctx, "owner-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}
