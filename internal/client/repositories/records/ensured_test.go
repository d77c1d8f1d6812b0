package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("store down")

func TestEnsuredRepository_BlocksUntilReady(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	var calls int
	ready := false
	r := NewEnsuredRepository(repo, func(context.Context) error {
		calls++
		if !ready {
			return errDown
		}
		return nil
	})
	ctx := context.Background()

	// nothing reaches the database while the store is down
	assert.ErrorIs(t, r.Create(ctx, newRecord()), errDown)
	assert.ErrorIs(t, r.MarkDone(ctx, "alice", "r1", nil), errDown)
	assert.ErrorIs(t, r.MarkError(ctx, "alice", "r1", "x"), errDown)
	assert.ErrorIs(t, r.Delete(ctx, "alice", "r1"), errDown)
	assert.ErrorIs(t, r.Touch(ctx, "alice", "r1"), errDown)
	_, err := r.GetByID(ctx, "r1")
	assert.ErrorIs(t, err, errDown)
	_, err = r.ListByOwner(ctx, "alice")
	assert.ErrorIs(t, err, errDown)
	_, err = r.ListStaleUploading(ctx, "alice", time.Now())
	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 8, calls)

	ready = true
	mock.ExpectExec(upsertQuery).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE\s+FROM\s+recordings`).
		WithArgs("r1", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Create(ctx, newRecord()))
	require.NoError(t, r.Delete(ctx, "alice", "r1"))
	assert.Equal(t, 10, calls)
}
