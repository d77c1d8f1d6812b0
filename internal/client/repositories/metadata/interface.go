// Package metadata keeps small per-owner bookkeeping in the local database,
// such as when the last sync pass or orphan sweep finished.
package metadata

import (
	"context"
	"time"
)

type Key string

const (
	LastSyncAt  Key = "last_sync_at"
	LastSweepAt Key = "last_sweep_at"
)

type Repository interface {
	// Touch records at for key, replacing any earlier value.
	Touch(ctx context.Context, ownerID string, key Key, at time.Time) error
	// Get returns the zero time when key was never touched.
	Get(ctx context.Context, ownerID string, key Key) (time.Time, error)
	All(ctx context.Context, ownerID string) (map[Key]time.Time, error)
}
