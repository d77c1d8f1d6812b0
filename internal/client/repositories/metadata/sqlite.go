package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Touch(ctx context.Context, ownerID string, key Key, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO metadata (owner_id, key, at) VALUES (?, ?, ?)
		ON CONFLICT(owner_id, key) DO UPDATE SET at = excluded.at
	`, ownerID, string(key), at.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, ownerID string, key Key) (time.Time, error) {
	var at int64
	err := r.db.QueryRowContext(ctx,
		`SELECT at FROM metadata WHERE owner_id = ? AND key = ?`, ownerID, string(key)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return time.Unix(0, at).UTC(), nil
}

func (r *SQLiteRepository) All(ctx context.Context, ownerID string) (map[Key]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, at FROM metadata WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[Key]time.Time)
	for rows.Next() {
		var key string
		var at int64
		if err := rows.Scan(&key, &at); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		result[Key(key)] = time.Unix(0, at).UTC()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata rows: %w", err)
	}
	return result, nil
}
