// Package transfers persists resumable multipart upload bookkeeping in the
// local SQLite database.
package transfers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dmitrijs2005/voxkeeper/internal/dbx"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (*models.TransferState, error) {
	st := &models.TransferState{Key: key}
	err := r.db.QueryRowContext(ctx,
		`SELECT upload_id, total, part_size FROM transfer_sessions WHERE object_key = ?`, key).
		Scan(&st.UploadID, &st.Total, &st.PartSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select transfer session: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT part_number, etag, size FROM transfer_parts WHERE object_key = ? ORDER BY part_number`, key)
	if err != nil {
		return nil, fmt.Errorf("select transfer parts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.TransferPart
		if err := rows.Scan(&p.Number, &p.ETag, &p.Size); err != nil {
			return nil, err
		}
		st.Parts = append(st.Parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return st, nil
}

func (r *SQLiteRepository) Begin(ctx context.Context, st *models.TransferState) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := forget(ctx, tx, st.Key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transfer_sessions (object_key, upload_id, total, part_size, created_at) VALUES (?, ?, ?, ?, ?)`,
			st.Key, st.UploadID, st.Total, st.PartSize, time.Now().UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("insert transfer session: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) AddPart(ctx context.Context, key string, part models.TransferPart) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transfer_parts (object_key, part_number, etag, size) VALUES (?, ?, ?, ?)
		ON CONFLICT(object_key, part_number) DO UPDATE SET etag = excluded.etag, size = excluded.size`,
		key, part.Number, part.ETag, part.Size)
	if err != nil {
		return fmt.Errorf("record part %d: %w", part.Number, err)
	}
	return nil
}

func (r *SQLiteRepository) Forget(ctx context.Context, key string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return forget(ctx, tx, key)
	})
}

func forget(ctx context.Context, tx dbx.DBTX, key string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM transfer_parts WHERE object_key = ?`, key); err != nil {
		return fmt.Errorf("delete transfer parts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transfer_sessions WHERE object_key = ?`, key); err != nil {
		return fmt.Errorf("delete transfer session: %w", err)
	}
	return nil
}
