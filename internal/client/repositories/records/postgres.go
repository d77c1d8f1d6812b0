// Package records stores recording status rows in Postgres.
package records

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

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, owner_id, storage_path, file_name, file_size, duration, status,
	error_message, is_archived, created_at, updated_at`

// Create upserts by id. A conflicting id that belongs to another owner is
// left untouched and reported as common.ErrUnauthorized.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.RecordingRecord) error {
	query := `
		INSERT INTO recordings (id, owner_id, storage_path, file_name, file_size, duration, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'uploading')
		ON CONFLICT (id)
		DO UPDATE SET
			storage_path = EXCLUDED.storage_path,
			file_name = EXCLUDED.file_name,
			file_size = EXCLUDED.file_size,
			duration = EXCLUDED.duration,
			status = 'uploading',
			error_message = '',
			updated_at = now()
			WHERE recordings.owner_id = EXCLUDED.owner_id;
	`
	res, err := r.db.ExecContext(ctx, query,
		rec.Id, rec.OwnerID, rec.StoragePath, rec.FileName, rec.FileSize, nullFloat(rec.Duration))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.ExpectOneRow(res); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("record %s: %w", rec.Id, common.ErrUnauthorized)
		}
		return err
	}
	rec.Status = models.RecordStatusUploading
	return nil
}

// MarkDone keeps the stored duration when duration is nil.
func (r *PostgresRepository) MarkDone(ctx context.Context, ownerID, id string, duration *float64) error {
	query := `UPDATE recordings SET status = 'done', duration = COALESCE($3, duration), error_message = '', updated_at = now()
		WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID, nullFloat(duration))
	if err != nil {
		return fmt.Errorf("failed to mark done: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) MarkError(ctx context.Context, ownerID, id string, msg string) error {
	query := `UPDATE recordings SET status = 'error', error_message = $3, updated_at = now() WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID, msg)
	if err != nil {
		return fmt.Errorf("failed to mark error: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) Touch(ctx context.Context, ownerID, id string) error {
	query := `UPDATE recordings SET updated_at = now() WHERE id = $1 AND owner_id = $2 AND status = 'uploading'`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to touch record: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.RecordingRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM recordings WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select record: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.RecordingRecord, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM recordings
		WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
}

func (r *PostgresRepository) ListStaleUploading(ctx context.Context, ownerID string, olderThan time.Time) ([]*models.RecordingRecord, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM recordings
		WHERE owner_id = $1 AND status = 'uploading' AND updated_at < $2 ORDER BY updated_at`, ownerID, olderThan)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.RecordingRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.RecordingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.RecordingRecord, error) {
	rec := &models.RecordingRecord{}
	var duration sql.NullFloat64
	var status string
	if err := s.Scan(&rec.Id, &rec.OwnerID, &rec.StoragePath, &rec.FileName, &rec.FileSize, &duration,
		&status, &rec.ErrorMessage, &rec.IsArchived, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if duration.Valid {
		d := duration.Float64
		rec.Duration = &d
	}
	rec.Status = models.RecordStatus(status)
	return rec, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
