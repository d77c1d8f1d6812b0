package pending

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/voxkeeper/internal/client/models"
	"github.com/dmitrijs2005/voxkeeper/internal/common"
	"github.com/dmitrijs2005/voxkeeper/internal/dbx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository implements Repository over a dbx.DBTX.
type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const listColumns = `id, owner_id, file_name, file_size, mime_type, checksum, status,
	error_message, retry_count, duration_seconds, created_at, updated_at`

func (r *SQLiteRepository) Enqueue(ctx context.Context, c *models.PendingCapture) error {
	now := r.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = models.PendingStatusPending
	}

	query := `INSERT INTO pending_captures (id, owner_id, file_name, file_size, mime_type, data, checksum,
			status, error_message, retry_count, duration_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		c.Id, c.OwnerID, c.FileName, c.FileSize, c.MimeType, c.Data, c.Checksum,
		string(c.Status), c.ErrorMessage, c.RetryCount, c.DurationSeconds,
		c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli())
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("enqueue %s: %w", c.FileName, common.ErrDuplicate)
		}
		return fmt.Errorf("failed to enqueue capture: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string) ([]*models.PendingCapture, error) {
	query := `SELECT ` + listColumns + ` FROM pending_captures
		WHERE (? = '' OR owner_id = ?)
		ORDER BY created_at, id`
	return r.query(ctx, query, ownerID, ownerID)
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, ownerID string, status models.PendingStatus) ([]*models.PendingCapture, error) {
	query := `SELECT ` + listColumns + ` FROM pending_captures
		WHERE (? = '' OR owner_id = ?) AND status = ?
		ORDER BY created_at, id`
	return r.query(ctx, query, ownerID, ownerID, string(status))
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.PendingCapture, error) {
	query := `SELECT ` + listColumns + `, data FROM pending_captures WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	c := &models.PendingCapture{}
	var status string
	var created, updated int64
	err := row.Scan(&c.Id, &c.OwnerID, &c.FileName, &c.FileSize, &c.MimeType, &c.Checksum, &status,
		&c.ErrorMessage, &c.RetryCount, &c.DurationSeconds, &created, &updated, &c.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	c.Status = models.PendingStatus(status)
	c.CreatedAt = time.UnixMilli(created).UTC()
	c.UpdatedAt = time.UnixMilli(updated).UTC()
	return c, nil
}

func (r *SQLiteRepository) SetStatus(ctx context.Context, id string, status models.PendingStatus, errMsg string) error {
	query := `UPDATE pending_captures
		SET status = ?, error_message = ?,
			retry_count = retry_count + CASE WHEN ? <> '' THEN 1 ELSE 0 END,
			updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, string(status), errMsg, errMsg, r.now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_captures WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove capture: %w", err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *SQLiteRepository) Count(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_captures WHERE (? = '' OR owner_id = ?)`, ownerID, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]*models.PendingCapture, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select captures: %w", err)
	}
	defer rows.Close()

	var result []*models.PendingCapture
	for rows.Next() {
		c := &models.PendingCapture{}
		var status string
		var created, updated int64
		if err := rows.Scan(&c.Id, &c.OwnerID, &c.FileName, &c.FileSize, &c.MimeType, &c.Checksum, &status,
			&c.ErrorMessage, &c.RetryCount, &c.DurationSeconds, &created, &updated); err != nil {
			return nil, err
		}
		c.Status = models.PendingStatus(status)
		c.CreatedAt = time.UnixMilli(created).UTC()
		c.UpdatedAt = time.UnixMilli(updated).UTC()
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
