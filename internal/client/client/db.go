package client

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/dmitrijs2005/voxkeeper/internal/client/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// migrate is a seam so tests can stub goose.
var migrate = func(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) error {
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// RunMigrations applies the local queue schema to an SQLite database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, goose.DialectSQLite3, db, migrations.Local())
}

// InitDatabase opens (creating if needed) the local SQLite store and brings
// its schema up to date.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local db: %w", err)
	}
	// one writer; the queue is never written concurrently
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrLocalDataNotAvailable, err)
	}
	return db, nil
}

// RecordStore is the Postgres database that holds recording records. It
// opens without touching the network; the schema is brought up on first use
// so the client can start offline.
type RecordStore struct {
	DB *sql.DB

	mu    sync.Mutex
	ready bool
}

// OpenRecordStore prepares a connection pool for dsn. No connection is made.
func OpenRecordStore(dsn string) (*RecordStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	return newRecordStore(db), nil
}

func newRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{DB: db}
}

// Ensure pings the store and applies its migrations once. Until that
// succeeds every call tries again; an unreachable store reports
// ErrUnavailable.
func (s *RecordStore) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := migrate(ctx, goose.DialectPostgres, s.DB, migrations.Records()); err != nil {
		return fmt.Errorf("record store migrations: %w", err)
	}
	s.ready = true
	return nil
}

func (s *RecordStore) Close() error {
	return s.DB.Close()
}
