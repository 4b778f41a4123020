package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/neomorfeo/uastudio/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Blob names under which the parts of a snapshot are stored.
const (
	BlobRegistry = "registry"
	BlobSessions = "sessions"
	BlobActive   = "active"
)

// Compile-time check: SnapshotRepository implements domain.SnapshotStore.
var _ domain.SnapshotStore = (*SnapshotRepository)(nil)

// SnapshotRepository implements domain.SnapshotStore using SQLite. The
// registry, the session history and the active batch are kept as separate
// JSON blobs so each can be read, or fail to read, on its own.
type SnapshotRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*SnapshotRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*SnapshotRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &SnapshotRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *SnapshotRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *SnapshotRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

// sessionRecord is the persisted shape of a session.
type sessionRecord struct {
	ID        string   `json:"id"`
	CreatedAt int64    `json:"createdAt"`
	Count     int      `json:"count"`
	Agents    []string `json:"uas"`
}

// LoadRegistry returns the persisted registry, or nil when none was saved.
func (r *SnapshotRepository) LoadRegistry(ctx context.Context) ([]string, error) {
	return r.loadStrings(ctx, BlobRegistry)
}

// LoadActive returns the persisted active batch in generation order, or nil
// when none was saved.
func (r *SnapshotRepository) LoadActive(ctx context.Context) ([]string, error) {
	return r.loadStrings(ctx, BlobActive)
}

func (r *SnapshotRepository) loadStrings(ctx context.Context, blob string) ([]string, error) {
	raw, err := r.get(ctx, blob)
	if err != nil || raw == nil {
		return nil, err
	}

	var agents []string
	if err := json.Unmarshal(raw, &agents); err != nil {
		return nil, &domain.StorageError{Op: "load", Blob: blob, Err: err}
	}
	return agents, nil
}

// LoadSessions returns the persisted history oldest first, or nil when none
// was saved. Records without an id or without members are dropped and
// counts are recomputed from the members.
func (r *SnapshotRepository) LoadSessions(ctx context.Context) ([]domain.Session, error) {
	raw, err := r.get(ctx, BlobSessions)
	if err != nil || raw == nil {
		return nil, err
	}

	var records []sessionRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &domain.StorageError{Op: "load", Blob: BlobSessions, Err: err}
	}

	sessions := make([]domain.Session, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" || len(rec.Agents) == 0 {
			continue
		}
		sessions = append(sessions, domain.NewSession(rec.ID, time.UnixMilli(rec.CreatedAt).UTC(), rec.Agents))
	}
	return sessions, nil
}

// Save replaces every blob in a single transaction.
func (r *SnapshotRepository) Save(ctx context.Context, snap domain.Snapshot) error {
	registry, err := marshalStrings(snap.Registry)
	if err != nil {
		return &domain.StorageError{Op: "save", Blob: BlobRegistry, Err: err}
	}
	active, err := marshalStrings(snap.Active)
	if err != nil {
		return &domain.StorageError{Op: "save", Blob: BlobActive, Err: err}
	}

	records := make([]sessionRecord, len(snap.Sessions))
	for i, s := range snap.Sessions {
		records[i] = sessionRecord{
			ID:        s.ID,
			CreatedAt: s.CreatedAt.UnixMilli(),
			Count:     s.Count,
			Agents:    s.Agents,
		}
	}
	sessions, err := json.Marshal(records)
	if err != nil {
		return &domain.StorageError{Op: "save", Blob: BlobSessions, Err: err}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	for _, blob := range []struct {
		name  string
		value []byte
	}{
		{BlobRegistry, registry},
		{BlobSessions, sessions},
		{BlobActive, active},
	} {
		if err := upsertBlob(ctx, tx, blob.name, string(blob.value), now); err != nil {
			return &domain.StorageError{Op: "save", Blob: blob.name, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Clear removes every blob.
func (r *SnapshotRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM blobs`); err != nil {
		return fmt.Errorf("clearing blobs: %w", err)
	}
	return nil
}

// marshalStrings encodes a nil list as [] so a saved blob is never "null".
func marshalStrings(agents []string) ([]byte, error) {
	if agents == nil {
		agents = []string{}
	}
	return json.Marshal(agents)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertBlob(ctx context.Context, db execer, name, value string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO blobs (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, at.Format(timeFormat),
	)
	return err
}

// get returns the raw blob, or nil when it does not exist.
func (r *SnapshotRepository) get(ctx context.Context, name string) ([]byte, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE name = ?`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, &domain.StorageError{Op: "load", Blob: name, Err: err}
	}
	return []byte(value), nil
}
