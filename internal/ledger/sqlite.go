package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

// SQLiteStore is the client-side ledger: a single-user database in the
// user's config directory, read and written on every pre-submission check.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// DefaultSQLitePath returns <user config dir>/Hireloop/moderation.db,
// creating the directory if needed.
func DefaultSQLitePath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	appDir := filepath.Join(configDir, "Hireloop")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		return "", fmt.Errorf("ledger: create data dir: %w", err)
	}
	return filepath.Join(appDir, "moderation.db"), nil
}

// OpenSQLiteStore opens (or creates) the database at path. An empty path
// selects DefaultSQLitePath.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		var err error
		if path, err = DefaultSQLitePath(); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS ledger_entries (
		actor_id   TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ledger: init schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, actorID string) (Entry, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM ledger_entries WHERE actor_id = ?`, actorID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("ledger: sqlite get: %w", err)
	}
	return decodeEntry([]byte(payload))
}

func (s *SQLiteStore) Set(ctx context.Context, actorID string, entry Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO ledger_entries (actor_id, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(actor_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, actorID, string(data), time.Now().Unix()); err != nil {
		return fmt.Errorf("ledger: sqlite set: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, actorID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE actor_id = ?`, actorID); err != nil {
		return fmt.Errorf("ledger: sqlite delete: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
