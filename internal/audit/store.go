// Package audit persists moderation audit events. Each event records which
// actor had content rejected, where, and which terms triggered it, for
// support staff to review.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	"github.com/sirupsen/logrus"
)

// KindViolationObserved is written when a banned-content rejection leaves
// the API.
const KindViolationObserved = "violation_observed"

// KindActorReset is written when an admin clears an actor's state.
const KindActorReset = "actor_reset"

// ErrInvalidEvent is returned for events missing required fields.
var ErrInvalidEvent = errors.New("audit: invalid event")

// validKinds matches the CHECK constraint on moderation_audit_events.
var validKinds = map[string]bool{
	KindViolationObserved: true,
	KindActorReset:        true,
}

// Event is one audit record.
type Event struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	ActorID string    `json:"actor_id"`
	Method  string    `json:"method"`
	Path    string    `json:"path"`
	Terms   []string  `json:"terms"`
	Content string    `json:"content"` // truncated
	At      time.Time `json:"at"`
}

// Validate checks required fields.
func (e *Event) Validate() error {
	if !validKinds[e.Kind] {
		return fmt.Errorf("%w: kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.ActorID == "" {
		return fmt.Errorf("%w: missing actor id", ErrInvalidEvent)
	}
	return nil
}

// Recorder accepts audit events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// PostgresStore writes audit events to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects to PostgreSQL, verifies the connection and applies pending
// migrations.
func Open(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresStore(db), nil
}

// Record inserts an event. A missing ID or timestamp is filled in.
func (s *PostgresStore) Record(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	terms, err := json.Marshal(e.Terms)
	if err != nil {
		return fmt.Errorf("audit: marshal terms: %w", err)
	}

	const query = `
		INSERT INTO moderation_audit_events (id, kind, actor_id, method, path, terms, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.db.ExecContext(ctx, query,
		e.ID, e.Kind, e.ActorID, e.Method, e.Path, terms, e.Content, e.At)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// CountRecent returns the number of events of kind recorded for an actor
// since the given instant.
func (s *PostgresStore) CountRecent(ctx context.Context, actorID, kind string, since time.Time) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM moderation_audit_events
		WHERE actor_id = $1
		  AND kind = $2
		  AND created_at >= $3`

	var count int
	if err := s.db.QueryRowContext(ctx, query, actorID, kind, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("audit: count recent: %w", err)
	}
	return count, nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// LogRecorder writes events to the log only. Used when no database is
// configured.
type LogRecorder struct {
	Logger logrus.FieldLogger
}

func (l LogRecorder) Record(_ context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	l.Logger.WithFields(logrus.Fields{
		"kind":     e.Kind,
		"actor_id": e.ActorID,
		"path":     e.Path,
		"terms":    e.Terms,
	}).Info("audit event")
	return nil
}
