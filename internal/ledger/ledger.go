// Package ledger keeps the per-actor record of moderation violations and the
// actor's current suspension, if any.
//
// Records expire lazily: nothing runs in the background. Every read prunes
// records older than the reset horizon in the same pass that counts them, so
// tests drive expiry by passing an explicit "now" instead of sleeping.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/moderation/internal/metrics"
)

// DefaultResetHorizon is how long a violation counts toward the warning
// threshold.
const DefaultResetHorizon = 24 * time.Hour

// ErrCorrupt is returned by stores when a persisted entry cannot be decoded.
var ErrCorrupt = errors.New("ledger: corrupt entry")

// Violation is one detected violation event. Never mutated once recorded.
type Violation struct {
	At    time.Time `json:"at"`
	Terms []string  `json:"terms"`
}

// Suspension is the actor's active temporary suspension.
type Suspension struct {
	At     time.Time `json:"at"`
	Until  time.Time `json:"until"`
	Reason string    `json:"reason"`
}

// Entry is everything the ledger stores for one actor.
type Entry struct {
	Violations []Violation `json:"violations,omitempty"`
	Suspension *Suspension `json:"suspension,omitempty"`
}

// Empty reports whether the entry holds nothing worth persisting.
func (e *Entry) Empty() bool {
	return len(e.Violations) == 0 && e.Suspension == nil
}

func (e Entry) clone() Entry {
	out := Entry{}
	if len(e.Violations) > 0 {
		out.Violations = make([]Violation, len(e.Violations))
		for i, v := range e.Violations {
			out.Violations[i] = Violation{At: v.At, Terms: append([]string(nil), v.Terms...)}
		}
	}
	if e.Suspension != nil {
		s := *e.Suspension
		out.Suspension = &s
	}
	return out
}

// Store persists entries keyed by actor id. Get returns a zero Entry and no
// error for unknown actors.
type Store interface {
	Get(ctx context.Context, actorID string) (Entry, error)
	Set(ctx context.Context, actorID string, entry Entry) error
	Delete(ctx context.Context, actorID string) error
}

// Transactor is implemented by stores that can run a read-modify-write for
// one actor atomically across processes. fn reports whether it changed the
// entry.
type Transactor interface {
	Update(ctx context.Context, actorID string, fn func(*Entry) bool) error
}

// Ledger is the per-actor violation ledger. It serialises read-modify-write
// cycles per actor inside the process; stores implementing Transactor extend
// that guarantee across processes.
type Ledger struct {
	store   Store
	horizon time.Duration
	locks   *actorLocks
	logger  logrus.FieldLogger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New creates a Ledger over store. A non-positive horizon selects
// DefaultResetHorizon.
func New(store Store, horizon time.Duration, opts ...Option) *Ledger {
	if horizon <= 0 {
		horizon = DefaultResetHorizon
	}
	l := &Ledger{
		store:   store,
		horizon: horizon,
		locks:   newActorLocks(),
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Horizon returns the reset horizon.
func (l *Ledger) Horizon() time.Duration { return l.horizon }

// Active reports whether v still counts at now.
func (l *Ledger) Active(v Violation, now time.Time) bool {
	return now.Sub(v.At) < l.horizon
}

// prune drops inactive violations and reports whether anything was removed.
func (l *Ledger) prune(e *Entry, now time.Time) bool {
	kept := e.Violations[:0]
	for _, v := range e.Violations {
		if l.Active(v, now) {
			kept = append(kept, v)
		}
	}
	removed := len(kept) != len(e.Violations)
	e.Violations = kept
	if len(e.Violations) == 0 {
		e.Violations = nil
	}
	return removed
}

// Update loads the actor's entry, prunes expired violations, applies fn and
// persists the result when anything changed. The whole cycle holds the
// actor's lock. Storage read failures are logged and treated as an empty
// entry; write failures are returned after fn has run.
func (l *Ledger) Update(ctx context.Context, actorID string, now time.Time, fn func(*Entry) bool) error {
	unlock := l.locks.lock(actorID)
	defer unlock()

	apply := func(e *Entry) bool {
		pruned := l.prune(e, now)
		changed := fn(e)
		return pruned || changed
	}

	if tx, ok := l.store.(Transactor); ok {
		if err := tx.Update(ctx, actorID, apply); err != nil {
			metrics.LedgerErrors.WithLabelValues("update").Inc()
			return fmt.Errorf("ledger: update %s: %w", actorID, err)
		}
		return nil
	}

	entry, err := l.store.Get(ctx, actorID)
	if err != nil {
		metrics.LedgerErrors.WithLabelValues("get").Inc()
		l.logger.WithError(err).WithField("actor_id", actorID).
			Warn("ledger read failed, treating as no prior violations")
		entry = Entry{}
	}

	if !apply(&entry) {
		return nil
	}

	if entry.Empty() {
		err = l.store.Delete(ctx, actorID)
	} else {
		err = l.store.Set(ctx, actorID, entry)
	}
	if err != nil {
		metrics.LedgerErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("ledger: save %s: %w", actorID, err)
	}
	return nil
}

// Snapshot returns the actor's pruned entry, persisting the pruning.
func (l *Ledger) Snapshot(ctx context.Context, actorID string, now time.Time) (Entry, error) {
	var snap Entry
	err := l.Update(ctx, actorID, now, func(e *Entry) bool {
		snap = e.clone()
		return false
	})
	return snap, err
}

// RecordViolation appends a violation at now and returns the active count
// including it. The append and the count happen under the same lock.
func (l *Ledger) RecordViolation(ctx context.Context, actorID string, terms []string, now time.Time) (int, error) {
	var count int
	err := l.Update(ctx, actorID, now, func(e *Entry) bool {
		e.Violations = append(e.Violations, Violation{At: now, Terms: append([]string(nil), terms...)})
		count = len(e.Violations)
		return true
	})
	return count, err
}

// ActiveViolationCount returns the number of violations within the reset
// horizon, removing stale ones from storage.
func (l *Ledger) ActiveViolationCount(ctx context.Context, actorID string, now time.Time) (int, error) {
	snap, err := l.Snapshot(ctx, actorID, now)
	return len(snap.Violations), err
}

// PruneExpired removes violations older than the reset horizon.
func (l *Ledger) PruneExpired(ctx context.Context, actorID string, now time.Time) error {
	return l.Update(ctx, actorID, now, func(*Entry) bool { return false })
}

// Reset deletes everything recorded for the actor.
func (l *Ledger) Reset(ctx context.Context, actorID string) error {
	unlock := l.locks.lock(actorID)
	defer unlock()

	if err := l.store.Delete(ctx, actorID); err != nil {
		metrics.LedgerErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("ledger: reset %s: %w", actorID, err)
	}
	return nil
}
