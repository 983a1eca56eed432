// Package suspension escalates moderation violations into temporary
// suspensions.
//
// An actor is Clear, Warned(n) while fewer than WarningThreshold violations
// are active, or Suspended until a fixed instant. Expiry is evaluated lazily
// on the next check; there is no timer.
package suspension

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/moderation/internal/ledger"
	"github.com/hireloop/moderation/internal/metrics"
)

// State is the escalation state of one actor.
type State int

const (
	StateClear State = iota
	StateWarned
	StateSuspended
)

func (s State) String() string {
	switch s {
	case StateClear:
		return "clear"
	case StateWarned:
		return "warned"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// SuspensionReason is recorded on every suspension the machine starts.
const SuspensionReason = "repeated violations"

// Policy holds the escalation thresholds.
type Policy struct {
	WarningThreshold int           `yaml:"warning_threshold"`
	Duration         time.Duration `yaml:"suspension_duration"`
}

// DefaultPolicy suspends for one hour on the third active violation.
func DefaultPolicy() Policy {
	return Policy{WarningThreshold: 3, Duration: time.Hour}
}

// Status is the evaluated state of one actor at a given instant.
type Status struct {
	State     State
	Warnings  int
	Threshold int
	Until     time.Time
	Remaining time.Duration

	// Started is set by RecordViolation when that call began the suspension.
	Started bool
}

// Suspended reports whether submissions must be refused.
func (s Status) Suspended() bool { return s.State == StateSuspended }

// Machine applies the escalation rules on top of a ledger.
type Machine struct {
	ledger   *ledger.Ledger
	policy   Policy
	notifier Notifier
	logger   logrus.FieldLogger
}

// Option configures a Machine.
type Option func(*Machine)

// WithNotifier sets where suspension notifications go.
func WithNotifier(n Notifier) Option {
	return func(m *Machine) { m.notifier = n }
}

// WithLogger sets the machine's logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(m *Machine) { m.logger = logger }
}

// NewMachine creates a Machine. Zero policy fields take their defaults.
func NewMachine(l *ledger.Ledger, policy Policy, opts ...Option) *Machine {
	def := DefaultPolicy()
	if policy.WarningThreshold <= 0 {
		policy.WarningThreshold = def.WarningThreshold
	}
	if policy.Duration <= 0 {
		policy.Duration = def.Duration
	}

	m := &Machine{
		ledger: l,
		policy: policy,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = LogNotifier{Logger: m.logger}
	}
	return m
}

// Policy returns the machine's effective policy.
func (m *Machine) Policy() Policy { return m.policy }

// expire lifts a suspension whose end has passed. The violations that led
// to it are cleared with it, so the actor restarts at zero warnings.
func (m *Machine) expire(e *ledger.Entry, now time.Time) bool {
	s := e.Suspension
	if s == nil || now.Before(s.Until) {
		return false
	}
	kept := e.Violations[:0]
	for _, v := range e.Violations {
		if v.At.After(s.At) {
			kept = append(kept, v)
		}
	}
	e.Violations = kept
	e.Suspension = nil
	return true
}

func (m *Machine) evaluate(e *ledger.Entry, now time.Time) Status {
	st := Status{Threshold: m.policy.WarningThreshold, Warnings: len(e.Violations)}
	switch {
	case e.Suspension != nil:
		st.State = StateSuspended
		st.Until = e.Suspension.Until
		st.Remaining = e.Suspension.Until.Sub(now)
	case st.Warnings > 0:
		st.State = StateWarned
	default:
		st.State = StateClear
	}
	return st
}

// Status evaluates the actor at now, lifting an expired suspension. On a
// storage failure the error is returned together with a Clear status so
// callers can fail open.
func (m *Machine) Status(ctx context.Context, actorID string, now time.Time) (Status, error) {
	st := Status{Threshold: m.policy.WarningThreshold}
	err := m.ledger.Update(ctx, actorID, now, func(e *ledger.Entry) bool {
		changed := m.expire(e, now)
		st = m.evaluate(e, now)
		return changed
	})
	return st, err
}

// RecordViolation appends a violation and, when the active count reaches
// the warning threshold, starts a suspension and notifies. If the actor was
// already suspended (a concurrent request tripped it first) nothing is
// recorded and the suspended status is returned.
func (m *Machine) RecordViolation(ctx context.Context, actorID string, terms []string, now time.Time) (Status, error) {
	st := Status{Threshold: m.policy.WarningThreshold}
	tripped := false

	err := m.ledger.Update(ctx, actorID, now, func(e *ledger.Entry) bool {
		tripped = false
		changed := m.expire(e, now)
		if e.Suspension != nil {
			st = m.evaluate(e, now)
			return changed
		}

		e.Violations = append(e.Violations, ledger.Violation{At: now, Terms: append([]string(nil), terms...)})
		if len(e.Violations) >= m.policy.WarningThreshold {
			e.Suspension = &ledger.Suspension{
				At:     now,
				Until:  now.Add(m.policy.Duration),
				Reason: SuspensionReason,
			}
			tripped = true
		}
		st = m.evaluate(e, now)
		st.Started = tripped
		return true
	})
	if err != nil {
		return st, err
	}

	if tripped {
		metrics.Suspensions.Inc()
		n := Notification{
			ActorID:    actorID,
			Reason:     SuspensionReason,
			Violations: st.Warnings,
			Terms:      terms,
			At:         now,
			Until:      st.Until,
		}
		if nerr := m.notifier.NotifySuspended(ctx, n); nerr != nil {
			m.logger.WithError(nerr).WithField("actor_id", actorID).Warn("suspension notification failed")
		}
	}
	return st, nil
}

// RemainingSuspension returns how long the actor stays suspended, zero when
// not suspended.
func (m *Machine) RemainingSuspension(ctx context.Context, actorID string, now time.Time) (time.Duration, error) {
	st, err := m.Status(ctx, actorID, now)
	if st.Remaining < 0 {
		return 0, err
	}
	return st.Remaining, err
}

// Reset forces the actor back to Clear, dropping violations and suspension.
func (m *Machine) Reset(ctx context.Context, actorID string) error {
	if err := m.ledger.Reset(ctx, actorID); err != nil {
		return err
	}
	m.logger.WithField("actor_id", actorID).Info("moderation state reset")
	return nil
}
