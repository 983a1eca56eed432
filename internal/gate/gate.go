// Package gate turns moderation checks into enforcement decisions.
//
// The same Gate backs both enforcement points: the optimistic client-side
// pre-submission check (Client) and the authoritative server-side HTTP
// middleware (ServerMiddleware). They differ only in where the ledger lives
// and in what they do with a refusal.
package gate

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/moderation/internal/metrics"
	"github.com/hireloop/moderation/internal/moderation"
	"github.com/hireloop/moderation/internal/suspension"
)

// Outcome discriminates a Verdict.
type Outcome int

const (
	OutcomeAllowed Outcome = iota
	OutcomeRejected
	OutcomeSuspended
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Rejection reasons.
const (
	ReasonBannedContent = "banned_content"
	ReasonSpam          = "spam"
	ReasonSuspended     = "suspended"
)

// Verdict is the result of one check. Which fields are meaningful depends on
// Outcome:
//
//	Allowed:   Warnings
//	Rejected:  Reason, TriggeredTerms, Warnings, SuspensionStarted (+ Until, Remaining)
//	Suspended: Until, Remaining, Warnings
type Verdict struct {
	Outcome        Outcome
	Reason         string
	TriggeredTerms []string
	Warnings       int
	Threshold      int
	Until          time.Time
	Remaining      time.Duration

	// SuspensionStarted is set on a rejection whose violation crossed the
	// warning threshold.
	SuspensionStarted bool
}

// Allowed reports whether the submission may proceed.
func (v Verdict) Allowed() bool { return v.Outcome == OutcomeAllowed }

// Suspended reports whether the actor is suspended after this check.
func (v Verdict) Suspended() bool {
	return v.Outcome == OutcomeSuspended || v.SuspensionStarted
}

// Detector finds banned terms in text. *moderation.Matcher implements it.
type Detector interface {
	Detect(text string) []string
}

// SpamScorer scores text for spam. *moderation.Scorer implements it.
type SpamScorer interface {
	Score(text string) moderation.SpamVerdict
}

// Gate runs the moderation pipeline for one enforcement point.
type Gate struct {
	name     string
	detector Detector
	spam     SpamScorer
	machine  *suspension.Machine
	logger   logrus.FieldLogger
}

// Option configures a Gate.
type Option func(*Gate)

// WithSpamScorer makes spam verdicts count as violations.
func WithSpamScorer(s SpamScorer) Option {
	return func(g *Gate) { g.spam = s }
}

// WithLogger sets the gate's logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(g *Gate) { g.logger = logger }
}

// New creates a Gate. name labels metrics ("client" or "server").
func New(name string, detector Detector, machine *suspension.Machine, opts ...Option) *Gate {
	g := &Gate{
		name:     name,
		detector: detector,
		machine:  machine,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the gate's metrics label.
func (g *Gate) Name() string { return g.name }

// Machine returns the suspension machine behind the gate.
func (g *Gate) Machine() *suspension.Machine { return g.machine }

// Check evaluates one submission by actorID at now.
//
// A suspended actor is refused before the text is examined. Empty text is
// allowed: shape validation belongs to the caller. Ledger failures are
// logged and treated as a clean history. An empty actorID is checked for
// content but never escalated.
func (g *Gate) Check(ctx context.Context, actorID, text string, now time.Time) Verdict {
	v := g.check(ctx, actorID, text, now)
	metrics.GateChecks.WithLabelValues(g.name, v.Outcome.String()).Inc()
	return v
}

func (g *Gate) check(ctx context.Context, actorID, text string, now time.Time) Verdict {
	threshold := g.machine.Policy().WarningThreshold
	if strings.TrimSpace(text) == "" {
		return Verdict{Outcome: OutcomeAllowed, Threshold: threshold}
	}

	log := g.logger.WithFields(logrus.Fields{"gate": g.name, "actor_id": actorID})

	var st suspension.Status
	if actorID != "" {
		var err error
		st, err = g.machine.Status(ctx, actorID, now)
		if err != nil {
			log.WithError(err).Warn("suspension status unavailable, failing open")
		}
		if st.Suspended() {
			return suspendedVerdict(st)
		}
	}

	terms, reason := g.detect(text)
	if len(terms) == 0 {
		return Verdict{Outcome: OutcomeAllowed, Warnings: st.Warnings, Threshold: threshold}
	}
	metrics.Violations.WithLabelValues(reason).Inc()

	v := Verdict{
		Outcome:        OutcomeRejected,
		Reason:         reason,
		TriggeredTerms: terms,
		Threshold:      threshold,
	}
	if actorID == "" {
		return v
	}

	st, err := g.machine.RecordViolation(ctx, actorID, terms, now)
	if err != nil {
		log.WithError(err).Warn("violation not recorded")
	}
	if st.Suspended() && !st.Started {
		// A concurrent request suspended the actor first.
		return suspendedVerdict(st)
	}

	v.Warnings = st.Warnings
	if st.Started {
		v.SuspensionStarted = true
		v.Until = st.Until
		v.Remaining = st.Remaining
	}
	return v
}

func (g *Gate) detect(text string) ([]string, string) {
	if terms := g.detector.Detect(text); len(terms) > 0 {
		return terms, ReasonBannedContent
	}
	if g.spam != nil {
		if sv := g.spam.Score(text); sv.IsSpam {
			return sv.Reasons, ReasonSpam
		}
	}
	return nil, ""
}

func suspendedVerdict(st suspension.Status) Verdict {
	return Verdict{
		Outcome:   OutcomeSuspended,
		Reason:    ReasonSuspended,
		Warnings:  st.Warnings,
		Threshold: st.Threshold,
		Until:     st.Until,
		Remaining: st.Remaining,
	}
}
