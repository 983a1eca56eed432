package suspension

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Notification is emitted when an actor crosses the warning threshold.
type Notification struct {
	ActorID    string    `json:"actor_id"`
	Reason     string    `json:"reason"`
	Violations int       `json:"violations"`
	Terms      []string  `json:"terms"`
	At         time.Time `json:"at"`
	Until      time.Time `json:"until"`
}

// Notifier delivers suspension notifications to administrators.
type Notifier interface {
	NotifySuspended(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log only.
type LogNotifier struct {
	Logger logrus.FieldLogger
}

func (l LogNotifier) NotifySuspended(_ context.Context, n Notification) error {
	l.Logger.WithFields(logrus.Fields{
		"actor_id":   n.ActorID,
		"violations": n.Violations,
		"until":      n.Until,
	}).Warn("admin notify: repeated violations")
	return nil
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) NotifySuspended(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Fanout delivers to every notifier and returns the first error.
type Fanout []Notifier

func (f Fanout) NotifySuspended(ctx context.Context, n Notification) error {
	var first error
	for _, notifier := range f {
		if err := notifier.NotifySuspended(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
