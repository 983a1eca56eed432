package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/moderation/internal/moderation"
	"github.com/hireloop/moderation/internal/suspension"
)

// SuspendedEvent is published on moderation.suspended.<actor_id> when an
// actor crosses the warning threshold.
type SuspendedEvent struct {
	ActorID    string    `json:"actorId"`
	Reason     string    `json:"reason"`
	Violations int       `json:"violations"`
	Terms      []string  `json:"terms"`
	At         time.Time `json:"at"`
	Until      time.Time `json:"until"`
}

// SuspensionNotifier publishes suspension notifications to NATS. It
// implements suspension.Notifier.
type SuspensionNotifier struct {
	pub SuspensionPublisher
}

// NewSuspensionNotifier creates a notifier publishing through pub.
func NewSuspensionNotifier(pub SuspensionPublisher) *SuspensionNotifier {
	return &SuspensionNotifier{pub: pub}
}

// NotifySuspended publishes the notification.
func (n *SuspensionNotifier) NotifySuspended(_ context.Context, note suspension.Notification) error {
	data, err := json.Marshal(SuspendedEvent{
		ActorID:    note.ActorID,
		Reason:     note.Reason,
		Violations: note.Violations,
		Terms:      note.Terms,
		At:         note.At,
		Until:      note.Until,
	})
	if err != nil {
		return fmt.Errorf("messaging: encode suspension: %w", err)
	}
	if err := n.pub.PublishSuspended(note.ActorID, data); err != nil {
		return fmt.Errorf("messaging: publish suspension: %w", err)
	}
	return nil
}

// ReviewPublisher sends accepted content for async review on
// moderation.check.
type ReviewPublisher struct {
	pub RequestPublisher
}

// NewReviewPublisher creates a publisher over pub.
func NewReviewPublisher(pub RequestPublisher) *ReviewPublisher {
	return &ReviewPublisher{pub: pub}
}

// Submit publishes req, assigning a request id when it has none.
func (p *ReviewPublisher) Submit(req moderation.ModerationRequest) (string, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Ts == 0 {
		req.Ts = time.Now().UnixMilli()
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("messaging: encode review request: %w", err)
	}
	if err := p.pub.PublishModerationRequest(data); err != nil {
		return "", fmt.Errorf("messaging: publish review request: %w", err)
	}
	return req.RequestID, nil
}
