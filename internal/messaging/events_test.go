package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hireloop/moderation/internal/moderation"
	"github.com/hireloop/moderation/internal/suspension"
)

var (
	_ RequestPublisher    = (*NATSClient)(nil)
	_ SuspensionPublisher = (*NATSClient)(nil)
)

type message struct {
	kind    string
	actorID string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (f *fakePublisher) record(m message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakePublisher) PublishModerationRequest(data []byte) error {
	return f.record(message{kind: "request", data: data})
}

func (f *fakePublisher) PublishSuspended(actorID string, data []byte) error {
	return f.record(message{kind: "suspended", actorID: actorID, data: data})
}

func TestSuspensionNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewSuspensionNotifier(pub)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	err := n.NotifySuspended(context.Background(), suspension.Notification{
		ActorID:    "u42",
		Reason:     suspension.SuspensionReason,
		Violations: 3,
		Terms:      []string{"merde"},
		At:         at,
		Until:      at.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("NotifySuspended() error: %v", err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].kind != "suspended" || pub.msgs[0].actorID != "u42" {
		t.Fatalf("published = %+v", pub.msgs)
	}

	var ev SuspendedEvent
	if err := json.Unmarshal(pub.msgs[0].data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.ActorID != "u42" || ev.Violations != 3 || !ev.Until.Equal(at.Add(time.Hour)) {
		t.Errorf("event = %+v", ev)
	}
}

func TestSuspensionNotifierPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	err := NewSuspensionNotifier(pub).NotifySuspended(context.Background(), suspension.Notification{ActorID: "u1"})
	if err == nil {
		t.Fatal("NotifySuspended() succeeded with a failing publisher")
	}
}

func TestReviewPublisherSubmit(t *testing.T) {
	pub := &fakePublisher{}
	p := NewReviewPublisher(pub)

	id, err := p.Submit(moderation.ModerationRequest{ActorID: "u1", Kind: "post", Text: "hello"})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if id == "" {
		t.Fatal("Submit() returned empty request id")
	}
	if len(pub.msgs) != 1 || pub.msgs[0].kind != "request" {
		t.Fatalf("published = %+v", pub.msgs)
	}

	var req moderation.ModerationRequest
	if err := json.Unmarshal(pub.msgs[0].data, &req); err != nil {
		t.Fatal(err)
	}
	if req.RequestID != id || req.Ts == 0 || req.Text != "hello" {
		t.Errorf("request = %+v", req)
	}

	id, _ = p.Submit(moderation.ModerationRequest{RequestID: "fixed", Ts: 1})
	if id != "fixed" {
		t.Errorf("Submit() id = %q, want fixed", id)
	}
}

func TestReviewPublisherSubmitError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	if _, err := NewReviewPublisher(pub).Submit(moderation.ModerationRequest{ActorID: "u1"}); err == nil {
		t.Fatal("Submit() succeeded with a failing publisher")
	}
}

func TestLastToken(t *testing.T) {
	tests := map[string]string{
		"moderation.result.u1":    "u1",
		"moderation.suspended.ab": "ab",
		"plain":                   "plain",
	}
	for in, want := range tests {
		if got := lastToken(in); got != want {
			t.Errorf("lastToken(%q) = %q, want %q", in, got, want)
		}
	}
}
