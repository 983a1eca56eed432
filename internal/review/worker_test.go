package review

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/hireloop/moderation/internal/messaging"
	"github.com/hireloop/moderation/internal/moderation"
)

var _ ResultPublisher = (*messaging.NATSClient)(nil)

type capture struct {
	actorID string
	data    []byte
	err     error
}

func (c *capture) PublishModerationResult(actorID string, data []byte) error {
	c.actorID, c.data = actorID, data
	return c.err
}

func newWorker(pub *capture) (*Worker, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	a := moderation.NewAssessor(moderation.DefaultSpamRules(), moderation.DefaultActionThresholds())
	return NewWorker(a, pub, logger), hook
}

func TestReview(t *testing.T) {
	w, _ := newWorker(&capture{})
	tests := []struct {
		name string
		text string
		want moderation.Action
	}{
		{"clean", "We are hiring a senior Go engineer for our Paris office.", moderation.ActionApprove},
		{"one keyword", "Great opportunity, click here to apply to this role today.", moderation.ActionApprove},
		{"spam", "FREE MONEY!!! click here, buy now, limited time offer", moderation.ActionRemove},
		{"hate", "go back to your country and never apply here again", moderation.ActionFlag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := w.Review(moderation.ModerationRequest{RequestID: "r", ActorID: "u1", Text: tt.text})
			if res.Action != tt.want {
				t.Errorf("Action = %q (spam %d, hate %d, %v), want %q", res.Action, res.SpamScore, res.HateScore, res.Reasons, tt.want)
			}
			if res.RequestID != "r" || res.ActorID != "u1" {
				t.Errorf("ids not carried: %+v", res)
			}
		})
	}
}

func TestHandlePublishesResult(t *testing.T) {
	pub := &capture{}
	w, hook := newWorker(pub)

	data, _ := json.Marshal(moderation.ModerationRequest{RequestID: "r1", ActorID: "u7", ContentID: "c1", Text: "FREE MONEY!!! click here, buy now"})
	if err := w.Handle(data); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if pub.actorID != "u7" {
		t.Errorf("published for actor %q, want u7", pub.actorID)
	}
	var res moderation.ModerationResult
	if err := json.Unmarshal(pub.data, &res); err != nil {
		t.Fatal(err)
	}
	if res.ContentID != "c1" || res.Action == moderation.ActionApprove {
		t.Errorf("result = %+v", res)
	}
	if e := hook.LastEntry(); e == nil || e.Message != "flagged" {
		t.Errorf("last log = %+v, want flagged", e)
	}
}

func TestHandleErrors(t *testing.T) {
	w, _ := newWorker(&capture{})
	if err := w.Handle([]byte("{not json")); err == nil {
		t.Error("Handle() accepted malformed JSON")
	}
	if err := w.Handle([]byte(`{"request_id":"r","text":"x"}`)); err == nil {
		t.Error("Handle() accepted a request without actor id")
	}

	failing, _ := newWorker(&capture{err: errors.New("nats down")})
	if err := failing.Handle([]byte(`{"actor_id":"u1","text":"hello there friend"}`)); err == nil {
		t.Error("Handle() swallowed a publish error")
	}
}

func TestHandleFuncLogsFailure(t *testing.T) {
	w, hook := newWorker(&capture{})
	w.HandleFunc()([]byte("garbage"))
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Errorf("last log = %+v, want warning", e)
	}
}
