// Package review runs the asynchronous spam and hate review of accepted
// content. Requests arrive on moderation.check; every result is published on
// moderation.result.<actor_id> so the content service can hide or remove.
package review

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/moderation/internal/metrics"
	"github.com/hireloop/moderation/internal/moderation"
)

// ResultPublisher publishes a review result for one actor.
// *messaging.NATSClient implements it.
type ResultPublisher interface {
	PublishModerationResult(actorID string, data []byte) error
}

// Worker assesses moderation requests and publishes results.
type Worker struct {
	assessor *moderation.Assessor
	pub      ResultPublisher
	logger   logrus.FieldLogger
}

// NewWorker creates a Worker.
func NewWorker(assessor *moderation.Assessor, pub ResultPublisher, logger logrus.FieldLogger) *Worker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Worker{assessor: assessor, pub: pub, logger: logger.WithField("component", "review")}
}

// Review assesses one request.
func (w *Worker) Review(req moderation.ModerationRequest) moderation.ModerationResult {
	a := w.assessor.Assess(req.Text)
	metrics.SpamScore.Observe(float64(a.Spam.Score))
	metrics.Actions.WithLabelValues(string(a.Action.Action)).Inc()
	return moderation.ModerationResult{
		RequestID: req.RequestID,
		ActorID:   req.ActorID,
		ContentID: req.ContentID,
		Action:    a.Action.Action,
		Reason:    a.Action.Reason,
		SpamScore: a.Spam.Score,
		HateScore: a.HateScore,
		Reasons:   a.Spam.Reasons,
	}
}

// Handle decodes a raw moderation.check message, reviews it and publishes
// the result.
func (w *Worker) Handle(data []byte) error {
	var req moderation.ModerationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("review: decode request: %w", err)
	}
	if req.ActorID == "" {
		return fmt.Errorf("review: request %s has no actor id", req.RequestID)
	}

	res := w.Review(req)
	log := w.logger.WithFields(logrus.Fields{
		"request_id": req.RequestID,
		"actor_id":   req.ActorID,
		"content_id": req.ContentID,
		"action":     res.Action,
		"spam_score": res.SpamScore,
		"hate_score": res.HateScore,
	})
	if res.Action == moderation.ActionApprove {
		log.Debug("clean")
	} else {
		log.Info("flagged")
	}

	out, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("review: encode result: %w", err)
	}
	if err := w.pub.PublishModerationResult(req.ActorID, out); err != nil {
		return fmt.Errorf("review: publish result: %w", err)
	}
	return nil
}

// HandleFunc adapts Handle for NATSClient.SubscribeModerationCheck, logging
// failures.
func (w *Worker) HandleFunc() func(data []byte) {
	return func(data []byte) {
		if err := w.Handle(data); err != nil {
			w.logger.WithError(err).Warn("review failed")
		}
	}
}
