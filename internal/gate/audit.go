package gate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/moderation/internal/audit"
)

// maxAuditCapture bounds how much of a 400 response body is inspected.
const maxAuditCapture = 64 << 10

// AuditMiddleware records a "violation observed" audit event whenever the
// wrapped handler answers with the banned-content rejection. Nothing is
// recorded for other responses, so content that passes on resubmission is
// not double-counted. now stamps the events and defaults to time.Now.
func AuditMiddleware(recorder audit.Recorder, actor ActorFunc, now func() time.Time, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	if actor == nil {
		actor = ActorFromHeader
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			buf := &cappedBuffer{limit: maxAuditCapture}
			ww.Tee(buf)
			note := &violationNote{}

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), noteKey{}, note)))

			if ww.Status() != http.StatusBadRequest {
				return
			}
			var rej Rejection
			if err := json.Unmarshal(buf.Bytes(), &rej); err != nil || rej.Code != CodeBannedContent {
				return
			}

			actorID := actor(r)
			logger.WithFields(logrus.Fields{
				"actor_id": actorID,
				"method":   r.Method,
				"path":     r.URL.Path,
				"terms":    rej.TriggeredWords,
				"content":  note.content,
			}).Warn("violation observed")

			if actorID == "" {
				return
			}
			ev := audit.Event{
				Kind:    audit.KindViolationObserved,
				ActorID: actorID,
				Method:  r.Method,
				Path:    r.URL.Path,
				Terms:   rej.TriggeredWords,
				Content: note.content,
				At:      now(),
			}
			if err := recorder.Record(r.Context(), ev); err != nil {
				logger.WithError(err).WithField("actor_id", actorID).Error("audit record failed")
			}
		})
	}
}

// violationNote carries the rejected content from ServerMiddleware back out
// to AuditMiddleware.
type violationNote struct {
	content string
}

type noteKey struct{}

func noteRejected(ctx context.Context, content string) {
	if n, ok := ctx.Value(noteKey{}).(*violationNote); ok {
		n.content = content
	}
}

// cappedBuffer keeps the first limit bytes written to it and drops the rest.
type cappedBuffer struct {
	bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if room := c.limit - c.Len(); room > 0 {
		if len(p) > room {
			c.Buffer.Write(p[:room])
		} else {
			c.Buffer.Write(p)
		}
	}
	return len(p), nil
}
