// Package httpapi exposes the content write endpoints behind the server-side
// enforcement gate, plus the admin and operational endpoints.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/moderation/internal/audit"
	"github.com/hireloop/moderation/internal/gate"
	"github.com/hireloop/moderation/internal/metrics"
	"github.com/hireloop/moderation/internal/moderation"
	"github.com/hireloop/moderation/internal/ratelimit"
	"github.com/hireloop/moderation/internal/suspension"
)

// Content kinds accepted by the write endpoints.
const (
	KindPost    = "post"
	KindComment = "comment"
	KindJob     = "job"
)

// ReviewSubmitter queues accepted content for async review.
// *messaging.ReviewPublisher implements it.
type ReviewSubmitter interface {
	Submit(req moderation.ModerationRequest) (string, error)
}

// Deps are the collaborators of the HTTP API. Gate is required; the rest
// are optional.
type Deps struct {
	Gate       *gate.Gate
	Limiter    *ratelimit.Limiter
	RateRule   ratelimit.Rule
	Recorder   audit.Recorder
	Review     ReviewSubmitter
	AdminToken string
	Now        func() time.Time
	Logger     logrus.FieldLogger
}

// Server holds the HTTP API state.
type Server struct {
	deps Deps
}

// NewRouter builds the chi router for the moderation API.
func NewRouter(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Recorder == nil {
		deps.Recorder = audit.LogRecorder{Logger: deps.Logger}
	}
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(gate.AuditMiddleware(deps.Recorder, gate.ActorFromHeader, deps.Now, deps.Logger))
		if deps.Limiter != nil {
			r.Use(deps.Limiter.Middleware(deps.RateRule, gate.ActorFromHeader))
		}
		r.Use(gate.ServerMiddleware(gate.ServerConfig{
			Gate:   deps.Gate,
			Now:    deps.Now,
			Logger: deps.Logger,
		}))

		r.Post("/posts", s.accept(KindPost))
		r.Put("/posts/{contentID}", s.accept(KindPost))
		r.Post("/comments", s.accept(KindComment))
		r.Post("/jobs", s.accept(KindJob))
		r.Put("/jobs/{contentID}", s.accept(KindJob))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/actors/{actorID}/status", s.actorStatus)
		r.Post("/actors/{actorID}/reset", s.resetActor)
	})

	return r
}

type acceptedResponse struct {
	Success   bool   `json:"success"`
	ContentID string `json:"contentId"`
	ReviewID  string `json:"reviewId,omitempty"`
}

// accept answers a write that passed the gate and queues it for async
// review. Persisting the content itself belongs to the content service.
func (s *Server) accept(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID := gate.ActorFromHeader(r)
		if actorID == "" {
			writeError(w, http.StatusUnauthorized, "missing actor", "UNAUTHENTICATED")
			return
		}

		raw, err := io.ReadAll(r.Body)
		var body map[string]any
		if err != nil || json.Unmarshal(raw, &body) != nil || body == nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", gate.CodeInvalidBody)
			return
		}

		contentID := chi.URLParam(r, "contentID")
		status := http.StatusOK
		if contentID == "" {
			contentID = uuid.NewString()
			status = http.StatusCreated
		}

		resp := acceptedResponse{Success: true, ContentID: contentID}
		if s.deps.Review != nil {
			id, err := s.deps.Review.Submit(moderation.ModerationRequest{
				ActorID:   actorID,
				ContentID: contentID,
				Kind:      kind,
				Text:      gate.ExtractText(raw, gate.DefaultTextFields),
				Ts:        s.deps.Now().UnixMilli(),
			})
			if err != nil {
				s.deps.Logger.WithError(err).WithField("content_id", contentID).Warn("async review not queued")
			}
			resp.ReviewID = id
		}
		writeJSON(w, status, resp)
	}
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.deps.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.deps.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "admin token required", "UNAUTHORIZED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusResponse struct {
	ActorID          string     `json:"actorId"`
	State            string     `json:"state"`
	Warnings         int        `json:"warnings"`
	Threshold        int        `json:"threshold"`
	SuspendedUntil   *time.Time `json:"suspendedUntil,omitempty"`
	RemainingTimeMs  int64      `json:"remainingTimeMs"`
	RemainingMinutes int        `json:"remainingMinutes"`
}

func (s *Server) actorStatus(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")
	st, err := s.deps.Gate.Machine().Status(r.Context(), actorID, s.deps.Now())
	if err != nil {
		s.deps.Logger.WithError(err).WithField("actor_id", actorID).Error("status lookup failed")
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable", "LEDGER_UNAVAILABLE")
		return
	}
	resp := statusResponse{
		ActorID:   actorID,
		State:     st.State.String(),
		Warnings:  st.Warnings,
		Threshold: st.Threshold,
	}
	if st.Suspended() {
		until := st.Until
		resp.SuspendedUntil = &until
		resp.RemainingTimeMs = st.Remaining.Milliseconds()
		resp.RemainingMinutes = suspension.RemainingMinutes(st.Remaining)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) resetActor(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")
	if err := s.deps.Gate.Machine().Reset(r.Context(), actorID); err != nil {
		s.deps.Logger.WithError(err).WithField("actor_id", actorID).Error("reset failed")
		writeError(w, http.StatusServiceUnavailable, "ledger unavailable", "LEDGER_UNAVAILABLE")
		return
	}

	ev := audit.Event{
		Kind:    audit.KindActorReset,
		ActorID: actorID,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      s.deps.Now(),
	}
	if err := s.deps.Recorder.Record(r.Context(), ev); err != nil {
		s.deps.Logger.WithError(err).WithField("actor_id", actorID).Warn("reset not audited")
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "actorId": actorID})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg, "code": code})
}
