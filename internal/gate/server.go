package gate

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/moderation/internal/suspension"
)

// Response codes carried in rejection payloads.
const (
	CodeBannedContent = "BANNED_CONTENT"
	CodeSuspended     = "ACCOUNT_SUSPENDED"
	CodeTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeInvalidBody   = "INVALID_BODY"
)

// HeaderActorID carries the authenticated actor id set by the auth layer.
const HeaderActorID = "X-Actor-ID"

const (
	defaultMaxBodyBytes = 1 << 20
	auditContentRunes   = 120
)

// DefaultTextFields are the JSON body fields screened on write requests.
var DefaultTextFields = []string{
	"title", "content", "description", "text", "body",
	"message", "comment", "bio", "summary", "skills",
}

// Rejection is the JSON body of a refused write request.
type Rejection struct {
	Success          bool     `json:"success"`
	Error            string   `json:"error"`
	Message          string   `json:"message"`
	TriggeredWords   []string `json:"triggeredWords,omitempty"`
	Code             string   `json:"code"`
	RemainingMinutes int      `json:"remainingMinutes,omitempty"`
	RemainingTimeMs  int64    `json:"remainingTimeMs,omitempty"`
}

// ActorFunc extracts the actor id from a request.
type ActorFunc func(r *http.Request) string

// ActorFromHeader reads HeaderActorID.
func ActorFromHeader(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderActorID))
}

// ServerConfig configures ServerMiddleware.
type ServerConfig struct {
	Gate         *Gate
	Actor        ActorFunc
	Fields       []string
	MaxBodyBytes int64
	Now          func() time.Time
	Logger       logrus.FieldLogger
}

// ServerMiddleware screens POST, PUT and PATCH bodies with the gate and
// answers refusals itself: 400 with code BANNED_CONTENT for a violation,
// 403 with code ACCOUNT_SUSPENDED while suspended. Bodies that are not JSON
// objects pass through unchecked.
func ServerMiddleware(cfg ServerConfig) func(http.Handler) http.Handler {
	if cfg.Actor == nil {
		cfg.Actor = ActorFromHeader
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = DefaultTextFields
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isWrite(r.Method) || r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}

			// A body over the limit is refused whole: screening or forwarding a
			// prefix of it would let padded content through.
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, cfg.MaxBodyBytes))
			r.Body.Close()
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					cfg.Logger.WithFields(logrus.Fields{
						"actor_id": cfg.Actor(r),
						"path":     r.URL.Path,
						"limit":    cfg.MaxBodyBytes,
					}).Warn("moderation: body over limit")
					writeJSON(w, http.StatusRequestEntityTooLarge, Rejection{
						Error:   "Request body too large",
						Message: "The submitted content exceeds the maximum size.",
						Code:    CodeTooLarge,
					})
					return
				}
				cfg.Logger.WithError(err).Warn("moderation: body unreadable")
				writeJSON(w, http.StatusBadRequest, Rejection{
					Error:   "Unreadable request body",
					Message: "The request body could not be read.",
					Code:    CodeInvalidBody,
				})
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			text := ExtractText(body, cfg.Fields)
			actorID := cfg.Actor(r)
			v := cfg.Gate.Check(r.Context(), actorID, text, cfg.Now())

			switch v.Outcome {
			case OutcomeRejected:
				excerpt := Truncate(text, auditContentRunes)
				noteRejected(r.Context(), excerpt)
				cfg.Logger.WithFields(logrus.Fields{
					"actor_id": actorID,
					"path":     r.URL.Path,
					"reason":   v.Reason,
					"terms":    v.TriggeredTerms,
					"content":  excerpt,
				}).Warn("moderation: content rejected")
				writeJSON(w, http.StatusBadRequest, rejectionFor(v))
			case OutcomeSuspended:
				cfg.Logger.WithFields(logrus.Fields{
					"actor_id": actorID,
					"path":     r.URL.Path,
					"until":    v.Until,
				}).Info("moderation: suspended actor refused")
				writeJSON(w, http.StatusForbidden, rejectionFor(v))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func isWrite(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

// ExtractText concatenates the given string fields (and string elements of
// array fields) of a JSON object body, in field order. Bodies that are not
// JSON objects yield "".
func ExtractText(body []byte, fields []string) string {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	var parts []string
	for _, f := range fields {
		switch val := doc[f].(type) {
		case string:
			parts = append(parts, val)
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					parts = append(parts, s)
				}
			}
		}
	}
	return strings.Join(parts, "\n")
}

func rejectionFor(v Verdict) Rejection {
	if v.Outcome == OutcomeSuspended {
		return Rejection{
			Success:          false,
			Error:            "Account temporarily suspended",
			Message:          "Posting is disabled for " + suspension.FormatRemaining(v.Remaining) + " after repeated violations.",
			Code:             CodeSuspended,
			RemainingMinutes: suspension.RemainingMinutes(v.Remaining),
			RemainingTimeMs:  v.Remaining.Milliseconds(),
		}
	}

	rej := Rejection{
		Success:        false,
		Error:          "Inappropriate content",
		Message:        "Your content contains terms that are not allowed. Please edit it and try again.",
		TriggeredWords: v.TriggeredTerms,
		Code:           CodeBannedContent,
	}
	if v.Reason == ReasonSpam {
		rej.Error = "Content flagged as spam"
		rej.Message = "Your content looks like spam. Please edit it and try again."
	}
	if v.SuspensionStarted {
		rej.Message += " Your account is suspended for " + suspension.FormatRemaining(v.Remaining) + "."
		rej.RemainingMinutes = suspension.RemainingMinutes(v.Remaining)
		rej.RemainingTimeMs = v.Remaining.Milliseconds()
	}
	return rej
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// Truncate shortens s to at most n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
