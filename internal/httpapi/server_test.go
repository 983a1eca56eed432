package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/hireloop/moderation/internal/audit"
	"github.com/hireloop/moderation/internal/gate"
	"github.com/hireloop/moderation/internal/ledger"
	"github.com/hireloop/moderation/internal/moderation"
	"github.com/hireloop/moderation/internal/ratelimit"
	"github.com/hireloop/moderation/internal/suspension"
)

const adminToken = "s3cret"

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type memRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (m *memRecorder) Record(_ context.Context, e audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memRecorder) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.Kind)
	}
	return out
}

type memReview struct {
	mu   sync.Mutex
	reqs []moderation.ModerationRequest
}

func (m *memReview) Submit(req moderation.ModerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	return "rev-1", nil
}

type fixture struct {
	handler  http.Handler
	recorder *memRecorder
	review   *memReview
	now      *time.Time
}

func newFixture(t *testing.T, limiter *ratelimit.Limiter, rule ratelimit.Rule) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	l := ledger.New(ledger.NewMemoryStore(), 24*time.Hour, ledger.WithLogger(logger))
	m := suspension.NewMachine(l, suspension.DefaultPolicy(), suspension.WithLogger(logger))
	g := gate.New("server", moderation.NewDefaultMatcher(), m, gate.WithLogger(logger))

	now := t0
	f := &fixture{recorder: &memRecorder{}, review: &memReview{}, now: &now}
	f.handler = NewRouter(Deps{
		Gate:       g,
		Limiter:    limiter,
		RateRule:   rule,
		Recorder:   f.recorder,
		Review:     f.review,
		AdminToken: adminToken,
		Now:        func() time.Time { return *f.now },
		Logger:     logger,
	})
	return f
}

func (f *fixture) do(method, path, actor, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(gate.HeaderActorID, actor)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestCreatePostAccepted(t *testing.T) {
	f := newFixture(t, nil, ratelimit.Rule{})
	rec := f.do(http.MethodPost, "/api/posts", "u1", `{"title":"Hiring","content":"Backend role, Lyon","skills":["golang","postgres"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp acceptedResponse
	decode(t, rec, &resp)
	if !resp.Success || resp.ContentID == "" || resp.ReviewID != "rev-1" {
		t.Errorf("response = %+v", resp)
	}
	if len(f.review.reqs) != 1 {
		t.Fatalf("review requests = %d, want 1", len(f.review.reqs))
	}
	req := f.review.reqs[0]
	if req.ActorID != "u1" || req.Kind != KindPost || req.Text != "Hiring\nBackend role, Lyon\ngolang\npostgres" {
		t.Errorf("review request = %+v", req)
	}
}

func TestReviewTextMatchesScreenedText(t *testing.T) {
	f := newFixture(t, nil, ratelimit.Rule{})
	body := `{"title":"Dev","skills":["golang","kubernetes"],"salary":"45k"}`
	if rec := f.do(http.MethodPost, "/api/jobs", "u1", body); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	want := gate.ExtractText([]byte(body), gate.DefaultTextFields)
	if got := f.review.reqs[0].Text; got != want {
		t.Errorf("review text = %q, want screened text %q", got, want)
	}
}

func TestCreateRejectsNonObjectBody(t *testing.T) {
	f := newFixture(t, nil, ratelimit.Rule{})
	for _, body := range []string{`["a"]`, `null`, `{"title":`} {
		if rec := f.do(http.MethodPost, "/api/posts", "u1", body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestUpdateJobKeepsID(t *testing.T) {
	f := newFixture(t, nil, ratelimit.Rule{})
	rec := f.do(http.MethodPut, "/api/jobs/job-9", "u1", `{"title":"Data engineer"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp acceptedResponse
	decode(t, rec, &resp)
	if resp.ContentID != "job-9" {
		t.Errorf("ContentID = %q, want job-9", resp.ContentID)
	}
}

func TestCreateRequiresActor(t *testing.T) {
	f := newFixture(t, nil, ratelimit.Rule{})
	if rec := f.do(http.MethodPost, "/api/comments", "", `{"content":"nice"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestBannedContentRejectedAndAudited(t *testing.T) {
	f := newFixture(t, nil, ratelimit.Rule{})
	rec := f.do(http.MethodPost, "/api/comments", "u1", `{"content":"t'es un connard"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var rej gate.Rejection
	decode(t, rec, &rej)
	if rej.Code != gate.CodeBannedContent {
		t.Errorf("code = %q", rej.Code)
	}
	if len(f.review.reqs) != 0 {
		t.Error("rejected content queued for review")
	}
	if kinds := f.recorder.kinds(); len(kinds) != 1 || kinds[0] != audit.KindViolationObserved {
		t.Errorf("audit kinds = %v", kinds)
	}
}

func TestSuspensionAndAdminReset(t *testing.T) {
	f := newFixture(t, nil, ratelimit.Rule{})
	for _, w := range []string{"merde", "putain", "connard"} {
		f.do(http.MethodPost, "/api/posts", "u1", `{"content":"`+w+`"}`)
	}

	*f.now = f.now.Add(5 * time.Minute)
	rec := f.do(http.MethodPost, "/api/posts", "u1", `{"content":"hello"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("suspended status = %d, want 403", rec.Code)
	}

	auth := []string{"Authorization", "Bearer " + adminToken}
	rec = f.do(http.MethodGet, "/admin/actors/u1/status", "", "", auth...)
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", rec.Code)
	}
	var st statusResponse
	decode(t, rec, &st)
	if st.State != "suspended" || st.Warnings != 3 || st.RemainingMinutes != 55 || st.SuspendedUntil == nil {
		t.Errorf("status = %+v", st)
	}

	if rec := f.do(http.MethodPost, "/admin/actors/u1/reset", "", "", auth...); rec.Code != http.StatusOK {
		t.Fatalf("reset = %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, "/api/posts", "u1", `{"content":"hello"}`); rec.Code != http.StatusCreated {
		t.Errorf("after reset status = %d, want 201", rec.Code)
	}

	kinds := f.recorder.kinds()
	if kinds[len(kinds)-1] != audit.KindActorReset {
		t.Errorf("last audit kind = %q, want actor_reset", kinds[len(kinds)-1])
	}
}

func TestAdminRequiresToken(t *testing.T) {
	f := newFixture(t, nil, ratelimit.Rule{})
	tests := []struct {
		name   string
		header []string
	}{
		{"missing", nil},
		{"wrong", []string{"Authorization", "Bearer nope"}},
		{"no bearer prefix match", []string{"Authorization", "Basic " + adminToken}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/admin/actors/u1/reset", "", "", tt.header...)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	logger, _ := test.NewNullLogger()
	limiter := ratelimit.NewLimiter(client, logger)

	f := newFixture(t, limiter, ratelimit.Rule{Key: "rl:test:", Limit: 2, Window: time.Minute})
	for i := 0; i < 2; i++ {
		if rec := f.do(http.MethodPost, "/api/posts", "u1", `{"content":"ok"}`); rec.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	if rec := f.do(http.MethodPost, "/api/posts", "u1", `{"content":"ok"}`); rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd request status = %d, want 429", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil, ratelimit.Rule{})
	if rec := f.do(http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
	f.do(http.MethodPost, "/api/posts", "u1", `{"content":"merde"}`)
	rec := f.do(http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "moderation_gate_checks_total") {
		t.Errorf("metrics missing gate counter")
	}
}
