package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
)

func openTestSQLite(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := openTestSQLite(t, filepath.Join(t.TempDir(), "ledger.db"))
	ctx := context.Background()

	if e, err := s.Get(ctx, "nobody"); err != nil || !e.Empty() {
		t.Fatalf("Get(unknown) = %+v, %v; want empty", e, err)
	}

	want := Entry{
		Violations: []Violation{{At: t0, Terms: []string{"merde"}}},
		Suspension: &Suspension{At: t0, Until: t0.Add(time.Hour), Reason: "repeated violations"},
	}
	if err := s.Set(ctx, "a", want); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	// Upsert path.
	if err := s.Set(ctx, "a", want); err != nil {
		t.Fatalf("second Set() error: %v", err)
	}

	got, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(got.Violations) != 1 || got.Violations[0].Terms[0] != "merde" || !got.Violations[0].At.Equal(t0) {
		t.Errorf("violations = %+v", got.Violations)
	}
	if got.Suspension == nil || !got.Suspension.Until.Equal(t0.Add(time.Hour)) {
		t.Errorf("suspension = %+v", got.Suspension)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if e, _ := s.Get(ctx, "a"); !e.Empty() {
		t.Errorf("entry survived Delete: %+v", e)
	}
}

func TestSQLiteStore_CorruptPayload(t *testing.T) {
	s := openTestSQLite(t, filepath.Join(t.TempDir(), "ledger.db"))
	ctx := context.Background()

	if _, err := s.db.Exec(`INSERT INTO ledger_entries (actor_id, payload, updated_at) VALUES ('a', '{oops', 0)`); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Get() err = %v, want ErrCorrupt", err)
	}

	// The ledger fails open and overwrites the bad row on the next write.
	logger, _ := test.NewNullLogger()
	l := New(s, 0, WithLogger(logger))
	n, err := l.RecordViolation(ctx, "a", []string{"x"}, t0)
	if err != nil || n != 1 {
		t.Fatalf("RecordViolation() = %d, %v; want 1, nil", n, err)
	}
	if _, err := s.Get(ctx, "a"); err != nil {
		t.Fatalf("row still corrupt after write: %v", err)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	first, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error: %v", err)
	}
	New(first, 0).RecordViolation(ctx, "a", []string{"x"}, t0)
	first.Close()

	second := openTestSQLite(t, path)
	n, err := New(second, 0).ActiveViolationCount(ctx, "a", t0.Add(time.Hour))
	if err != nil {
		t.Fatalf("ActiveViolationCount() error: %v", err)
	}
	if n != 1 {
		t.Errorf("count after reopen = %d, want 1", n)
	}
}
