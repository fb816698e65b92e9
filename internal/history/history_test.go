package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jabva-1990/agentic-healer/internal/heal"
)

// testStore creates a temporary history database and registers cleanup.
func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func terminalSession(t *testing.T, status heal.Status, fixes int) *heal.Session {
	t.Helper()
	sess := heal.NewSession("/repo", "broken imports", 3, time.Minute)
	sess.IssuesFound = 2
	sess.IssuesResolved = fixes
	sess.FixesApplied = fixes
	sess.FilesModified = []string{"app.py"}
	if err := sess.AddRecord(heal.IterationRecord{Index: 0, IssuesBefore: 2, IssuesAfter: 1, FixesApplied: fixes, ElapsedMS: 30}); err != nil {
		t.Fatal(err)
	}
	if err := sess.Close(status, nil); err != nil {
		t.Fatal(err)
	}
	return sess
}

func TestOpen_CreatesSchemaInWALMode(t *testing.T) {
	t.Parallel()
	s := testStore(t)

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}

	tables := map[string]bool{"sessions": false, "iterations": false}
	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type='table'")
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		if _, ok := tables[name]; ok {
			tables[name] = true
		}
	}
	for name, found := range tables {
		if !found {
			t.Errorf("table %q not created", name)
		}
	}
}

func TestRecordSession_RoundTrip(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	sess := terminalSession(t, heal.StatusPartial, 1)
	if err := s.RecordSession(ctx, sess); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(Recent) = %d, want 1", len(got))
	}
	sm := got[0]
	if sm.ID != sess.ID || sm.Status != heal.StatusPartial || sm.ExitCode != 2 {
		t.Errorf("summary = %+v, want id %s PARTIAL/2", sm, sess.ID)
	}
	if sm.FixesApplied != 1 || sm.FilesModified != 1 {
		t.Errorf("summary counters = %+v", sm)
	}
	if !sm.StartedAt.Equal(sess.StartedAt) || !sm.FinishedAt.Equal(sess.FinishedAt) {
		t.Errorf("timestamps drifted: got %v/%v, want %v/%v", sm.StartedAt, sm.FinishedAt, sess.StartedAt, sess.FinishedAt)
	}

	recs, err := s.Iterations(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Iterations: %v", err)
	}
	if diff := cmp.Diff(sess.Iterations, recs); diff != "" {
		t.Errorf("iterations mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordSession_RerecordReplaces(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	sess := terminalSession(t, heal.StatusFailed, 0)
	if err := s.RecordSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	sess.FixesApplied = 2
	if err := s.RecordSession(ctx, sess); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("len(Recent) = %d, want 1 after re-record", len(got))
	}
	if got[0].FixesApplied != 2 {
		t.Errorf("fixes = %d, want updated value 2", got[0].FixesApplied)
	}

	recs, err := s.Iterations(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Errorf("iterations = %d, want 1 (no duplicates)", len(recs))
	}
}

func TestRecent_OrdersNewestFirstAndLimits(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		sess := heal.NewSession("/repo", "", 1, time.Minute)
		sess.StartedAt = time.Date(2026, 8, 1+i, 0, 0, 0, 0, time.UTC)
		if err := sess.Close(heal.StatusDone, nil); err != nil {
			t.Fatal(err)
		}
		if err := s.RecordSession(ctx, sess); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, sess.ID)
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Recent) = %d, want 2", len(got))
	}
	if got[0].ID != ids[2] || got[1].ID != ids[1] {
		t.Errorf("order = [%s %s], want newest first", got[0].ID, got[1].ID)
	}
}

func TestIterations_UnknownSession(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	recs, err := s.Iterations(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Iterations: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records for unknown session", len(recs))
	}
}
