package runlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hoangvle/recall-cycle/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "runlog.db"), logging.Discard())
	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id, space string, started time.Time) RunRecord {
	return RunRecord{
		RunID:      id,
		Space:      space,
		Mode:       "daily",
		TodayCount: 30,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
}

func TestRecordAndListRuns(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b", "run-c"} {
		rec := sampleRun(id, "golang", base.Add(time.Duration(i)*time.Hour))
		if err := s.RecordRun(rec); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns("golang", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].RunID != "run-c" {
		t.Errorf("newest first expected, got %s", runs[0].RunID)
	}
	if !runs[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("started_at round trip failed: %v", runs[0].StartedAt)
	}
}

func TestListRunsFiltersBySpace(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC().Truncate(time.Second)

	s.RecordRun(sampleRun("run-a", "golang", base))
	s.RecordRun(sampleRun("run-b", "kubernetes", base.Add(time.Minute)))

	runs, err := s.ListRuns("golang", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 || runs[0].Space != "golang" {
		t.Fatalf("space filter failed: %+v", runs)
	}

	all, err := s.ListRuns("", 10)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d runs, want 2", len(all))
	}
}

func TestDegradedRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	rec := sampleRun("run-a", "golang", time.Now().UTC().Truncate(time.Second))
	rec.Degraded = true
	rec.DegradedReason = "selection failed"
	rec.ErrorCode = "DEGRADE_CYCLE_FAILED"
	rec.ErrorPhase = "select_today"

	if err := s.RecordRun(rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	last, err := s.LastRun("golang")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last == nil || !last.Degraded || last.DegradedReason != "selection failed" {
		t.Fatalf("degraded fields lost: %+v", last)
	}
	if last.ErrorCode != "DEGRADE_CYCLE_FAILED" {
		t.Fatalf("error code lost: %+v", last)
	}
}

func TestDisabledStoreIsNoOp(t *testing.T) {
	s := NewStore("/nonexistent-root/run.db", logging.Discard())
	s.enabled = false

	if err := s.RecordRun(sampleRun("run-a", "golang", time.Now())); err != nil {
		t.Fatalf("disabled record must not fail: %v", err)
	}
	runs, err := s.ListRuns("golang", 10)
	if err != nil || runs != nil {
		t.Fatalf("disabled list must be empty: %v %v", runs, err)
	}
}

func TestLastRunEmpty(t *testing.T) {
	s := newTestStore(t)
	last, err := s.LastRun("golang")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last != nil {
		t.Fatalf("expected nil, got %+v", last)
	}
}

func TestNewRunIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewRunID()
		if seen[id] {
			t.Fatalf("duplicate run id %s", id)
		}
		seen[id] = true
	}
}
