/*
Package runlog persists a history of cycle runs.

The log is SQLite-backed (modernc.org/sqlite, pure Go) with graceful
degradation: if the database cannot be opened, recording becomes a no-op
and the cycle itself is never blocked by its own bookkeeping.
*/
package runlog

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/hoangvle/recall-cycle/internal/logging"
)

// NewRunID mints a sortable unique run id.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// RunRecord is one finished (or aborted) cycle run.
type RunRecord struct {
	RunID          string    `json:"run_id"`
	Space          string    `json:"space"`
	Mode           string    `json:"mode"`
	Degraded       bool      `json:"degraded"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
	TodayCount     int       `json:"today_count"`
	NewGenerated   int       `json:"new_generated"`
	NewAccepted    int       `json:"new_accepted"`
	ErrorCode      string    `json:"error_code,omitempty"`
	ErrorPhase     string    `json:"error_phase,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Store records run history.
type Store struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	mu       sync.Mutex
	initOnce sync.Once
	logger   *logging.Logger
}

// NewStore creates a run log at dbPath. Open failures disable the store
// instead of failing.
func NewStore(dbPath string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{dbPath: dbPath, enabled: true, logger: logger}
}

// Init opens the database and runs migrations. On failure the store is
// disabled and later calls become no-ops.
func (s *Store) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
			initErr = fmt.Errorf("creating run log directory: %w", err)
			s.enabled = false
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("opening run log: %w", err)
			s.enabled = false
			s.logger.Warn("run log disabled", "error", initErr)
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("pinging run log: %w", err)
			s.enabled = false
			s.logger.Warn("run log disabled", "error", initErr)
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("migrating run log: %w", err)
			s.enabled = false
			s.logger.Warn("run log disabled", "error", initErr)
			return
		}
	})
	return initErr
}

// Close closes the database.
func (s *Store) Close() error {
	if !s.enabled || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// RecordRun stores one run. Disabled stores swallow the write.
func (s *Store) RecordRun(rec RunRecord) error {
	if !s.enabled || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO runs (
			run_id, space, mode, degraded, degraded_reason,
			today_count, new_generated, new_accepted,
			error_code, error_phase, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunID, rec.Space, rec.Mode, boolToInt(rec.Degraded), rec.DegradedReason,
		rec.TodayCount, rec.NewGenerated, rec.NewAccepted,
		rec.ErrorCode, rec.ErrorPhase,
		rec.StartedAt.UTC().Format(time.RFC3339), rec.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		s.logger.Warn("recording run failed", "run_id", rec.RunID, "error", err)
	}
	return nil
}

// ListRuns returns the most recent runs for a space, newest first. An empty
// space matches every space.
func (s *Store) ListRuns(space string, limit int) ([]RunRecord, error) {
	if !s.enabled || s.db == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT run_id, space, mode, degraded, degraded_reason,
		       today_count, new_generated, new_accepted,
		       error_code, error_phase, started_at, finished_at
		FROM runs
		WHERE (? = '' OR space = ?)
		ORDER BY started_at DESC
		LIMIT ?
	`, space, space, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var degraded int
		var started, finished string
		if err := rows.Scan(
			&rec.RunID, &rec.Space, &rec.Mode, &degraded, &rec.DegradedReason,
			&rec.TodayCount, &rec.NewGenerated, &rec.NewAccepted,
			&rec.ErrorCode, &rec.ErrorPhase, &started, &finished,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		rec.Degraded = degraded != 0
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastRun returns the newest run for a space, or nil when none exist.
func (s *Store) LastRun(space string) (*RunRecord, error) {
	runs, err := s.ListRuns(space, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
