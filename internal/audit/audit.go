// Package audit persists the session trail: rounds, generated checkers
// with their verdicts, and explicitly saved encodings. The trail answers
// "why did round N pass" after the fact; the refinement loop itself never
// reads it.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aspforge/aspforge/internal/types"
	"github.com/google/uuid"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	problem    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rounds (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id   TEXT NOT NULL REFERENCES sessions(id),
	round        INTEGER NOT NULL,
	solve_status TEXT NOT NULL,
	answer_sets  INTEGER NOT NULL,
	passed       INTEGER NOT NULL,
	failed       INTEGER NOT NULL,
	errored      INTEGER NOT NULL,
	summary      TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS checkers (
	id            TEXT NOT NULL,
	session_id    TEXT NOT NULL REFERENCES sessions(id),
	constraint_id TEXT NOT NULL,
	language      TEXT NOT NULL,
	program       TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	details       TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS saved_encodings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id),
	path       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_rounds_session ON rounds(session_id);
CREATE INDEX IF NOT EXISTS idx_checkers_session ON checkers(session_id, constraint_id);
`

// Store is the SQLite-backed audit trail for one session.
type Store struct {
	db        *sql.DB
	sessionID string
}

// DiscoverPath walks up from dir looking for an existing .aspforge/
// directory; if none exists the database lands in dir itself.
func DiscoverPath(dir string) string {
	current := dir
	for {
		candidate := filepath.Join(current, ".aspforge", "aspforge.db")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return filepath.Join(dir, ".aspforge", "aspforge.db")
}

// Open opens (creating if needed) the audit database and starts a session
// row for the given problem statement.
func Open(path, problem string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	sessionID := uuid.New().String()
	if _, err := db.Exec(`INSERT INTO sessions (id, problem) VALUES (?, ?)`, sessionID, problem); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Store{db: db, sessionID: sessionID}, nil
}

// Probe checks that an existing audit database at path can be opened and
// queried, without starting a session.
func Probe(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	var one int
	if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

// SessionID returns the current session identifier.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRound stores one validation round's aggregate outcome.
func (s *Store) RecordRound(ctx context.Context, summary *types.RoundSummary) error {
	passed, failed, errored := summary.Counts()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rounds (session_id, round, solve_status, answer_sets, passed, failed, errored, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.sessionID, summary.Round, summary.SolveStatus, summary.AnswerSets,
		passed, failed, errored, summary.Render())
	if err != nil {
		return fmt.Errorf("failed to record round %d: %w", summary.Round, err)
	}
	return nil
}

// RecordChecker stores a generated checker program together with the
// verdict it produced.
func (s *Store) RecordChecker(ctx context.Context, constraintID string, ck *types.Checker, verdict *types.Verdict) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkers (id, session_id, constraint_id, language, program, outcome, details, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ck.ID, s.sessionID, constraintID, string(ck.Language), ck.Program,
		string(verdict.Outcome), verdict.Details, verdict.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record checker for %s: %w", constraintID, err)
	}
	return nil
}

// SaveEncoding writes the encoding text to path and records the save.
// Invoked only on explicit user request, outside the refinement loop.
func (s *Store) SaveEncoding(ctx context.Context, path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write encoding to %s: %w", path, err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_encodings (session_id, path, content) VALUES (?, ?, ?)`,
		s.sessionID, path, text)
	if err != nil {
		return fmt.Errorf("failed to record saved encoding: %w", err)
	}
	return nil
}

// RoundRecord is one stored round, as read back for inspection.
type RoundRecord struct {
	Round       int
	SolveStatus string
	Passed      int
	Failed      int
	Errored     int
	CreatedAt   time.Time
}

// Rounds returns the session's recorded rounds in order.
func (s *Store) Rounds(ctx context.Context) ([]RoundRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT round, solve_status, passed, failed, errored, created_at
		FROM rounds WHERE session_id = ? ORDER BY round`, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var out []RoundRecord
	for rows.Next() {
		var r RoundRecord
		if err := rows.Scan(&r.Round, &r.SolveStatus, &r.Passed, &r.Failed, &r.Errored, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CheckerRecord is one stored checker run.
type CheckerRecord struct {
	CheckerID    string
	ConstraintID string
	Language     string
	Program      string
	Outcome      string
	Details      string
}

// Checkers returns the recorded checker runs for one constraint, oldest
// first, so a failed round can be audited against the exact program that
// judged it.
func (s *Store) Checkers(ctx context.Context, constraintID string) ([]CheckerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, constraint_id, language, program, outcome, details
		FROM checkers WHERE session_id = ? AND constraint_id = ?
		ORDER BY created_at`, s.sessionID, constraintID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkers: %w", err)
	}
	defer rows.Close()

	var out []CheckerRecord
	for rows.Next() {
		var c CheckerRecord
		if err := rows.Scan(&c.CheckerID, &c.ConstraintID, &c.Language, &c.Program, &c.Outcome, &c.Details); err != nil {
			return nil, fmt.Errorf("failed to scan checker: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Healthy verifies the database answers a trivial query. Used by doctor.
func (s *Store) Healthy(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&n); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
