package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teamcutter/ipfilter/internal/domain"
)

const schema = `
PRAGMA busy_timeout = 5000;
PRAGMA journal_mode = WAL;

CREATE TABLE IF NOT EXISTS runs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    provider    TEXT NOT NULL DEFAULT '',
    mirror      TEXT NOT NULL DEFAULT '',
    url         TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL,
    timestamp   TEXT NOT NULL DEFAULT '',
    length      INTEGER NOT NULL DEFAULT 0,
    from_cache  INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS targets (
    run_id  INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    seq     INTEGER NOT NULL,
    name    TEXT NOT NULL,
    version TEXT NOT NULL DEFAULT '',
    status  TEXT NOT NULL,
    error   TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, seq)
);
`

type SQLiteHistory struct {
	mu         sync.RWMutex
	db         *sql.DB
	importPath string
}

// NewSQLite opens the history database at dbPath. A JSON history at
// importPath is imported once into an empty database and renamed to .bak.
func NewSQLite(dbPath, importPath string) (*SQLiteHistory, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s := &SQLiteHistory{
		db:         db,
		importPath: importPath,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteHistory) migrate() error {
	if s.importPath == "" {
		return nil
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	data, err := os.ReadFile(s.importPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.importPath, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.importPath, err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range doc.Runs {
		run := doc.Runs[i]
		if _, err := insertRun(tx, &run); err != nil {
			return fmt.Errorf("failed to import run %d: %w", run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if err := os.Rename(s.importPath, s.importPath+".bak"); err != nil {
		log.Warn("failed to back up imported history", "path", s.importPath, "error", err)
	}
	return nil
}

func (s *SQLiteHistory) Record(run *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id, err := insertRun(tx, run)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	run.ID = id
	return nil
}

func insertRun(tx *sql.Tx, run *domain.RunRecord) (int64, error) {
	var ts string
	if run.Timestamp != nil {
		ts = run.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	res, err := tx.Exec(`
		INSERT INTO runs
		(started_at, finished_at, provider, mirror, url, state, timestamp, length, from_cache, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.Provider, run.Mirror, run.URL, run.State, ts, run.Length,
		boolToInt(run.FromCache), run.Error)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i, t := range run.Targets {
		if _, err := tx.Exec(`
			INSERT INTO targets (run_id, seq, name, version, status, error)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, i, t.Name, t.Version, string(t.Status), t.Error); err != nil {
			return 0, err
		}
	}

	return id, nil
}

// List returns up to limit runs, newest first. limit <= 0 means all.
func (s *SQLiteHistory) List(limit int) ([]domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, provider, mirror, url, state, timestamp, length, from_cache, error
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	var runs []domain.RunRecord
	for rows.Next() {
		var run domain.RunRecord
		var startedAt, finishedAt, ts string
		var fromCache int

		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Provider, &run.Mirror, &run.URL,
			&run.State, &ts, &run.Length, &fromCache, &run.Error); err != nil {
			rows.Close()
			return nil, err
		}

		run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
		if ts != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				run.Timestamp = &parsed
			}
		}
		run.FromCache = fromCache == 1

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range runs {
		targets, err := s.targets(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Targets = targets
	}

	return runs, nil
}

func (s *SQLiteHistory) targets(runID int64) ([]domain.TargetRecord, error) {
	rows, err := s.db.Query(`
		SELECT name, version, status, error FROM targets WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []domain.TargetRecord
	for rows.Next() {
		var t domain.TargetRecord
		var status string
		if err := rows.Scan(&t.Name, &t.Version, &status, &t.Error); err != nil {
			return nil, err
		}
		t.Status = domain.TargetStatus(status)
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
