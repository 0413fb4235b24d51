package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"marker-sweep/internal/sweep"
)

// HistoryDB manages the SQLite database holding sweep history
type HistoryDB struct {
	db *sql.DB
}

// RunRecord represents one invocation of the glob or list remover
type RunRecord struct {
	ID          int64      `json:"id"`
	Mode        string     `json:"mode"`
	Root        string     `json:"root,omitempty"`
	Marker      string     `json:"marker"`
	DryRun      bool       `json:"dry_run"`
	Policy      string     `json:"policy"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Total       int        `json:"total"`
	Removed     int        `json:"removed"`
	NotFound    int        `json:"not_found"`
	Errors      int        `json:"errors"`
	WouldRemove int        `json:"would_remove"`
	Aborted     bool       `json:"aborted"`
}

// OutcomeRecord represents a single visited path
type OutcomeRecord struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
}

var errNoRun = errors.New("run not found")

// NewHistoryDB opens (creating if needed) the history database at dbPath
func NewHistoryDB(dbPath string) (*HistoryDB, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// _loc=auto makes DATETIME columns scan into time.Time
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_loc=auto")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	// Exec instead of Ping so the file is created on first open
	if _, err = db.Exec("SELECT 1"); err != nil {
		return nil, fmt.Errorf("failed to initialize database (check permissions on %s): %w", dbPath, err)
	}

	if _, err = db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err = db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	hdb := &HistoryDB{db: db}
	if err = hdb.initSchema(); err != nil {
		return nil, err
	}
	return hdb, nil
}

func (h *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mode TEXT NOT NULL,
		root TEXT,
		marker TEXT NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 0,
		policy TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		total INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		not_found INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		would_remove INTEGER NOT NULL DEFAULT 0,
		aborted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		timestamp DATETIME NOT NULL,
		path TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_timestamp ON outcomes(timestamp);
	CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status);
	CREATE INDEX IF NOT EXISTS idx_outcomes_path ON outcomes(path);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := h.db.Exec(schema)
	return err
}

// StartRun inserts a run row and returns its id
func (h *HistoryDB) StartRun(r RunRecord) (int64, error) {
	res, err := h.db.Exec(`
	INSERT INTO runs (mode, root, marker, dry_run, policy, started_at, total)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.Mode, r.Root, r.Marker, r.DryRun, r.Policy, r.StartedAt, r.Total)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return res.LastInsertId()
}

// FinishRun stores the final counts of a sweep result on run id
func (h *HistoryDB) FinishRun(id int64, res *sweep.Result) error {
	finished := res.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	result, err := h.db.Exec(`
	UPDATE runs
	SET finished_at = ?, total = ?, removed = ?, not_found = ?, errors = ?, would_remove = ?, aborted = ?
	WHERE id = ?
	`, finished, res.Total, res.Removed, res.NotFound, res.Errors(), res.WouldRemove, res.Aborted, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", errNoRun, id)
	}
	return nil
}

// RecordOutcome inserts one visited path for run id
func (h *HistoryDB) RecordOutcome(runID int64, o sweep.Outcome) error {
	_, err := h.db.Exec(`
	INSERT INTO outcomes (run_id, timestamp, path, status, reason)
	VALUES (?, ?, ?, ?, ?)
	`, runID, time.Now(), o.Path, string(o.Status), o.Reason)
	return err
}

// RunRecorder binds a run id so the history satisfies sweep.Recorder
type RunRecorder struct {
	DB    *HistoryDB
	RunID int64
}

func (r RunRecorder) RecordOutcome(o sweep.Outcome) error {
	return r.DB.RecordOutcome(r.RunID, o)
}

// Close closes the database connection
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Vacuum compacts the database file
func (h *HistoryDB) Vacuum() error {
	_, err := h.db.Exec("VACUUM")
	return err
}
