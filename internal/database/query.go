package database

import (
	"database/sql"
	"time"
)

const outcomeColumns = `id, run_id, timestamp, path, status, reason`

// GetRecentOutcomes returns the N most recent outcomes
func (h *HistoryDB) GetRecentOutcomes(limit int) ([]OutcomeRecord, error) {
	return h.queryOutcomes(`
	SELECT `+outcomeColumns+`
	FROM outcomes
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
}

// GetOutcomesByStatus returns outcomes with the given status
func (h *HistoryDB) GetOutcomesByStatus(status string) ([]OutcomeRecord, error) {
	return h.queryOutcomes(`
	SELECT `+outcomeColumns+`
	FROM outcomes
	WHERE status = ?
	ORDER BY timestamp DESC, id DESC
	`, status)
}

// GetOutcomesByPath returns outcomes whose path matches a SQL LIKE pattern
func (h *HistoryDB) GetOutcomesByPath(pathPattern string) ([]OutcomeRecord, error) {
	return h.queryOutcomes(`
	SELECT `+outcomeColumns+`
	FROM outcomes
	WHERE path LIKE ?
	ORDER BY timestamp DESC, id DESC
	`, pathPattern)
}

// GetOutcomesForRun returns the outcomes of one run in visit order
func (h *HistoryDB) GetOutcomesForRun(runID int64) ([]OutcomeRecord, error) {
	return h.queryOutcomes(`
	SELECT `+outcomeColumns+`
	FROM outcomes
	WHERE run_id = ?
	ORDER BY id ASC
	`, runID)
}

// GetRecentRuns returns the N most recent runs
func (h *HistoryDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	rows, err := h.db.Query(`
	SELECT id, mode, root, marker, dry_run, policy, started_at, finished_at,
	       total, removed, not_found, errors, would_remove, aborted
	FROM runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var root sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(
			&r.ID, &r.Mode, &root, &r.Marker, &r.DryRun, &r.Policy, &r.StartedAt, &finished,
			&r.Total, &r.Removed, &r.NotFound, &r.Errors, &r.WouldRemove, &r.Aborted,
		); err != nil {
			return nil, err
		}
		r.Root = root.String
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SweepStats holds aggregated statistics
type SweepStats struct {
	Runs      int            `json:"runs"`
	Removed   int            `json:"removed"`
	NotFound  int            `json:"not_found"`
	Errors    int            `json:"errors"`
	ByStatus  map[string]int `json:"by_status"`
	ByMode    map[string]int `json:"by_mode"`
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
}

// GetSweepStats returns statistics for the last days
func (h *HistoryDB) GetSweepStats(days int) (*SweepStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &SweepStats{
		StartDate: since,
		EndDate:   now,
		ByStatus:  make(map[string]int),
		ByMode:    make(map[string]int),
	}

	err := h.db.QueryRow(`
		SELECT COUNT(*)
		FROM runs
		WHERE started_at >= ?
	`, since).Scan(&stats.Runs)
	if err != nil {
		return nil, err
	}

	err = h.db.QueryRow(`
		SELECT
			COUNT(CASE WHEN status = 'removed' THEN 1 END),
			COUNT(CASE WHEN status = 'not_found' THEN 1 END),
			COUNT(CASE WHEN status IN ('failed', 'blocked') THEN 1 END)
		FROM outcomes
		WHERE timestamp >= ?
	`, since).Scan(&stats.Removed, &stats.NotFound, &stats.Errors)
	if err != nil {
		return nil, err
	}

	if err := h.countInto(stats.ByStatus, `
		SELECT status, COUNT(*)
		FROM outcomes
		WHERE timestamp >= ?
		GROUP BY status
	`, since); err != nil {
		return nil, err
	}

	if err := h.countInto(stats.ByMode, `
		SELECT mode, COUNT(*)
		FROM runs
		WHERE started_at >= ?
		GROUP BY mode
	`, since); err != nil {
		return nil, err
	}

	return stats, nil
}

// DeleteOldRecords removes runs (and their outcomes) older than the given days
func (h *HistoryDB) DeleteOldRecords(olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	tx, err := h.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Outcomes first so no orphaned rows remain
	if _, err := tx.Exec(`
		DELETE FROM outcomes
		WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)
	`, cutoff); err != nil {
		return 0, err
	}

	result, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (h *HistoryDB) countInto(dst map[string]int, query string, args ...interface{}) error {
	rows, err := h.db.Query(query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dst[key] = count
	}
	return rows.Err()
}

func (h *HistoryDB) queryOutcomes(query string, args ...interface{}) ([]OutcomeRecord, error) {
	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []OutcomeRecord
	for rows.Next() {
		var r OutcomeRecord
		var reason sql.NullString

		if err := rows.Scan(&r.ID, &r.RunID, &r.Timestamp, &r.Path, &r.Status, &reason); err != nil {
			return nil, err
		}
		r.Reason = reason.String

		records = append(records, r)
	}

	return records, rows.Err()
}
