package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// defaultBusyTimeoutMs bounds lock waits when a reader such as
// rxoverlayctl overlaps the daemon's writes.
const defaultBusyTimeoutMs = 5000

// defaultRecentLimit caps RecentActions when the caller passes no limit.
const defaultRecentLimit = 50

// Store represents the SQLite action history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and runs
// pending migrations. busyTimeoutMs <= 0 selects the default.
func Open(path string, busyTimeoutMs int) (*Store, error) {
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = defaultBusyTimeoutMs
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying connection for schema inspection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// InsertAction inserts a new history row and returns its ID.
func (s *Store) InsertAction(a *ActionRecord) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO actions (at_ns, action, target_title, outcome, detail)
		VALUES (?, ?, ?, ?, ?)`,
		a.AtNs, a.Action, a.TargetTitle, a.Outcome, a.Detail,
	)
	if err != nil {
		return 0, fmt.Errorf("insert action: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read insert id: %w", err)
	}

	return id, nil
}

// GetAction retrieves a history row by ID.
func (s *Store) GetAction(id int64) (*ActionRecord, error) {
	var a ActionRecord

	err := s.db.QueryRow(`
		SELECT id, at_ns, action, target_title, outcome, detail
		FROM actions WHERE id = ?`, id,
	).Scan(&a.ID, &a.AtNs, &a.Action, &a.TargetTitle, &a.Outcome, &a.Detail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get action: %w", err)
	}

	return &a, nil
}

// RecentActions retrieves the most recent history rows, newest first.
// limit <= 0 selects the default.
func (s *Store) RecentActions(limit int) ([]ActionRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := s.db.Query(`
		SELECT id, at_ns, action, target_title, outcome, detail
		FROM actions
		ORDER BY at_ns DESC, id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent actions: %w", err)
	}
	defer rows.Close()

	return scanActions(rows)
}

// ActionRange retrieves history rows within a time range, oldest first.
func (s *Store) ActionRange(startNs, endNs int64) ([]ActionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, at_ns, action, target_title, outcome, detail
		FROM actions
		WHERE at_ns >= ? AND at_ns <= ?
		ORDER BY at_ns ASC, id ASC`, startNs, endNs,
	)
	if err != nil {
		return nil, fmt.Errorf("query action range: %w", err)
	}
	defer rows.Close()

	return scanActions(rows)
}

// CountByOutcome returns history row counts grouped by outcome.
func (s *Store) CountByOutcome() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT outcome, COUNT(*) FROM actions GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[outcome] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}

	return counts, nil
}

// PruneOlderThan deletes history rows recorded before the cutoff and
// returns the number removed.
func (s *Store) PruneOlderThan(cutoffNs int64) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM actions WHERE at_ns < ?`, cutoffNs)
	if err != nil {
		return 0, fmt.Errorf("prune actions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return n, nil
}

// Stats summarizes the history table.
func (s *Store) Stats() (*Stats, error) {
	var st Stats

	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(MIN(at_ns), 0), COALESCE(MAX(at_ns), 0)
		FROM actions`,
	).Scan(&st.Total, &st.OldestNs, &st.NewestNs)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}

	return &st, nil
}

// scanActions is a helper to scan history rows into a slice.
func scanActions(rows *sql.Rows) ([]ActionRecord, error) {
	var actions []ActionRecord

	for rows.Next() {
		var a ActionRecord
		if err := rows.Scan(&a.ID, &a.AtNs, &a.Action, &a.TargetTitle, &a.Outcome, &a.Detail); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		actions = append(actions, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}

	return actions, nil
}
