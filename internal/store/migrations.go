// Package store provides SQLite-based action history storage for rxoverlay.
package store

import (
	"database/sql"
	"fmt"
	"time"
)

// migration is one schema step. Statements run one by one inside a
// single transaction; down undoes up for RollbackMigration.
type migration struct {
	version int
	label   string
	up      []string
	down    []string
}

// schemaHistory lists every schema step, oldest first. Append only;
// released versions are carved in stone.
var schemaHistory = []migration{
	{
		version: 1,
		label:   "actions table",
		up: []string{
			`CREATE TABLE IF NOT EXISTS actions (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				at_ns         INTEGER NOT NULL,
				action        TEXT NOT NULL,
				target_title  TEXT NOT NULL DEFAULT '',
				outcome       TEXT NOT NULL,
				detail        TEXT NOT NULL DEFAULT ''
			)`,
			`CREATE INDEX IF NOT EXISTS idx_actions_at ON actions(at_ns)`,
		},
		down: []string{
			`DROP INDEX IF EXISTS idx_actions_at`,
			`DROP TABLE IF EXISTS actions`,
		},
	},
	{
		version: 2,
		label:   "outcome index for failure queries",
		up: []string{
			`CREATE INDEX IF NOT EXISTS idx_actions_outcome ON actions(outcome, at_ns)`,
		},
		down: []string{
			`DROP INDEX IF EXISTS idx_actions_outcome`,
		},
	},
}

// appliedVersion reads the highest recorded schema version, 0 when the
// history table is empty.
func appliedVersion(db *sql.DB) (int, error) {
	var v int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_history`)
	if err := row.Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// inTx runs fn inside a transaction, rolling back on error.
func inTx(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// MigrateDB brings the database up to the newest schema version.
func MigrateDB(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_history (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL,
		label      TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return fmt.Errorf("create schema history: %w", err)
	}

	have, err := appliedVersion(db)
	if err != nil {
		return err
	}

	for _, m := range schemaHistory {
		if m.version <= have {
			continue
		}
		err := inTx(db, func(tx *sql.Tx) error {
			for _, stmt := range m.up {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(
				`INSERT INTO schema_history (version, applied_at, label) VALUES (?, ?, ?)`,
				m.version, time.Now().UTC().Format(time.RFC3339), m.label,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.label, err)
		}
	}
	return nil
}

// RollbackMigration undoes the most recent schema step.
func RollbackMigration(db *sql.DB) error {
	have, err := appliedVersion(db)
	if err != nil {
		return err
	}
	if have == 0 {
		return fmt.Errorf("nothing to roll back")
	}

	var target *migration
	for i := range schemaHistory {
		if schemaHistory[i].version == have {
			target = &schemaHistory[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("schema version %d has no recorded migration", have)
	}

	err = inTx(db, func(tx *sql.Tx) error {
		for _, stmt := range target.down {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		_, err := tx.Exec(`DELETE FROM schema_history WHERE version = ?`, have)
		return err
	})
	if err != nil {
		return fmt.Errorf("roll back v%d: %w", have, err)
	}
	return nil
}

// SchemaVersion reports the applied schema version.
func SchemaVersion(db *sql.DB) (int, error) {
	return appliedVersion(db)
}

// ValidateSchema confirms the objects the queries depend on exist.
func ValidateSchema(db *sql.DB) error {
	required := map[string]string{
		"actions":        "table",
		"schema_history": "table",
		"idx_actions_at": "index",
	}

	for name, kind := range required {
		var n int
		row := db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?`,
			kind, name,
		)
		if err := row.Scan(&n); err != nil {
			return fmt.Errorf("check %s %s: %w", kind, name, err)
		}
		if n == 0 {
			return fmt.Errorf("missing %s: %s", kind, name)
		}
	}
	return nil
}
