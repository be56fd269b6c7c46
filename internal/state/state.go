// Package state persists per-feature runtime information in SQLite.
package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Section names, one per feature.
const (
	SectionJournal      = "journal"
	SectionDaily        = "periodic.daily"
	SectionNotification = "notification"
	SectionReminder     = "reminder"
	SectionVault        = "vault_manipulation"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sections (
	name       TEXT PRIMARY KEY,
	data       TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS generated_notes (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Saver rewrites one section. Update runs fn with the stored data (nil when
// the section is absent) and stores what fn returns, in one transaction, so
// a writer never overwrites a change it has not seen.
type Saver interface {
	Update(ctx context.Context, name string, fn func(data []byte) ([]byte, error)) error
}

// Modify re-reads section name, applies fn to the decoded value and writes it
// back. seed stands in for an absent section. With a nil Saver fn runs on
// seed alone. On error the returned value is seed.
func Modify[T any](ctx context.Context, s Saver, name string, seed T, fn func(*T) error) (T, error) {
	if s == nil {
		cur := seed
		if err := fn(&cur); err != nil {
			return seed, err
		}
		return cur, nil
	}
	var cur T
	err := s.Update(ctx, name, func(data []byte) ([]byte, error) {
		cur = seed
		if data != nil {
			var fresh T
			if err := json.Unmarshal(data, &fresh); err != nil {
				return nil, fmt.Errorf("state: decode %s: %w", name, err)
			}
			cur = fresh
		}
		if err := fn(&cur); err != nil {
			return nil, err
		}
		return json.Marshal(cur)
	})
	if err != nil {
		return seed, err
	}
	return cur, nil
}

// DB wraps a sql.DB with state operations.
type DB struct {
	conn *sql.DB
}

var _ Saver = (*DB)(nil)

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("state: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Load decodes section name into dst. dst should already hold the
// defaults: fields absent from the stored data keep their value, and a
// missing section leaves dst untouched.
func (db *DB) Load(ctx context.Context, name string, dst any) error {
	var data string
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM sections WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("state: load %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return fmt.Errorf("state: decode %s: %w", name, err)
	}
	return nil
}

// Update implements Saver. Transactions start immediate, so concurrent
// writers from other processes queue on the busy timeout instead of racing.
func (db *DB) Update(ctx context.Context, name string, fn func(data []byte) ([]byte, error)) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("state: begin %s: %w", name, err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx, `SELECT data FROM sections WHERE name = ?`, name).Scan(&data)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("state: load %s: %w", name, err)
	}

	out, err := fn(data)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sections (name, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data       = excluded.data,
			updated_at = excluded.updated_at
	`, name, string(out), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("state: save %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: commit %s: %w", name, err)
	}
	return nil
}

// Fingerprint returns the checksum recorded for a generated note, or "" if none.
func (db *DB) Fingerprint(ctx context.Context, path string) (string, error) {
	var sum string
	err := db.conn.QueryRowContext(ctx, `SELECT checksum FROM generated_notes WHERE path = ?`, path).Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("state: fingerprint %s: %w", path, err)
	}
	return sum, nil
}

// SetFingerprint records the checksum of content almanac wrote to path.
func (db *DB) SetFingerprint(ctx context.Context, path, sum string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO generated_notes (path, checksum, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, path, sum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("state: set fingerprint %s: %w", path, err)
	}
	return nil
}

// ForgetFingerprint drops the record for path.
func (db *DB) ForgetFingerprint(ctx context.Context, path string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM generated_notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("state: forget fingerprint %s: %w", path, err)
	}
	return nil
}

// GeneratedPaths returns every path with a recorded fingerprint.
func (db *DB) GeneratedPaths(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path FROM generated_notes ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("state: generated paths: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("state: scan path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
