package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the local SQLite store for state, the request cache, mirrored rows
// and contact submissions.
type DB struct {
	*sql.DB
}

// pragmas are applied to every connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(30000)",
	"foreign_keys(ON)",
}

// migrations are applied in order. PRAGMA user_version records how many ran,
// so entries must never be edited or reordered once released.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS persistent_state (
		key TEXT PRIMARY KEY,
		value TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS export_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		country TEXT NOT NULL,
		sector TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_export_rows_country ON export_rows(country);`,
	`CREATE TABLE IF NOT EXISTS contact_submissions (
		id TEXT PRIMARY KEY,
		first_name TEXT,
		last_name TEXT,
		email TEXT,
		reason TEXT,
		message TEXT,
		delivered BOOLEAN DEFAULT 0,
		delivery_error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`,
	`ALTER TABLE contact_submissions ADD COLUMN delivered_at DATETIME;`,
}

// Init opens (creating if needed) the database at path and migrates it.
func Init(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("db dir: %w", err)
	}

	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	conn, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; SQLite returns SQLITE_BUSY otherwise.
	conn.SetMaxOpenConns(1)

	d := &DB{conn}
	if err := d.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// SchemaVersion returns the number of applied migrations.
func (d *DB) SchemaVersion() (int, error) {
	var v int
	err := d.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

func (d *DB) migrate() error {
	current, err := d.SchemaVersion()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for i := current; i < len(migrations); i++ {
		tx, err := d.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Timestamp formats t like SQLite's CURRENT_TIMESTAMP so stored values
// compare correctly as text.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.DateTime)
}

// PruneCache deletes cache entries older than olderThan.
func (d *DB) PruneCache(olderThan time.Duration) (int64, error) {
	return d.deleteOlder("DELETE FROM cache WHERE created_at < ?", olderThan)
}

// PruneState deletes persistent_state rows under prefix older than olderThan.
func (d *DB) PruneState(prefix string, olderThan time.Duration) (int64, error) {
	return d.deleteOlder("DELETE FROM persistent_state WHERE created_at < ? AND key LIKE ?", olderThan, prefix+"%")
}

func (d *DB) deleteOlder(query string, olderThan time.Duration, extra ...any) (int64, error) {
	args := append([]any{Timestamp(time.Now().Add(-olderThan))}, extra...)
	res, err := d.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
