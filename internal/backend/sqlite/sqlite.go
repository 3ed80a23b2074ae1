// Package sqlite is the embedded implementation of the data backend.
//
// It mirrors the hosted backend's tables and its storage bucket API inside a
// single SQLite file, so the service can run self-hosted or in development
// without network access, and tests get a real backend via ":memory:".
//
// DRIVER:
// modernc.org/sqlite is SQLite translated to Go, so building this package
// needs no C compiler. The blank import below runs the driver's init(),
// which registers it with database/sql under the name "sqlite".
//
// DATABASE/SQL IN BRIEF:
//   - sql.Open returns a pool manager, not a connection
//   - Exec runs statements without rows (CREATE, INSERT, DELETE)
//   - QueryContext returns *sql.Rows to iterate and Close
//   - "?" placeholders are filled by the driver; values are never spliced
//     into the SQL text
//
// Identifiers cannot be placeholders, so table and column names go through
// the whitelist in table.go before they reach a query string.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sakif/medhistory/internal/backend"
)

// compile-time check: *DB is a complete backend
var _ backend.Backend = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements backend.Client and
// backend.Storage.
type DB struct {
	conn          *sql.DB
	publicBaseURL string
}

// Option configures a DB.
type Option func(*DB)

// WithPublicBaseURL sets the prefix used by PublicURL, e.g.
// "http://localhost:8080". The server exposes stored objects under
// {base}/storage/{bucket}/{key}.
func WithPublicBaseURL(base string) Option {
	return func(db *DB) {
		db.publicBaseURL = strings.TrimRight(base, "/")
	}
}

// New opens (or creates) the database at dbPath and runs migrations.
//
//   - "data/medhistory.db" → file-based database
//   - ":memory:"           → in-memory database, gone on Close
func New(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database lives inside one connection; a second pooled
	// connection would see an empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open does not connect; Ping does, and surfaces a bad path now
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL: readers see a consistent snapshot while a write is in progress,
	// instead of waiting on the writer's lock
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
//
// Whoever calls New owns the DB and must Close it; the server does that
// during shutdown, tests through t.Cleanup.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the tables of the hosted schema that the client touches,
// plus the object table backing Storage. CREATE ... IF NOT EXISTS keeps it
// idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			id                TEXT PRIMARY KEY,
			email             TEXT,
			name              TEXT,
			age               INTEGER,
			gender            TEXT,
			blood_group       TEXT,
			emergency_contact TEXT,
			allergies         TEXT,
			photo_url         TEXT,
			created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS medical_records (
			id               TEXT PRIMARY KEY,
			user_id          TEXT NOT NULL,
			priority         TEXT,
			date             TEXT,
			diagnosis        TEXT,
			treatment        TEXT,
			doctor           TEXT,
			notes            TEXT,
			prescription_url TEXT,
			body_part        TEXT,
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_medical_records_user_date ON medical_records(user_id, date);
	`)
	if err != nil {
		return fmt.Errorf("creating medical_records table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS vitals (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			date        TEXT,
			bp          TEXT,
			sugar       INTEGER,
			temperature REAL,
			report_url  TEXT,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_vitals_user_date ON vitals(user_id, date);
	`)
	if err != nil {
		return fmt.Errorf("creating vitals table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS storage_objects (
			bucket        TEXT NOT NULL,
			key           TEXT NOT NULL,
			content_type  TEXT NOT NULL DEFAULT 'application/octet-stream',
			cache_control TEXT NOT NULL DEFAULT '',
			data          BLOB NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (bucket, key)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating storage_objects table: %w", err)
	}

	return nil
}
