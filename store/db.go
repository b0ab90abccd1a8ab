// Package store persists extraction results, batch sessions,
// notifications, and the duplicate-detection index. It runs against
// SQLite for single-box deployments and PostgreSQL for shared ones.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	// Drivers.
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// sqliteOpenMu guards sql.Open of the sqlite3 driver, which has an
// internal data race during initialization.
var sqliteOpenMu sync.Mutex

// Store wraps the database with the small dialect shim needed to run
// the same statements on sqlite and postgres.
type Store struct {
	db       *sql.DB
	postgres bool
}

// Open connects to the database named by dsn. A postgres:// or
// postgresql:// DSN selects the pgx driver; anything else is treated as
// a sqlite path.
func Open(ctx context.Context, dsn string) (*Store, error) {
	var s = &Store{}
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		s.postgres = true
		if s.db, err = sql.Open("pgx", dsn); err != nil {
			return nil, fmt.Errorf("opening postgres database: %w", err)
		}
	} else {
		sqliteOpenMu.Lock()
		s.db, err = sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
		sqliteOpenMu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database %s: %w", dsn, err)
		}
		// sqlite serializes writers; a larger pool just produces busy
		// errors.
		s.db.SetMaxOpenConns(1)
	}

	if err = s.db.PingContext(ctx); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if err = s.migrate(ctx); err != nil {
		s.db.Close()
		return nil, err
	}

	log.WithField("postgres", s.postgres).Info("store opened")
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.db.Close() }

// sql rewrites ? placeholders to the $N form when running on postgres.
func (s *Store) sql(stmt string) string {
	if !s.postgres {
		return stmt
	}
	var b strings.Builder
	var n int
	for _, r := range stmt {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Store) migrate(ctx context.Context) error {
	var stmts = []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id               TEXT PRIMARY KEY,
			source_path      TEXT NOT NULL,
			content_hash     TEXT,
			batch_id         TEXT,
			status           TEXT NOT NULL,
			error_category   TEXT,
			registration_fee TEXT,
			fee_source       TEXT,
			processed_at     TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS properties (
			document_id        TEXT PRIMARY KEY,
			schedule_b_area    REAL,
			schedule_c_name    TEXT,
			schedule_c_address TEXT,
			schedule_c_area    REAL,
			pincode            TEXT,
			state              TEXT,
			sale_consideration TEXT,
			stamp_duty_fee     TEXT,
			registration_fee   TEXT,
			guidance_value     TEXT,
			cash_payment_mode  TEXT,
			transaction_date   TEXT,
			registration_office TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS parties (
			document_id     TEXT NOT NULL,
			role            TEXT NOT NULL,
			ordinal         INTEGER NOT NULL,
			name            TEXT,
			gender          TEXT,
			father_name     TEXT,
			date_of_birth   TEXT,
			national_id     TEXT,
			tax_id          TEXT,
			address         TEXT,
			pincode         TEXT,
			state           TEXT,
			phone           TEXT,
			secondary_phone TEXT,
			email           TEXT,
			share           TEXT,
			PRIMARY KEY (document_id, role, ordinal)
		)`,
		`CREATE TABLE IF NOT EXISTS batch_sessions (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			status     TEXT NOT NULL,
			total      INTEGER NOT NULL DEFAULT 0,
			processed  INTEGER NOT NULL DEFAULT 0,
			successful INTEGER NOT NULL DEFAULT 0,
			failed     INTEGER NOT NULL DEFAULT 0,
			stopped    INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id          TEXT PRIMARY KEY,
			batch_id    TEXT,
			document_id TEXT,
			severity    TEXT NOT NULL,
			message     TEXT NOT NULL,
			created_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS content_hashes (
			hash        TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			first_seen  TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}
