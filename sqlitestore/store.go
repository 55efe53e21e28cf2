package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id             TEXT PRIMARY KEY,
	account_key    TEXT NOT NULL UNIQUE,
	company_id     TEXT NOT NULL DEFAULT '',
	registered     INTEGER NOT NULL DEFAULT 0,
	failed_logins  INTEGER NOT NULL DEFAULT 0,
	last_failed_at INTEGER NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id                   TEXT PRIMARY KEY,
	account_id           TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	email                TEXT NOT NULL UNIQUE,
	password_hash        TEXT NOT NULL,
	second_factor_secret TEXT NOT NULL DEFAULT '',
	oauth_provider       TEXT NOT NULL DEFAULT '',
	oauth_user_id        TEXT NOT NULL DEFAULT '',
	created_at           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_users_account ON users(account_id);
CREATE INDEX IF NOT EXISTS idx_users_oauth ON users(oauth_provider, oauth_user_id);
CREATE INDEX IF NOT EXISTS idx_accounts_company ON accounts(company_id);
`

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Options tunes the store.
type Options struct {
	// DecayWindow, when positive, ages the failed-login counter out: a
	// counter whose last failure is older than the window reads as zero.
	// Zero keeps the counter until a successful authentication resets it.
	DecayWindow time.Duration
}

// Store is a SQLite-backed credential store and account repository.
// Counter updates are single UPDATE statements so concurrent attempts
// serialize at the database.
type Store struct {
	db   *sql.DB
	q    querier
	opts Options
	now  func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for tests.
func Open(path string, opts Options) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is in-process; a single writer avoids SQLITE_BUSY
	// churn under concurrent logins.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, q: db, opts: opts, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
