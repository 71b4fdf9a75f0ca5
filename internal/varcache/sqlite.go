package varcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/censusdis/internal/varsource"
)

// SQLiteStore persists variable metadata in a SQLite database using
// modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create directory")
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS variables (
	dataset    TEXT    NOT NULL,
	year       INTEGER NOT NULL,
	name       TEXT    NOT NULL,
	body       TEXT    NOT NULL,
	fetched_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (dataset, year, name)
);

CREATE INDEX IF NOT EXISTS idx_variables_expires_at ON variables(expires_at);
`

// Migrate creates the cache schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the cached variable, or nil when it is missing or expired.
func (s *SQLiteStore) Get(ctx context.Context, dataset string, year int, name string) (*varsource.Variable, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT body FROM variables WHERE dataset = ? AND year = ? AND name = ? AND expires_at > ?`,
		dataset, year, name, s.now().Unix(),
	)

	var body string
	err := row.Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get variable")
	}

	var v varsource.Variable
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal variable")
	}
	return &v, nil
}

// Put stores a variable, replacing any earlier entry.
func (s *SQLiteStore) Put(ctx context.Context, dataset string, year int, v *varsource.Variable, ttl time.Duration) error {
	body, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal variable")
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO variables (dataset, year, name, body, fetched_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		dataset, year, v.Name, string(body), now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrap(err, "sqlite: put variable")
}

// Count returns the number of unexpired entries.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM variables WHERE expires_at > ?`, s.now().Unix(),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count variables")
}

// Clear removes every entry and returns how many were removed.
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM variables`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear variables")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// DeleteExpired removes expired entries and returns how many were removed.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM variables WHERE expires_at <= ?`, s.now().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired variables")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
