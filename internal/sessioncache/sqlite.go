package sessioncache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
)

// SQLite is a cache backend persisted next to the users table, for
// single-node deployments that want sessions to survive restarts
// without running redis.
type SQLite struct {
	store      *sqlite3store.SQLite3Store
	defaultTTL time.Duration
}

// NewSQLite creates a sqlite backend on the given connection. The store
// runs its own periodic cleanup of expired rows.
func NewSQLite(sqlDB *sql.DB, defaultTTL time.Duration) (*SQLite, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	return &SQLite{
		store:      sqlite3store.NewWithCleanupInterval(sqlDB, time.Hour),
		defaultTTL: defaultTTL,
	}, nil
}

func (s *SQLite) Get(_ context.Context, sid string) ([]byte, error) {
	data, exists, err := s.store.Find(sid)
	if err != nil {
		return nil, fmt.Errorf("sqlite find: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *SQLite) Set(_ context.Context, sid string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.store.Commit(sid, data, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	return nil
}

func (s *SQLite) Drop(_ context.Context, sid string) error {
	if err := s.store.Delete(sid); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// StopCleanup terminates the store's background cleanup goroutine.
func (s *SQLite) StopCleanup() {
	s.store.StopCleanup()
}
