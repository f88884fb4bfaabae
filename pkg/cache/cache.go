package cache

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"exportmap/pkg/db"
)

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// SQLiteCache implements Cacher on the shared cache table. Entries older than
// maxAge read as misses; the StatePruneJob deletes them later.
type SQLiteCache struct {
	db     *db.DB
	maxAge time.Duration
}

// NewSQLiteCache creates a new cache. A zero maxAge never expires entries.
func NewSQLiteCache(d *db.DB, maxAge time.Duration) *SQLiteCache {
	return &SQLiteCache{db: d, maxAge: maxAge}
}

func (c *SQLiteCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	query := "SELECT value FROM cache WHERE key = ?"
	args := []any{key}
	if c.maxAge > 0 {
		query += " AND created_at >= ?"
		args = append(args, db.Timestamp(time.Now().Add(-c.maxAge)))
	}

	var val []byte
	err := c.db.QueryRowContext(ctx, query, args...).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) || err != nil {
		return nil, false
	}
	return val, true
}

func (c *SQLiteCache) SetCache(ctx context.Context, key string, val []byte) error {
	_, err := c.db.ExecContext(ctx, `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`,
		key, val, db.Timestamp(time.Now()))
	return err
}

// Memory is an in-process Cacher used when no database is configured.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) GetCache(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *Memory) SetCache(_ context.Context, key string, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), val...)
	return nil
}
