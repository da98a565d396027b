// Package cache stores finished run results so repeated queries can skip the
// browser.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	_ "github.com/mattn/go-sqlite3"

	"earth911/internal/facility"
	"earth911/internal/logger"
)

// Backends.
const (
	BackendNone      = "none"
	BackendSqlite    = "sqlite"
	BackendMemcached = "memcached"
	// BackendAuto uses memcached in production and sqlite elsewhere.
	BackendAuto = "auto"
)

// Cache interface defines the methods for a cache
type Cache interface {
	// Get returns the cached records and when they were stored. A miss or an
	// expired entry returns nil records and a nil error.
	Get(key string) ([]facility.Record, time.Time, error)
	Set(key string, records []facility.Record, expiration time.Duration) error
	// Count returns the number of live entries.
	Count() (int, error)
	Clear() error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend           string
	Environment       string
	SqlitePath        string
	MemcachedEndpoint string
}

// Key derives the cache key of a query.
func Key(parts ...any) string {
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		fields = append(fields, fmt.Sprint(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\x00")))
	return fmt.Sprintf("%x", sum)
}

type entry struct {
	Records []facility.Record `json:"records"`
	Created int64             `json:"created"`
}

// SqliteCache is a cache implementation using SQLite
type SqliteCache struct {
	db *sql.DB
}

// NewSqliteCache opens (and if needed creates) the cache database at path.
func NewSqliteCache(path string) (*SqliteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value TEXT,
			expiration INTEGER,
			created INTEGER
		)
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SqliteCache{db: db}, nil
}

func (c *SqliteCache) Get(key string) ([]facility.Record, time.Time, error) {
	row := c.db.QueryRow("SELECT value, expiration, created FROM cache WHERE key = ?", key)

	var value string
	var expiration, created int64
	err := row.Scan(&value, &expiration, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	if time.Now().Unix() > expiration {
		if _, err := c.db.Exec("DELETE FROM cache WHERE key = ?", key); err != nil {
			return nil, time.Time{}, fmt.Errorf("delete expired entry: %w", err)
		}
		return nil, time.Time{}, nil
	}

	var records []facility.Record
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		return nil, time.Time{}, err
	}
	return records, time.Unix(created, 0), nil
}

func (c *SqliteCache) Set(key string, records []facility.Record, expiration time.Duration) error {
	value, err := json.Marshal(records)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO cache (key, value, expiration, created) VALUES (?, ?, ?, ?)",
		key, string(value), now.Add(expiration).Unix(), now.Unix(),
	)
	return err
}

func (c *SqliteCache) Count() (int, error) {
	var n int
	err := c.db.QueryRow("SELECT COUNT(*) FROM cache WHERE expiration >= ?", time.Now().Unix()).Scan(&n)
	return n, err
}

func (c *SqliteCache) Clear() error {
	_, err := c.db.Exec("DELETE FROM cache")
	return err
}

// Close closes the SQLite database connection
func (c *SqliteCache) Close() error {
	return c.db.Close()
}

// MemcachedCache is a cache implementation using Memcached
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache connects to endpoint and verifies it answers.
func NewMemcachedCache(endpoint string) (*MemcachedCache, error) {
	if endpoint == "" {
		endpoint = "localhost:11211"
	}

	client := memcache.New(endpoint)
	client.Timeout = 2 * time.Second
	if err := client.Ping(); err != nil {
		return nil, err
	}

	return &MemcachedCache{client: client}, nil
}

func (c *MemcachedCache) Get(key string) ([]facility.Record, time.Time, error) {
	item, err := c.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, time.Time{}, nil
	} else if err != nil {
		return nil, time.Time{}, err
	}

	var e entry
	if err := json.Unmarshal(item.Value, &e); err != nil {
		return nil, time.Time{}, err
	}
	return e.Records, time.Unix(e.Created, 0), nil
}

func (c *MemcachedCache) Set(key string, records []facility.Record, expiration time.Duration) error {
	val, err := json.Marshal(entry{Records: records, Created: time.Now().Unix()})
	if err != nil {
		return err
	}

	return c.client.Set(&memcache.Item{
		Key:        key,
		Value:      val,
		Expiration: int32(expiration.Seconds()),
	})
}

// Count is not supported by the memcached protocol.
func (c *MemcachedCache) Count() (int, error) {
	return 0, errors.ErrUnsupported
}

// Clear flushes the whole memcached server, including keys written by other
// clients.
func (c *MemcachedCache) Clear() error {
	return c.client.DeleteAll()
}

// Close is a no-op for the memcache client but is here to satisfy the interface
func (c *MemcachedCache) Close() error {
	return nil
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(string) ([]facility.Record, time.Time, error) { return nil, time.Time{}, nil }

func (Noop) Set(string, []facility.Record, time.Duration) error { return nil }

func (Noop) Count() (int, error) { return 0, nil }

func (Noop) Clear() error { return nil }

func (Noop) Close() error { return nil }

// NewCache returns the backend named by cfg.
func NewCache(cfg Config, log logger.Interface) (Cache, error) {
	if log == nil {
		log = logger.NewNoOp()
	}
	backend := strings.ToLower(cfg.Backend)
	if backend == BackendAuto {
		backend = BackendSqlite
		if cfg.Environment == "production" {
			backend = BackendMemcached
		}
	}

	switch backend {
	case "", BackendNone:
		return Noop{}, nil
	case BackendSqlite:
		log.Info("Using SQLite cache", "path", cfg.SqlitePath)
		c, err := NewSqliteCache(cfg.SqlitePath)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendMemcached:
		log.Info("Using Memcached cache", "endpoint", cfg.MemcachedEndpoint)
		c, err := NewMemcachedCache(cfg.MemcachedEndpoint)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// ParseExpiry reads a seconds count, falling back to def when s is empty or
// not a positive integer.
func ParseExpiry(s string, def time.Duration) time.Duration {
	secs, err := strconv.Atoi(s)
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}
