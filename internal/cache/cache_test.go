package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"earth911/internal/facility"
	"earth911/internal/logger"
)

var sample = []facility.Record{
	facility.New("EcoDrop Center", "2024-03-01", "123 Main St, New York, NY 10001", "Electronics, Batteries"),
}

func newSqlite(t *testing.T) *SqliteCache {
	t.Helper()
	c, err := NewSqliteCache(filepath.Join(t.TempDir(), "earth911.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSqliteCache(t *testing.T) {
	c := newSqlite(t)
	before := time.Now().Add(-time.Second)

	require.NoError(t, c.Set("query", sample, time.Hour))

	got, created, err := c.Get("query")
	require.NoError(t, err)
	assert.Equal(t, sample, got)
	assert.True(t, created.After(before))

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSqliteCacheMiss(t *testing.T) {
	c := newSqlite(t)

	got, created, err := c.Get("absent")

	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, created.IsZero())
}

func TestSqliteCacheExpiry(t *testing.T) {
	c := newSqlite(t)
	require.NoError(t, c.Set("stale", sample, -time.Hour))

	got, _, err := c.Get("stale")
	require.NoError(t, err)
	assert.Nil(t, got)

	n, err := c.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSqliteCacheClear(t *testing.T) {
	c := newSqlite(t)
	require.NoError(t, c.Set("a", sample, time.Hour))
	require.NoError(t, c.Set("b", sample, time.Hour))

	require.NoError(t, c.Clear())

	n, err := c.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewCache(t *testing.T) {
	log := logger.NewNoOp()
	dbPath := filepath.Join(t.TempDir(), "earth911.db")

	c, err := NewCache(Config{Backend: BackendNone}, log)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)

	c, err = NewCache(Config{Backend: BackendAuto, Environment: "development", SqlitePath: dbPath}, log)
	require.NoError(t, err)
	assert.IsType(t, &SqliteCache{}, c)
	require.NoError(t, c.Close())

	for _, env := range []string{"staging", "test", ""} {
		c, err = NewCache(Config{Backend: BackendAuto, Environment: env, SqlitePath: dbPath, MemcachedEndpoint: "127.0.0.1:1"}, log)
		require.NoError(t, err, env)
		assert.IsType(t, &SqliteCache{}, c, env)
		require.NoError(t, c.Close())
	}

	// Nothing listens here, so the ping must fail.
	c, err = NewCache(Config{Backend: BackendMemcached, MemcachedEndpoint: "127.0.0.1:1"}, log)
	require.Error(t, err)
	assert.True(t, c == nil, "failed constructor must return a nil Cache")

	c, err = NewCache(Config{Backend: BackendAuto, Environment: "production", MemcachedEndpoint: "127.0.0.1:1"}, log)
	require.Error(t, err)
	assert.True(t, c == nil, "failed constructor must return a nil Cache")

	c, err = NewCache(Config{Backend: BackendSqlite, SqlitePath: filepath.Join(t.TempDir(), "missing", "earth911.db")}, log)
	require.Error(t, err)
	assert.True(t, c == nil, "failed constructor must return a nil Cache")

	_, err = NewCache(Config{Backend: "redis"}, log)
	require.Error(t, err)
}

func TestKey(t *testing.T) {
	a := Key("Electronics", "10001", 100, 3)

	assert.Len(t, a, 64)
	assert.Equal(t, a, Key("Electronics", "10001", 100, 3))
	assert.NotEqual(t, a, Key("Electronics", "10001", 100, 4))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
}

func TestParseExpiry(t *testing.T) {
	def := 72 * time.Hour
	assert.Equal(t, def, ParseExpiry("", def))
	assert.Equal(t, def, ParseExpiry("-5", def))
	assert.Equal(t, def, ParseExpiry("soon", def))
	assert.Equal(t, 90*time.Second, ParseExpiry("90", def))
}
