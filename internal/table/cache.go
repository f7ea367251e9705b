package table

import (
	"os"
	"sync"
	"time"

	"github.com/hpungsan/souq/internal/errors"
)

type cacheKey struct {
	size    int64
	modTime time.Time
}

type cacheEntry struct {
	key   cacheKey
	table *DailyTable
}

// Cache holds parsed daily tables. File entries are keyed by path and reused
// only while the file's size and modification time are unchanged. Recorded
// entries are keyed by the caller and never go stale.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	recorded map[string]*DailyTable
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries:  make(map[string]cacheEntry),
		recorded: make(map[string]*DailyTable),
	}
}

// Get returns the daily table at path, reading it when the cached copy is
// missing or stale. Callers must not modify the returned table.
func (c *Cache) Get(path string) (*DailyTable, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	key := cacheKey{size: info.Size(), modTime: info.ModTime()}

	c.mu.Lock()
	if e, ok := c.entries[path]; ok && e.key == key {
		c.mu.Unlock()
		return e.table, nil
	}
	c.mu.Unlock()

	f, err := OpenRead(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadDaily(f, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{key: key, table: t}
	c.mu.Unlock()
	return t, nil
}

// Recorded returns the table stored under key, calling load on a miss. Use it
// for tables that never change once written, such as a recorded run's copy.
func (c *Cache) Recorded(key string, load func() (*DailyTable, error)) (*DailyTable, error) {
	c.mu.Lock()
	t, ok := c.recorded[key]
	c.mu.Unlock()
	if ok {
		return t, nil
	}

	t, err := load()
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.recorded[key] = t
	c.mu.Unlock()
	return t, nil
}

// Invalidate drops the cached table for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries) + len(c.recorded)
}
