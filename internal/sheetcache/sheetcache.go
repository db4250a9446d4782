// Package sheetcache memoizes computed character sheets. Entries are keyed by
// character ID and revision, so any progression change produces a new key and
// stale sheets are never served.
package sheetcache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/lawnchairsociety/ascend/server/internal/stats"
)

type key struct {
	characterID int64
	revision    int64
}

// Cache is an LRU of computed sheets. A Cache built with size 0 stores nothing.
type Cache struct {
	entries *lru.Cache
	hits    atomic.Int64
	misses  atomic.Int64
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Len    int   `json:"len"`
}

// New creates a cache holding up to size sheets.
func New(size int) (*Cache, error) {
	c := &Cache{}
	if size <= 0 {
		return c, nil
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create sheet cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Get returns the cached sheet for a character revision.
func (c *Cache) Get(characterID, revision int64) (stats.Sheet, bool) {
	if c.entries != nil {
		if v, ok := c.entries.Get(key{characterID, revision}); ok {
			c.hits.Add(1)
			return v.(stats.Sheet), true
		}
	}
	c.misses.Add(1)
	return stats.Sheet{}, false
}

// Add stores a sheet for a character revision.
func (c *Cache) Add(characterID, revision int64, sheet stats.Sheet) {
	if c.entries == nil {
		return
	}
	c.entries.Add(key{characterID, revision}, sheet)
}

// GetOrCompute returns the cached sheet or computes and caches it.
// Errors from compute are returned and nothing is cached.
func (c *Cache) GetOrCompute(characterID, revision int64, compute func() (stats.Sheet, error)) (stats.Sheet, error) {
	if sheet, ok := c.Get(characterID, revision); ok {
		return sheet, nil
	}
	sheet, err := compute()
	if err != nil {
		return stats.Sheet{}, err
	}
	c.Add(characterID, revision, sheet)
	return sheet, nil
}

// Invalidate drops every cached revision of a character. It walks every key,
// so it is meant for deletes; progression changes bump the revision and
// need no invalidation.
func (c *Cache) Invalidate(characterID int64) {
	if c.entries == nil {
		return
	}
	for _, k := range c.entries.Keys() {
		if kk, ok := k.(key); ok && kk.characterID == characterID {
			c.entries.Remove(k)
		}
	}
}

// Stats returns hit/miss counters and the current size.
func (c *Cache) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if c.entries != nil {
		s.Len = c.entries.Len()
	}
	return s
}
