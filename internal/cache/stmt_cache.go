// Package cache provides caching utilities for database prepared statements.
package cache

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	// DefaultStmtCacheCapacity is the default maximum number of cached prepared statements.
	DefaultStmtCacheCapacity = 1000
)

// entry is a cached statement and the number of callers currently using it.
// A retired entry has left the cache; its statement is closed once refs
// drops to zero.
type entry struct {
	stmt    *sql.Stmt
	refs    int
	retired bool
}

// StmtCache stores prepared statements keyed by their SQL text with LRU
// eviction. Statements that leave the cache are closed after their last
// user releases them.
type StmtCache struct {
	capacity int

	mu  sync.Mutex
	lru *simplelru.LRU[string, *entry]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewStmtCache creates a new prepared statement cache with default capacity.
func NewStmtCache() *StmtCache {
	return NewStmtCacheWithCapacity(DefaultStmtCacheCapacity)
}

// NewStmtCacheWithCapacity creates a new prepared statement cache with specified capacity.
func NewStmtCacheWithCapacity(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultStmtCacheCapacity
	}
	sc := &StmtCache{capacity: capacity}
	// NewLRU only fails for a non-positive size.
	sc.lru, _ = simplelru.NewLRU[string, *entry](capacity, func(_ string, e *entry) {
		sc.retire(e)
	})
	return sc
}

// retire is called with mu held for every entry leaving the cache.
func (sc *StmtCache) retire(e *entry) {
	e.retired = true
	if e.refs == 0 {
		_ = e.stmt.Close()
	}
}

// release returns a func that drops one reference to e. Calling it more
// than once has no further effect.
func (sc *StmtCache) release(e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			sc.mu.Lock()
			defer sc.mu.Unlock()
			e.refs--
			if e.refs == 0 && e.retired {
				_ = e.stmt.Close()
			}
		})
	}
}

// Preparer prepares a statement; *sql.DB and *sql.Conn satisfy it.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Prepare returns the cached statement for query, preparing and caching it
// on a miss. The statement stays open until release is called, even if it
// is evicted in the meantime. Callers must call release exactly once when
// done with the statement.
func (sc *StmtCache) Prepare(ctx context.Context, p Preparer, query string) (stmt *sql.Stmt, release func(), err error) {
	sc.mu.Lock()
	if e, ok := sc.lru.Get(query); ok {
		e.refs++
		sc.mu.Unlock()
		sc.hits.Add(1)
		return e.stmt, sc.release(e), nil
	}
	sc.mu.Unlock()
	sc.misses.Add(1)

	stmt, err = p.PrepareContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if e, ok := sc.lru.Get(query); ok {
		// Another caller cached the same text while we were preparing.
		_ = stmt.Close()
		e.refs++
		return e.stmt, sc.release(e), nil
	}
	e := &entry{stmt: stmt, refs: 1}
	if sc.lru.Add(query, e) {
		sc.evictions.Add(1)
	}
	return stmt, sc.release(e), nil
}

// Contains reports whether query has a cached statement without touching
// recency or hit counters.
func (sc *StmtCache) Contains(query string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lru.Contains(query)
}

// Remove drops a single statement, closing it once unused. It reports
// whether the key was cached.
func (sc *StmtCache) Remove(key string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.lru.Remove(key)
}

// Clear drops all cached prepared statements, closing each once unused.
func (sc *StmtCache) Clear() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.lru.Purge()
}

// Stats holds cache performance metrics.
type Stats struct {
	Size      int     // Current number of cached statements.
	Capacity  int     // Maximum capacity.
	Hits      uint64  // Number of successful cache lookups.
	Misses    uint64  // Number of cache misses.
	Evictions uint64  // Number of statements evicted for capacity.
	HitRate   float64 // Cache hit rate (hits / total requests).
}

// Stats returns cache statistics.
func (sc *StmtCache) Stats() Stats {
	hits := sc.hits.Load()
	misses := sc.misses.Load()

	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	sc.mu.Lock()
	size := sc.lru.Len()
	sc.mu.Unlock()

	return Stats{
		Size:      size,
		Capacity:  sc.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: sc.evictions.Load(),
		HitRate:   hitRate,
	}
}
