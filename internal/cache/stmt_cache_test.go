package cache

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// setupTestDB opens an in-memory SQLite database.
func setupTestDB(t testing.TB) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// prepareAndRelease caches query and immediately gives the statement back.
func prepareAndRelease(t testing.TB, cache *StmtCache, db *sql.DB, query string) *sql.Stmt {
	t.Helper()
	stmt, release, err := cache.Prepare(context.Background(), db, query)
	require.NoError(t, err)
	release()
	return stmt
}

func TestNewStmtCacheWithCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		expected int
	}{
		{"positive capacity", 100, 100},
		{"zero capacity defaults to default", 0, DefaultStmtCacheCapacity},
		{"negative capacity defaults to default", -10, DefaultStmtCacheCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewStmtCacheWithCapacity(tt.capacity)
			require.NotNil(t, cache)
			assert.Equal(t, tt.expected, cache.Stats().Capacity)
		})
	}
	assert.Equal(t, DefaultStmtCacheCapacity, NewStmtCache().Stats().Capacity)
}

func TestStmtCache_Prepare(t *testing.T) {
	db := setupTestDB(t)
	cache := NewStmtCache()
	ctx := context.Background()

	first, release1, err := cache.Prepare(ctx, db, "SELECT 1")
	require.NoError(t, err)
	second, release2, err := cache.Prepare(ctx, db, "SELECT 1")
	require.NoError(t, err)
	assert.Same(t, first, second)

	var n int
	require.NoError(t, second.QueryRowContext(ctx).Scan(&n))
	assert.Equal(t, 1, n)
	release1()
	release2()

	_, release, err := cache.Prepare(ctx, db, "SELEC broken")
	assert.Error(t, err)
	assert.Nil(t, release)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.True(t, cache.Contains("SELECT 1"))
	assert.False(t, cache.Contains("SELEC broken"))
}

func TestStmtCache_LRUOrdering(t *testing.T) {
	db := setupTestDB(t)
	cache := NewStmtCacheWithCapacity(3)

	prepareAndRelease(t, cache, db, "SELECT 1")
	prepareAndRelease(t, cache, db, "SELECT 2")
	prepareAndRelease(t, cache, db, "SELECT 3")

	// SELECT 1 becomes most recently used, so SELECT 2 is evicted next.
	prepareAndRelease(t, cache, db, "SELECT 1")
	prepareAndRelease(t, cache, db, "SELECT 4")

	assert.False(t, cache.Contains("SELECT 2"))
	assert.True(t, cache.Contains("SELECT 1"))
	assert.True(t, cache.Contains("SELECT 3"))
	assert.True(t, cache.Contains("SELECT 4"))

	stats := cache.Stats()
	assert.Equal(t, 3, stats.Size)
	assert.Equal(t, uint64(1), stats.Evictions)
}

func TestStmtCache_ClosesEvictedWhenUnused(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare("SELECT 1").WillBeClosed()
	mock.ExpectPrepare("SELECT 2")

	cache := NewStmtCacheWithCapacity(1)
	prepareAndRelease(t, cache, db, "SELECT 1")
	prepareAndRelease(t, cache, db, "SELECT 2")

	assert.Equal(t, uint64(1), cache.Stats().Evictions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStmtCache_EvictedStatementStaysOpenUntilReleased(t *testing.T) {
	db := setupTestDB(t)
	cache := NewStmtCacheWithCapacity(1)
	ctx := context.Background()

	held, release, err := cache.Prepare(ctx, db, "SELECT 1")
	require.NoError(t, err)

	// Pushes SELECT 1 out while it is still held.
	prepareAndRelease(t, cache, db, "SELECT 2")
	require.False(t, cache.Contains("SELECT 1"))

	var n int
	require.NoError(t, held.QueryRowContext(ctx).Scan(&n))
	assert.Equal(t, 1, n)

	release()
	release()
	assert.Error(t, held.QueryRowContext(ctx).Scan(&n))
}

// nestedPreparer caches the same text through the cache from inside its own
// PrepareContext, so the outer Prepare always finds it already cached.
type nestedPreparer struct {
	db      *sql.DB
	cache   *StmtCache
	inner   *sql.Stmt
	release func()
}

func (p *nestedPreparer) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	var err error
	p.inner, p.release, err = p.cache.Prepare(ctx, p.db, query)
	if err != nil {
		return nil, err
	}
	return p.db.PrepareContext(ctx, query)
}

func TestStmtCache_LostRaceClosesOwnStatement(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	// The first prepare wins and stays cached; the second is discarded.
	mock.ExpectPrepare("SELECT 1")
	mock.ExpectPrepare("SELECT 1").WillBeClosed()

	cache := NewStmtCache()
	p := &nestedPreparer{db: db, cache: cache}

	stmt, release, err := cache.Prepare(context.Background(), p, "SELECT 1")
	require.NoError(t, err)
	assert.Same(t, p.inner, stmt)

	release()
	p.release()

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.Equal(t, uint64(0), stats.Evictions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStmtCache_RemoveAndClear(t *testing.T) {
	db := setupTestDB(t)
	cache := NewStmtCache()

	for i := 1; i <= 5; i++ {
		prepareAndRelease(t, cache, db, fmt.Sprintf("SELECT %d", i))
	}
	assert.Equal(t, 5, cache.Stats().Size)

	assert.True(t, cache.Remove("SELECT 1"))
	assert.False(t, cache.Remove("SELECT 1"))
	assert.Equal(t, 4, cache.Stats().Size)

	cache.Clear()
	stats := cache.Stats()
	assert.Equal(t, 0, stats.Size)
	// Removal and purge are not capacity evictions.
	assert.Equal(t, uint64(0), stats.Evictions)

	for i := 1; i <= 5; i++ {
		assert.False(t, cache.Contains(fmt.Sprintf("SELECT %d", i)))
	}
}

func TestStmtCache_ClearKeepsHeldStatementOpen(t *testing.T) {
	db := setupTestDB(t)
	cache := NewStmtCache()
	ctx := context.Background()

	held, release, err := cache.Prepare(ctx, db, "SELECT 7")
	require.NoError(t, err)
	cache.Clear()

	var n int
	require.NoError(t, held.QueryRowContext(ctx).Scan(&n))
	assert.Equal(t, 7, n)

	release()
	assert.Error(t, held.QueryRowContext(ctx).Scan(&n))
}

func TestStmtCache_HitRate(t *testing.T) {
	db := setupTestDB(t)
	cache := NewStmtCacheWithCapacity(2)

	assert.Equal(t, 0.0, cache.Stats().HitRate)

	prepareAndRelease(t, cache, db, "SELECT 1")
	prepareAndRelease(t, cache, db, "SELECT 1")

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestStmtCache_ConcurrentEviction(t *testing.T) {
	db := setupTestDB(t)
	cache := NewStmtCacheWithCapacity(10)

	const goroutines = 5
	const operations = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < operations; i++ {
				query := fmt.Sprintf("SELECT %d", id*operations+i)
				_, release, err := cache.Prepare(context.Background(), db, query)
				if assert.NoError(t, err) {
					release()
				}
			}
		}(g)
	}

	wg.Wait()

	stats := cache.Stats()
	assert.LessOrEqual(t, stats.Size, 10)
	assert.Greater(t, stats.Evictions, uint64(0))
}

func TestStmtCache_ConcurrentUseUnderEviction(t *testing.T) {
	db := setupTestDB(t)
	// Two texts competing for one slot evict each other constantly.
	cache := NewStmtCacheWithCapacity(1)

	const goroutines = 8
	const operations = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			ctx := context.Background()
			for i := 0; i < operations; i++ {
				want := (id + i) % 2
				stmt, release, err := cache.Prepare(ctx, db, fmt.Sprintf("SELECT %d", want))
				if !assert.NoError(t, err) {
					return
				}
				var got int
				err = stmt.QueryRowContext(ctx).Scan(&got)
				release()
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, want, got)
			}
		}(g)
	}

	wg.Wait()

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(goroutines*operations), stats.Hits+stats.Misses)
}
