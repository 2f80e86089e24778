package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/framegrab/framegrab/internal/ai"
	"github.com/framegrab/framegrab/internal/database"
)

func setupCache(t *testing.T) (*Cache, *database.DB) {
	t.Helper()

	db, err := database.NewDB(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(db, zap.NewNop()), db
}

func sampleRecord() *ai.AnalysisRecord {
	return &ai.AnalysisRecord{
		Summary:          "A cooking tutorial in a home kitchen.",
		Objects:          `["pan","knife","cutting board"]`,
		People:           `["chef in apron"]`,
		Actions:          `["chopping","stirring"]`,
		TextContent:      `["Step 1"]`,
		AudioContext:     `{"likely_sounds":["sizzling"],"likely_music":""}`,
		TechnicalAspects: `{"camera_work":"static","lighting":"warm","color_palette":"yellow"}`,
		Metadata:         `{"setting":"kitchen","era":"modern","genre":"tutorial"}`,
	}
}

func TestCachePutGetRoundTrip(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	record := sampleRecord()
	require.NoError(t, c.Put(ctx, "key-1", "clip.mp4", 1024, 125, record))

	got, found, err := c.Get(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, found)

	wantJSON, err := json.Marshal(record)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, wantJSON, gotJSON)
}

func TestCacheGetAbsent(t *testing.T) {
	c, _ := setupCache(t)

	record, found, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, record)
}

func TestCacheExpiryBoundary(t *testing.T) {
	c, db := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key-exp", "clip.mp4", 1024, 60, sampleRecord()))

	// Push the entry one second past its expiry.
	_, err := db.Conn().Exec(
		`UPDATE analysis_cache SET expires_at = ? WHERE video_key = ?`,
		time.Now().UTC().Add(-time.Second), "key-exp")
	require.NoError(t, err)

	_, found, err := c.Get(ctx, "key-exp")
	require.NoError(t, err)
	assert.False(t, found)

	// The expired row is removed as a side effect of the read.
	var count int
	require.NoError(t, db.Conn().QueryRow(
		`SELECT COUNT(*) FROM analysis_cache WHERE video_key = ?`, "key-exp").Scan(&count))
	assert.Zero(t, count)
}

func TestCacheOverwriteLastWriterWins(t *testing.T) {
	c, db := setupCache(t)
	ctx := context.Background()

	first := sampleRecord()
	second := sampleRecord()
	second.Summary = "Second write wins."

	require.NoError(t, c.Put(ctx, "key-ow", "clip.mp4", 1024, 60, first))
	require.NoError(t, c.Put(ctx, "key-ow", "clip.mp4", 1024, 60, second))

	var count int
	require.NoError(t, db.Conn().QueryRow(
		`SELECT COUNT(*) FROM analysis_cache WHERE video_key = ?`, "key-ow").Scan(&count))
	assert.Equal(t, 1, count)

	got, found, err := c.Get(ctx, "key-ow")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Second write wins.", got.Summary)
}

func TestCacheCorruptPayloadTreatedAsEmpty(t *testing.T) {
	c, db := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key-bad", "clip.mp4", 1024, 60, sampleRecord()))

	_, err := db.Conn().Exec(
		`UPDATE analysis_cache SET analysis = ? WHERE video_key = ?`, "{{{ not json", "key-bad")
	require.NoError(t, err)

	record, found, err := c.Get(ctx, "key-bad")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, record)

	var count int
	require.NoError(t, db.Conn().QueryRow(
		`SELECT COUNT(*) FROM analysis_cache WHERE video_key = ?`, "key-bad").Scan(&count))
	assert.Zero(t, count)
}

func TestCacheRemoveByNameAndSize(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key-rm", "clip.mp4", 1024, 60, sampleRecord()))

	found, err := c.Remove(ctx, "clip.mp4", 1024)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = c.Remove(ctx, "clip.mp4", 1024)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheClearAll(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key-a", "a.mp4", 1, 10, sampleRecord()))
	require.NoError(t, c.Put(ctx, "key-b", "b.mp4", 2, 20, sampleRecord()))

	require.NoError(t, c.ClearAll(ctx))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
}

func TestCacheSweepExpired(t *testing.T) {
	c, db := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key-live", "live.mp4", 1, 10, sampleRecord()))
	require.NoError(t, c.Put(ctx, "key-dead-1", "d1.mp4", 2, 10, sampleRecord()))
	require.NoError(t, c.Put(ctx, "key-dead-2", "d2.mp4", 3, 10, sampleRecord()))

	_, err := db.Conn().Exec(
		`UPDATE analysis_cache SET expires_at = ? WHERE video_key LIKE 'key-dead-%'`,
		time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	removed, err := c.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, found, err := c.Get(ctx, "key-live")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCacheSweepOlderThan(t *testing.T) {
	c, db := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key-old", "old.mp4", 1, 10, sampleRecord()))
	require.NoError(t, c.Put(ctx, "key-new", "new.mp4", 2, 10, sampleRecord()))

	_, err := db.Conn().Exec(
		`UPDATE analysis_cache SET cached_at = ? WHERE video_key = ?`,
		time.Now().UTC().AddDate(0, 0, -10), "key-old")
	require.NoError(t, err)

	removed, err := c.SweepOlderThan(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, found, err := c.Get(ctx, "key-new")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCacheStats(t *testing.T) {
	c, db := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key-1", "a.mp4", 1, 10, sampleRecord()))
	require.NoError(t, c.Put(ctx, "key-2", "b.mp4", 2, 10, sampleRecord()))

	// One entry expiring inside the 7-day warning window.
	_, err := db.Conn().Exec(
		`UPDATE analysis_cache SET expires_at = ? WHERE video_key = ?`,
		time.Now().UTC().AddDate(0, 0, 3), "key-1")
	require.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalEntries)
	assert.Positive(t, stats.TotalBytes)
	assert.Equal(t, 1, stats.ExpiringWithin7Days)
}

func TestCacheList(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "key-1", "a.mp4", 111, 10, sampleRecord()))

	entries, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "key-1", e.VideoKey)
	assert.Equal(t, "a.mp4", e.FileName)
	assert.Equal(t, int64(111), e.FileSize)
	assert.Positive(t, e.SizeBytes)
	assert.True(t, e.ExpiresAt.After(e.CachedAt))
}

// setupFileCache opens a file-backed database so tests can cap its size
// with PRAGMA max_page_count.
func setupFileCache(t *testing.T) (*Cache, *database.DB) {
	t.Helper()

	db, err := database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(db, zap.NewNop()), db
}

func bulkyRecord() *ai.AnalysisRecord {
	record := sampleRecord()
	record.Summary = strings.Repeat("frame by frame ", 64*1024)
	return record
}

func capPageCount(t *testing.T, db *database.DB, headroom int) {
	t.Helper()

	var pageCount int
	require.NoError(t, db.Conn().QueryRow(`PRAGMA page_count`).Scan(&pageCount))

	var capped int
	require.NoError(t, db.Conn().QueryRow(
		fmt.Sprintf(`PRAGMA max_page_count = %d`, pageCount+headroom)).Scan(&capped))
}

func TestCachePutFullStoreSweepsAndRetries(t *testing.T) {
	c, db := setupFileCache(t)
	ctx := context.Background()

	// A stale bulky entry occupies most of the capped store.
	require.NoError(t, c.Put(ctx, "key-stale", "stale.mp4", 1, 10, bulkyRecord()))
	_, err := db.Conn().Exec(`UPDATE analysis_cache SET cached_at = ? WHERE video_key = ?`,
		time.Now().UTC().AddDate(0, 0, -10), "key-stale")
	require.NoError(t, err)

	capPageCount(t, db, 2)

	// The first write attempt cannot fit; the pressure sweep reclaims
	// the stale entry's pages and the single retry lands.
	require.NoError(t, c.Put(ctx, "key-fresh", "fresh.mp4", 2, 10, bulkyRecord()))

	_, found, err := c.Get(ctx, "key-fresh")
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = c.Get(ctx, "key-stale")
	require.NoError(t, err)
	assert.False(t, found, "entries past the short retention window are evicted under pressure")
}

func TestCachePutFullStoreRetryFailure(t *testing.T) {
	c, db := setupFileCache(t)
	ctx := context.Background()

	// The resident entry is fresh, so the pressure sweep reclaims
	// nothing and the retried write hits the same full store.
	require.NoError(t, c.Put(ctx, "key-resident", "resident.mp4", 1, 10, bulkyRecord()))

	capPageCount(t, db, 2)

	err := c.Put(ctx, "key-overflow", "overflow.mp4", 2, 10, bulkyRecord())
	require.Error(t, err)

	_, found, getErr := c.Get(ctx, "key-overflow")
	require.NoError(t, getErr)
	assert.False(t, found)

	_, found, getErr = c.Get(ctx, "key-resident")
	require.NoError(t, getErr)
	assert.True(t, found, "a failed write never disturbs resident entries")
}

func TestIsStoreFull(t *testing.T) {
	assert.True(t, isStoreFull(sqlite3.Error{Code: sqlite3.ErrFull}))
	assert.True(t, isStoreFull(fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrFull})))
	assert.True(t, isStoreFull(errors.New("database or disk is full")))
	assert.False(t, isStoreFull(errors.New("no such table: analysis_cache")))
}
