package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/framegrab/framegrab/internal/ai"
	"github.com/framegrab/framegrab/internal/database"
)

const (
	// DefaultTTL is how long a cached analysis stays live.
	DefaultTTL = 30 * 24 * time.Hour

	// pressureRetentionDays is the short retention window used to free
	// space when the backing store rejects a write.
	pressureRetentionDays = 7
)

// Cache is a content-addressed store of analysis records keyed by video
// identity digest, with time-based expiry.
type Cache struct {
	db     *database.DB
	ttl    time.Duration
	logger *zap.Logger
}

// Entry mirrors one stored cache row. SizeBytes is the serialized
// analysis payload size.
type Entry struct {
	VideoKey        string    `json:"video_key"`
	FileName        string    `json:"file_name"`
	FileSize        int64     `json:"file_size"`
	DurationSeconds float64   `json:"duration_seconds"`
	CachedAt        time.Time `json:"cached_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	SizeBytes       int64     `json:"size_bytes"`
}

type Stats struct {
	TotalEntries        int   `json:"total_entries"`
	TotalBytes          int64 `json:"total_bytes"`
	ExpiringWithin7Days int   `json:"expiring_within_7_days"`
}

func New(db *database.DB, logger *zap.Logger) *Cache {
	return &Cache{db: db, ttl: DefaultTTL, logger: logger}
}

// Get returns the stored record for key if a live entry exists. Expired
// or unreadable entries are removed as a side effect and reported as
// absent; absence is never an error.
func (c *Cache) Get(ctx context.Context, key string) (*ai.AnalysisRecord, bool, error) {
	var payload string
	var expiresAt time.Time

	query := `SELECT analysis, expires_at FROM analysis_cache WHERE video_key = ?`
	err := c.db.Conn().QueryRowContext(ctx, query, key).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if time.Now().UTC().After(expiresAt) {
		c.evict(ctx, key, "expired")
		return nil, false, nil
	}

	record := &ai.AnalysisRecord{}
	if err := json.Unmarshal([]byte(payload), record); err != nil {
		// Corrupted payload degrades to cache-empty.
		c.logger.Warn("dropping unparseable cache entry", zap.String("video_key", key), zap.Error(err))
		c.evict(ctx, key, "corrupt")
		return nil, false, nil
	}

	return record, true, nil
}

// Put stores a record for key, replacing any prior entry. On a full
// backing store it evicts entries older than the short retention window
// and retries exactly once.
func (c *Cache) Put(ctx context.Context, key, fileName string, fileSize int64, durationSeconds float64, record *ai.AnalysisRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize analysis record: %w", err)
	}

	now := time.Now().UTC()
	err = c.write(ctx, key, fileName, fileSize, durationSeconds, payload, now)
	if err == nil {
		return nil
	}

	if !isStoreFull(err) {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	removed, sweepErr := c.SweepOlderThan(ctx, pressureRetentionDays)
	if sweepErr != nil {
		return fmt.Errorf("failed to write cache entry (pressure sweep also failed: %v): %w", sweepErr, err)
	}
	c.logger.Info("cache store full, evicted old entries and retrying",
		zap.Int("removed", removed),
	)

	if err := c.write(ctx, key, fileName, fileSize, durationSeconds, payload, now); err != nil {
		return fmt.Errorf("failed to write cache entry after eviction: %w", err)
	}
	return nil
}

func (c *Cache) write(ctx context.Context, key, fileName string, fileSize int64, durationSeconds float64, payload []byte, now time.Time) error {
	query := `
		INSERT OR REPLACE INTO analysis_cache
			(video_key, file_name, file_size, duration_seconds, analysis, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := c.db.Conn().ExecContext(ctx, query,
		key, fileName, fileSize, durationSeconds, string(payload), now, now.Add(c.ttl))
	return err
}

// Remove deletes the entry matching a (name, size) pair and reports
// whether one was found.
func (c *Cache) Remove(ctx context.Context, fileName string, fileSize int64) (bool, error) {
	result, err := c.db.Conn().ExecContext(ctx,
		`DELETE FROM analysis_cache WHERE file_name = ? AND file_size = ?`, fileName, fileSize)
	if err != nil {
		return false, fmt.Errorf("failed to remove cache entry: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearAll drops every entry unconditionally.
func (c *Cache) ClearAll(ctx context.Context) error {
	if _, err := c.db.Conn().ExecContext(ctx, `DELETE FROM analysis_cache`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// SweepExpired removes every entry past its expiry and returns how many
// were removed.
func (c *Cache) SweepExpired(ctx context.Context) (int, error) {
	result, err := c.db.Conn().ExecContext(ctx,
		`DELETE FROM analysis_cache WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired entries: %w", err)
	}

	n, err := result.RowsAffected()
	return int(n), err
}

// SweepOlderThan removes entries cached more than the given number of
// days ago and returns how many were removed.
func (c *Cache) SweepOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result, err := c.db.Conn().ExecContext(ctx,
		`DELETE FROM analysis_cache WHERE cached_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep old entries: %w", err)
	}

	n, err := result.RowsAffected()
	return int(n), err
}

// Stats returns a read-only aggregate view of the cache.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	now := time.Now().UTC()

	var stats Stats
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(LENGTH(analysis)), 0),
			COALESCE(SUM(CASE WHEN expires_at >= ? AND expires_at < ? THEN 1 ELSE 0 END), 0)
		FROM analysis_cache`

	err := c.db.Conn().QueryRowContext(ctx, query, now, now.AddDate(0, 0, 7)).
		Scan(&stats.TotalEntries, &stats.TotalBytes, &stats.ExpiringWithin7Days)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return stats, nil
}

// List returns entry metadata for every cached analysis, newest first.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT video_key, file_name, file_size, duration_seconds, cached_at, expires_at, LENGTH(analysis)
		FROM analysis_cache ORDER BY cached_at DESC`

	rows, err := c.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.VideoKey, &e.FileName, &e.FileSize, &e.DurationSeconds, &e.CachedAt, &e.ExpiresAt, &e.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (c *Cache) evict(ctx context.Context, key, reason string) {
	if _, err := c.db.Conn().ExecContext(ctx, `DELETE FROM analysis_cache WHERE video_key = ?`, key); err != nil {
		c.logger.Warn("failed to evict cache entry",
			zap.String("video_key", key),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func isStoreFull(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrFull
	}
	return strings.Contains(err.Error(), "database or disk is full")
}
