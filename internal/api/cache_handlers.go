package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/framegrab/framegrab/internal/cache"
	"github.com/framegrab/framegrab/internal/metrics"
)

func (app *App) CacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := app.Cache.Stats(r.Context())
	if err != nil {
		app.Logger.Error("failed to read cache stats", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type cacheEntryResponse struct {
	VideoKey        string  `json:"video_key"`
	FileName        string  `json:"file_name"`
	FileSize        int64   `json:"file_size"`
	DurationSeconds float64 `json:"duration_seconds"`
	CachedAt        string  `json:"cached_at"`
	ExpiresAt       string  `json:"expires_at"`
	SizeBytes       int64   `json:"size_bytes"`
	Expired         bool    `json:"expired"`
}

func (app *App) CacheEntriesHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := app.Cache.List(r.Context())
	if err != nil {
		app.Logger.Error("failed to list cache entries", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list cache entries")
		return
	}

	now := time.Now().UTC()
	respondJSON(w, http.StatusOK, lo.Map(entries, func(e cache.Entry, _ int) cacheEntryResponse {
		return cacheEntryResponse{
			VideoKey:        e.VideoKey,
			FileName:        e.FileName,
			FileSize:        e.FileSize,
			DurationSeconds: e.DurationSeconds,
			CachedAt:        e.CachedAt.UTC().Format(time.RFC3339),
			ExpiresAt:       e.ExpiresAt.UTC().Format(time.RFC3339),
			SizeBytes:       e.SizeBytes,
			Expired:         now.After(e.ExpiresAt),
		}
	}))
}

func (app *App) CacheRemoveEntryHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	sizeStr := r.URL.Query().Get("size")
	if name == "" || sizeStr == "" {
		respondError(w, http.StatusBadRequest, "name and size query parameters are required")
		return
	}

	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "size must be an integer")
		return
	}

	found, err := app.Cache.Remove(r.Context(), name, size)
	if err != nil {
		app.Logger.Error("failed to remove cache entry", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to remove cache entry")
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "cache entry not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *App) CacheSweepHandler(w http.ResponseWriter, r *http.Request) {
	var removed int
	var err error

	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		days, parseErr := strconv.Atoi(daysStr)
		if parseErr != nil || days < 0 {
			respondError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		removed, err = app.Cache.SweepOlderThan(r.Context(), days)
	} else {
		removed, err = app.Cache.SweepExpired(r.Context())
	}

	if err != nil {
		app.Logger.Error("cache sweep failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "cache sweep failed")
		return
	}

	metrics.CacheSweepsTotal.Inc()
	respondJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (app *App) CacheClearHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.Cache.ClearAll(r.Context()); err != nil {
		app.Logger.Error("failed to clear cache", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to clear cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
