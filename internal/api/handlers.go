package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/framegrab/framegrab/internal/analyzer"
	"github.com/framegrab/framegrab/internal/cache"
	"github.com/framegrab/framegrab/internal/database"
	"github.com/framegrab/framegrab/internal/media"
	"github.com/framegrab/framegrab/internal/models"
	"github.com/framegrab/framegrab/internal/storage"
)

type App struct {
	Storage       storage.Storage
	VideoRepo     *database.VideoRepository
	Cache         *cache.Cache
	Analyzer      *analyzer.Service
	MaxUploadSize int64
	Logger        *zap.Logger
}

func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing video file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") && contentType != "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".mp4" {
			respondError(w, http.StatusBadRequest, "only video files are allowed")
			return
		}
		contentType = "video/mp4"
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	// The client supplies the file's last-modified time in unix
	// milliseconds; it is part of the cache identity.
	modifiedAt := time.Now()
	if v := r.FormValue("last_modified"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid last_modified value")
			return
		}
		modifiedAt = time.UnixMilli(ms)
	}

	storedName, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		app.Logger.Error("failed to save upload", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	video := models.NewVideo(title, header.Filename, storedName, contentType, header.Size, modifiedAt)
	if err := app.VideoRepo.Insert(r.Context(), video); err != nil {
		app.Storage.DeleteFile(storedName)
		app.Logger.Error("failed to save video record", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save video information")
		return
	}

	respondJSON(w, http.StatusCreated, video)
}

func (app *App) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	videos, err := app.VideoRepo.List(r.Context())
	if err != nil {
		app.Logger.Error("failed to list videos", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list videos")
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}
	respondJSON(w, http.StatusOK, videos)
}

func (app *App) GetVideoHandler(w http.ResponseWriter, r *http.Request) {
	video, err := app.VideoRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "video not found")
		return
	}
	respondJSON(w, http.StatusOK, video)
}

func (app *App) DeleteVideoHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	video, err := app.VideoRepo.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "video not found")
		return
	}

	if err := app.VideoRepo.Delete(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete video")
		return
	}
	if err := app.Storage.DeleteFile(video.StoredName); err != nil {
		app.Logger.Warn("failed to delete stored file", zap.String("stored_name", video.StoredName), zap.Error(err))
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *App) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	video, err := app.VideoRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "video not found")
		return
	}

	path, err := app.Storage.FilePath(video.StoredName)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve video path")
		return
	}

	req := analyzer.Request{
		Path:       path,
		FileName:   video.OriginalName,
		FileSize:   video.Size,
		ModifiedAt: video.ModifiedAt,
	}
	if v := r.URL.Query().Get("frames"); v != "" {
		frames, err := strconv.Atoi(v)
		if err != nil || frames < 1 {
			respondError(w, http.StatusBadRequest, "frames must be a positive integer")
			return
		}
		req.FrameCount = frames
	}

	result, err := app.Analyzer.Analyze(r.Context(), req)
	if err != nil {
		app.Logger.Error("analysis failed",
			zap.String("video_id", video.ID),
			zap.Error(err),
		)
		respondError(w, analysisStatusCode(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func analysisStatusCode(err error) int {
	switch {
	case errors.Is(err, media.ErrInvalidMedia),
		errors.Is(err, media.ErrMediaLoad),
		errors.Is(err, analyzer.ErrExtraction),
		errors.Is(err, analyzer.ErrHash):
		return http.StatusUnprocessableEntity
	case errors.Is(err, analyzer.ErrAnalysis):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
