package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/framegrab/framegrab/internal/ai"
	"github.com/framegrab/framegrab/internal/analyzer"
	"github.com/framegrab/framegrab/internal/api"
	"github.com/framegrab/framegrab/internal/cache"
	"github.com/framegrab/framegrab/internal/config"
	"github.com/framegrab/framegrab/internal/database"
	"github.com/framegrab/framegrab/internal/logging"
	"github.com/framegrab/framegrab/internal/media"
	"github.com/framegrab/framegrab/internal/sampler"
	"github.com/framegrab/framegrab/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	localStorage, err := storage.NewLocalStorage(cfg.UploadDir)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}

	db, err := database.NewDB(database.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	analysisCache := cache.New(db, logger)
	if removed, err := analysisCache.SweepExpired(ctx); err != nil {
		logger.Warn("startup cache sweep failed", zap.Error(err))
	} else if removed > 0 {
		logger.Info("swept expired cache entries", zap.Int("removed", removed))
	}

	janitor := cache.NewJanitor(analysisCache, logger)
	if err := janitor.Start(cfg.SweepSchedule); err != nil {
		logger.Fatal("failed to start cache janitor", zap.Error(err))
	}
	defer janitor.Stop()

	decoder, err := media.NewDecoder(logger)
	if err != nil {
		logger.Fatal("ffmpeg not available", zap.Error(err))
	}

	client, err := ai.NewClient(ctx, ai.Config{
		Provider:     cfg.AIProvider,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OpenAIModel:  cfg.OpenAIModel,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
	})
	if err != nil {
		logger.Fatal("failed to initialize AI client", zap.Error(err))
	}

	service := analyzer.New(
		analyzer.MediaOpener{Decoder: decoder},
		sampler.New(logger),
		analysisCache,
		client,
		analyzer.Config{
			FrameCount:    cfg.FrameCount,
			MaxDimension:  cfg.MaxDimension,
			DedupDistance: cfg.DedupDistance,
			LanguageHint:  cfg.LanguageHint,
		},
		logger,
	)

	app := &api.App{
		Storage:       localStorage,
		VideoRepo:     database.NewVideoRepository(db),
		Cache:         analysisCache,
		Analyzer:      service,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        logger,
	}

	router := api.NewRouter(app)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("server starting",
		zap.String("addr", addr),
		zap.String("upload_dir", cfg.UploadDir),
		zap.String("db_path", cfg.DBPath),
		zap.String("ai_provider", cfg.AIProvider),
	)

	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
