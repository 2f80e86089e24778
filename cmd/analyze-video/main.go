// Command analyze-video runs a one-shot analysis of a local video file
// and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/framegrab/framegrab/internal/ai"
	"github.com/framegrab/framegrab/internal/analyzer"
	"github.com/framegrab/framegrab/internal/cache"
	"github.com/framegrab/framegrab/internal/config"
	"github.com/framegrab/framegrab/internal/database"
	"github.com/framegrab/framegrab/internal/logging"
	"github.com/framegrab/framegrab/internal/media"
	"github.com/framegrab/framegrab/internal/sampler"
)

func main() {
	var (
		path     = flag.String("path", "", "path to the video file (required)")
		frames   = flag.Int("frames", 0, "number of frames to sample (0 = adaptive)")
		language = flag.String("language", "", "language hint for the analysis")
		noCache  = flag.Bool("no-cache", false, "bypass the analysis cache")
	)
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*path, *frames, *language, *noCache); err != nil {
		log.Fatal(err)
	}
}

func run(path string, frames int, language string, noCache bool) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if language != "" {
		cfg.LanguageHint = language
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat video: %w", err)
	}

	dbPath := cfg.DBPath
	if noCache {
		dbPath = ":memory:"
	}
	db, err := database.NewDB(database.Config{Path: dbPath})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	decoder, err := media.NewDecoder(logger)
	if err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}

	ctx := context.Background()

	client, err := ai.NewClient(ctx, ai.Config{
		Provider:     cfg.AIProvider,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OpenAIModel:  cfg.OpenAIModel,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
	})
	if err != nil {
		return fmt.Errorf("initialize AI client: %w", err)
	}

	service := analyzer.New(
		analyzer.MediaOpener{Decoder: decoder},
		sampler.New(logger),
		cache.New(db, logger),
		client,
		analyzer.Config{
			FrameCount:    cfg.FrameCount,
			MaxDimension:  cfg.MaxDimension,
			DedupDistance: cfg.DedupDistance,
			LanguageHint:  cfg.LanguageHint,
		},
		logger,
	)

	result, err := service.Analyze(ctx, analyzer.Request{
		Path:       path,
		FileName:   info.Name(),
		FileSize:   info.Size(),
		ModifiedAt: info.ModTime(),
		FrameCount: frames,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
