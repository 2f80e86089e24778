package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/framegrab/framegrab/internal/ai"
	"github.com/framegrab/framegrab/internal/cache"
	"github.com/framegrab/framegrab/internal/identity"
	"github.com/framegrab/framegrab/internal/media"
	"github.com/framegrab/framegrab/internal/metrics"
	"github.com/framegrab/framegrab/internal/sampler"
)

// Opener produces a decoding context for a stored video file.
type Opener interface {
	Open(ctx context.Context, path string) (sampler.Source, error)
}

// MediaOpener adapts media.Decoder to the Opener interface.
type MediaOpener struct {
	Decoder *media.Decoder
}

func (o MediaOpener) Open(ctx context.Context, path string) (sampler.Source, error) {
	return o.Decoder.Open(ctx, path)
}

type Config struct {
	FrameCount    int
	MaxDimension  int
	DedupDistance int
	LanguageHint  string
}

// Request identifies one video to analyze. The metadata triple drives
// the cache key.
type Request struct {
	Path       string
	FileName   string
	FileSize   int64
	ModifiedAt time.Time
	// FrameCount overrides the configured frame count for this request
	// when positive.
	FrameCount int
}

type Result struct {
	Identity        string             `json:"identity"`
	Record          *ai.AnalysisRecord `json:"record"`
	CacheHit        bool               `json:"cache_hit"`
	FramesUsed      int                `json:"frames_used"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
}

// Service coordinates one analysis request end to end: hash, cache
// lookup, frame sampling, the external AI call and the write-back.
type Service struct {
	opener  Opener
	sampler *sampler.Sampler
	cache   *cache.Cache
	client  ai.Client
	cfg     Config
	logger  *zap.Logger

	mu       sync.Mutex
	inflight map[string]*call
}

type call struct {
	done   chan struct{}
	result *Result
	err    error
}

func New(opener Opener, frameSampler *sampler.Sampler, analysisCache *cache.Cache, client ai.Client, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		opener:   opener,
		sampler:  frameSampler,
		cache:    analysisCache,
		client:   client,
		cfg:      cfg,
		logger:   logger,
		inflight: make(map[string]*call),
	}
}

// Analyze runs one request. Concurrent requests for the same video
// identity are collapsed: later callers wait for the first one's result
// instead of duplicating the sampling and AI work.
func (s *Service) Analyze(ctx context.Context, req Request) (*Result, error) {
	if req.FileName == "" && req.FileSize == 0 {
		return nil, fmt.Errorf("%w: no file attributes", ErrHash)
	}

	key := identity.Digest(identity.FileDescriptor{
		Name:       req.FileName,
		Size:       req.FileSize,
		ModifiedAt: req.ModifiedAt,
	})

	s.mu.Lock()
	if existing, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-existing.done:
		}
		return existing.result, existing.err
	}
	c := &call{done: make(chan struct{})}
	s.inflight[key] = c
	s.mu.Unlock()

	result, err := s.analyze(ctx, key, req)

	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()

	c.result, c.err = result, err
	close(c.done)

	return result, err
}

func (s *Service) analyze(ctx context.Context, key string, req Request) (*Result, error) {
	log := s.logger.With(zap.String("video_key", key), zap.String("file", req.FileName))

	record, found, err := s.cache.Get(ctx, key)
	if err != nil {
		// A broken cache read degrades to a miss; it never fails the
		// request.
		log.Warn("cache read failed, treating as miss", zap.Error(err))
	}
	if found {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
		log.Info("analysis served from cache")
		return &Result{Identity: key, Record: record, CacheHit: true}, nil
	}
	metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()

	src, err := s.opener.Open(ctx, req.Path)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("media_error").Inc()
		return nil, err
	}

	samplingCfg := sampler.Config{
		FrameCount:    s.cfg.FrameCount,
		MaxDimension:  s.cfg.MaxDimension,
		DedupDistance: s.cfg.DedupDistance,
	}
	if req.FrameCount > 0 {
		samplingCfg.FrameCount = req.FrameCount
	}

	sampleStart := time.Now()
	frames, err := s.sampler.Sample(ctx, src, samplingCfg)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("extraction_error").Inc()
		if errors.Is(err, media.ErrInvalidMedia) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrExtraction, err)
	}
	metrics.AnalysisDuration.WithLabelValues("sampling").Observe(time.Since(sampleStart).Seconds())
	metrics.FramesSampledTotal.Add(float64(len(frames)))

	log.Info("frames sampled",
		zap.Int("frame_count", len(frames)),
		zap.Float64("duration_secs", src.Duration()),
	)

	aiStart := time.Now()
	record, err = s.client.AnalyzeFrames(ctx, frames, s.cfg.LanguageHint)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("analysis_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}
	metrics.AnalysisDuration.WithLabelValues("ai_call").Observe(time.Since(aiStart).Seconds())

	// Best-effort write-back: a cache failure never flips a successful
	// analysis into a failure.
	if err := s.cache.Put(ctx, key, req.FileName, req.FileSize, src.Duration(), record); err != nil {
		log.Warn("cache write failed, result not cached", zap.Error(err))
	}

	metrics.AnalysesTotal.WithLabelValues("success").Inc()

	return &Result{
		Identity:        key,
		Record:          record,
		FramesUsed:      len(frames),
		DurationSeconds: src.Duration(),
	}, nil
}
