package sampler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/corona10/goimagehash"
	"go.uber.org/zap"

	"github.com/framegrab/framegrab/internal/media"
)

// Source is the decoding context the sampler drives. Captures are issued
// strictly one at a time; the sampler never calls CaptureAt concurrently.
type Source interface {
	Duration() float64
	Dimensions() (width, height int)
	CaptureAt(ctx context.Context, timestamp float64, width, height int) (image.Image, error)
}

// Config controls one sampling run.
type Config struct {
	// FrameCount pins the number of frames to capture. Zero means derive
	// it from the video duration.
	FrameCount int
	// MaxDimension bounds the longer side of each output frame in
	// pixels. Zero disables resizing.
	MaxDimension int
	// DedupDistance drops a captured frame whose perceptual hash is
	// within this Hamming distance of the previously kept frame. Zero
	// disables deduplication.
	DedupDistance int
}

type Sampler struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Sampler {
	return &Sampler{logger: logger}
}

// Sample captures a bounded, temporally ordered sequence of JPEG-encoded
// frames from src. Individual capture failures are skipped; the run only
// fails when no frame at all could be captured.
func (s *Sampler) Sample(ctx context.Context, src Source, cfg Config) ([][]byte, error) {
	duration := src.Duration()
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("%w: duration %f", media.ErrInvalidMedia, duration)
	}

	count := cfg.FrameCount
	if count <= 0 {
		count = AdaptiveFrameCount(duration)
	}

	srcW, srcH := src.Dimensions()
	outW, outH := FitDimensions(srcW, srcH, cfg.MaxDimension)
	quality := AdaptiveQuality(srcW, srcH, duration)

	timestamps := PlanTimestamps(duration, count)

	s.logger.Debug("sampling plan",
		zap.Float64("duration", duration),
		zap.Int("frame_count", count),
		zap.Int("quality", quality),
		zap.Int("out_width", outW),
		zap.Int("out_height", outH),
	)

	frames := make([][]byte, 0, count)
	var lastHash *goimagehash.ImageHash

	for i, ts := range timestamps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := src.CaptureAt(ctx, ts, outW, outH)
		if err != nil {
			s.logger.Warn("frame capture failed, skipping",
				zap.Int("frame", i+1),
				zap.Float64("timestamp", ts),
				zap.Error(err),
			)
			continue
		}

		if cfg.DedupDistance > 0 {
			hash, err := goimagehash.PerceptionHash(img)
			if err == nil {
				if lastHash != nil {
					if dist, err := lastHash.Distance(hash); err == nil && dist <= cfg.DedupDistance {
						s.logger.Debug("dropping near-duplicate frame",
							zap.Int("frame", i+1),
							zap.Int("distance", dist),
						)
						continue
					}
				}
				lastHash = hash
			}
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			s.logger.Warn("frame encode failed, skipping",
				zap.Int("frame", i+1),
				zap.Error(err),
			)
			continue
		}

		frames = append(frames, buf.Bytes())
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames could be captured (attempted %d)", media.ErrMediaLoad, count)
	}

	return frames, nil
}
