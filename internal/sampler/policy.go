package sampler

import "math"

// clampEpsilon keeps the last planned timestamp short of the stream end,
// where seeking tends to fail.
const clampEpsilon = 0.1

// Duration buckets and quality factors below are payload-size tuning
// knobs, not invariants. Frame count must stay non-decreasing in
// duration.
const (
	veryShortCutoff = 30.0
	shortCutoff     = 60.0
	mediumCutoff    = 300.0
	longCutoff      = 900.0

	baseQuality = 85
	minQuality  = 60
)

// AdaptiveFrameCount picks how many frames to sample for a video of the
// given duration when the caller does not pin an explicit count.
func AdaptiveFrameCount(duration float64) int {
	switch {
	case duration <= veryShortCutoff:
		return 5
	case duration <= shortCutoff:
		return 8
	case duration <= mediumCutoff:
		return 10
	case duration <= longCutoff:
		return 12
	default:
		return 15
	}
}

// AdaptiveQuality derives the JPEG quality factor from the source
// resolution and total duration: bigger or longer sources get stronger
// compression to bound the total payload sent for analysis.
func AdaptiveQuality(width, height int, duration float64) int {
	quality := baseQuality

	longSide := width
	if height > longSide {
		longSide = height
	}

	switch {
	case longSide >= 1920:
		quality -= 10
	case longSide >= 1280:
		quality -= 5
	}

	switch {
	case duration > longCutoff:
		quality -= 10
	case duration > mediumCutoff:
		quality -= 5
	}

	if quality < minQuality {
		quality = minQuality
	}
	return quality
}

// PlanTimestamps divides the duration into count+1 equal intervals and
// returns the count interior boundaries, each clamped below the stream
// end.
func PlanTimestamps(duration float64, count int) []float64 {
	interval := duration / float64(count+1)

	limit := duration - clampEpsilon
	if limit < 0 {
		limit = 0
	}

	timestamps := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		ts := interval * float64(i)
		if ts > limit {
			ts = limit
		}
		timestamps = append(timestamps, ts)
	}
	return timestamps
}

// FitDimensions scales (width, height) down so the longer side equals
// maxDim, preserving aspect ratio. Sources already within bounds are
// returned unchanged; frames are never upscaled.
func FitDimensions(width, height, maxDim int) (int, int) {
	if maxDim <= 0 || width <= 0 || height <= 0 {
		return width, height
	}

	longSide := width
	if height > longSide {
		longSide = height
	}
	if longSide <= maxDim {
		return width, height
	}

	scale := float64(maxDim) / float64(longSide)
	outW := int(math.Round(float64(width) * scale))
	outH := int(math.Round(float64(height) * scale))
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}
	return outW, outH
}
