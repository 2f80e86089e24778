package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrInvalidMedia reports a source whose duration is zero or non-finite,
// or a container ffprobe cannot make sense of.
var ErrInvalidMedia = errors.New("invalid media")

// ErrMediaLoad reports a source the decoder failed to read at all.
var ErrMediaLoad = errors.New("media load failed")

// Probe holds the metadata read from a video stream at open time.
type Probe struct {
	DurationSeconds float64
	Width           int
	Height          int
}

// Decoder shells out to ffmpeg/ffprobe for seeking and pixel capture.
type Decoder struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	logger      *zap.Logger
}

func NewDecoder(logger *zap.Logger) (*Decoder, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	tempDir := filepath.Join(os.TempDir(), "framegrab-frames")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	logger.Debug("decoder initialized",
		zap.String("ffmpeg", ffmpegPath),
		zap.String("ffprobe", ffprobePath),
		zap.String("temp_dir", tempDir),
	)

	return &Decoder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		tempDir:     tempDir,
		logger:      logger,
	}, nil
}

// Open probes the video at path and returns a handle for frame capture.
// A zero or non-finite duration fails with ErrInvalidMedia; an unreadable
// file fails with ErrMediaLoad.
func (d *Decoder) Open(ctx context.Context, path string) (*Video, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: video file not accessible: %v", ErrMediaLoad, err)
	}

	probe, err := d.probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaLoad, err)
	}

	if probe.DurationSeconds <= 0 || math.IsNaN(probe.DurationSeconds) || math.IsInf(probe.DurationSeconds, 0) {
		return nil, fmt.Errorf("%w: duration %f", ErrInvalidMedia, probe.DurationSeconds)
	}

	return &Video{decoder: d, path: path, probe: probe}, nil
}

func (d *Decoder) probe(ctx context.Context, path string) (Probe, error) {
	cmd := exec.CommandContext(ctx, d.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		// Some containers defeat ffprobe but still decode; fall back to
		// parsing ffmpeg's own banner output for the duration.
		duration, ferr := d.durationFromFFmpeg(ctx, path)
		if ferr != nil {
			return Probe{}, fmt.Errorf("ffprobe: %w", err)
		}
		return Probe{DurationSeconds: duration}, nil
	}

	return parseProbeOutput(string(output))
}

func (d *Decoder) durationFromFFmpeg(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, d.ffmpegPath, "-i", path, "-f", "null", "-")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	return parseFFmpegDuration(stderr.String())
}

// Video is an open decoding context. Only one capture may be in flight
// at a time; the mutex serializes callers that violate that contract.
type Video struct {
	decoder *Decoder
	path    string
	probe   Probe
	mu      sync.Mutex
}

func (v *Video) Duration() float64 {
	return v.probe.DurationSeconds
}

func (v *Video) Dimensions() (width, height int) {
	return v.probe.Width, v.probe.Height
}

// CaptureAt seeks to the given timestamp and decodes one frame, scaled
// to width x height. The call blocks until the capture completes.
func (v *Video) CaptureAt(ctx context.Context, timestamp float64, width, height int) (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	d := v.decoder

	tempFile, err := d.newCaptureFile()
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	defer os.Remove(tempFile)

	args := []string{
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", v.path,
		"-vframes", "1",
		"-q:v", "2",
		"-f", "mjpeg",
		"-y",
	}
	if width > 0 && height > 0 {
		args = append(args[:len(args)-1],
			"-vf", fmt.Sprintf("scale=%d:%d", width, height),
			"-y",
		)
	}
	args = append(args, tempFile)

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		d.logger.Debug("ffmpeg capture failed",
			zap.Float64("timestamp", timestamp),
			zap.String("stderr", stderr.String()),
		)
		return nil, fmt.Errorf("failed to capture frame at %.3fs: %w", timestamp, err)
	}

	file, err := os.Open(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open captured frame: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode captured frame: %w", err)
	}

	return img, nil
}

// newCaptureFile reserves a unique output path for one capture. Paths
// must never be shared: concurrent captures from different videos can
// plan identical timestamps, and ffmpeg's -y would overwrite one
// capture with the other's frame.
func (d *Decoder) newCaptureFile() (string, error) {
	f, err := os.CreateTemp(d.tempDir, "frame_*.jpg")
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (d *Decoder) Cleanup() error {
	return os.RemoveAll(d.tempDir)
}

func parseProbeOutput(output string) (Probe, error) {
	var probe Probe
	for _, line := range strings.Split(output, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "width":
			probe.Width, _ = strconv.Atoi(value)
		case "height":
			probe.Height, _ = strconv.Atoi(value)
		case "duration":
			if value != "N/A" {
				probe.DurationSeconds, _ = strconv.ParseFloat(value, 64)
			}
		}
	}

	if probe.DurationSeconds == 0 && probe.Width == 0 && probe.Height == 0 {
		return Probe{}, fmt.Errorf("no stream information in ffprobe output")
	}

	return probe, nil
}

// parseFFmpegDuration pulls "Duration: HH:MM:SS.cc" out of ffmpeg's
// banner output.
func parseFFmpegDuration(output string) (float64, error) {
	const prefix = "Duration: "

	start := strings.Index(output, prefix)
	if start == -1 {
		return 0, fmt.Errorf("duration not found in ffmpeg output")
	}
	start += len(prefix)

	end := strings.Index(output[start:], ",")
	if end == -1 {
		return 0, fmt.Errorf("invalid duration format")
	}

	parts := strings.Split(output[start:start+end], ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid duration format: %s", output[start:start+end])
	}

	hours, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	minutes, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, err
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}

	return hours*3600 + minutes*60 + seconds, nil
}
