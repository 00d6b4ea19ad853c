package media

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vleroux/upscale-pipeline/internal/model"
)

// fpsTolerance is how close an average frame rate must be to an integer
// to count as integral.
const fpsTolerance = 1e-6

// Info holds the probed properties the pipeline needs from a source.
type Info struct {
	Duration float64 // seconds
	FPS      float64 // average frame rate of the first video stream
	HasAudio bool
}

// TargetFPS returns the integral frame rate batches are extracted and
// remuxed at.
func (i Info) TargetFPS() int {
	return int(math.Round(i.FPS))
}

// IntegralFPS reports whether the source frame rate is already integral.
func (i Info) IntegralFPS() bool {
	return math.Abs(i.FPS-math.Round(i.FPS)) < fpsTolerance
}

// Probe reads duration, average frame rate, and audio presence from a
// source file. A missing or non-positive duration is an invalid_duration
// failure: the file cannot be planned into batches.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	out, err := f.runFFprobe(ctx,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate,duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return Info{}, model.NewFailure(model.KindInvalidDuration, err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 1 || strings.TrimSpace(lines[0]) == "" {
		return Info{}, model.NewFailure(model.KindInvalidDuration,
			fmt.Errorf("ffprobe returned no video stream info for %s", path))
	}

	fps, err := parseRate(strings.TrimSpace(lines[0]))
	if err != nil {
		return Info{}, model.NewFailure(model.KindInvalidDuration,
			fmt.Errorf("bad frame rate for %s: %w", path, err))
	}

	durationStr := "N/A"
	if len(lines) > 1 {
		durationStr = strings.TrimSpace(lines[1])
	}
	// Some containers only carry duration at the format level.
	if durationStr == "N/A" || durationStr == "" {
		durationStr, err = f.probeFormatDuration(ctx, path)
		if err != nil {
			return Info{}, model.NewFailure(model.KindInvalidDuration, err)
		}
	}

	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return Info{}, model.NewFailure(model.KindInvalidDuration,
			fmt.Errorf("bad duration %q for %s: %w", durationStr, path, err))
	}
	if duration <= 0 {
		return Info{}, model.NewFailure(model.KindInvalidDuration,
			fmt.Errorf("source %s has duration %v", path, duration))
	}

	hasAudio, err := f.probeHasAudio(ctx, path)
	if err != nil {
		return Info{}, err
	}

	return Info{Duration: duration, FPS: fps, HasAudio: hasAudio}, nil
}

func (f *FFmpeg) probeFormatDuration(ctx context.Context, path string) (string, error) {
	out, err := f.runFFprobe(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (f *FFmpeg) probeHasAudio(ctx context.Context, path string) (bool, error) {
	out, err := f.runFFprobe(ctx,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return false, fmt.Errorf("audio probe failed for %s: %w", path, err)
	}
	return strings.TrimSpace(out) != "", nil
}

// parseRate parses an ffprobe rate, either rational ("30000/1001") or
// decimal ("24").
func parseRate(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, fmt.Errorf("zero denominator in rate %q", s)
		}
		return n / d, nil
	}
	return strconv.ParseFloat(s, 64)
}
