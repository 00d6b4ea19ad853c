// Package testutil generates real media fixtures for integration
// tests. Everything here spawns actual ffmpeg, so callers must gate on
// RequireFFmpeg first.
package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// RequireFFmpeg skips the test when ffmpeg or ffprobe is not on PATH.
func RequireFFmpeg(t testing.TB) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}
}

// VideoOptions configures synthetic video generation
type VideoOptions struct {
	DurationSec int // video duration in seconds (default: 2)
	FPS         int // frame rate (default: 24)
	WithAudio   bool
}

// GenerateTestVideo creates a synthetic video with a test pattern and
// an optional sine audio track. The container is taken from the output
// path extension.
func GenerateTestVideo(outputPath string, opts VideoOptions) error {
	if opts.DurationSec == 0 {
		opts.DurationSec = 2
	}
	if opts.FPS == 0 {
		opts.FPS = 24
	}

	if outputPath == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	args := []string{
		"-f", "lavfi", "-i",
		fmt.Sprintf("testsrc=duration=%d:size=320x240:rate=%d", opts.DurationSec, opts.FPS),
	}
	if opts.WithAudio {
		args = append(args,
			"-f", "lavfi", "-i",
			fmt.Sprintf("sine=frequency=440:duration=%d", opts.DurationSec),
			"-c:a", "aac",
		)
	}
	args = append(args,
		"-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p",
		"-shortest", "-y", outputPath,
	)

	cmd := exec.Command("ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, output)
	}
	return nil
}
