// Package media wraps the ffmpeg/ffprobe collaborators the pipeline
// invokes: probing, frame/audio extraction, clip assembly, lossless
// concatenation, and track merging. Every invocation goes through an
// injectable execCommand so tests never spawn the real binaries.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpeg executes ffmpeg/ffprobe commands for the pipeline.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	// execCommand allows injection of command execution for testing
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewFFmpeg creates an FFmpeg helper. Empty paths fall back to the
// binaries found on PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		execCommand: exec.CommandContext,
	}
}

// globalArgs are prepended to every ffmpeg invocation. Output files are
// always overwritten; batch directories are exclusive per batch so this
// can never clobber another batch's artifacts.
var globalArgs = []string{"-hide_banner", "-loglevel", "error", "-y"}

// runFFmpeg executes one ffmpeg command, capturing stderr for error
// reporting.
func (f *FFmpeg) runFFmpeg(ctx context.Context, args ...string) error {
	full := append(append([]string{}, globalArgs...), args...)
	cmd := f.execCommand(ctx, f.ffmpegPath, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// runFFprobe executes one ffprobe command and returns its stdout.
func (f *FFmpeg) runFFprobe(ctx context.Context, args ...string) (string, error) {
	cmd := f.execCommand(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("ffprobe failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("ffprobe failed: %w", err)
	}
	return stdout.String(), nil
}

// splitArgs splits a whitespace-separated argument string, returning nil
// for blank input.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Fields(s)
}
