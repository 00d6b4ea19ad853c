// Package upscale invokes the frame-upscaling binary over a directory
// of extracted frames. The binary is an opaque collaborator: one
// invocation per batch, one output frame per input frame with matching
// ordinal naming.
package upscale

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const defaultBinary = "realesrgan-ncnn-vulkan"

// Options configure the upscaler invocation.
type Options struct {
	Model     string // -n; must match the scale multiplier
	Scale     string // -s
	Tile      string // -t; lower when VRAM is tight
	ExtraArgs string // whitespace-split pass-through arguments
}

// Runner executes the upscaler over a frame directory.
type Runner interface {
	// Upscale processes every frame in inDir into outDir.
	Upscale(ctx context.Context, inDir, outDir string) error
}

// DefaultRunner executes the RealESRGAN ncnn binary.
type DefaultRunner struct {
	binaryPath string
	opts       Options
	// execCommand allows injection of command execution for testing
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner creates a runner for the given binary path. An empty path
// uses the default binary name from PATH.
func NewRunner(binaryPath string, opts Options) *DefaultRunner {
	if binaryPath == "" {
		binaryPath = defaultBinary
	}
	return &DefaultRunner{
		binaryPath:  binaryPath,
		opts:        opts,
		execCommand: exec.CommandContext,
	}
}

// Upscale runs the binary once for the whole frame directory.
func (r *DefaultRunner) Upscale(ctx context.Context, inDir, outDir string) error {
	args := r.buildArgs(inDir, outDir)
	cmd := r.execCommand(ctx, r.binaryPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("upscaler failed: %w: %s", err, msg)
		}
		return fmt.Errorf("upscaler failed: %w", err)
	}
	return nil
}

func (r *DefaultRunner) buildArgs(inDir, outDir string) []string {
	args := []string{
		"-i", inDir,
		"-o", outDir,
		"-n", r.opts.Model,
		"-s", r.opts.Scale,
		"-t", r.opts.Tile,
	}
	if extra := strings.TrimSpace(r.opts.ExtraArgs); extra != "" {
		args = append(args, strings.Fields(extra)...)
	}
	return args
}

// CountFrames counts the frame_*.png files in a directory. Used on both
// sides of an upscale run: non-zero input frames is an extraction
// postcondition, and output count == input count is the upscale
// postcondition.
func CountFrames(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return 0, fmt.Errorf("failed to scan frames in %s: %w", dir, err)
	}
	count := 0
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		count++
	}
	return count, nil
}

// Ensure DefaultRunner implements Runner
var _ Runner = (*DefaultRunner)(nil)
