package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// NormalizeResult reports what Normalize produced.
type NormalizeResult struct {
	Path      string
	Temporary bool // true when Path is an intermediate the caller must delete
}

// Normalize prepares a source for batch extraction. Extraction timing
// assumes an integral frame rate and a seekable mp4 container:
//
//   - integral fps and already mp4 → use the source as-is
//   - integral fps, other container → remux to mp4 with stream copy
//   - fractional fps → re-encode to mp4 at the rounded frame rate
//
// Intermediates are written next to the job's other artifacts in
// workDir.
func (f *FFmpeg) Normalize(ctx context.Context, source string, info Info, workDir string) (NormalizeResult, error) {
	ext := strings.ToLower(filepath.Ext(source))

	if info.IntegralFPS() && ext == ".mp4" {
		return NormalizeResult{Path: source}, nil
	}

	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	converted := filepath.Join(workDir, base+"_normalized.mp4")

	if info.IntegralFPS() {
		if err := f.runFFmpeg(ctx, "-i", source, "-c", "copy", converted); err != nil {
			return NormalizeResult{}, fmt.Errorf("container remux: %w", err)
		}
		return NormalizeResult{Path: converted, Temporary: true}, nil
	}

	args := []string{
		"-i", source,
		"-r", fmt.Sprintf("%d", info.TargetFPS()),
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "18",
		converted,
	}
	if err := f.runFFmpeg(ctx, args...); err != nil {
		return NormalizeResult{}, fmt.Errorf("frame rate normalization: %w", err)
	}
	return NormalizeResult{Path: converted, Temporary: true}, nil
}
