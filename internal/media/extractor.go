package media

import (
	"context"
	"fmt"
	"path/filepath"
)

// FramePattern is the sequential naming scheme shared by extraction,
// upscaling, and clip assembly.
const FramePattern = "frame_%06d.png"

// ExtractFrames decodes the [start, start+duration) range of the source
// into sequentially numbered PNG frames at the target frame rate.
func (f *FFmpeg) ExtractFrames(ctx context.Context, source string, start, duration float64, fps int, framesDir string) error {
	args := []string{
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", source,
		"-r", fmt.Sprintf("%d", fps),
		filepath.Join(framesDir, FramePattern),
	}
	if err := f.runFFmpeg(ctx, args...); err != nil {
		return fmt.Errorf("frame extraction [%s +%s): %w",
			formatSeconds(start), formatSeconds(duration), err)
	}
	return nil
}

// ExtractAudio copies the audio of the same time-range into a standalone
// slice file without re-encoding. The caller must only invoke this for
// sources that actually carry audio.
func (f *FFmpeg) ExtractAudio(ctx context.Context, source string, start, duration float64, audioPath string) error {
	args := []string{
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", source,
		"-vn",
		"-c:a", "copy",
		audioPath,
	}
	if err := f.runFFmpeg(ctx, args...); err != nil {
		return fmt.Errorf("audio extraction [%s +%s): %w",
			formatSeconds(start), formatSeconds(duration), err)
	}
	return nil
}

// formatSeconds renders a seconds value for an ffmpeg argument without
// losing fractional precision.
func formatSeconds(v float64) string {
	return fmt.Sprintf("%g", v)
}
