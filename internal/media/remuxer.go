package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ClipRequest describes one batch clip assembly.
type ClipRequest struct {
	FramesDir  string // directory of upscaled frame_%06d.png files
	AudioPath  string // batch audio slice; empty when the source has no audio
	FPS        int    // target frame rate
	EncodeArgs string // whitespace-split ffmpeg encoding arguments
	OutputPath string
}

// AssembleClip encodes an upscaled frame sequence (plus the batch's own
// audio slice, when present) into a single clip at the target frame
// rate.
func (f *FFmpeg) AssembleClip(ctx context.Context, req ClipRequest) error {
	args := []string{
		"-framerate", fmt.Sprintf("%d", req.FPS),
		"-i", filepath.Join(req.FramesDir, FramePattern),
	}
	if req.AudioPath != "" {
		args = append(args, "-i", req.AudioPath)
	}
	args = append(args, splitArgs(req.EncodeArgs)...)
	args = append(args, "-r", fmt.Sprintf("%d", req.FPS))
	if req.AudioPath != "" {
		// The copied audio slice can overshoot the frame range by a
		// packet; clamp the clip to the shorter stream.
		args = append(args, "-shortest")
	}
	args = append(args, req.OutputPath)

	if err := f.runFFmpeg(ctx, args...); err != nil {
		return fmt.Errorf("clip assembly %s: %w", filepath.Base(req.OutputPath), err)
	}
	return nil
}

// ConcatClips joins already-encoded clips losslessly (stream copy) in
// the order given by the concat list file.
func (f *FFmpeg) ConcatClips(ctx context.Context, listPath, outputPath string) error {
	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
	if err := f.runFFmpeg(ctx, args...); err != nil {
		return fmt.Errorf("concat: %w", err)
	}
	return nil
}

// MergeTracks muxes the concatenated video with the original source's
// audio and metadata streams, all stream-copied. The audio map is
// optional so audio-less sources still produce output.
func (f *FFmpeg) MergeTracks(ctx context.Context, videoPath, sourcePath, outputPath string) error {
	args := []string{
		"-i", videoPath,
		"-i", sourcePath,
		"-map", "0:v",
		"-map", "1:a?",
		"-c", "copy",
		"-map_metadata", "1",
		outputPath,
	}
	if err := f.runFFmpeg(ctx, args...); err != nil {
		return fmt.Errorf("track merge: %w", err)
	}
	return nil
}

// WriteConcatList writes an ffmpeg concat demuxer list referencing the
// given files in order.
func WriteConcatList(path string, files []string) error {
	var b strings.Builder
	for _, file := range files {
		fmt.Fprintf(&b, "file '%s'\n", escapeConcatPath(file))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return nil
}

// escapeConcatPath escapes single quotes for the concat demuxer's
// quoted-path syntax.
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
