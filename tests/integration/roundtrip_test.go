//go:build integration

package integration

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/vleroux/upscale-pipeline/internal/assemble"
	"github.com/vleroux/upscale-pipeline/internal/media"
	"github.com/vleroux/upscale-pipeline/internal/model"
	"github.com/vleroux/upscale-pipeline/internal/pipeline"
	"github.com/vleroux/upscale-pipeline/internal/planner"
	"github.com/vleroux/upscale-pipeline/internal/testutil"
	"github.com/vleroux/upscale-pipeline/internal/workdir"
)

// copyUpscaler stands in for the GPU binary: frames pass through
// untouched, so the reassembled output can be compared to the source.
type copyUpscaler struct{}

func (copyUpscaler) Upscale(ctx context.Context, inDir, outDir string) error {
	matches, err := filepath.Glob(filepath.Join(inDir, "frame_*.png"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := copyFile(m, filepath.Join(outDir, filepath.Base(m))); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func TestReassembledDurationMatchesSource(t *testing.T) {
	testutil.RequireFFmpeg(t)

	const fps = 24
	source := filepath.Join(t.TempDir(), "source.mp4")
	if err := testutil.GenerateTestVideo(source, testutil.VideoOptions{
		DurationSec: 5,
		FPS:         fps,
		WithAudio:   true,
	}); err != nil {
		t.Fatalf("generating fixture: %v", err)
	}

	ctx := context.Background()
	ffmpeg := media.NewFFmpeg("", "")

	info, err := ffmpeg.Probe(ctx, source)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if info.TargetFPS() != fps {
		t.Fatalf("TargetFPS() = %d, want %d", info.TargetFPS(), fps)
	}

	job := &model.Job{
		SourcePath: source,
		Duration:   info.Duration,
		FrameRate:  info.TargetFPS(),
		OutputExt:  ".mp4",
	}

	batches, err := planner.Plan(info.Duration, 2)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(batches) < 2 {
		t.Fatalf("planned %d batches, want a multi-batch split", len(batches))
	}

	jd, err := workdir.NewJobDir(t.TempDir(), job.SafeName())
	if err != nil {
		t.Fatal(err)
	}
	defer jd.Remove()

	p := pipeline.New(ffmpeg, copyUpscaler{}, ffmpeg, nil, pipeline.Options{
		EncodeArgs:     "-c:v libx264 -preset ultrafast -pix_fmt yuv420p",
		SourceHasAudio: info.HasAudio,
	})
	for i := range batches {
		if err := p.RunBatch(ctx, job, &batches[i], jd.Batch(batches[i].Index)); err != nil {
			t.Fatalf("batch %d: %v", i, err)
		}
	}

	outDir := t.TempDir()
	asm := assemble.New(ffmpeg, media.WriteConcatList, outDir)
	outputPath, err := asm.Assemble(ctx, job, batches, jd)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	outInfo, err := ffmpeg.Probe(ctx, outputPath)
	if err != nil {
		t.Fatalf("probing output: %v", err)
	}

	oneFrame := 1.0 / float64(fps)
	if diff := math.Abs(outInfo.Duration - info.Duration); diff > oneFrame+1e-3 {
		t.Errorf("duration drift = %.4fs, want within one frame (%.4fs); source %.4fs, output %.4fs",
			diff, oneFrame, info.Duration, outInfo.Duration)
	}
	if !outInfo.HasAudio {
		t.Error("reassembled output lost the audio track")
	}
}
