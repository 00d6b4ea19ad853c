package media

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"
)

func failingFFmpeg() *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		execCommand: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "false")
		},
	}
}

func TestAssembleClip_WithAudio(t *testing.T) {
	f, calls := fakeExec("")

	err := f.AssembleClip(context.Background(), ClipRequest{
		FramesDir:  "/w/b0/upscaled",
		AudioPath:  "/w/b0/audio.mka",
		FPS:        24,
		EncodeArgs: "-c:v libx265 -pix_fmt yuv420p",
		OutputPath: "/w/b0/clip.mp4",
	})
	if err != nil {
		t.Fatalf("AssembleClip() error = %v", err)
	}

	got := (*calls)[0]
	want := []string{
		"ffmpeg",
		"-hide_banner", "-loglevel", "error", "-y",
		"-framerate", "24",
		"-i", "/w/b0/upscaled/frame_%06d.png",
		"-i", "/w/b0/audio.mka",
		"-c:v", "libx265",
		"-pix_fmt", "yuv420p",
		"-r", "24",
		"-shortest",
		"/w/b0/clip.mp4",
	}
	if !slices.Equal(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}
}

func TestAssembleClip_NoAudio(t *testing.T) {
	f, calls := fakeExec("")

	err := f.AssembleClip(context.Background(), ClipRequest{
		FramesDir:  "/w/b0/upscaled",
		FPS:        30,
		OutputPath: "/w/b0/clip.mp4",
	})
	if err != nil {
		t.Fatalf("AssembleClip() error = %v", err)
	}

	got := (*calls)[0]
	if slices.Contains(got, "-shortest") {
		t.Errorf("args contain -shortest without audio: %v", got)
	}
	if slices.Contains(got, "audio.mka") {
		t.Errorf("args reference audio without audio input: %v", got)
	}
}

func TestConcatClips_Args(t *testing.T) {
	f, calls := fakeExec("")

	if err := f.ConcatClips(context.Background(), "/w/segments.txt", "/w/video.mp4"); err != nil {
		t.Fatalf("ConcatClips() error = %v", err)
	}

	got := (*calls)[0]
	want := []string{
		"ffmpeg",
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", "/w/segments.txt",
		"-c", "copy",
		"/w/video.mp4",
	}
	if !slices.Equal(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}
}

func TestMergeTracks_Args(t *testing.T) {
	f, calls := fakeExec("")

	if err := f.MergeTracks(context.Background(), "/w/video.mp4", "/in/movie.mkv", "/out/movie.mkv"); err != nil {
		t.Fatalf("MergeTracks() error = %v", err)
	}

	got := (*calls)[0]
	want := []string{
		"ffmpeg",
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", "/w/video.mp4",
		"-i", "/in/movie.mkv",
		"-map", "0:v",
		"-map", "1:a?",
		"-c", "copy",
		"-map_metadata", "1",
		"/out/movie.mkv",
	}
	if !slices.Equal(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "segments.txt")

	err := WriteConcatList(listPath, []string{"/w/b0/clip.mp4", "/w/b1/clip.mp4"})
	if err != nil {
		t.Fatalf("WriteConcatList() error = %v", err)
	}

	data, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := "file '/w/b0/clip.mp4'\nfile '/w/b1/clip.mp4'\n"
	if string(data) != want {
		t.Errorf("list = %q, want %q", string(data), want)
	}
}

func TestWriteConcatList_EscapesQuotes(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "segments.txt")

	if err := WriteConcatList(listPath, []string{"/w/it's/clip.mp4"}); err != nil {
		t.Fatalf("WriteConcatList() error = %v", err)
	}

	data, _ := os.ReadFile(listPath)
	want := `file '/w/it'\''s/clip.mp4'` + "\n"
	if string(data) != want {
		t.Errorf("list = %q, want %q", string(data), want)
	}
}
