// Package workdir owns the on-disk layout of intermediate artifacts:
// one directory per job, one subdirectory per batch. Artifact lifetime
// is tied to the batch state machine: frame sets never outlive their
// batch, which bounds peak disk usage to O(concurrency × batch length)
// instead of O(video length).
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// JobDir is the working directory for one video job. The name carries a
// per-run nonce so no two jobs, or two runs of the same job, ever
// share a directory.
type JobDir struct {
	root string
}

// NewJobDir creates the working directory for a job under base.
func NewJobDir(base, safeName string) (*JobDir, error) {
	root := filepath.Join(base, fmt.Sprintf("upscale_%s_%d", safeName, time.Now().UnixNano()))
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create job dir: %w", err)
	}
	return &JobDir{root: root}, nil
}

// Path returns the job directory root.
func (d *JobDir) Path() string {
	return d.root
}

// ConcatListPath returns the path of the reassembly concat list.
func (d *JobDir) ConcatListPath() string {
	return filepath.Join(d.root, "segments.txt")
}

// MergedVideoPath returns the path of the concatenated video before the
// original audio and metadata are merged in.
func (d *JobDir) MergedVideoPath() string {
	return filepath.Join(d.root, "video_noaudio.mp4")
}

// Batch returns the (not yet created) batch directory for an index.
func (d *JobDir) Batch(index int) *BatchDir {
	return &BatchDir{
		root:  filepath.Join(d.root, fmt.Sprintf("batch_%d", index)),
		index: index,
	}
}

// Remove deletes the whole job tree, batch directories included.
func (d *JobDir) Remove() error {
	return os.RemoveAll(d.root)
}

// BatchDir holds one batch's artifacts: raw frames, upscaled frames,
// the audio slice, and the output clip. Owned exclusively by that
// batch.
type BatchDir struct {
	root  string
	index int
}

// Create makes the batch directory with its frame subdirectories.
func (b *BatchDir) Create() error {
	for _, dir := range []string{b.FramesDir(), b.UpscaledDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create batch dir: %w", err)
		}
	}
	return nil
}

// Path returns the batch directory root.
func (b *BatchDir) Path() string {
	return b.root
}

// FramesDir returns the raw extracted frames directory.
func (b *BatchDir) FramesDir() string {
	return filepath.Join(b.root, "frames")
}

// UpscaledDir returns the upscaled frames directory.
func (b *BatchDir) UpscaledDir() string {
	return filepath.Join(b.root, "upscaled")
}

// AudioPath returns the batch audio slice path. Matroska audio accepts
// whatever codec the stream copy carries over.
func (b *BatchDir) AudioPath() string {
	return filepath.Join(b.root, "audio.mka")
}

// ClipPath returns the batch output clip path.
func (b *BatchDir) ClipPath() string {
	return filepath.Join(b.root, "clip.mp4")
}

// RemoveFrames deletes the frame sets and the audio slice but keeps the
// clip. Called when the batch completes: from here on only the clip is
// needed for reassembly.
func (b *BatchDir) RemoveFrames() error {
	var firstErr error
	for _, p := range []string{b.FramesDir(), b.UpscaledDir(), b.AudioPath()} {
		if err := os.RemoveAll(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Remove deletes everything the batch owns, the clip included. Called
// on the failure path and after reassembly.
func (b *BatchDir) Remove() error {
	return os.RemoveAll(b.root)
}
