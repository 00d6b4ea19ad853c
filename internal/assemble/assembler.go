// Package assemble joins a job's completed batch clips into the final
// output file: lossless concat in index order, then the original
// source's audio and metadata muxed back in.
package assemble

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vleroux/upscale-pipeline/internal/model"
	"github.com/vleroux/upscale-pipeline/internal/workdir"
)

// Concatenator is the remux collaborator in its concat and merge modes.
type Concatenator interface {
	ConcatClips(ctx context.Context, listPath, outputPath string) error
	MergeTracks(ctx context.Context, videoPath, sourcePath, outputPath string) error
}

// ConcatListWriter writes the ordered clip list for the concat demuxer.
type ConcatListWriter func(path string, files []string) error

// Assembler produces the final output for a job.
type Assembler struct {
	concat    Concatenator
	writeList ConcatListWriter
	outputDir string
}

// New creates an Assembler writing final files into outputDir.
func New(concat Concatenator, writeList ConcatListWriter, outputDir string) *Assembler {
	return &Assembler{
		concat:    concat,
		writeList: writeList,
		outputDir: outputDir,
	}
}

// Assemble concatenates the job's batch clips in strict index order and
// merges the original audio/metadata, returning the final output path.
//
// Precondition: every batch reached Complete. Any other state returns
// reassembly_incomplete and writes nothing; partial output is never
// emitted. Batch clip artifacts are deleted after a successful write.
func (a *Assembler) Assemble(ctx context.Context, job *model.Job, batches []model.Batch, jd *workdir.JobDir) (string, error) {
	clips := make([]string, 0, len(batches))
	for i := range batches {
		b := &batches[i]
		if b.State != model.BatchComplete {
			return "", model.NewFailure(model.KindReassemblyIncomplete,
				fmt.Errorf("batch %d is %s", b.Index, b.State))
		}
		if b.Index != i {
			return "", model.NewFailure(model.KindReassemblyIncomplete,
				fmt.Errorf("batch index %d at position %d", b.Index, i))
		}
		clips = append(clips, b.ClipPath)
	}
	if len(clips) == 0 {
		return "", model.NewFailure(model.KindReassemblyIncomplete,
			fmt.Errorf("no batches to assemble"))
	}

	listPath := jd.ConcatListPath()
	if err := a.writeList(listPath, clips); err != nil {
		return "", model.NewFailure(model.KindStageProcessFailure, err)
	}

	merged := jd.MergedVideoPath()
	if err := a.concat.ConcatClips(ctx, listPath, merged); err != nil {
		return "", model.NewFailure(model.KindStageProcessFailure, err)
	}

	if err := os.MkdirAll(a.outputDir, 0755); err != nil {
		return "", model.NewFailure(model.KindStageProcessFailure, err)
	}
	outputPath := filepath.Join(a.outputDir, job.OutputName())
	if err := a.concat.MergeTracks(ctx, merged, job.SourcePath, outputPath); err != nil {
		return "", model.NewFailure(model.KindStageProcessFailure, err)
	}

	// Final output exists; the batch clips have served their purpose.
	for i := range batches {
		if err := jd.Batch(batches[i].Index).Remove(); err != nil {
			return "", model.NewFailure(model.KindStageProcessFailure,
				fmt.Errorf("cleanup of batch %d: %w", batches[i].Index, err))
		}
	}
	return outputPath, nil
}
