// Package pipeline runs batches through their three external-process
// stages (extract, upscale, remux) and schedules them across a
// bounded, staggered worker pool. This is the orchestration core: the
// collaborators do the media work, the pipeline owns batch lifecycle,
// artifact cleanup, and the concurrency/disk invariants.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vleroux/upscale-pipeline/internal/media"
	"github.com/vleroux/upscale-pipeline/internal/model"
	"github.com/vleroux/upscale-pipeline/internal/upscale"
	"github.com/vleroux/upscale-pipeline/internal/workdir"
)

// Extractor produces a batch's raw frames and audio slice.
type Extractor interface {
	ExtractFrames(ctx context.Context, source string, start, duration float64, fps int, framesDir string) error
	ExtractAudio(ctx context.Context, source string, start, duration float64, audioPath string) error
}

// ClipAssembler remuxes an upscaled frame sequence into a batch clip.
type ClipAssembler interface {
	AssembleClip(ctx context.Context, req media.ClipRequest) error
}

// Options configure per-batch execution.
type Options struct {
	EncodeArgs string
	// StageRetries is the number of extra attempts for a stage whose
	// process failed. Zero (the default) means a single failure is
	// fatal for the batch. Output-count mismatches are never retried.
	StageRetries int
	// SourceHasAudio controls whether audio slices are extracted and
	// muxed into batch clips.
	SourceHasAudio bool
	// PollInterval is the upscale progress sampling period. Zero
	// disables polling.
	PollInterval time.Duration
}

// Pipeline executes one batch end-to-end. A single Pipeline is shared
// by all workers of a job; all per-batch state lives on the batch and
// its directory.
type Pipeline struct {
	extractor Extractor
	upscaler  upscale.Runner
	assembler ClipAssembler
	observer  Observer
	opts      Options
}

// New creates a batch pipeline. A nil observer discards events.
func New(extractor Extractor, upscaler upscale.Runner, assembler ClipAssembler, observer Observer, opts Options) *Pipeline {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Pipeline{
		extractor: extractor,
		upscaler:  upscaler,
		assembler: assembler,
		observer:  observer,
		opts:      opts,
	}
}

// RunBatch drives one batch through the state machine. On any failure
// the batch moves to Failed and every artifact it owns is removed; on
// success only the clip survives. The returned error is always a
// *model.Failure on the failure path.
func (p *Pipeline) RunBatch(ctx context.Context, job *model.Job, batch *model.Batch, dir *workdir.BatchDir) error {
	started := time.Now()
	batch.StartedAt = &started

	if err := dir.Create(); err != nil {
		return p.fail(batch, dir, model.NewBatchFailure(
			model.KindStageProcessFailure, batch.Index, "extract", err))
	}

	if err := p.extract(ctx, job, batch, dir); err != nil {
		return p.fail(batch, dir, err)
	}
	if err := p.upscale(ctx, batch, dir); err != nil {
		return p.fail(batch, dir, err)
	}
	if err := p.remux(ctx, job, batch, dir); err != nil {
		return p.fail(batch, dir, err)
	}

	// Clip written and verified: frame sets and the audio slice are no
	// longer needed. This is the disk-footprint bound: at most the
	// concurrency-bound number of frame sets exist at once.
	if err := dir.RemoveFrames(); err != nil {
		return p.fail(batch, dir, model.NewBatchFailure(
			model.KindStageProcessFailure, batch.Index, "cleanup", err))
	}

	batch.ClipPath = dir.ClipPath()
	completed := time.Now()
	batch.CompletedAt = &completed
	p.transition(batch, model.BatchComplete)
	return nil
}

func (p *Pipeline) extract(ctx context.Context, job *model.Job, batch *model.Batch, dir *workdir.BatchDir) error {
	p.transition(batch, model.BatchExtracting)

	err := p.retryStage(ctx, func() error {
		return p.extractor.ExtractFrames(ctx, job.ExtractSource(), batch.Start, batch.Duration, job.FrameRate, dir.FramesDir())
	})
	if err != nil {
		return model.NewBatchFailure(model.KindStageProcessFailure, batch.Index, "extract", err)
	}

	if p.opts.SourceHasAudio {
		err := p.retryStage(ctx, func() error {
			return p.extractor.ExtractAudio(ctx, job.ExtractSource(), batch.Start, batch.Duration, dir.AudioPath())
		})
		if err != nil {
			return model.NewBatchFailure(model.KindStageProcessFailure, batch.Index, "extract", err)
		}
	}

	count, err := upscale.CountFrames(dir.FramesDir())
	if err != nil {
		return model.NewBatchFailure(model.KindStageProcessFailure, batch.Index, "extract", err)
	}
	if count == 0 {
		return model.NewBatchFailure(model.KindStageProcessFailure, batch.Index, "extract",
			fmt.Errorf("no frames extracted for range [%g, %g)", batch.Start, batch.End()))
	}
	batch.FrameCount = count
	return nil
}

func (p *Pipeline) upscale(ctx context.Context, batch *model.Batch, dir *workdir.BatchDir) error {
	p.transition(batch, model.BatchUpscaling)

	poller := startProgressPoller(dir.UpscaledDir(), batch.Index, p.observer, p.opts.PollInterval)
	err := p.retryStage(ctx, func() error {
		return p.upscaler.Upscale(ctx, dir.FramesDir(), dir.UpscaledDir())
	})
	poller.stop()

	if err != nil {
		return model.NewBatchFailure(model.KindStageProcessFailure, batch.Index, "upscale", err)
	}

	// Hard precondition for remuxing: one upscaled frame per extracted
	// frame. A mismatch means the upscaler silently dropped frames and
	// the clip would drift out of sync.
	outCount, err := upscale.CountFrames(dir.UpscaledDir())
	if err != nil {
		return model.NewBatchFailure(model.KindStageProcessFailure, batch.Index, "upscale", err)
	}
	if outCount != batch.FrameCount {
		return model.NewBatchFailure(model.KindOutputCountMismatch, batch.Index, "upscale",
			fmt.Errorf("upscaled %d of %d frames", outCount, batch.FrameCount))
	}
	return nil
}

func (p *Pipeline) remux(ctx context.Context, job *model.Job, batch *model.Batch, dir *workdir.BatchDir) error {
	p.transition(batch, model.BatchRemuxing)

	audioPath := ""
	if p.opts.SourceHasAudio {
		audioPath = dir.AudioPath()
	}
	err := p.retryStage(ctx, func() error {
		return p.assembler.AssembleClip(ctx, media.ClipRequest{
			FramesDir:  dir.UpscaledDir(),
			AudioPath:  audioPath,
			FPS:        job.FrameRate,
			EncodeArgs: p.opts.EncodeArgs,
			OutputPath: dir.ClipPath(),
		})
	})
	if err != nil {
		return model.NewBatchFailure(model.KindStageProcessFailure, batch.Index, "remux", err)
	}

	info, err := os.Stat(dir.ClipPath())
	if err != nil || info.Size() == 0 {
		return model.NewBatchFailure(model.KindStageProcessFailure, batch.Index, "remux",
			fmt.Errorf("clip missing or empty: %s", dir.ClipPath()))
	}
	return nil
}

// retryStage runs one stage invocation with the configured retry
// budget. Context cancellation is not retried.
func (p *Pipeline) retryStage(ctx context.Context, stage func() error) error {
	var err error
	for attempt := 0; attempt <= p.opts.StageRetries; attempt++ {
		err = stage()
		if err == nil || ctx.Err() != nil {
			return err
		}
	}
	return err
}

// fail moves the batch to Failed and removes everything it owns.
// Cleanup on the failure path is unconditional: a long queue of
// failures must not exhaust the disk.
func (p *Pipeline) fail(batch *model.Batch, dir *workdir.BatchDir, failure error) error {
	batch.Err = failure
	completed := time.Now()
	batch.CompletedAt = &completed
	p.transition(batch, model.BatchFailed)

	if err := dir.Remove(); err != nil {
		// The failure outcome stands; surface the cleanup problem
		// alongside it.
		batch.Err = fmt.Errorf("%w (cleanup: %v)", failure, err)
	}
	return failure
}

// transition applies a state-machine step. Illegal steps, notably any
// exit from a terminal state, are refused so a stray RunBatch on a
// finished batch cannot corrupt its recorded outcome.
func (p *Pipeline) transition(batch *model.Batch, next model.BatchState) {
	if !batch.State.CanTransition(next) {
		return
	}
	batch.State = next
	p.observer.BatchStateChanged(batch)
}
