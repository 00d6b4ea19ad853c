package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vleroux/upscale-pipeline/internal/model"
	"github.com/vleroux/upscale-pipeline/internal/workdir"
)

// BatchRunner executes one batch end-to-end. Satisfied by *Pipeline.
type BatchRunner interface {
	RunBatch(ctx context.Context, job *model.Job, batch *model.Batch, dir *workdir.BatchDir) error
}

// Scheduler launches a job's batches across a bounded worker pool.
//
// Two independent knobs govern launches: the slot pool bounds how many
// batches are in flight at once, and the stagger delay spaces out
// consecutive launch times. Concurrency alone would fire every slot's
// extraction at the same instant; the stagger spreads stage
// transitions so that, steady-state, one batch upscales on the GPU
// while another extracts on the CPU. Neither knob substitutes for the
// other.
type Scheduler struct {
	runner      BatchRunner
	concurrency int
	stagger     time.Duration
}

// NewScheduler creates a scheduler with the given slot count and
// stagger delay.
func NewScheduler(runner BatchRunner, concurrency int, stagger time.Duration) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		runner:      runner,
		concurrency: concurrency,
		stagger:     stagger,
	}
}

// Run launches every batch in ascending index order and waits for all
// in-flight work. A slot is held from launch until the batch's clip is
// written (or the batch fails); slots are never leaked.
//
// A batch failure does not stop later launches: remaining batches
// still run and clean up after themselves; the first failure (by
// index) is returned after all workers drain. Context cancellation
// stops new launches but lets in-flight batches finish, so no external
// process is killed mid-write.
func (s *Scheduler) Run(ctx context.Context, job *model.Job, batches []model.Batch, jd *workdir.JobDir) error {
	slots := make(chan struct{}, s.concurrency)
	g := new(errgroup.Group)

	var lastLaunch time.Time
launch:
	for i := range batches {
		if i > 0 && !s.waitStagger(ctx, lastLaunch) {
			break
		}

		// Slot acquisition. Cancellation while waiting means the
		// batch never launches; in-flight batches are unaffected.
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			break launch
		}

		batch := &batches[i]
		// Failures are recorded on the batch, never returned from the
		// group, so one failure cannot cancel its siblings.
		g.Go(func() error {
			defer func() { <-slots }()
			s.runner.RunBatch(ctx, job, batch, jd.Batch(batch.Index))
			return nil
		})
		lastLaunch = time.Now()
	}

	g.Wait()

	for i := range batches {
		if batches[i].State == model.BatchFailed {
			return batches[i].Err
		}
	}
	return ctx.Err()
}

// waitStagger sleeps out the remainder of the stagger window since the
// previous launch. Returns false when the context is cancelled first.
func (s *Scheduler) waitStagger(ctx context.Context, lastLaunch time.Time) bool {
	remaining := s.stagger - time.Since(lastLaunch)
	if remaining <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
