// Package queue drives a directory of videos through the pipeline, one
// job at a time. Jobs are independent: a failure is recorded and the
// queue moves on.
package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vleroux/upscale-pipeline/internal/assemble"
	"github.com/vleroux/upscale-pipeline/internal/config"
	"github.com/vleroux/upscale-pipeline/internal/db"
	"github.com/vleroux/upscale-pipeline/internal/logging"
	"github.com/vleroux/upscale-pipeline/internal/media"
	"github.com/vleroux/upscale-pipeline/internal/model"
	"github.com/vleroux/upscale-pipeline/internal/pipeline"
	"github.com/vleroux/upscale-pipeline/internal/planner"
	"github.com/vleroux/upscale-pipeline/internal/upscale"
	"github.com/vleroux/upscale-pipeline/internal/workdir"
)

// MediaTools is everything the driver needs from the ffmpeg wrapper.
// Satisfied by *media.FFmpeg.
type MediaTools interface {
	Probe(ctx context.Context, path string) (media.Info, error)
	Normalize(ctx context.Context, source string, info media.Info, workDir string) (media.NormalizeResult, error)
	pipeline.Extractor
	pipeline.ClipAssembler
	assemble.Concatenator
}

// Options configure queue behavior beyond the pipeline config.
type Options struct {
	// Console mirrors job logs to stderr in addition to the log file.
	Console bool
	// PollInterval is the upscale progress sampling period passed to
	// each job's pipeline. Zero disables progress events.
	PollInterval time.Duration
}

// Driver processes every video in the input directory sequentially.
type Driver struct {
	cfg      *config.Config
	media    MediaTools
	upscaler upscale.Runner
	repo     db.Repository
	observer pipeline.Observer
	opts     Options
}

// New creates a queue driver. repo and observer may be nil.
func New(cfg *config.Config, mt MediaTools, upscaler upscale.Runner, repo db.Repository, observer pipeline.Observer, opts Options) *Driver {
	if observer == nil {
		observer = pipeline.NopObserver{}
	}
	return &Driver{
		cfg:      cfg,
		media:    mt,
		upscaler: upscaler,
		repo:     repo,
		observer: observer,
		opts:     opts,
	}
}

// Result summarizes a queue run.
type Result struct {
	Jobs      []*model.Job
	Completed int
	Failed    int
}

// Run processes the input directory in lexicographic filename order.
// Each file is one job; a job failure is recorded on its Job and does
// not stop the queue. Cancellation stops between jobs and inside the
// running job's scheduler.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	sources, err := d.listSources()
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, src := range sources {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		job := d.runJob(ctx, src)
		result.Jobs = append(result.Jobs, job)
		switch job.Status {
		case model.JobStatusCompleted:
			result.Completed++
		default:
			result.Failed++
		}
	}
	return result, ctx.Err()
}

// listSources enumerates regular files in the input directory. Order is
// lexicographic by filename so runs are reproducible.
func (d *Driver) listSources() ([]string, error) {
	entries, err := os.ReadDir(d.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input dir: %w", err)
	}

	var sources []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		sources = append(sources, filepath.Join(d.cfg.InputDir, e.Name()))
	}
	sort.Strings(sources)
	return sources, nil
}

// runJob drives one video through probe, plan, batch execution, and
// reassembly. The returned job always carries a terminal status.
func (d *Driver) runJob(ctx context.Context, source string) *model.Job {
	job := &model.Job{
		SourcePath: source,
		Status:     model.JobStatusPending,
		OutputExt:  d.outputExt(source),
	}

	logger, err := logging.NewForJob(d.cfg.JobLogPath(job.SafeName()), d.opts.Console, map[string]any{"job": job.BaseName()})
	if err != nil {
		logger = logging.Discard()
	}
	defer logger.Close()

	fail := func(err error) *model.Job {
		job.MarkFailed(err)
		logger.Error("job failed: %v", err)
		d.recordJob(ctx, job)
		d.observer.JobFinished(job)
		return job
	}

	logger.Info("probing %s", source)
	info, err := d.media.Probe(ctx, source)
	if err != nil {
		return fail(err)
	}
	job.Duration = info.Duration
	job.FrameRate = info.TargetFPS()

	batches, err := planner.Plan(info.Duration, d.cfg.BatchLength)
	if err != nil {
		return fail(err)
	}

	jd, err := workdir.NewJobDir(d.cfg.WorkBase(), job.SafeName())
	if err != nil {
		return fail(model.NewFailure(model.KindStageProcessFailure, err))
	}
	defer jd.Remove()

	norm, err := d.media.Normalize(ctx, source, info, jd.Path())
	if err != nil {
		return fail(model.NewFailure(model.KindStageProcessFailure, err))
	}
	if norm.Temporary {
		job.WorkPath = norm.Path
		logger.Info("normalized source to %s", norm.Path)
	}

	started := time.Now()
	job.StartedAt = &started
	job.Status = model.JobStatusInProgress
	d.createJob(ctx, job, batches)

	totalFrames := int(info.Duration * float64(job.FrameRate))
	d.observer.JobStarted(job, len(batches), totalFrames)
	logger.Info("planned %d batches of %gs at %d fps (concurrency %d, stagger %s)",
		len(batches), d.cfg.BatchLength, job.FrameRate,
		planner.EffectiveConcurrency(d.cfg.BatchLength, d.cfg.Concurrency), d.cfg.Stagger())

	pl := pipeline.New(d.media, d.upscaler, d.media, d.batchObserver(ctx), pipeline.Options{
		EncodeArgs:     d.cfg.EncodeArgs,
		StageRetries:   d.cfg.StageRetries,
		SourceHasAudio: info.HasAudio,
		PollInterval:   d.opts.PollInterval,
	})
	scheduler := pipeline.NewScheduler(pl,
		planner.EffectiveConcurrency(d.cfg.BatchLength, d.cfg.Concurrency), d.cfg.Stagger())

	if err := scheduler.Run(ctx, job, batches, jd); err != nil {
		return fail(err)
	}

	asm := assemble.New(d.media, media.WriteConcatList, d.cfg.OutputDir)
	outputPath, err := asm.Assemble(ctx, job, batches, jd)
	if err != nil {
		return fail(err)
	}

	job.MarkCompleted(outputPath)
	logger.Info("completed: %s (%s)", outputPath, job.Elapsed().Round(time.Second))
	d.recordJob(ctx, job)
	d.observer.JobFinished(job)
	return job
}

// outputExt resolves the final container extension for a source file.
func (d *Driver) outputExt(source string) string {
	if d.cfg.InheritsFormat() {
		return filepath.Ext(source)
	}
	return d.cfg.OutputFormat
}

func (d *Driver) createJob(ctx context.Context, job *model.Job, batches []model.Batch) {
	if d.repo == nil {
		return
	}
	if err := d.repo.CreateJob(ctx, job); err != nil {
		return
	}
	d.repo.CreateBatches(ctx, job.ID, batches)
}

func (d *Driver) recordJob(ctx context.Context, job *model.Job) {
	if d.repo == nil {
		return
	}
	// Jobs that fail before planning were never inserted.
	if job.ID == 0 {
		d.repo.CreateJob(ctx, job)
		return
	}
	d.repo.UpdateJob(ctx, job)
}

// batchObserver forwards batch events to the configured observer and
// mirrors state changes into the run ledger.
func (d *Driver) batchObserver(ctx context.Context) pipeline.Observer {
	if d.repo == nil {
		return d.observer
	}
	return &ledgerObserver{next: d.observer, repo: d.repo, ctx: ctx}
}

type ledgerObserver struct {
	next pipeline.Observer
	repo db.Repository
	ctx  context.Context
}

func (l *ledgerObserver) JobStarted(job *model.Job, totalBatches, totalFrames int) {
	l.next.JobStarted(job, totalBatches, totalFrames)
}

func (l *ledgerObserver) JobFinished(job *model.Job) {
	l.next.JobFinished(job)
}

func (l *ledgerObserver) BatchStateChanged(b *model.Batch) {
	if b.ID != 0 {
		l.repo.UpdateBatch(l.ctx, b)
	}
	l.next.BatchStateChanged(b)
}

func (l *ledgerObserver) FramesProcessed(batchIndex, delta int) {
	l.next.FramesProcessed(batchIndex, delta)
}
