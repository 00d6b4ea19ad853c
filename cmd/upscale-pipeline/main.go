package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vleroux/upscale-pipeline/internal/config"
	"github.com/vleroux/upscale-pipeline/internal/db"
	"github.com/vleroux/upscale-pipeline/internal/media"
	"github.com/vleroux/upscale-pipeline/internal/model"
	"github.com/vleroux/upscale-pipeline/internal/queue"
	"github.com/vleroux/upscale-pipeline/internal/tui"
	"github.com/vleroux/upscale-pipeline/internal/upscale"
)

func main() {
	var (
		configPath string
		inputDir   string
		outputDir  string
		workDir    string
		noUI       bool
		listRuns   bool
		showJobID  int64
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/upscale-pipeline/config.yaml)")
	flag.StringVar(&inputDir, "input", "", "Input directory (overrides config)")
	flag.StringVar(&outputDir, "output", "", "Output directory (overrides config)")
	flag.StringVar(&workDir, "work", "", "Work directory for batch artifacts (overrides config)")
	flag.BoolVar(&noUI, "no-ui", false, "Disable the progress UI, log to stderr instead")
	flag.BoolVar(&listRuns, "list", false, "List recorded jobs from the run ledger and exit")
	flag.Int64Var(&showJobID, "job", 0, "Show one recorded job with its batches and exit")
	flag.Parse()

	if err := run(configPath, inputDir, outputDir, workDir, noUI, listRuns, showJobID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, inputDir, outputDir, workDir string, noUI, listRuns bool, showJobID int64) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if inputDir != "" {
		cfg.InputDir = inputDir
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if workDir != "" {
		cfg.WorkDir = workDir
	}

	// Ledger queries need only the database, not a runnable config.
	if listRuns || showJobID != 0 {
		database, err := db.Open(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		repo := db.NewSQLiteRepository(database)
		if showJobID != 0 {
			return showJob(context.Background(), repo, os.Stdout, showJobID)
		}
		return listJobs(context.Background(), repo, os.Stdout, 20)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	repo := db.NewSQLiteRepository(database)

	ffmpeg := media.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath)
	upscaler := upscale.NewRunner(cfg.Upscale.Binary, upscale.Options{
		Model:     cfg.Upscale.Model,
		Scale:     cfg.Upscale.Scale,
		Tile:      cfg.Upscale.Tile,
		ExtraArgs: cfg.Upscale.ExtraArgs,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if noUI || !stdoutIsTerminal() {
		return runHeadless(ctx, cfg, ffmpeg, upscaler, repo)
	}
	return runWithUI(ctx, cfg, ffmpeg, upscaler, repo)
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.LoadDefault()
	if err != nil {
		// Missing default config is fine, flags can carry the run.
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func runHeadless(ctx context.Context, cfg *config.Config, ffmpeg *media.FFmpeg, upscaler upscale.Runner, repo db.Repository) error {
	driver := queue.New(cfg, ffmpeg, upscaler, repo, nil, queue.Options{
		Console:      true,
		PollInterval: time.Second,
	})

	result, err := driver.Run(ctx)
	if err != nil {
		return err
	}
	return summarize(result)
}

// runOutcome carries the queue result across the driver goroutine
// boundary. The channel send is the only synchronization between the
// driver and the UI shutdown path.
type runOutcome struct {
	result *queue.Result
	err    error
}

func runWithUI(ctx context.Context, cfg *config.Config, ffmpeg *media.FFmpeg, upscaler upscale.Runner, repo db.Repository) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := tui.NewApp()
	program := tea.NewProgram(app)
	observer := tui.NewObserver(program)

	driver := queue.New(cfg, ffmpeg, upscaler, repo, observer, queue.Options{
		PollInterval: time.Second,
	})

	outcome := make(chan runOutcome, 1)
	go func() {
		result, err := driver.Run(ctx)
		observer.QueueDone()
		outcome <- runOutcome{result: result, err: err}
	}()

	// program.Run returns when the queue finishes or the user quits.
	// Either way the driver goroutine must drain before its result is
	// touched: quitting stops new batch launches, in-flight batches
	// still run to completion so no external process dies mid-write.
	if _, err := program.Run(); err != nil {
		cancel()
		<-outcome
		return fmt.Errorf("ui error: %w", err)
	}
	return finishRun(cancel, outcome)
}

// finishRun stops new launches, waits for in-flight batches to drain,
// and reports the queue outcome.
func finishRun(cancel context.CancelFunc, outcome <-chan runOutcome) error {
	cancel()
	o := <-outcome
	if o.err != nil {
		if errors.Is(o.err, context.Canceled) {
			if o.result != nil && len(o.result.Jobs) > 0 {
				summarize(o.result)
			}
			return errors.New("run aborted")
		}
		return o.err
	}
	return summarize(o.result)
}

func summarize(result *queue.Result) error {
	if result == nil {
		return errors.New("run aborted before any job started")
	}
	for _, job := range result.Jobs {
		switch job.Status {
		case model.JobStatusCompleted:
			fmt.Printf("completed %s -> %s\n", job.SourcePath, job.OutputPath)
		default:
			fmt.Printf("failed    %s: %s\n", job.SourcePath, job.ErrorMessage)
		}
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", result.Failed, len(result.Jobs))
	}
	return nil
}

// listJobs prints recent ledger entries, newest first.
func listJobs(ctx context.Context, repo db.Repository, w io.Writer, limit int) error {
	jobs, err := repo.ListJobs(ctx, db.ListOptions{Limit: limit})
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(w, "no recorded jobs")
		return nil
	}
	for i := range jobs {
		job := &jobs[i]
		fmt.Fprintf(w, "%4d  %-11s %s\n", job.ID, job.Status, job.SourcePath)
		if job.Status == model.JobStatusFailed {
			fmt.Fprintf(w, "      %s\n", failureLine(job))
		}
	}
	return nil
}

// showJob prints one job with its full batch ledger.
func showJob(ctx context.Context, repo db.Repository, w io.Writer, id int64) error {
	job, err := repo.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %d not found", id)
	}

	fmt.Fprintf(w, "job %d: %s (%s)\n", job.ID, job.SourcePath, job.Status)
	if job.OutputPath != "" {
		fmt.Fprintf(w, "output: %s\n", job.OutputPath)
	}
	if job.Status == model.JobStatusFailed {
		fmt.Fprintf(w, "failure: %s\n", failureLine(job))
	}

	batches, err := repo.ListBatches(ctx, job.ID)
	if err != nil {
		return err
	}
	for i := range batches {
		b := &batches[i]
		fmt.Fprintf(w, "  batch %d [%g, %g): %s", b.Index, b.Start, b.End(), b.State)
		if b.FrameCount > 0 {
			fmt.Fprintf(w, ", %d frames", b.FrameCount)
		}
		if b.Err != nil {
			fmt.Fprintf(w, ": %v", b.Err)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func failureLine(job *model.Job) string {
	if job.FailedBatch >= 0 {
		return fmt.Sprintf("%s at batch %d (%s): %s",
			job.FailureKind, job.FailedBatch, job.FailedStage, job.ErrorMessage)
	}
	return fmt.Sprintf("%s: %s", job.FailureKind, job.ErrorMessage)
}
