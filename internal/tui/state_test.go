package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vleroux/upscale-pipeline/internal/model"
)

func startedJob() *model.Job {
	return &model.Job{SourcePath: "/in/My Movie.mp4", Status: model.JobStatusInProgress}
}

func TestRunState_JobLifecycle(t *testing.T) {
	var s RunState

	s.ApplyJobStarted(startedJob(), 3, 720)
	if s.CurrentJob != "My Movie" {
		t.Errorf("CurrentJob = %q, want My Movie", s.CurrentJob)
	}
	if len(s.BatchStates) != 3 {
		t.Fatalf("BatchStates = %d, want 3", len(s.BatchStates))
	}
	if !s.Active() {
		t.Error("Active() = false after start")
	}

	s.ApplyBatchState(0, model.BatchComplete)
	s.ApplyBatchState(1, model.BatchUpscaling)
	if s.CompletedBatches() != 1 {
		t.Errorf("CompletedBatches() = %d, want 1", s.CompletedBatches())
	}

	job := startedJob()
	job.MarkCompleted("/out/My Movie.mkv")
	s.ApplyJobFinished(job)

	if s.Active() {
		t.Error("Active() = true after finish")
	}
	if len(s.Done) != 1 {
		t.Fatalf("Done = %d entries, want 1", len(s.Done))
	}
	if !s.Done[0].Completed || s.Done[0].OutputPath != "/out/My Movie.mkv" {
		t.Errorf("Done[0] = %+v", s.Done[0])
	}
}

func TestRunState_FramesClampToTotal(t *testing.T) {
	var s RunState
	s.ApplyJobStarted(startedJob(), 1, 100)

	s.ApplyFrames(60)
	s.ApplyFrames(60)
	if s.FramesDone != 100 {
		t.Errorf("FramesDone = %d, want clamped to 100", s.FramesDone)
	}
}

func TestRunState_IgnoresOutOfRangeBatch(t *testing.T) {
	var s RunState
	s.ApplyJobStarted(startedJob(), 2, 0)

	s.ApplyBatchState(5, model.BatchComplete)
	s.ApplyBatchState(-1, model.BatchComplete)
	if s.CompletedBatches() != 0 {
		t.Errorf("CompletedBatches() = %d, want 0", s.CompletedBatches())
	}
}

func TestRunState_RecordsFailedJob(t *testing.T) {
	var s RunState
	s.ApplyJobStarted(startedJob(), 2, 0)

	job := startedJob()
	job.MarkFailed(model.NewBatchFailure(model.KindStageProcessFailure, 1, "upscale", nil))
	s.ApplyJobFinished(job)

	if len(s.Done) != 1 {
		t.Fatalf("Done = %d entries, want 1", len(s.Done))
	}
	if s.Done[0].Completed {
		t.Error("failed job recorded as completed")
	}
	if !strings.Contains(s.Done[0].Error, "stage_process_failure") {
		t.Errorf("Error = %q, want failure kind", s.Done[0].Error)
	}
}

func TestApp_UpdateHandlesEvents(t *testing.T) {
	app := NewApp()

	m, _ := app.Update(jobStartedMsg{job: startedJob(), totalBatches: 2, totalFrames: 480})
	app = m.(*App)
	m, _ = app.Update(batchStateMsg{index: 0, state: model.BatchUpscaling})
	app = m.(*App)
	m, _ = app.Update(framesMsg{delta: 120})
	app = m.(*App)

	view := app.View()
	if !strings.Contains(view, "My Movie") {
		t.Errorf("view missing job name:\n%s", view)
	}
	if !strings.Contains(view, "120/480") {
		t.Errorf("view missing frame progress:\n%s", view)
	}
}

func TestApp_QueueDoneQuits(t *testing.T) {
	app := NewApp()

	m, cmd := app.Update(queueDoneMsg{})
	app = m.(*App)
	if !app.done {
		t.Error("done not set")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("cmd() = %v, want tea.Quit", msg)
	}
}

func TestApp_KeyQuits(t *testing.T) {
	app := NewApp()
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command on ctrl+c")
	}
}
