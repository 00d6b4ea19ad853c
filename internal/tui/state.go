package tui

import (
	"github.com/vleroux/upscale-pipeline/internal/model"
)

// JobOutcome records one finished job for the history section.
type JobOutcome struct {
	Name       string
	Completed  bool
	OutputPath string
	Error      string
}

// RunState is the pure view state for a queue run. It is fed by
// observer events and holds everything the watch view renders.
type RunState struct {
	CurrentJob   string
	TotalBatches int
	TotalFrames  int
	FramesDone   int
	BatchStates  []model.BatchState

	Done []JobOutcome
}

// ApplyJobStarted resets per-job state for a newly started job.
func (s *RunState) ApplyJobStarted(job *model.Job, totalBatches, totalFrames int) {
	s.CurrentJob = job.BaseName()
	s.TotalBatches = totalBatches
	s.TotalFrames = totalFrames
	s.FramesDone = 0
	s.BatchStates = make([]model.BatchState, totalBatches)
}

// ApplyBatchState records a batch state transition.
func (s *RunState) ApplyBatchState(index int, state model.BatchState) {
	if index < 0 || index >= len(s.BatchStates) {
		return
	}
	s.BatchStates[index] = state
}

// ApplyFrames accumulates upscaled-frame progress.
func (s *RunState) ApplyFrames(delta int) {
	s.FramesDone += delta
	if s.TotalFrames > 0 && s.FramesDone > s.TotalFrames {
		s.FramesDone = s.TotalFrames
	}
}

// ApplyJobFinished moves the current job into the history.
func (s *RunState) ApplyJobFinished(job *model.Job) {
	outcome := JobOutcome{
		Name:       job.BaseName(),
		Completed:  job.Status == model.JobStatusCompleted,
		OutputPath: job.OutputPath,
		Error:      job.ErrorMessage,
	}
	s.Done = append(s.Done, outcome)
	s.CurrentJob = ""
	s.BatchStates = nil
	s.TotalBatches = 0
	s.TotalFrames = 0
	s.FramesDone = 0
}

// CompletedBatches counts batches that reached Complete.
func (s *RunState) CompletedBatches() int {
	n := 0
	for _, st := range s.BatchStates {
		if st == model.BatchComplete {
			n++
		}
	}
	return n
}

// Active reports whether a job is currently running.
func (s *RunState) Active() bool {
	return s.CurrentJob != ""
}
