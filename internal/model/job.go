package model

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// JobStatus represents the current state of a video job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents one input video moving through the pipeline.
// Batches belonging to different jobs are never mixed.
type Job struct {
	ID         int64 // Database ID (0 if not persisted)
	SourcePath string
	WorkPath   string  // normalized copy used for extraction; empty = SourcePath
	Duration   float64 // seconds, probed from the source
	FrameRate  int     // integral target fps (rounded average frame rate)
	OutputExt  string  // final container extension, with leading dot
	OutputPath string  // set after reassembly succeeds
	Status     JobStatus

	// Failure attribution, populated when Status is failed
	FailureKind  FailureKind
	FailedBatch  int // -1 when the failure is not batch-scoped
	FailedStage  string
	ErrorMessage string

	StartedAt   *time.Time
	CompletedAt *time.Time
}

// BaseName returns the source filename without directory or extension.
func (j *Job) BaseName() string {
	base := filepath.Base(j.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SafeName returns a filesystem-safe version of the base name, used for
// working-directory paths.
func (j *Job) SafeName() string {
	var result strings.Builder
	for _, r := range j.BaseName() {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			result.WriteRune('_')
		}
	}
	s := result.String()
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// ExtractSource returns the file batches are extracted from. Frame
// extraction reads the normalized copy when one was made; audio and
// metadata merging always reads SourcePath.
func (j *Job) ExtractSource() string {
	if j.WorkPath != "" {
		return j.WorkPath
	}
	return j.SourcePath
}

// OutputName returns the final output filename for the job.
func (j *Job) OutputName() string {
	return j.BaseName() + j.OutputExt
}

// IsActive returns true if the job is pending or in progress
func (j *Job) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusInProgress
}

// Elapsed returns the job duration, or zero if not completed
func (j *Job) Elapsed() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// MarkFailed records a failure outcome on the job. The batch index and
// stage are taken from the error when it carries them.
func (j *Job) MarkFailed(err error) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.FailedBatch = -1
	if f, ok := AsFailure(err); ok {
		j.FailureKind = f.Kind
		j.FailedBatch = f.Batch
		j.FailedStage = f.Stage
	} else {
		j.FailureKind = KindStageProcessFailure
	}
	if err != nil {
		j.ErrorMessage = err.Error()
	}
}

// MarkCompleted records a successful outcome and the output location.
func (j *Job) MarkCompleted(outputPath string) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.OutputPath = outputPath
	j.CompletedAt = &now
}
