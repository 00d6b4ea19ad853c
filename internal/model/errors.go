package model

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a job (or one of its batches) failed.
type FailureKind string

const (
	// KindInvalidConfig covers bad concurrency, stagger, or batch-length
	// values. Caught before any job starts.
	KindInvalidConfig FailureKind = "invalid_config"
	// KindInvalidDuration covers unreadable or zero-length sources.
	KindInvalidDuration FailureKind = "invalid_duration"
	// KindStageProcessFailure covers an extraction, upscale, or remux
	// process exiting non-zero (or producing no frames at all).
	KindStageProcessFailure FailureKind = "stage_process_failure"
	// KindOutputCountMismatch covers an upscale run whose output frame
	// count differs from its input frame count.
	KindOutputCountMismatch FailureKind = "output_count_mismatch"
	// KindReassemblyIncomplete covers attempted reassembly while one or
	// more batches are not Complete.
	KindReassemblyIncomplete FailureKind = "reassembly_incomplete"
)

// Failure is the typed error carried through the pipeline. Batch is -1
// when the failure is not scoped to a single batch.
type Failure struct {
	Kind  FailureKind
	Batch int
	Stage string
	Err   error
}

func (f *Failure) Error() string {
	switch {
	case f.Batch >= 0 && f.Stage != "":
		return fmt.Sprintf("%s: batch %d %s: %v", f.Kind, f.Batch, f.Stage, f.Err)
	case f.Batch >= 0:
		return fmt.Sprintf("%s: batch %d: %v", f.Kind, f.Batch, f.Err)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	default:
		return string(f.Kind)
	}
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure builds a job-scoped failure (no batch attribution).
func NewFailure(kind FailureKind, err error) *Failure {
	return &Failure{Kind: kind, Batch: -1, Err: err}
}

// NewBatchFailure builds a failure attributed to one batch and stage.
func NewBatchFailure(kind FailureKind, batch int, stage string, err error) *Failure {
	return &Failure{Kind: kind, Batch: batch, Stage: stage, Err: err}
}

// AsFailure extracts a *Failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// KindOf returns the failure kind of an error, or an empty kind for
// errors outside the taxonomy.
func KindOf(err error) FailureKind {
	if f, ok := AsFailure(err); ok {
		return f.Kind
	}
	return ""
}
