package model

import "time"

// BatchState represents the lifecycle position of a batch
type BatchState int

const (
	BatchPlanned BatchState = iota
	BatchExtracting
	BatchUpscaling
	BatchRemuxing
	BatchComplete
	BatchFailed
)

func (s BatchState) String() string {
	switch s {
	case BatchPlanned:
		return "planned"
	case BatchExtracting:
		return "extracting"
	case BatchUpscaling:
		return "upscaling"
	case BatchRemuxing:
		return "remuxing"
	case BatchComplete:
		return "complete"
	case BatchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal returns true when the state has no outgoing transitions
func (s BatchState) Terminal() bool {
	return s == BatchComplete || s == BatchFailed
}

// CanTransition reports whether moving from s to next is a legal
// state-machine step. Failed is reachable from every non-terminal state.
func (s BatchState) CanTransition(next BatchState) bool {
	if s.Terminal() {
		return false
	}
	if next == BatchFailed {
		return true
	}
	switch s {
	case BatchPlanned:
		return next == BatchExtracting
	case BatchExtracting:
		return next == BatchUpscaling
	case BatchUpscaling:
		return next == BatchRemuxing
	case BatchRemuxing:
		return next == BatchComplete
	default:
		return false
	}
}

// Batch is one contiguous time-range of a job's source video.
// The set of batches for a job is fixed at planning time: indices are
// contiguous from 0 and strictly increasing in time, and no batch is
// added, removed, or re-indexed afterwards.
type Batch struct {
	ID       int64 // Database ID (0 if not persisted)
	JobID    int64
	Index    int
	Start    float64 // seconds from the beginning of the source
	Duration float64 // seconds; equal for all batches except possibly the last
	State    BatchState

	ClipPath    string // set once the batch clip has been written
	FrameCount  int    // frames extracted for this batch
	StartedAt   *time.Time
	CompletedAt *time.Time
	Err         error // reason for BatchFailed, nil otherwise
}

// End returns the exclusive end of the batch's time-range in seconds.
func (b *Batch) End() float64 {
	return b.Start + b.Duration
}

// Elapsed returns how long the batch pipeline ran, or zero if unfinished.
func (b *Batch) Elapsed() time.Duration {
	if b.StartedAt == nil || b.CompletedAt == nil {
		return 0
	}
	return b.CompletedAt.Sub(*b.StartedAt)
}
