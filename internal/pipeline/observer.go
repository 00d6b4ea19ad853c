package pipeline

import "github.com/vleroux/upscale-pipeline/internal/model"

// Observer receives pipeline lifecycle events. Implementations must be
// safe for concurrent use: batch events arrive from multiple workers.
type Observer interface {
	// JobStarted fires once per job after planning, before any batch
	// launches. totalFrames is the estimated whole-job frame count.
	JobStarted(job *model.Job, totalBatches, totalFrames int)

	// BatchStateChanged fires on every batch state transition.
	BatchStateChanged(batch *model.Batch)

	// FramesProcessed fires with upscaled-frame-count deltas while a
	// batch is in the upscaling stage.
	FramesProcessed(batchIndex, delta int)

	// JobFinished fires once per job with the final outcome recorded
	// on the job.
	JobFinished(job *model.Job)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) JobStarted(*model.Job, int, int) {}
func (NopObserver) BatchStateChanged(*model.Batch)  {}
func (NopObserver) FramesProcessed(int, int)        {}
func (NopObserver) JobFinished(*model.Job)          {}

var _ Observer = NopObserver{}
