// Package planner splits a source video into the ordered batch plan the
// scheduler executes. The plan is immutable once produced: reassembly
// relies on contiguous index coverage of [0, duration).
package planner

import (
	"fmt"

	"github.com/vleroux/upscale-pipeline/internal/model"
)

// epsilon absorbs float accumulation when deciding whether a trailing
// sliver of video remains to be covered.
const epsilon = 1e-9

// Plan computes the batch plan for a video of the given duration.
// batchLength == 0 is the whole-video sentinel: a single batch spanning
// [0, duration). Every batch has length batchLength except possibly the
// last, which covers the remainder; a zero-duration batch is never
// emitted.
func Plan(duration, batchLength float64) ([]model.Batch, error) {
	if duration <= 0 {
		return nil, model.NewFailure(model.KindInvalidDuration,
			fmt.Errorf("video duration %v, want > 0", duration))
	}
	if batchLength < 0 {
		return nil, model.NewFailure(model.KindInvalidConfig,
			fmt.Errorf("batch length %v, want >= 0", batchLength))
	}

	if batchLength == 0 {
		return []model.Batch{{Index: 0, Start: 0, Duration: duration, State: model.BatchPlanned}}, nil
	}

	var batches []model.Batch
	for start := 0.0; start < duration-epsilon; start += batchLength {
		length := batchLength
		if start+length > duration {
			length = duration - start
		}
		batches = append(batches, model.Batch{
			Index:    len(batches),
			Start:    start,
			Duration: length,
			State:    model.BatchPlanned,
		})
	}
	return batches, nil
}

// EffectiveConcurrency caps the configured concurrency bound for a plan.
// A single whole-video batch cannot be split across workers, so the
// batchLength == 0 sentinel forces the bound to 1.
func EffectiveConcurrency(batchLength float64, configured int) int {
	if batchLength == 0 {
		return 1
	}
	return configured
}
