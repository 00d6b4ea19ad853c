package pipeline

import (
	"time"

	"github.com/vleroux/upscale-pipeline/internal/upscale"
)

// progressPoller samples the upscaled-frame directory while the
// upscaler runs and reports count deltas to the observer. The upscaler
// gives no progress output of its own; the growing output directory is
// the only signal.
type progressPoller struct {
	done chan struct{}
	tick *time.Ticker
}

func startProgressPoller(dir string, batchIndex int, obs Observer, interval time.Duration) *progressPoller {
	p := &progressPoller{done: make(chan struct{})}
	if interval <= 0 {
		return p
	}

	p.tick = time.NewTicker(interval)
	go func() {
		last := 0
		report := func() {
			count, err := upscale.CountFrames(dir)
			if err == nil && count > last {
				obs.FramesProcessed(batchIndex, count-last)
				last = count
			}
		}
		for {
			select {
			case <-p.done:
				// Final sample so completed frames are never
				// under-reported.
				report()
				return
			case <-p.tick.C:
				report()
			}
		}
	}()
	return p
}

func (p *progressPoller) stop() {
	if p.tick != nil {
		p.tick.Stop()
	}
	select {
	case <-p.done:
	default:
		close(p.done)
	}
}
