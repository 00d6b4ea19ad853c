package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vleroux/upscale-pipeline/internal/model"
	"github.com/vleroux/upscale-pipeline/internal/workdir"
)

// trackingRunner records launch order, concurrency, and timing, and
// marks batches complete (or failed) like the real pipeline does.
type trackingRunner struct {
	runFor   time.Duration
	failIdx  map[int]bool
	release  chan struct{} // when set, RunBatch blocks until closed

	mu          sync.Mutex
	launchOrder []int
	launchTimes []time.Time
	active      int
	maxActive   int
}

func (r *trackingRunner) RunBatch(ctx context.Context, job *model.Job, batch *model.Batch, dir *workdir.BatchDir) error {
	r.mu.Lock()
	r.launchOrder = append(r.launchOrder, batch.Index)
	r.launchTimes = append(r.launchTimes, time.Now())
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	r.mu.Unlock()

	if r.release != nil {
		<-r.release
	} else if r.runFor > 0 {
		time.Sleep(r.runFor)
	}

	r.mu.Lock()
	r.active--
	r.mu.Unlock()

	if r.failIdx[batch.Index] {
		batch.State = model.BatchFailed
		batch.Err = model.NewBatchFailure(model.KindStageProcessFailure, batch.Index, "upscale", context.Canceled)
		return batch.Err
	}
	batch.State = model.BatchComplete
	return nil
}

func plannedBatches(n int) []model.Batch {
	batches := make([]model.Batch, n)
	for i := range batches {
		batches[i] = model.Batch{Index: i, Start: float64(i) * 20, Duration: 20, State: model.BatchPlanned}
	}
	return batches
}

func TestScheduler_RespectsConcurrencyBound(t *testing.T) {
	jd, _ := workdir.NewJobDir(t.TempDir(), "m")
	runner := &trackingRunner{runFor: 20 * time.Millisecond}
	s := NewScheduler(runner, 2, 0)

	batches := plannedBatches(6)
	if err := s.Run(context.Background(), testJob(), batches, jd); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if runner.maxActive > 2 {
		t.Errorf("max concurrent batches = %d, want <= 2", runner.maxActive)
	}
	for i := range batches {
		if batches[i].State != model.BatchComplete {
			t.Errorf("batch %d State = %s, want complete", i, batches[i].State)
		}
	}
}

func TestScheduler_LaunchesInAscendingIndexOrder(t *testing.T) {
	jd, _ := workdir.NewJobDir(t.TempDir(), "m")
	runner := &trackingRunner{runFor: 5 * time.Millisecond}
	s := NewScheduler(runner, 3, 0)

	if err := s.Run(context.Background(), testJob(), plannedBatches(5), jd); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i, idx := range runner.launchOrder {
		if idx != i {
			t.Fatalf("launch order = %v, want ascending indices", runner.launchOrder)
		}
	}
}

func TestScheduler_StaggersConsecutiveLaunches(t *testing.T) {
	jd, _ := workdir.NewJobDir(t.TempDir(), "m")
	runner := &trackingRunner{runFor: time.Millisecond}
	stagger := 40 * time.Millisecond
	s := NewScheduler(runner, 3, stagger)

	start := time.Now()
	if err := s.Run(context.Background(), testJob(), plannedBatches(3), jd); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(runner.launchTimes) != 3 {
		t.Fatalf("launches = %d, want 3", len(runner.launchTimes))
	}
	// The first batch launches without delay.
	if d := runner.launchTimes[0].Sub(start); d > stagger/2 {
		t.Errorf("first launch delayed by %v, want immediate", d)
	}
	for i := 1; i < len(runner.launchTimes); i++ {
		gap := runner.launchTimes[i].Sub(runner.launchTimes[i-1])
		// Allow a small scheduling slack below the nominal stagger.
		if gap < stagger-5*time.Millisecond {
			t.Errorf("launch gap %d = %v, want >= %v", i, gap, stagger)
		}
	}
}

func TestScheduler_FailureDoesNotStopLaterLaunches(t *testing.T) {
	jd, _ := workdir.NewJobDir(t.TempDir(), "m")
	runner := &trackingRunner{failIdx: map[int]bool{2: true}}
	s := NewScheduler(runner, 2, 0)

	batches := plannedBatches(5)
	err := s.Run(context.Background(), testJob(), batches, jd)

	f, ok := model.AsFailure(err)
	if !ok || f.Batch != 2 {
		t.Fatalf("Run() error = %v, want batch 2 failure", err)
	}
	if len(runner.launchOrder) != 5 {
		t.Errorf("launches = %d, want all 5", len(runner.launchOrder))
	}
	for _, i := range []int{0, 1, 3, 4} {
		if batches[i].State != model.BatchComplete {
			t.Errorf("batch %d State = %s, want complete", i, batches[i].State)
		}
	}
}

func TestScheduler_CancellationStopsNewLaunches(t *testing.T) {
	jd, _ := workdir.NewJobDir(t.TempDir(), "m")
	release := make(chan struct{})
	runner := &trackingRunner{release: release}
	s := NewScheduler(runner, 1, 0)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, testJob(), plannedBatches(4), jd)
	}()

	// Let the first batch take the only slot, then cancel.
	for {
		runner.mu.Lock()
		launched := len(runner.launchOrder)
		runner.mu.Unlock()
		if launched == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	close(release)

	err := <-done
	if err == nil {
		t.Fatal("Run() error = nil, want context error")
	}
	runner.mu.Lock()
	launched := len(runner.launchOrder)
	runner.mu.Unlock()
	if launched != 1 {
		t.Errorf("launches after cancel = %d, want 1", launched)
	}
}

func TestScheduler_ForcesMinimumConcurrency(t *testing.T) {
	s := NewScheduler(&trackingRunner{}, 0, 0)
	if s.concurrency != 1 {
		t.Errorf("concurrency = %d, want 1", s.concurrency)
	}
}
