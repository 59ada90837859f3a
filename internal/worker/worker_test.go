package worker

import (
	"sync/atomic"
	"time"

	"testing"

	"github.com/Ap3pp3rs94/msgfabric/internal/jobqueue"
)

func TestWorkerProcessesQueuedJob(t *testing.T) {
	pool := jobqueue.NewPool()
	w := New(pool, jobqueue.PriorityHigh, nil, nil)
	w.Start()
	defer w.Stop()

	var ran atomic.Bool
	done := make(chan struct{})
	_ = pool.Push(&jobqueue.Job{
		Name:     "t1",
		Priority: jobqueue.PriorityHigh,
		Run: func() error {
			ran.Store(true)
			close(done)
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("job did not run within timeout")
	}
	if !ran.Load() {
		t.Fatalf("expected job to have run")
	}
}

func TestWorkerFallsBackToOtherPriorities(t *testing.T) {
	pool := jobqueue.NewPool()
	w := New(pool, jobqueue.PriorityHigh, []jobqueue.Priority{jobqueue.PriorityLow}, nil)
	w.Start()
	defer w.Stop()

	done := make(chan struct{})
	_ = pool.Push(&jobqueue.Job{
		Name:     "low-job",
		Priority: jobqueue.PriorityLow,
		Run: func() error {
			close(done)
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("fallback job did not run within timeout")
	}
}

func TestWorkerStopDrainsQueuedThenExits(t *testing.T) {
	pool := jobqueue.NewPool()
	w := New(pool, jobqueue.PriorityNormal, nil, nil)
	w.Start()

	var processed atomic.Int32
	for i := 0; i < 3; i++ {
		_ = pool.Push(&jobqueue.Job{
			Name:     "job",
			Priority: jobqueue.PriorityNormal,
			Run: func() error {
				processed.Add(1)
				return nil
			},
		})
	}

	pool.SetPushLock(true)
	w.Stop()

	if processed.Load() != 3 {
		t.Fatalf("expected all 3 queued jobs to drain before stop, got %d", processed.Load())
	}
	if w.Active() {
		t.Fatalf("expected worker to be inactive after Stop")
	}
}
