// Package worker runs jobqueue.Job values pulled from a priority
// pool. Grounded on original_source/concurrency/thread_worker.h: each
// worker has one primary priority and an ordered fallback list, and
// blocks until either its queue has work or it's told to stop.
//
// The original blocks a dedicated OS thread on a condition_variable
// (check_condition), woken by job_pool's notification callback. Go's
// idiomatic analogue for "block until signaled, then re-check a
// predicate" is a buffered, drop-if-full wake channel rather than
// sync.Cond (sync.Cond requires an explicit Lock/Unlock dance around
// every Wait and does not compose with select/context the way this
// code needs to, to also watch for Stop). A size-1 channel gives the
// same "only block when truly idle" behavior the condition variable
// gave the original, at the cost of at most one spurious wake per
// burst of pushes, which Pop's loop absorbs for free.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Ap3pp3rs94/msgfabric/internal/jobqueue"
	"github.com/Ap3pp3rs94/msgfabric/pkg/telemetry"
)

// Worker pulls jobs of one priority (falling back through others)
// from a Pool and runs them on a single goroutine, serially — the
// same single-thread-per-worker model as thread_worker.
type Worker struct {
	pool     *jobqueue.Pool
	priority jobqueue.Priority
	others   []jobqueue.Priority
	log      *telemetry.Logger

	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	active atomic.Bool

	completed atomic.Uint64
	failed    atomic.Uint64
}

// New builds a worker for priority, falling back through others in
// order when priority's queue is empty.
func New(pool *jobqueue.Pool, priority jobqueue.Priority, others []jobqueue.Priority, log *telemetry.Logger) *Worker {
	if log == nil {
		log = telemetry.Nop
	}
	w := &Worker{
		pool:     pool,
		priority: priority,
		others:   others,
		log:      log,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	pool.AppendNotification(w.onNotify)
	return w
}

// onNotify is the pool's push callback: if the pushed priority is one
// this worker services, nudge it awake. A notify for a priority this
// worker doesn't service is ignored; the run loop re-checks the actual
// queues on every wake regardless.
func (w *Worker) onNotify(p jobqueue.Priority) {
	if p != w.priority {
		owns := false
		for _, other := range w.others {
			if other == p {
				owns = true
				break
			}
		}
		if !owns {
			return
		}
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start launches the worker's run loop on its own goroutine.
func (w *Worker) Start() {
	w.active.Store(true)
	go w.run()
}

// Stop signals the worker to exit after its current job, if any, and
// blocks until the run loop has actually returned.
func (w *Worker) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.active.Store(false)

	for {
		job := w.pool.Pop(w.priority, w.others)
		if job == nil {
			select {
			case <-w.stop:
				return
			case <-w.wake:
				continue
			}
		}

		w.log.Debug(context.Background(), "job_start", map[string]any{
			"priority": w.priority.String(),
			"job":      job.Name,
		})
		if err := job.Run(); err != nil {
			w.failed.Add(1)
			w.log.Error(context.Background(), "job_failed", map[string]any{
				"priority": w.priority.String(),
				"job":      job.Name,
				"error":    err.Error(),
			})
			continue
		}
		w.completed.Add(1)

		select {
		case <-w.stop:
			// Keep draining whatever is already queued; the pool's
			// push lock (set by the session during teardown) is what
			// actually stops new work from arriving, matching the
			// original's set_push_lock/pop split.
			if !w.pool.Contains(w.priority, w.others) {
				return
			}
		default:
		}
	}
}

// Active reports whether the worker's goroutine is currently running.
func (w *Worker) Active() bool { return w.active.Load() }

// Stats is a point-in-time snapshot for the admin surface.
type Stats struct {
	Priority  string `json:"priority"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Active    bool   `json:"active"`
}

func (w *Worker) Stats() Stats {
	return Stats{
		Priority:  w.priority.String(),
		Completed: w.completed.Load(),
		Failed:    w.failed.Load(),
		Active:    w.Active(),
	}
}

// Group starts and stops a fixed set of workers together, the way a
// session spins up HighPriorityWorkers/NormalPriorityWorkers/
// LowPriorityWorkers instances per the configured profile.
type Group struct {
	workers []*Worker
}

// NewGroup builds count workers for priority (with the given
// fallback order) against pool.
func NewGroup(pool *jobqueue.Pool, priority jobqueue.Priority, others []jobqueue.Priority, count int, log *telemetry.Logger) *Group {
	g := &Group{}
	for i := 0; i < count; i++ {
		g.workers = append(g.workers, New(pool, priority, others, log))
	}
	return g
}

func (g *Group) Start() {
	for _, w := range g.workers {
		w.Start()
	}
}

func (g *Group) Stop() {
	for _, w := range g.workers {
		w.Stop()
	}
}

func (g *Group) Stats() []Stats {
	out := make([]Stats, 0, len(g.workers))
	for _, w := range g.workers {
		out = append(out, w.Stats())
	}
	return out
}
