// Package jobqueue implements the priority-indexed job pool a session
// dispatches decode/encode/echo work through (spec.md §6.2).
//
// Grounded on original_source/cpp_libraries/threads/job_pool.cpp: a
// FIFO queue per priority class, a push-lock that rejects new work
// once teardown has begun, and a notification fan-out called on every
// push so idle workers know to re-check the queues. The counters and
// the atomic started/stopped gating follow the teacher's orchestrator
// worker_pool.go (services/orchestrator/internal/coordinator).
package jobqueue

import (
	"sync"
	"sync/atomic"

	ferrors "github.com/Ap3pp3rs94/msgfabric/pkg/errors"
)

// Priority mirrors the original's job_priorities enum.
type Priority int

const (
	PriorityHigh Priority = iota
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Job is one unit of dispatchable work: decode an inbound frame,
// encode and send an outbound container, or fire an echo heartbeat.
type Job struct {
	Name     string
	Priority Priority
	Run      func() error
}

// Notifier is called after every successful push, with the priority
// that received work — workers use it to wake from an idle wait
// instead of polling.
type Notifier func(Priority)

// Pool is a FIFO job queue per priority class. Safe for concurrent
// use by multiple producer and worker goroutines.
type Pool struct {
	mu      sync.Mutex
	queues  map[Priority][]*Job
	locked  bool
	notifys []Notifier

	pushed atomic.Uint64
	popped atomic.Uint64
	locked32 atomic.Bool
}

// NewPool returns an empty pool accepting pushes.
func NewPool() *Pool {
	return &Pool{queues: make(map[Priority][]*Job)}
}

// SetPushLock toggles whether Push accepts new jobs. A session sets
// this once it starts tearing down a connection, so in-flight workers
// drain what's already queued without new work arriving behind them.
func (p *Pool) SetPushLock(locked bool) {
	p.mu.Lock()
	p.locked = locked
	p.mu.Unlock()
	p.locked32.Store(locked)
}

// Push enqueues a job and fires every registered notifier. Returns a
// pool.locked error if pushing is currently disabled.
func (p *Pool) Push(job *Job) error {
	if job == nil {
		return nil
	}
	p.mu.Lock()
	if p.locked {
		p.mu.Unlock()
		return ferrors.New(ferrors.PoolLocked, "push rejected, pool is locked for teardown")
	}
	p.queues[job.Priority] = append(p.queues[job.Priority], job)
	notifys := append([]Notifier(nil), p.notifys...)
	p.mu.Unlock()

	p.pushed.Add(1)
	for _, n := range notifys {
		if n != nil {
			n(job.Priority)
		}
	}
	return nil
}

// Pop dequeues one job from priority's queue, falling back in order
// through others when priority's queue is empty — the same
// primary-then-fallback scan job_pool::pop performs.
func (p *Pool) Pop(priority Priority, others []Priority) *Job {
	p.mu.Lock()
	defer p.mu.Unlock()

	if job, ok := p.popFrom(priority); ok {
		p.popped.Add(1)
		return job
	}
	for _, other := range others {
		if job, ok := p.popFrom(other); ok {
			p.popped.Add(1)
			return job
		}
	}
	return nil
}

func (p *Pool) popFrom(priority Priority) (*Job, bool) {
	q := p.queues[priority]
	if len(q) == 0 {
		return nil, false
	}
	job := q[0]
	p.queues[priority] = q[1:]
	return job, true
}

// Contains reports whether priority or any of others currently has
// queued work, without dequeuing it.
func (p *Pool) Contains(priority Priority, others []Priority) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queues[priority]) > 0 {
		return true
	}
	for _, other := range others {
		if len(p.queues[other]) > 0 {
			return true
		}
	}
	return false
}

// AppendNotification registers a notifier called on every push.
func (p *Pool) AppendNotification(n Notifier) {
	p.mu.Lock()
	p.notifys = append(p.notifys, n)
	p.mu.Unlock()
}

// Stats is a point-in-time snapshot for the admin surface.
type Stats struct {
	Pushed      uint64         `json:"pushed"`
	Popped      uint64         `json:"popped"`
	Locked      bool           `json:"locked"`
	QueueDepths map[string]int `json:"queue_depths"`
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	depths := make(map[string]int, len(p.queues))
	for pr, q := range p.queues {
		depths[pr.String()] = len(q)
	}
	return Stats{
		Pushed:      p.pushed.Load(),
		Popped:      p.popped.Load(),
		Locked:      p.locked32.Load(),
		QueueDepths: depths,
	}
}
