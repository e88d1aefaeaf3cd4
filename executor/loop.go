// Package executor implements the executor collaborator: a
// single-threaded event-loop executor plus a round-robin group of them
// for per-context affinity binding. It is deliberately the simplest
// thing that satisfies the contract; concrete thread-pool
// implementations are an external collaborator, not core scope.
package executor

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed completes the Future that Submit returns once the Loop has
// been Stopped. Execute returns nothing and drops the task instead.
var ErrClosed = errors.New("executor: loop is closed")

// Executor is the collaborator interface pipeline.Context depends on.
type Executor interface {
	InEventLoop() bool
	Submit(task func() error) *Future
	Execute(task func())
}

// Group hands out Executors for per-context affinity binding.
type Group interface {
	Next() Executor
}

// Loop is a single goroutine draining a task queue in submission order.
// All event delivery for a channel's Head/Tail sentinels happens on the
// Loop it was registered to.
type Loop struct {
	tasks    chan func()
	stopOnce sync.Once
	stopped  chan struct{}
	closed   atomic.Bool
	goID     atomic.Int64 // 0 until Run's goroutine records itself
}

// NewLoop creates a Loop with the given task queue depth. Call Run in a
// dedicated goroutine before using it.
func NewLoop(queueDepth int) *Loop {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Loop{
		tasks:   make(chan func(), queueDepth),
		stopped: make(chan struct{}),
	}
}

// Run drains the task queue until Stop is called. It must be invoked
// exactly once, from the goroutine that is to become this Loop's
// dedicated executor thread.
func (l *Loop) Run() {
	l.goID.Store(currentGoroutineID())
	for {
		select {
		case task, ok := <-l.tasks:
			if !ok {
				return
			}
			task()
		case <-l.stopped:
			return
		}
	}
}

// Stop signals Run to return once the current task (if any) finishes.
// Pending queued tasks are dropped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		close(l.stopped)
	})
}

// InEventLoop reports whether the calling goroutine is this Loop's own
// dedicated goroutine.
func (l *Loop) InEventLoop() bool {
	id := l.goID.Load()
	return id != 0 && id == currentGoroutineID()
}

// Execute enqueues task for fire-and-forget execution on the loop.
func (l *Loop) Execute(task func()) {
	if l.closed.Load() {
		return
	}
	select {
	case l.tasks <- task:
	case <-l.stopped:
	}
}

// Submit enqueues task and returns a Future completed with task's
// return value once it has run on the loop. If the caller is already on
// this loop, task runs inline instead of round-tripping through the
// queue — this is what lets structural pipeline mutations avoid
// deadlocking with themselves.
func (l *Loop) Submit(task func() error) *Future {
	f := newFuture()
	run := func() {
		var err error
		func() {
			defer func() { err = errOrRecover(err, recover()) }()
			err = task()
		}()
		f.complete(err)
	}
	if l.InEventLoop() {
		run()
		return f
	}
	if l.closed.Load() {
		f.complete(ErrClosed)
		return f
	}
	select {
	case l.tasks <- run:
	case <-l.stopped:
		f.complete(ErrClosed)
	}
	return f
}

func errOrRecover(err error, r any) error {
	if r != nil {
		return recoverToError(r)
	}
	return err
}
