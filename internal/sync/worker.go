// Package sync runs cache-mutating operations one at a time on a single
// background goroutine, so foreground readers can check Loading() instead
// of relying on callers never overlapping.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/nhle/redtime/internal/logger"
)

var log = logger.For("sync")

// State represents the current state of the worker.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Status describes the operation in flight, or the last one that ran.
type Status struct {
	Operation string
	State     State
	LastRun   time.Time
	Error     error
}

// ErrStopped is returned for work submitted after Stop.
var ErrStopped = errors.New("worker stopped")

// Op is one unit of work.
type Op func(ctx context.Context) error

type job struct {
	name   string
	ctx    context.Context
	fn     Op
	result chan error
}

// Worker executes submitted operations sequentially on one goroutine.
type Worker struct {
	timeout time.Duration

	jobs   chan job
	stopCh chan struct{}
	doneCh chan struct{}

	mu      gosync.Mutex
	status  Status
	pending int
	stopped bool
}

// NewWorker starts a worker. A positive timeout bounds each operation.
func NewWorker(timeout time.Duration) *Worker {
	w := &Worker{
		timeout: timeout,
		jobs:    make(chan job, 16),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go w.loop()
	return w
}

// Do runs fn on the worker and waits for it. If ctx ends first Do returns
// ctx.Err(); the operation still receives the cancellation.
func (w *Worker) Do(ctx context.Context, name string, fn Op) error {
	select {
	case err := <-w.Go(ctx, name, fn):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go queues fn and returns a channel that receives its result.
func (w *Worker) Go(ctx context.Context, name string, fn Op) <-chan error {
	result := make(chan error, 1)

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		result <- ErrStopped
		return result
	}
	w.pending++
	w.mu.Unlock()

	select {
	case w.jobs <- job{name: name, ctx: ctx, fn: fn, result: result}:
	case <-w.stopCh:
		w.mu.Lock()
		w.pending--
		w.mu.Unlock()
		result <- ErrStopped
	}
	return result
}

// Loading reports whether an operation is queued or running.
func (w *Worker) Loading() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending > 0
}

// Status returns a copy of the current status.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Stop finishes queued operations, then ends the worker goroutine.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.doneCh
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) loop() {
	defer close(w.doneCh)
	for {
		select {
		case j := <-w.jobs:
			w.run(j)
		case <-w.stopCh:
			w.drain()
			return
		}
	}
}

// drain runs whatever was submitted before Stop. Submitters that lost the
// race against stopCh give up their pending slot themselves.
func (w *Worker) drain() {
	for {
		w.mu.Lock()
		n := w.pending
		w.mu.Unlock()
		if n == 0 {
			return
		}
		select {
		case j := <-w.jobs:
			w.run(j)
		case <-time.After(time.Millisecond):
		}
	}
}

func (w *Worker) run(j job) {
	w.setStatus(j.name, StateRunning, nil)

	ctx := j.ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	err := safeRun(ctx, j.fn)
	if err != nil {
		log.Warn("%s failed after %s: %v", j.name, time.Since(start).Round(time.Millisecond), err)
		w.setStatus(j.name, StateError, err)
	} else {
		log.Debug("%s done in %s", j.name, time.Since(start).Round(time.Millisecond))
		w.setStatus(j.name, StateIdle, nil)
	}

	w.mu.Lock()
	w.pending--
	w.mu.Unlock()
	j.result <- err
}

func safeRun(ctx context.Context, fn Op) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// setStatus updates the worker status.
func (w *Worker) setStatus(name string, state State, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.status.Operation = name
	w.status.State = state
	w.status.Error = err
	if state != StateRunning {
		w.status.LastRun = time.Now()
	}
}
