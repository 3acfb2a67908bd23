// Package parallel provides a persistent worker pool that runs a range
// function over [0, n) split into contiguous per-worker sub-ranges.
package parallel

import (
	"errors"
	"runtime"
	"sync"
)

// ErrAlreadyRunning is the panic value raised when Dispatch is called while a
// previous dispatch has not completed. It indicates a scheduling bug.
var ErrAlreadyRunning = errors.New("parallel: dispatch already running")

// RangeFunc processes the half-open range [start, end) on behalf of a worker.
// It owns writes to that range exclusively.
type RangeFunc func(workerID, start, end int)

// Dispatcher runs a RangeFunc on long-lived worker goroutines.
// Workers are started once and parked on a condition variable between
// dispatches.
type Dispatcher struct {
	action     RangeFunc
	numWorkers int
	onComplete func()

	mu         sync.Mutex
	wake       *sync.Cond // workers wait for a new generation
	idle       *sync.Cond // waiters wait for the dispatch chain to drain
	generation uint64
	n          int
	pending    int
	running    bool
	completing bool
	closed     bool
	wg         sync.WaitGroup
}

// NewDispatcher starts numWorkers workers running action.
// numWorkers <= 0 uses runtime.GOMAXPROCS(0).
func NewDispatcher(action RangeFunc, numWorkers int) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	d := &Dispatcher{
		action:     action,
		numWorkers: numWorkers,
	}
	d.wake = sync.NewCond(&d.mu)
	d.idle = sync.NewCond(&d.mu)

	for i := 0; i < numWorkers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// NumWorkers returns the number of worker goroutines.
func (d *Dispatcher) NumWorkers() int {
	return d.numWorkers
}

// SetOnComplete installs a callback that fires exactly once per dispatch,
// after the last worker finishes and before Wait returns. The callback may
// call Dispatch to chain a dependent pass; Wait then covers the whole chain.
// Must not be called while a dispatch is in flight.
func (d *Dispatcher) SetOnComplete(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || d.completing {
		panic(ErrAlreadyRunning)
	}
	d.onComplete = fn
}

// Dispatch partitions [0, n) across the workers and wakes them.
// It returns immediately; use Wait to block until completion.
// Panics with ErrAlreadyRunning if a dispatch is in flight.
func (d *Dispatcher) Dispatch(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		panic(ErrAlreadyRunning)
	}
	if d.closed {
		panic("parallel: dispatch on closed dispatcher")
	}
	if n < 0 {
		n = 0
	}

	d.n = n
	d.pending = d.numWorkers
	d.running = true
	d.generation++
	d.wake.Broadcast()
}

// Wait blocks until the current dispatch (and anything chained from its
// completion callback) has finished. It is a no-op if nothing is running.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	for d.running || d.completing {
		d.idle.Wait()
	}
	d.mu.Unlock()
}

// Run dispatches n items and waits for completion.
func (d *Dispatcher) Run(n int) {
	d.Dispatch(n)
	d.Wait()
}

// Running reports whether a dispatch is in flight.
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running || d.completing
}

// Close waits for any in-flight dispatch, then stops all workers.
// Safe to call more than once.
func (d *Dispatcher) Close() {
	d.Wait()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.wake.Broadcast()
	d.mu.Unlock()

	d.wg.Wait()
}

// worker parks until a new generation is published, runs its sub-range,
// and the last worker to finish fires the completion callback.
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	var lastGen uint64
	d.mu.Lock()
	for {
		for d.generation == lastGen && !d.closed {
			d.wake.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		lastGen = d.generation
		n := d.n
		d.mu.Unlock()

		start, end := Split(id, n, d.numWorkers)
		if start < end {
			d.action(id, start, end)
		}

		d.mu.Lock()
		d.pending--
		if d.pending == 0 {
			d.finish()
		}
	}
}

// finish runs with d.mu held by the last worker of a dispatch.
func (d *Dispatcher) finish() {
	d.running = false
	if cb := d.onComplete; cb != nil {
		d.completing = true
		d.mu.Unlock()
		cb()
		d.mu.Lock()
		d.completing = false
	}
	if !d.running {
		d.idle.Broadcast()
	}
}

// Split returns worker i's share of [0, n) when divided among t workers.
func Split(i, n, t int) (start, end int) {
	return i * n / t, (i + 1) * n / t
}
