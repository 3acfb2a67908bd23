package parallel

// Runner executes a range function over [0, n) and returns when every
// sub-range has been processed.
type Runner interface {
	Run(n int, fn RangeFunc)
	NumWorkers() int
}

// Serial runs everything on the calling goroutine as worker 0.
// It is the deterministic fallback used for testing.
type Serial struct{}

// Run calls fn once over the whole range.
func (Serial) Run(n int, fn RangeFunc) {
	if n > 0 {
		fn(0, 0, n)
	}
}

// NumWorkers returns 1.
func (Serial) NumWorkers() int { return 1 }

// Pool runs arbitrary range functions on a single persistent Dispatcher, so
// every pipeline stage shares the same parked workers.
type Pool struct {
	d  *Dispatcher
	fn RangeFunc
}

// NewPool starts a pool with numWorkers workers (<= 0 means GOMAXPROCS).
func NewPool(numWorkers int) *Pool {
	p := &Pool{}
	p.d = NewDispatcher(p.exec, numWorkers)
	return p
}

func (p *Pool) exec(workerID, start, end int) {
	p.fn(workerID, start, end)
}

// Run executes fn over [0, n) on the pool and waits.
// fn is published before the workers wake (Dispatch takes the lock).
func (p *Pool) Run(n int, fn RangeFunc) {
	p.fn = fn
	p.d.Run(n)
}

// NumWorkers returns the number of pool workers.
func (p *Pool) NumWorkers() int { return p.d.NumWorkers() }

// Dispatcher exposes the underlying dispatcher (for completion hooks).
func (p *Pool) Dispatcher() *Dispatcher { return p.d }

// Close stops the pool's workers.
func (p *Pool) Close() { p.d.Close() }
