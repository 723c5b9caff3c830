package jobsystem

import (
	"runtime"
	"sync"
)

// Config holds construction-time configuration for a JobSystem.
type Config struct {
	NumWorkers int // number of workers, including worker 0 (the caller). Default: runtime.NumCPU().
	QueueSize  int // per-worker deque capacity. Default: QueueSize (4096).
	PoolSize   int // job pool capacity for this system. Default: PoolSize (4096).
	Debug      bool
}

// DefaultConfig returns sensible default configuration: one worker per
// logical CPU, default queue and pool sizes, debug assertions off.
func DefaultConfig() Config {
	return Config{
		NumWorkers: runtime.NumCPU(),
		QueueSize:  QueueSize,
		PoolSize:   PoolSize,
		Debug:      false,
	}
}

// JobSystem owns a fixed set of workers and their deques, plus a bounded
// job allocator. Worker 0 has no dedicated goroutine: Enqueue and Wait
// are meant to be called from the goroutine that constructed the system,
// and that goroutine drives worker 0's fetch-execute loop directly.
type JobSystem struct {
	config  Config
	pool    *JobPool
	deques  []*Deque
	workers []*Worker
	wg      sync.WaitGroup
}

// New creates a job system with n workers and default queue/pool sizes.
// n must be >= 1; n <= 0 is a fatal construction-time error, since a job
// system with no workers (not even worker 0) could never drain anything
// it was given.
func New(n int) *JobSystem {
	cfg := DefaultConfig()
	cfg.NumWorkers = n
	return NewWithConfig(cfg)
}

// NewWithConfig creates a job system from an explicit Config. Zero-valued
// fields other than NumWorkers fall back to their defaults; NumWorkers <=
// 0 still panics rather than silently substituting a worker count, since
// that would hide a construction-time mistake the caller needs to know
// about immediately, not the first time Wait hangs.
func NewWithConfig(cfg Config) *JobSystem {
	if cfg.NumWorkers <= 0 {
		panic("jobsystem: num_workers must be >= 1")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = QueueSize
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = PoolSize
	}

	js := &JobSystem{
		config: cfg,
		pool:   NewJobPool(cfg.PoolSize, cfg.Debug),
		deques: make([]*Deque, cfg.NumWorkers),
	}

	for i := 0; i < cfg.NumWorkers; i++ {
		js.deques[i] = NewDeque(cfg.QueueSize)
	}

	js.workers = make([]*Worker, cfg.NumWorkers)
	for i := 0; i < cfg.NumWorkers; i++ {
		js.workers[i] = newWorker(i, cfg.NumWorkers, js.deques)
	}

	for i := 1; i < cfg.NumWorkers; i++ {
		js.workers[i].active.Store(true)
		js.wg.Add(1)
		go js.workers[i].ThreadFunction(&js.wg)
	}

	return js
}

// CreateJob allocates a new root job bound to fn. It is not yet enqueued.
func (js *JobSystem) CreateJob(fn JobFunction) *Job {
	job := js.pool.Allocate()
	job.function = fn
	job.parent = nil
	job.unfinished.Store(1)
	return job
}

// CreateJobAsChild allocates a new job as a child of parent. parent's
// unfinished counter is incremented before the child becomes visible to
// any other goroutine, so a worker can never observe the child mid-flight
// and decrement parent's counter down to a premature zero before this
// call has even returned.
func (js *JobSystem) CreateJobAsChild(parent *Job, fn JobFunction) *Job {
	parent.unfinished.Add(1)

	job := js.pool.Allocate()
	job.function = fn
	job.parent = parent
	job.unfinished.Store(1)
	return job
}

// Enqueue pushes job onto worker 0's deque. Must be called from the same
// goroutine that constructed js (the logical worker 0), never
// concurrently with Wait or another Enqueue.
func (js *JobSystem) Enqueue(job *Job) {
	js.workers[0].Run(job)
}

// HasJobCompleted reports whether job and its entire descendant tree have
// finished. Non-blocking.
func (js *JobSystem) HasJobCompleted(job *Job) bool {
	return job.HasCompleted()
}

// Wait blocks — by spinning, never by sleeping or locking — until job has
// completed. The calling goroutine participates as worker 0 while it
// waits, running whatever fetch-execute work is available; this is what
// keeps a parent that waits on its own child from deadlocking even when
// there is only a single worker and no other goroutine could ever make
// progress on its behalf.
func (js *JobSystem) Wait(job *Job) {
	w0 := js.workers[0]
	for !job.HasCompleted() {
		w0.FetchAndExecute()
	}
}

// NumWorkers returns the configured worker count.
func (js *JobSystem) NumWorkers() int {
	return js.config.NumWorkers
}

// JobsCompleted returns the total number of jobs every worker (including
// worker 0) has executed so far. Intended for diagnostics/tests.
func (js *JobSystem) JobsCompleted() uint64 {
	var total uint64
	for _, w := range js.workers {
		total += w.jobsCompleted.Load()
	}
	return total
}

// Close shuts the system down: workers 1..N-1 are asked to stop (active
// flag cleared) and joined. This does not drain outstanding work — any
// job still sitting in a deque at the moment a worker observes active ==
// false is silently dropped. Callers must Wait on every root job before
// calling Close; calling it with jobs still in flight is undefined
// behavior.
func (js *JobSystem) Close() {
	for i := 1; i < len(js.workers); i++ {
		js.workers[i].active.Store(false)
	}
	js.wg.Wait()
}
