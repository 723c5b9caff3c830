package jobsystem

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Worker owns one deque and runs the fetch-execute loop: pop from its own
// deque, else steal from the next peer in round-robin order, else yield. Worker 0 has no
// dedicated goroutine — it is driven by whatever goroutine calls Enqueue
// and Wait.
type Worker struct {
	index      int
	numWorkers int
	deques     []*Deque // shared, read-only view; index i is worker i's deque

	active        atomic.Bool
	stealCursor   atomic.Uint64
	jobsCompleted atomic.Uint64
}

func newWorker(index, numWorkers int, deques []*Deque) *Worker {
	return &Worker{
		index:      index,
		numWorkers: numWorkers,
		deques:     deques,
	}
}

// deque returns the worker's own deque.
func (w *Worker) deque() *Deque {
	return w.deques[w.index]
}

// Run pushes job onto this worker's own deque. Not thread-safe — must be
// called only from the goroutine that owns this worker (the dedicated
// worker goroutine for workers 1..N-1, or the caller acting as worker 0).
func (w *Worker) Run(job *Job) {
	w.deque().Push(job)
}

// ThreadFunction is the dedicated-goroutine entry point for workers
// 1..N-1: it loops FetchAndExecute while the active flag is set. Worker 0
// never runs this; its loop is driven externally by JobSystem.Wait.
func (w *Worker) ThreadFunction(wg *sync.WaitGroup) {
	defer wg.Done()
	for w.active.Load() {
		w.FetchAndExecute()
	}
}

// FetchAndExecute performs one iteration of the fetch-execute loop: try a
// local pop, else try to steal from a victim, else yield the goroutine.
// Safe to call both from the worker's own dedicated goroutine and, for
// worker 0, from whatever goroutine is waiting on a job.
func (w *Worker) FetchAndExecute() {
	if job, ok := w.deque().Pop(); ok {
		w.execute(job)
		return
	}

	victim := int(w.stealCursor.Add(1)-1) % w.numWorkers
	if victim == w.index {
		runtime.Gosched()
		return
	}

	if job, ok := w.deques[victim].Steal(); ok {
		w.execute(job)
		return
	}

	runtime.Gosched()
}

// execute dispatches job's function, writes the worker's identity into
// payload[0] first so the job body can see which worker picked it up,
// then propagates completion up the parent chain and bumps the
// jobs-completed counter.
func (w *Worker) execute(job *Job) {
	job.payload[0] = byte('0' + w.index)
	job.function(&job.payload)
	w.finish(job)
	w.jobsCompleted.Add(1)
}

// finish decrements job's unfinished counter and, if that was the last
// outstanding descendant, walks up the parent chain doing the same. This
// is written as a loop rather than the tail recursion in the original C++
// source so a deep parent chain doesn't grow the goroutine's stack one
// frame per ancestor.
//
// The fetch_sub here is at least release-ordered (Go's atomic package
// gives it full sequential consistency, which subsumes that) so that any
// write job's body performed happens-before an observer that sees
// unfinished == 0 on job or an ancestor.
func (w *Worker) finish(job *Job) {
	for job != nil {
		if job.unfinished.Add(-1) != 0 {
			return
		}
		job = job.parent
	}
}
