package jobsystem

import "sync/atomic"

// PayloadSize is the inline scratch buffer every Job carries. A function
// receives a pointer to this buffer as its only argument; the worker that
// dispatches the job writes its own index into payload[0] immediately
// before calling it.
const PayloadSize = 48

// JobFunction is the work routine a Job runs. It takes an opaque payload
// pointer and returns nothing — there is no result channel, no error
// return; a job that needs to communicate a result writes it into its own
// payload or into memory the caller already owns.
type JobFunction func(payload *[PayloadSize]byte)

// Job is an immovable unit of work: a function, an optional parent link,
// and an atomic count of how many of its descendants (plus itself) are
// still unfinished. unfinished reaching zero is the completion predicate
// for the whole subtree rooted at this job.
//
// A Job is never copied and never freed individually — it lives inside a
// JobPool slot and is only ever reused by allocator wraparound, never by
// explicit release. function and parent are written once at creation and
// never modified afterward; unfinished is the only field touched after
// that, and only through atomic operations.
type Job struct {
	function   JobFunction
	parent     *Job
	unfinished atomic.Int32
	payload    [PayloadSize]byte

	// pad rounds the record out to a cache-line multiple so neighboring
	// pool slots don't share a line. Job{} above this point is 8 (func
	// value) + 8 (parent ptr) + 4 (atomic.Int32) + 48 (payload) = 68
	// bytes on a 64-bit platform; pad to 128 (two lines) rather than
	// trying to land exactly on one, since a false-sharing-free pool
	// slot matters more than minimizing footprint here.
	_ [60]byte
}

// reset clears a Job record for reuse by the allocator. It must only be
// called by Allocate, before the slot is handed to a new caller — there is
// no reference to the old occupant left by construction, since the pool
// hands out slots by wraparound rather than by free-list.
func (j *Job) reset() {
	j.function = nil
	j.parent = nil
	j.unfinished.Store(0)
}

// HasCompleted reports whether this job and all of its transitive
// descendants have finished executing. The load is acquire-ordered so
// that any write a job body performed happens-before the caller observes
// completion here.
func (j *Job) HasCompleted() bool {
	return j.unfinished.Load() == 0
}
