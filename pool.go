package jobsystem

import "sync/atomic"

// PoolSize is the default number of Job slots a JobPool holds. It is also
// the maximum number of jobs that may be in flight simultaneously for a
// JobSystem built with the default Config — see JobPool.Allocate.
const PoolSize = 4096

// JobPool is a fixed-size, lock-free allocator for Job records. Allocate
// is O(1) and never fails: it hands out the next slot in a ring by
// wraparound. There is no free list and nothing is ever released back to
// the pool explicitly.
//
// This is a deliberate design choice favoring allocation speed over
// safety: a caller that keeps more than len(slots) jobs live at once will
// silently have an in-flight job's record overwritten by a newer
// allocation. Callers are responsible for bounding concurrent in-flight
// job count below the pool size.
type JobPool struct {
	slots     []Job
	allocated atomic.Uint32
	debug     bool
}

// NewJobPool creates a pool with the given number of slots. size <= 0
// falls back to PoolSize, substituting a sane default rather than
// failing construction.
func NewJobPool(size int, debug bool) *JobPool {
	if size <= 0 {
		size = PoolSize
	}
	return &JobPool{
		slots: make([]Job, size),
		debug: debug,
	}
}

// Allocate reserves the next slot and returns it, reset and ready for the
// caller to populate function/parent/unfinished. In debug mode, an
// allocation that would reuse a slot whose previous occupant has not yet
// completed panics instead of silently corrupting that in-flight job, so
// a pool sized too small for the workload fails loudly in testing rather
// than producing a job with a scrambled function pointer or parent link
// in production. A slot can wrap around and be reused many times over a
// program's life without ever tripping this; it only fires when the job
// being clobbered genuinely still has unfinished work.
func (p *JobPool) Allocate() *Job {
	idx := p.allocated.Add(1) - 1
	slot := &p.slots[idx%uint32(len(p.slots))]
	if p.debug && idx >= uint32(len(p.slots)) && slot.unfinished.Load() != 0 {
		panic("jobsystem: job pool wrapped around onto a still-unfinished job; more jobs were live at once than the pool has slots")
	}
	slot.reset()
	return slot
}

// Size returns the number of slots in the pool.
func (p *JobPool) Size() int {
	return len(p.slots)
}
