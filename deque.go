package jobsystem

import "sync/atomic"

// QueueSize is the default fixed capacity of a Deque, in job pointers. It
// must be a power of two so the ring index can be computed with a mask
// instead of a division.
const QueueSize = 4096

// Deque is a fixed-capacity, lock-free work-stealing deque: a single
// producer (the "owner") pushes and pops from the bottom end, LIFO; any
// number of other threads ("thieves") steal from the top end, FIFO. This
// is the Chase–Lev protocol, re-expressed here with Go's atomic types so
// the ordering holds on architectures weaker than x86/64 TSO, where a
// plain store/load pair gives no guarantee about the order other cores
// observe them in.
//
// At most one goroutine (the owner) ever calls Push or Pop. Any number of
// other goroutines may call Steal concurrently with the owner and with
// each other.
type Deque struct {
	// top and bottom are kept on separate cache lines: bottom is written
	// only by the owner, top is the point of contention between thieves
	// and the owner's last-element pop. Without the padding, a thief's
	// CAS on top would bounce the line the owner's push/pop touches on
	// every single operation.
	top    atomic.Int64
	_      [56]byte
	bottom atomic.Int64
	_      [56]byte

	mask int64
	buf  []atomic.Pointer[Job]
}

// NewDeque creates a deque with the given fixed capacity, rounded up to
// the next power of two. capacity <= 0 falls back to QueueSize.
func NewDeque(capacity int) *Deque {
	if capacity <= 0 {
		capacity = QueueSize
	}
	capacity = nextPowerOfTwo(capacity)
	return &Deque{
		mask: int64(capacity) - 1,
		buf:  make([]atomic.Pointer[Job], capacity),
	}
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Push adds job to the bottom of the deque. Owner-only; never call this
// from more than one goroutine, or concurrently with Pop.
//
// Capacity policy: if the deque already holds as many entries as its
// capacity (QueueSize by default), the oldest unclaimed slot is silently
// overwritten — undefined behavior by
// design, not guarded here. Callers must bound outstanding per-worker
// work below the configured capacity.
func (d *Deque) Push(job *Job) {
	b := d.bottom.Load()
	d.buf[b&d.mask].Store(job)
	// The slot write above must land before any thief can see the new
	// bottom value, or a thief could read bottom, conclude a slot is
	// live, and load a pointer that hasn't been written yet.
	d.bottom.Store(b + 1)
}

// Pop removes and returns a job from the bottom of the deque. Owner-only.
// Returns (nil, false) if the deque is empty, or if the single remaining
// element lost a race against a concurrent Steal.
func (d *Deque) Pop() (*Job, bool) {
	b := d.bottom.Load() - 1
	// Publish the decremented bottom before reading top. Without this
	// ordering, a thief racing us for the last element could read the old
	// bottom and the old top at the same time we do, and both sides would
	// conclude they're entitled to the job — a plain store/load pair gives
	// no guarantee this write is visible before the read below runs on
	// architectures weaker than x86/64 TSO.
	d.bottom.Store(b)
	t := d.top.Load()

	if t > b {
		// Already empty before we got here; restore the aligned state.
		d.bottom.Store(t)
		return nil, false
	}

	job := d.buf[b&d.mask].Load()
	if t != b {
		// More than one element remained; no contention on this pop.
		return job, true
	}

	// Exactly one element left: race the thieves for it via CAS on top.
	ok := d.top.CompareAndSwap(t, t+1)
	d.bottom.Store(t + 1)
	if !ok {
		return nil, false
	}
	return job, true
}

// Steal removes and returns a job from the top of the deque. Safe to call
// from any number of goroutines other than the owner, concurrently with
// each other and with the owner's Push/Pop.
func (d *Deque) Steal() (*Job, bool) {
	t := d.top.Load()
	// top has to be read before bottom: reading them in the other order
	// could observe a bottom that has already moved past where top was
	// sampled, making an empty deque look nonempty. atomic.Int64 loads in
	// Go carry sequentially-consistent ordering by default, which already
	// rules out the reorder, so no separate fence is required.
	b := d.bottom.Load()
	if t >= b {
		return nil, false
	}

	job := d.buf[t&d.mask].Load()
	if !d.top.CompareAndSwap(t, t+1) {
		// Lost the race — either another thief or the owner's pop got it.
		return nil, false
	}
	return job, true
}

// Size returns the deque's current length. Racy with concurrent
// Push/Pop/Steal; intended for diagnostics, not for correctness
// decisions. The worker's fetch loop does not consult it.
func (d *Deque) Size() int64 {
	b := d.bottom.Load()
	t := d.top.Load()
	if b < t {
		return 0
	}
	return b - t
}

// IsEmpty reports whether the deque currently holds no jobs. See Size's
// caveat about raciness.
func (d *Deque) IsEmpty() bool {
	return d.Size() <= 0
}
