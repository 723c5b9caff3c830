package jobsystem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DequeTestSuite exercises the work-stealing deque in isolation from the
// rest of the system: owner push/pop ordering, thief steal ordering, and
// correctness under concurrent owner/thief contention.
type DequeTestSuite struct {
	suite.Suite
}

func TestDequeTestSuite(t *testing.T) {
	suite.Run(t, new(DequeTestSuite))
}

func jobWithID(id int) *Job {
	j := &Job{}
	j.payload[0] = byte(id)
	return j
}

func jobID(j *Job) int {
	return int(j.payload[0])
}

func (ts *DequeTestSuite) TestOwnerPopIsLIFO() {
	d := NewDeque(64)
	const k = 50
	for i := 1; i <= k; i++ {
		d.Push(jobWithID(i))
	}

	for i := k; i >= 1; i-- {
		job, ok := d.Pop()
		ts.True(ok)
		ts.Equal(i, jobID(job))
	}

	_, ok := d.Pop()
	ts.False(ok)
}

func (ts *DequeTestSuite) TestThiefStealIsFIFO() {
	d := NewDeque(64)
	const k = 50
	for i := 1; i <= k; i++ {
		d.Push(jobWithID(i))
	}

	for i := 1; i <= k; i++ {
		job, ok := d.Steal()
		ts.True(ok)
		ts.Equal(i, jobID(job))
	}

	_, ok := d.Steal()
	ts.False(ok)
}

func (ts *DequeTestSuite) TestEmptyDequeRealignsIndices() {
	d := NewDeque(8)
	d.Push(jobWithID(1))
	_, ok := d.Pop()
	ts.True(ok)

	_, ok = d.Pop()
	ts.False(ok)
	ts.Equal(d.top.Load(), d.bottom.Load())
}

// TestNoLossNoDupUnderContention pushes a known multiset of jobs and lets
// one owner (popping) race against several thieves (stealing)
// concurrently, then checks the union of everything anyone got back is
// exactly the multiset pushed, with no loss and no duplication (property
// 2).
func (ts *DequeTestSuite) TestNoLossNoDupUnderContention() {
	const total = 20000
	const thieves = 7

	d := NewDeque(total + 1)
	wantByID := make(map[int]int)
	for i := 1; i <= total; i++ {
		d.Push(jobWithID(i % 256))
		wantByID[i%256]++
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		gotByID = make(map[int]int)
	)
	record := func(job *Job) {
		mu.Lock()
		gotByID[jobID(job)]++
		mu.Unlock()
	}

	for t := 0; t < thieves; t++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, ok := d.Steal()
				if !ok {
					if d.IsEmpty() {
						return
					}
					continue
				}
				record(job)
			}
		}()
	}

	for {
		if job, ok := d.Pop(); ok {
			record(job)
		} else if d.IsEmpty() {
			break
		}
	}
	wg.Wait()

	gotTotal := 0
	for _, n := range gotByID {
		gotTotal += n
	}
	ts.Equal(total, gotTotal, "no job should be lost or duplicated")
	ts.Equal(wantByID, gotByID, "results must be exactly the multiset pushed")
}

// TestStealRaceOnLastElement checks the last-element race directly: with
// exactly one job left, an owner popping and a thief stealing must never
// both succeed and never both fail.
func (ts *DequeTestSuite) TestStealRaceOnLastElement() {
	const iterations = 20000

	for i := 0; i < iterations; i++ {
		d := NewDeque(8)
		d.Push(jobWithID(1))

		var wg sync.WaitGroup
		results := make([]bool, 2)

		wg.Add(2)
		go func() {
			defer wg.Done()
			_, ok := d.Pop()
			results[0] = ok
		}()
		go func() {
			defer wg.Done()
			_, ok := d.Steal()
			results[1] = ok
		}()
		wg.Wait()

		ts.True(results[0] != results[1], "exactly one side must win the race, iteration %d", i)
	}
}

func (ts *DequeTestSuite) TestSizeAndIsEmpty() {
	d := NewDeque(16)
	ts.True(d.IsEmpty())
	ts.EqualValues(0, d.Size())

	d.Push(jobWithID(1))
	d.Push(jobWithID(2))
	ts.False(d.IsEmpty())
	ts.EqualValues(2, d.Size())

	d.Pop()
	ts.EqualValues(1, d.Size())
}

func (ts *DequeTestSuite) TestNextPowerOfTwo() {
	ts.Equal(1, nextPowerOfTwo(1))
	ts.Equal(2, nextPowerOfTwo(2))
	ts.Equal(4, nextPowerOfTwo(3))
	ts.Equal(64, nextPowerOfTwo(64))
	ts.Equal(128, nextPowerOfTwo(65))
}
