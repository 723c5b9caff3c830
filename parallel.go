package jobsystem

// ParallelFor splits items into chunks of at most cutoff elements, each
// run as a child job of a single root, then enqueues every child followed
// by the root and waits for the whole tree. It completes the parlell_for
// template the original C++ job system declared but never implemented —
// built entirely from CreateJob/CreateJobAsChild/Enqueue/Wait.
//
// Every job is created and enqueued from the calling goroutine before any
// of them run, never from inside a running job body: Enqueue always
// pushes onto worker 0's deque, and that deque's owner-only Push is not
// safe to call from two goroutines at once, so a job body running on
// some other worker must never call Enqueue itself.
//
// cutoff <= 0 defaults to 1 (one job per element). fn must be safe to
// call concurrently from any worker, since chunks run in parallel.
func ParallelFor[T any](js *JobSystem, items []T, cutoff int, fn func(item T)) {
	if len(items) == 0 {
		return
	}
	if cutoff <= 0 {
		cutoff = 1
	}

	root := js.CreateJob(func(*[PayloadSize]byte) {})

	var children []*Job
	for start := 0; start < len(items); start += cutoff {
		end := start + cutoff
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]
		child := js.CreateJobAsChild(root, func(*[PayloadSize]byte) {
			for _, item := range chunk {
				fn(item)
			}
		})
		children = append(children, child)
	}

	for _, child := range children {
		js.Enqueue(child)
	}
	js.Enqueue(root)
	js.Wait(root)
}
