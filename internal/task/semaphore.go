package task

import "sync/atomic"

// Semaphore is a cooperative countdown latch for tasks: Wait spins via
// Yield until count reaches zero, never blocking the underlying worker
// thread. Grounded on task_semaphore.{h,cc} (an atomic counter,
// compare-and-swap spin from Wait), adapted from a raw OS-thread atomic
// spin into a Yield-based spin because a task must never block its
// worker goroutine outright — doing so would stall every other task
// sharing that worker.
type Semaphore struct {
	count atomic.Uint32
}

// NewSemaphore creates a Semaphore starting at count.
func NewSemaphore(count uint32) *Semaphore {
	s := &Semaphore{}
	s.count.Store(count)
	return s
}

// Signal decrements the counter by one.
func (s *Semaphore) Signal() {
	s.count.Add(^uint32(0)) // -1, matching fetch_sub semantics on uint.
}

// Wait suspends the calling task (via repeated Yield) until the counter
// reaches zero.
func (s *Semaphore) Wait(c *Context) {
	for !s.count.CompareAndSwap(0, 0) {
		c.Yield()
	}
}
