package task

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, numThreads int) *TaskManager {
	t.Helper()
	m, err := New(Config{NumThreads: numThreads, MaxEventsAtOnce: 16})
	require.NoError(t, err)
	return m
}

// runManagerAsync starts m.Run on its own goroutine and returns a
// function that stops the manager and waits for Run to return.
func runManagerAsync(t *testing.T, m *TaskManager) func() {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run()
	}()
	return func() {
		m.Stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("TaskManager.Run did not return after Stop")
		}
	}
}

func TestSingleTaskRunsToCompletion(t *testing.T) {
	m := newTestManager(t, 1)
	stop := runManagerAsync(t, m)
	defer stop()

	var ran atomic.Bool
	done := make(chan struct{})
	require.NoError(t, m.AddEntryPoint(func(c *Context) {
		ran.Store(true)
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("entry point task never ran")
	}
	assert.True(t, ran.Load())
}

func TestYieldRequeuesLocallyAndResumes(t *testing.T) {
	m := newTestManager(t, 1)
	stop := runManagerAsync(t, m)
	defer stop()

	var trace []string
	var mu sync.Mutex
	done := make(chan struct{})

	require.NoError(t, m.AddEntryPoint(func(c *Context) {
		mu.Lock()
		trace = append(trace, "a")
		mu.Unlock()
		c.Yield()
		mu.Lock()
		trace = append(trace, "b")
		mu.Unlock()
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never completed after yielding")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, trace)
}

// TestFibonacciFanOut mirrors spec.md §8 scenario 5: a task forks two
// sub-tasks to compute fib(n-1) and fib(n-2), using a Semaphore of count
// 2 to know when both children have written their results.
func TestFibonacciFanOut(t *testing.T) {
	m := newTestManager(t, 4)
	stop := runManagerAsync(t, m)
	defer stop()

	result := make(chan int64, 1)

	var fib func(c *Context, n int64, out *int64)
	fib = func(c *Context, n int64, out *int64) {
		if n < 2 {
			*out = n
			return
		}

		var a, b int64
		sem := NewSemaphore(2)

		c.Spawn(func(c *Context) {
			fib(c, n-1, &a)
			sem.Signal()
		})
		c.Spawn(func(c *Context) {
			fib(c, n-2, &b)
			sem.Signal()
		})

		sem.Wait(c)
		*out = a + b
	}

	var final int64
	require.NoError(t, m.AddEntryPoint(func(c *Context) {
		fib(c, 10, &final)
		result <- final
	}))

	select {
	case v := <-result:
		assert.Equal(t, int64(55), v) // fib(10) == 55
	case <-time.After(3 * time.Second):
		t.Fatal("fibonacci fan-out never completed")
	}
}

func TestPerWorkerUserDataIsIsolated(t *testing.T) {
	m, err := New(Config{
		NumThreads:      2,
		MaxEventsAtOnce: 16,
		UserDataFactory: func(threadIndex int) any {
			v := new(atomic.Int64)
			v.Store(int64(threadIndex))
			return v
		},
	})
	require.NoError(t, err)
	stop := runManagerAsync(t, m)
	defer stop()

	seen := make(chan int64, 1)
	require.NoError(t, m.AddEntryPoint(func(c *Context) {
		ud := c.UserData().(*atomic.Int64)
		seen <- ud.Load()
	}))

	select {
	case v := <-seen:
		assert.Equal(t, int64(0), v, "entry point always runs on worker 0")
	case <-time.After(2 * time.Second):
		t.Fatal("entry point never ran")
	}
}

func TestExitStopsTheWholeManager(t *testing.T) {
	m := newTestManager(t, 2)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run()
	}()

	require.NoError(t, m.AddEntryPoint(func(c *Context) {
		c.Exit()
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Exit() did not bring down the manager")
	}
}
