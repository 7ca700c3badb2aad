// Package task implements the fiber-scheduling runtime from spec.md
// §4.D-§4.G: an MRSW ring queue per worker, a pool of WorkerThreads that
// dequeue-local-then-steal, and a TaskManager that seeds entry points and
// owns the lifecycle. Grounded on original_source/source/task/{task,
// task_context,worker_thread,task_manager,task_semaphore}.{h,cc}, adapted
// from Task's inline-buffer exec-context swap onto internal/fiber's
// goroutine-handoff Fiber, since Go closures over heap-escaped captured
// variables make the original's templated TaskTuple/aligned_storage
// argument-passing trick unnecessary — a task's arguments just live in
// the entry closure.
package task

import "github.com/xynqdb/xynq/internal/fiber"

// DefaultStackSize mirrors TaskDefaults::stack_size. Go goroutines grow
// their own stacks; this value is only passed to fiber.New, which
// records it without allocating anything, for parity with spec.md's
// stack-size field.
const DefaultStackSize = 1024

// Task is one schedulable unit of work: an entry closure plus the fiber
// that runs it once started. A Task is created fresh for every Spawn and
// is never reused after its fiber terminates, matching worker_thread.cc's
// "TEMP: should be pooled. For now just create new task every time."
type Task struct {
	entry     func(*Context)
	debugName string
	stackSize int

	fiber *fiber.Fiber
	ctx   *Context
}

// newTask allocates a Task bound to entry, ready for its first dequeue.
func newTask(entry func(*Context), debugName string, stackSize int) *Task {
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	t := &Task{entry: entry, debugName: debugName, stackSize: stackSize}
	t.ctx = &Context{task: t}
	return t
}

// DebugName returns the name given at Spawn time, for logging.
func (t *Task) DebugName() string { return t.debugName }

// started reports whether this task's fiber has ever run.
func (t *Task) started() bool { return t.fiber != nil }

// runFirst starts the task's fiber for the first time, running its entry
// to completion or its first Suspend/Yield/WaitEvent.
func (t *Task) runFirst() {
	t.fiber = fiber.New(t.stackSize)
	t.fiber.Start(func(*fiber.Fiber) {
		t.entry(t.ctx)
	})
}

// resume re-enters a previously suspended task.
func (t *Task) resume() { t.fiber.Resume() }

// terminated reports whether the task's entry has returned.
func (t *Task) terminated() bool { return t.fiber != nil && t.fiber.Terminated() }
