package task

import "github.com/xynqdb/xynq/internal/reactor"

// Logger is the minimal structured-logging capability a worker needs to
// hand to tasks. internal/xlog's logiface-backed logger satisfies this;
// keeping it this small avoids internal/task importing internal/xlog.
type Logger interface {
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Context is the API surface passed into every task's entry closure,
// grounded on task_context.{h,cc}. Unlike the original, it is not a
// same-size aliasing wrapper around Task (Go has no reason to play that
// layout trick) — it's a plain struct holding the owning task and the
// worker it's currently executing on.
type Context struct {
	task   *Task
	worker *WorkerThread
}

// Log returns the logger for the worker this task is currently running
// on.
func (c *Context) Log() Logger { return c.worker.log }

// EventQueue returns the shared Reactor, for tasks that need to register
// their own EventSources (e.g. internal/netx's accept/read/write tasks).
func (c *Context) EventQueue() *reactor.Reactor { return c.worker.manager.reactor }

// ThreadIndex returns the index of the worker currently running this
// task.
func (c *Context) ThreadIndex() int { return c.worker.index }

// UserData returns the per-worker user-data value set via
// Config.UserDataFactory, exactly matching the original's
// "shared user data with type T" per-thread storage idiom but without
// the unsafe cast, since Go's `any` already carries the type.
func (c *Context) UserData() any { return c.worker.userData }

// WaitEvent suspends the calling task until src becomes ready per flags,
// as registered with the shared Reactor. Grounded on
// TaskContext::WaitEvent: the event is only actually added to the
// reactor from postTask, after the fiber has suspended — adding it
// before suspending risks the event firing on another thread before
// this task's state reflects Suspended.
func (c *Context) WaitEvent(src *reactor.EventSource, flags reactor.EventFlags) {
	w := c.worker
	w.pendingSource = src
	w.pendingFlags = flags
	w.hasPendingEvent = true
	c.task.fiber.Suspend()
}

// Yield suspends the calling task and requeues it on its current
// worker's local ring, letting other ready tasks run first.
func (c *Context) Yield() {
	c.worker.yieldRequested = true
	c.task.fiber.Suspend()
}

// Exit requests that the whole TaskManager stop. Queued tasks may never
// finish and will not release resources they hold, matching the
// original's documented caveat exactly. The calling task's fiber is left
// suspended forever — it is never resumed, since Stop() is monotonic —
// mirroring the original's abandonment of a not-yet-terminated stack on
// exit.
func (c *Context) Exit() {
	c.worker.manager.Stop()
	c.task.fiber.Suspend()
}

// Spawn queues a new task for execution on the calling task's worker and
// wakes any sleeping worker so it can be picked up promptly. It returns
// immediately; it does not wait for the new task to run, matching
// PerformAsync.
func (c *Context) Spawn(entry func(*Context)) {
	c.worker.queueTask(newTask(entry, "", DefaultStackSize))
	c.worker.manager.reactor.InterruptAll()
}

// SpawnNamed is Spawn with a debug name attached, for logging.
func (c *Context) SpawnNamed(debugName string, entry func(*Context)) {
	c.worker.queueTask(newTask(entry, debugName, DefaultStackSize))
	c.worker.manager.reactor.InterruptAll()
}

// RunSync runs fn inline on the calling task's own fiber, matching
// PerformSync: no new fiber, no suspension, just a direct call.
func (c *Context) RunSync(fn func(*Context)) {
	fn(c)
}
