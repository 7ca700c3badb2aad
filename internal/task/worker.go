package task

import (
	"sync/atomic"

	"github.com/xynqdb/xynq/internal/reactor"
)

// localRingCapacity mirrors worker_thread.cc's MRSWRing<TaskTuple>
// construction: a fixed 1024-slot local queue per worker.
const localRingCapacity = 1024

// WorkerThread runs one goroutine-backed scheduling loop: drain ready
// events from the shared Reactor into its local ring, then run every
// locally-queued-or-stolen task to its next suspend point. Grounded on
// worker_thread.{h,cc}'s ThreadProc/DequeNextTask/PreTask/PostTask.
type WorkerThread struct {
	index   int
	manager *TaskManager
	log     Logger

	ring *Ring[*Task]

	userData any

	running  atomic.Bool
	finished atomic.Bool

	// Execution state for whichever task is currently running on this
	// worker, mirroring WorkerThread::ExecutionState.
	currentTask     *Task
	pendingSource   *reactor.EventSource
	pendingFlags    reactor.EventFlags
	hasPendingEvent bool
	yieldRequested  bool
}

func newWorkerThread(manager *TaskManager, index int, log Logger, userData any) *WorkerThread {
	if log == nil {
		log = noopLogger{}
	}
	w := &WorkerThread{
		index:    index,
		manager:  manager,
		log:      log,
		ring:     NewRing[*Task](localRingCapacity),
		userData: userData,
	}
	w.running.Store(true)
	return w
}

// queueTask pushes t onto this worker's local ring. If the ring is full
// the task is dropped with a logged error — spec.md leaves ring overflow
// behavior as a backpressure decision for callers, and a bounded queue
// that silently blocked would risk deadlocking the whole pool.
func (w *WorkerThread) queueTask(t *Task) {
	if !w.ring.Push(t) {
		w.log.Error("task queue full, dropping task", "worker", w.index, "task", t.debugName)
	}
}

// Run is the worker's main loop: wait on the shared reactor for this
// worker's slot, promote every delivered task-tagged event into the
// local ring, then drain the ring (with work-stealing) until empty.
func (w *WorkerThread) Run() {
	for w.running.Load() {
		events, err := w.manager.reactor.Wait(w.index, -1)
		if err != nil {
			w.log.Error("reactor wait failed", "worker", w.index, "err", err)
			continue
		}

		for _, e := range events {
			task, ok := e.Tag.(*Task)
			if !ok || task == nil {
				continue // untagged wakeup event (InterruptAll/Interrupt).
			}
			w.queueTask(task)
		}

		for {
			next, ok := w.dequeueNext()
			if !ok {
				break
			}
			w.runTask(next)
		}
	}

	w.finished.Store(true)
	w.manager.onWorkerStopped(w)
}

// dequeueNext pops from the local ring first, then steals round-robin
// starting at this worker's own index across all peers, matching
// DequeNextTask exactly.
func (w *WorkerThread) dequeueNext() (*Task, bool) {
	if t, ok := w.ring.Pop(); ok {
		return t, true
	}

	workers := w.manager.workers
	n := len(workers)
	for i := 0; i < n; i++ {
		peer := workers[(w.index+i)%n]
		if t, ok := peer.ring.Pop(); ok {
			return t, true
		}
	}
	return nil, false
}

// runTask executes or resumes task until its next suspend point, then
// applies whatever the task requested (wait on an event, yield, or
// nothing, meaning it terminated).
func (w *WorkerThread) runTask(t *Task) {
	w.preTask(t)

	t.ctx.worker = w
	if !t.started() {
		t.runFirst()
	} else {
		t.resume()
	}

	w.postTask(t)
}

func (w *WorkerThread) preTask(t *Task) {
	w.currentTask = t
}

// postTask dispatches on what the task requested while suspending,
// matching worker_thread.cc's PostTask exactly: a pending event wins
// over a yield, which wins over falling through to "the task is done
// with this turn and won't run again" (either because it terminated, or
// because it called Exit and its fiber is now permanently parked).
func (w *WorkerThread) postTask(t *Task) {
	w.currentTask = nil

	switch {
	case w.hasPendingEvent:
		src, flags := w.pendingSource, w.pendingFlags
		w.pendingSource = nil
		w.hasPendingEvent = false
		if err := w.manager.reactor.AddEvent(src, flags, t); err != nil {
			w.log.Error("failed to register pending event", "worker", w.index, "task", t.debugName, "err", err)
		}
	case w.yieldRequested:
		w.yieldRequested = false
		w.queueTask(t)
	default:
		// Terminated, or Exit()-suspended forever: nothing left to do.
	}
}
