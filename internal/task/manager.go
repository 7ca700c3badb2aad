package task

import (
	"fmt"
	"runtime"

	"github.com/xynqdb/xynq/internal/reactor"
)

// AutoDetectThreads mirrors kNumThreadsAutoDetect: pass this as NumThreads
// to size the pool to runtime.NumCPU().
const AutoDetectThreads = -1

// Hooks are lifecycle callbacks a host can register before Run(),
// grounded on task_manager.h's nested anonymous `hooks` struct. Go has no
// direct analog of the original's templated multi-listener BaseHook, so
// each hook is modeled as a plain slice of listener funcs, appended to
// via the Add* methods and invoked in registration order.
type Hooks struct {
	beforeStart       []func(numThreads int)
	beforeThreadStart []func(threadIndex int, log Logger, userData any)
	afterThreadStop   []func(threadIndex int, userData any)
}

func (h *Hooks) AddBeforeStart(fn func(numThreads int)) {
	h.beforeStart = append(h.beforeStart, fn)
}

func (h *Hooks) AddBeforeThreadStart(fn func(threadIndex int, log Logger, userData any)) {
	h.beforeThreadStart = append(h.beforeThreadStart, fn)
}

func (h *Hooks) AddAfterThreadStop(fn func(threadIndex int, userData any)) {
	h.afterThreadStop = append(h.afterThreadStop, fn)
}

// Config bundles the construction-time parameters from
// TaskManager's constructor.
type Config struct {
	Log             Logger
	MaxEventsAtOnce int
	NumThreads      int
	UserDataFactory func(threadIndex int) any
}

// TaskManager owns the shared Reactor and the pool of WorkerThreads,
// grounded on task_manager.{h,cc}.
type TaskManager struct {
	Hooks Hooks

	log     Logger
	reactor *reactor.Reactor

	numThreads      int
	userDataFactory func(threadIndex int) any

	entrypoints []*Task
	workers     []*WorkerThread
	running     bool
}

// New constructs a TaskManager and its shared Reactor. The Reactor is
// created eagerly (matching the original constructing its EventQueue
// up front) so AddEntryPoint's tasks have somewhere to eventually run.
func New(cfg Config) (*TaskManager, error) {
	log := cfg.Log
	if log == nil {
		log = noopLogger{}
	}

	numThreads := cfg.NumThreads
	if numThreads == AutoDetectThreads {
		numThreads = runtime.NumCPU()
		log.Info("auto-detecting worker thread count", "num_threads", numThreads)
	}
	if numThreads < 1 {
		return nil, fmt.Errorf("task: NumThreads must be >= 1, got %d", numThreads)
	}

	maxEvents := cfg.MaxEventsAtOnce
	if maxEvents <= 0 {
		maxEvents = 256
	}

	r, err := reactor.New(maxEvents, numThreads)
	if err != nil {
		return nil, fmt.Errorf("task: creating reactor: %w", err)
	}

	return &TaskManager{
		log:             log,
		reactor:         r,
		numThreads:      numThreads,
		userDataFactory: cfg.UserDataFactory,
	}, nil
}

// NumThreads returns the size of the worker pool.
func (m *TaskManager) NumThreads() int { return m.numThreads }

// Reactor returns the shared event queue, for hosts that need to
// register listener sockets before any task exists to do so.
func (m *TaskManager) Reactor() *reactor.Reactor { return m.reactor }

// AddEntryPoint queues entry to run on worker 0 once Run starts. Only
// legal before Run is called, matching "Only allow entry points be added
// before threads started."
func (m *TaskManager) AddEntryPoint(entry func(*Context)) error {
	if m.running {
		return fmt.Errorf("task: cannot add entry point after Run has started")
	}
	m.entrypoints = append(m.entrypoints, newTask(entry, "", DefaultStackSize))
	return nil
}

// Run starts every worker thread and blocks the calling goroutine by
// running worker 0's loop inline, matching "Runs task threads and blocks
// current thread." Workers 1..N-1 run on their own goroutines.
func (m *TaskManager) Run() error {
	if m.running {
		return fmt.Errorf("task: already running")
	}
	m.running = true

	for _, fn := range m.Hooks.beforeStart {
		fn(m.numThreads)
	}

	m.workers = make([]*WorkerThread, m.numThreads)
	for i := 0; i < m.numThreads; i++ {
		var userData any
		if m.userDataFactory != nil {
			userData = m.userDataFactory(i)
		}
		m.workers[i] = newWorkerThread(m, i, m.log, userData)
	}

	for _, t := range m.entrypoints {
		m.workers[0].queueTask(t)
	}
	m.entrypoints = nil
	_ = m.reactor.InterruptAll()

	for i, w := range m.workers {
		for _, fn := range m.Hooks.beforeThreadStart {
			fn(i, m.log, w.userData)
		}
	}

	for i := 1; i < m.numThreads; i++ {
		go m.workers[i].Run()
	}

	m.workers[0].Run() // blocks the caller.
	return nil
}

// Stop asynchronously requests every worker stop. Queued tasks might
// never finish. Safe to call from any goroutine, including from within a
// task via Context.Exit.
func (m *TaskManager) Stop() {
	for _, w := range m.workers {
		w.running.Store(false)
	}
	_ = m.reactor.InterruptAll()
}

// onWorkerStopped is called by a WorkerThread right after its loop
// exits. Matching StopInternal's "propagate the stop to every peer and
// keep nudging the reactor until all have exited" behavior, any worker
// that stops first makes sure the rest follow and invokes the
// after-thread-stop hook for itself.
func (m *TaskManager) onWorkerStopped(w *WorkerThread) {
	m.Stop()
	for _, fn := range m.Hooks.afterThreadStop {
		fn(w.index, w.userData)
	}
}
