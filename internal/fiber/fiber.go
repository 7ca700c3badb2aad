// Package fiber implements the stackful-coroutine contract from
// spec.md §4.E/§9 as a goroutine parked on a handoff-channel pair.
//
// Go offers no portable raw stack-swap primitive outside of assembly
// or cgo (see DESIGN.md for the full rationale); a goroutine blocked on
// an unbuffered channel gives the same externally-observable contract
// a context swap gives — exactly one side runs at a time, and
// suspend/resume strictly alternate — without pretending to be a
// literal stack-switch.
package fiber

import "fmt"

// State mirrors the fiber state machine from spec.md §3/§8:
// NotStarted -> Executing -> {Executing, Suspended, Terminated},
// with Suspended -> Executing on resume.
type State int32

const (
	NotStarted State = iota
	Executing
	Suspended
	Terminated
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Executing:
		return "Executing"
	case Suspended:
		return "Suspended"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// MinStackSize is the minimum "stack" budget named in spec.md §4.E.
// Go's runtime grows goroutine stacks automatically; this constant is
// only the floor New applies to the stack size it records, not an
// actual allocation size. No stack usage or high-water mark is
// measured.
const MinStackSize = 16 * 1024

// Fiber is a switchable execution context. A Fiber must not be reused
// after its function returns (state becomes Terminated).
type Fiber struct {
	state    State
	resumeCh chan struct{}
	doneCh   chan struct{}
	peakSize int // recorded stack size, see MinStackSize; not read back.
}

// New allocates a Fiber ready for Start. stackSize is only recorded
// (raised to at least MinStackSize); it is not a real allocation size.
func New(stackSize int) *Fiber {
	if stackSize < MinStackSize {
		stackSize = MinStackSize
	}
	return &Fiber{
		state:    NotStarted,
		resumeCh: make(chan struct{}),
		doneCh:   make(chan struct{}),
		peakSize: stackSize,
	}
}

// State returns the fiber's current state.
func (f *Fiber) State() State { return f.state }

// Start stands up the fiber's goroutine and runs fn(f) until fn returns
// or fn calls f.Suspend(). Only legal from NotStarted.
func (f *Fiber) Start(fn func(*Fiber)) {
	if f.state != NotStarted {
		panic(fmt.Sprintf("fiber: Start called in state %s", f.state))
	}
	f.state = Executing

	go func() {
		<-f.resumeCh // wait for the initial handoff from Start
		fn(f)
		f.state = Terminated
		f.doneCh <- struct{}{}
	}()

	f.resumeCh <- struct{}{}
	<-f.doneCh
}

// Suspend yields control back to the caller of Start/Resume. Only
// legal from inside the fiber's own goroutine, while Executing.
func (f *Fiber) Suspend() {
	if f.state != Executing {
		panic(fmt.Sprintf("fiber: Suspend called in state %s", f.state))
	}
	f.state = Suspended
	f.doneCh <- struct{}{}
	<-f.resumeCh
	f.state = Executing
}

// Resume re-enters a Suspended fiber, blocking until it next suspends
// or terminates. Only legal from outside the fiber, while Suspended.
func (f *Fiber) Resume() {
	if f.state != Suspended {
		panic(fmt.Sprintf("fiber: Resume called in state %s", f.state))
	}
	f.resumeCh <- struct{}{}
	<-f.doneCh
}

// Terminated reports whether the fiber's function has returned.
func (f *Fiber) Terminated() bool { return f.state == Terminated }
