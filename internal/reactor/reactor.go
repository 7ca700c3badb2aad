// Package reactor implements the event queue described in
// spec.md §4.C: per-thread Wait() calls that drain a shared epoll
// instance, tag-based event identity, and an eventfd-backed interrupt
// path for waking a sleeping worker on demand. Sources are registered
// level-triggered (EPOLLET is never set); a source added with
// ExactlyOnce is disarmed after one delivery instead.
//
// Grounded on original_source/source/event/epoll/event/eventqueue.{h,cc}
// for the exact AddEvent/RemoveEvent/Wait/Interrupt semantics, and on the
// teacher's eventloop package (poller_linux.go's unix.EpollCreate1/
// EpollCtl/EpollWait usage, wakeup_linux.go's eventfd creation) for the
// idiomatic Go shape of those same syscalls.
package reactor

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// EventFlags mirrors event_def.h's EventFlags bitmask.
type EventFlags uint32

const (
	Read  EventFlags = 1 << 0
	Write EventFlags = 1 << 1
	// ExactlyOnce requests EPOLLONESHOT: the source must be re-armed via
	// AddEvent after each delivery, matching spec.md §4.C's "ExactlyOnce"
	// registration mode.
	ExactlyOnce EventFlags = 1 << 2
)

// EventSource is a registrable file descriptor, mirroring
// EpollEventSource: the fd plus whether it's currently known to epoll
// (tracked so AddEvent can choose ADD vs MOD, exactly like is_added_).
type EventSource struct {
	fd    int
	added bool
}

// NewEventSource wraps an already-open file descriptor for registration
// with a Reactor. fd must stay valid for as long as it's registered.
func NewEventSource(fd int) *EventSource {
	return &EventSource{fd: fd}
}

// FD returns the underlying file descriptor.
func (s *EventSource) FD() int { return s.fd }

// Event is a single delivery out of Wait, carrying the opaque tag given
// to AddEvent so callers can recover which EventSource fired without a
// separate side table, matching EpollEvent's UserHandle().
type Event struct {
	raw unix.EpollEvent
	Tag any
}

func (e Event) IsRead() bool  { return e.raw.Events&unix.EPOLLIN != 0 }
func (e Event) IsWrite() bool { return e.raw.Events&unix.EPOLLOUT != 0 }
func (e Event) IsError() bool { return e.raw.Events&unix.EPOLLERR != 0 }
func (e Event) IsClose() bool {
	return e.raw.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0
}

// Reactor is a single epoll instance shared by a fixed set of worker
// threads, each of which calls Wait with its own thread index. The
// cache-line padding between per-thread event buffers in the original
// exists to stop adjacent epoll_wait calls from false-sharing a cache
// line; Go slices backed by a single shared buffer get the same benefit
// by applying the same padding computation per thread slot.
type Reactor struct {
	epollFD int

	mu   sync.Mutex
	tags map[int]any // fd -> tag, recovered into Event.Tag on delivery

	threadMaxEvents int
	threadSlotSize  int
	buf             []unix.EpollEvent

	wakeFD int // eventfd used by Interrupt/InterruptAll
	wake   *EventSource
}

// cacheLineSize is the cache line width New uses to size the extra
// epoll_event slots inserted between each thread's slice of the shared
// buffer, the same way as eventqueue.cc: enough bytes to cover one
// cache line.
const cacheLineSize = 64

// New creates a Reactor sized for numThreads worker threads, each
// capable of receiving up to threadMaxEventsAtOnce events per Wait call.
func New(threadMaxEventsAtOnce, numThreads int) (*Reactor, error) {
	epollFD, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}

	wakeFD, err := unix.Eventfd(0, unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epollFD)
		return nil, fmt.Errorf("reactor: eventfd: %w", err)
	}

	const epollEventSize = 16 // sizeof(struct epoll_event) on Linux, all arches.
	padding := (cacheLineSize + epollEventSize) / epollEventSize
	slotSize := threadMaxEventsAtOnce + padding

	r := &Reactor{
		epollFD:         epollFD,
		tags:            make(map[int]any),
		threadMaxEvents: threadMaxEventsAtOnce,
		threadSlotSize:  slotSize,
		buf:             make([]unix.EpollEvent, slotSize*numThreads),
		wakeFD:          wakeFD,
		wake:            NewEventSource(wakeFD),
	}

	if err := r.AddEvent(r.wake, Read, nil); err != nil {
		_ = r.Close()
		return nil, err
	}

	return r, nil
}

// Close releases the epoll instance and the wakeup eventfd.
func (r *Reactor) Close() error {
	if r.wakeFD >= 0 {
		_ = unix.Close(r.wakeFD)
	}
	if r.epollFD >= 0 {
		return unix.Close(r.epollFD)
	}
	return nil
}

// AddEvent registers src for the given flags, storing tag for later
// recovery via Event.Tag. Calling it again on an already-registered
// source re-arms it (EPOLL_CTL_MOD) — the mechanism ExactlyOnce
// consumers use to re-subscribe after each delivery.
func (r *Reactor) AddEvent(src *EventSource, flags EventFlags, tag any) error {
	var ev unix.EpollEvent
	ev.Events = unix.EPOLLERR | unix.EPOLLHUP
	if flags&Read != 0 {
		ev.Events |= unix.EPOLLIN
	}
	if flags&Write != 0 {
		ev.Events |= unix.EPOLLOUT
	}
	if flags&ExactlyOnce != 0 {
		ev.Events |= unix.EPOLLONESHOT
	}

	r.mu.Lock()
	r.tags[src.fd] = tag
	op := unix.EPOLL_CTL_ADD
	if src.added {
		op = unix.EPOLL_CTL_MOD
	}
	r.mu.Unlock()

	ev.Fd = int32(src.fd)
	if err := unix.EpollCtl(r.epollFD, op, src.fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl add/mod failed: %w", err)
	}
	src.added = true
	return nil
}

// RemoveEvent unregisters src. It is a no-op error-wise if src was never
// added.
func (r *Reactor) RemoveEvent(src *EventSource) error {
	if !src.added {
		return nil
	}
	if err := unix.EpollCtl(r.epollFD, unix.EPOLL_CTL_DEL, src.fd, nil); err != nil {
		return fmt.Errorf("reactor: epoll_ctl del failed: %w", err)
	}
	src.added = false
	r.mu.Lock()
	delete(r.tags, src.fd)
	r.mu.Unlock()
	return nil
}

// Wait blocks for up to timeoutMsec milliseconds (-1 blocks forever, 0
// polls) and returns the events delivered to threadIndex's slot. After a
// successful wait it fully drains the wakeup eventfd, matching
// eventqueue.cc's "drain interrupt event before waiting" comment — the
// drain actually happens right after wait returns, clearing any stale
// interrupt so the next Wait doesn't spuriously return immediately.
func (r *Reactor) Wait(threadIndex int, timeoutMsec int) ([]Event, error) {
	offset := r.threadSlotSize * threadIndex
	slot := r.buf[offset : offset+r.threadMaxEvents]

	n, err := unix.EpollWait(r.epollFD, slot, timeoutMsec)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("reactor: epoll_wait failed: %w", err)
	}

	drainBuf := make([]byte, 64)
	for {
		m, derr := unix.Read(r.wakeFD, drainBuf)
		if derr != nil || m <= 0 {
			break
		}
	}

	if n == 0 {
		return nil, nil
	}

	out := make([]Event, 0, n)
	r.mu.Lock()
	for i := 0; i < n; i++ {
		raw := slot[i]
		tag := r.tags[int(raw.Fd)]
		out = append(out, Event{raw: raw, Tag: tag})
	}
	r.mu.Unlock()
	return out, nil
}

// Interrupt wakes at least one worker thread currently blocked in Wait.
// preferredThreadIndex is advisory only — like the original, a single
// shared eventfd can't target a specific thread, so any blocked waiter
// may be the one that observes the write.
func (r *Reactor) Interrupt(preferredThreadIndex int) error {
	return r.wakeOnce()
}

// InterruptAll wakes every worker thread currently blocked in Wait.
func (r *Reactor) InterruptAll() error {
	return r.wakeOnce()
}

func (r *Reactor) wakeOnce() error {
	// Native endianness: eventfd's counter is a host uint64, not a wire
	// value, so there's nothing for encoding/binary to buy here.
	one := uint64(1)
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]
	_, err := unix.Write(r.wakeFD, buf)
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("reactor: eventfd write failed: %w", err)
	}
	return nil
}
