// Package endpoint implements the per-connection compile-execute-
// serialize loop: one Endpoint per accepted stream, cycling through
// Slang requests until the stream closes. Grounded on
// original_source/source/main/{endpoint.h,endpoint.cc,endpoint_handler.h}.
package endpoint

import (
	"io"

	"github.com/xynqdb/xynq/internal/arena"
	"github.com/xynqdb/xynq/internal/slang"
	"github.com/xynqdb/xynq/internal/task"
	"github.com/xynqdb/xynq/internal/wire"
	"github.com/xynqdb/xynq/internal/xio"
)

// Mode mirrors EndpointMode.
type Mode int

const (
	// ModeNone means the endpoint is not operational, e.g. its
	// underlying connection is closed.
	ModeNone Mode = iota
	// ModeRepl is request-response with slang commands.
	ModeRepl
	// ModeReplica marks this endpoint as a replication link. Not
	// implemented - replication is out of scope (see DESIGN.md) - kept
	// as a named mode so a Serve loop that's handed one fails loudly
	// instead of silently falling through to ModeNone.
	ModeReplica
)

const (
	readBufferSize  = 1024
	writeBufferSize = 1024
)

// Stream is the duplex byte connection an Endpoint serves over.
type Stream interface {
	io.Reader
	io.Writer
}

// Endpoint serves one connection's worth of Slang requests. Created
// fresh per accepted stream, matching EndpointHandler's "one per every
// endpoint" comment.
type Endpoint struct {
	name   string
	stream Stream
	env    *slang.Env
	deps   *slang.Deps
	mode   Mode

	// arena backs this connection's read/write buffers - the Go analog
	// of Endpoint's in_buf_/out_buf_ fixed arrays, allocated once for
	// the connection's lifetime rather than per request. The original's
	// ScratchAllocator member additionally backed slang::Context's
	// AST-node allocations, purged after every request; this port's
	// compiler and VM allocate AST/Program nodes as plain GC-owned Go
	// values (see internal/slang/compiler.go's doc comment), so there is
	// nothing per-request left for a purge to usefully reclaim here.
	arena *arena.Arena
}

// New creates an Endpoint named name, serving requests over stream
// against env, with deps available to every host function a request
// invokes (storage, type vault, the nop counter).
func New(name string, stream Stream, env *slang.Env, deps *slang.Deps) *Endpoint {
	return &Endpoint{
		name:   name,
		stream: stream,
		env:    env,
		deps:   deps,
		mode:   ModeRepl,
		arena:  arena.New(readBufferSize + writeBufferSize),
	}
}

// Name returns this endpoint's human-readable identifier, e.g.
// "tcp://127.0.0.1:54231". internal/netx generates a connection-scoped
// correlation ID of its own (see its DESIGN.md entry) for the cases
// this name alone can't disambiguate; Endpoint stays agnostic about
// where that ID lives, since its Stream is a plain io.Reader/io.Writer.
func (e *Endpoint) Name() string { return e.name }

// Mode returns the endpoint's current operating mode.
func (e *Endpoint) Mode() Mode { return e.mode }

func (e *Endpoint) setMode(m Mode) { e.mode = m }

// Serve runs the endpoint's mode loop until it switches to ModeNone,
// mirroring Endpoint::Serve's `while (mode_ != None) { switch(mode_)
// ... }`.
func (e *Endpoint) Serve(tc *task.Context) {
	log := tc.Log()
	log.Info("serving endpoint", "name", e.name)

	for e.mode != ModeNone {
		switch e.mode {
		case ModeRepl:
			e.serveRepl(tc)
		default:
			log.Error("endpoint in unsupported mode", "name", e.name, "mode", int(e.mode))
			e.setMode(ModeNone)
		}
		log.Info("endpoint switched mode", "name", e.name, "mode", int(e.mode))
	}
}

// serveRepl runs the request-response loop, mirroring
// Endpoint::ServeCommandMode: compile and execute one Slang expression
// per iteration, flush the response, and keep going until either side
// of the stream reports a terminal error.
func (e *Endpoint) serveRepl(tc *task.Context) {
	r := xio.NewReader(e.arena.Alloc(readBufferSize), e.stream)
	w := xio.NewWriter(e.arena.Alloc(writeBufferSize), e.stream)
	ser := wire.NewSerializer(w)

	execCtx := &slang.ExecuteContext{Serializer: ser, UserData: e.deps}

	for r.IsGood() && w.IsGood() {
		if err := slang.Execute(e.env, r, execCtx); err != nil {
			tc.Log().Warn("request execution failed", "name", e.name, "err", err.Error())
		}
		w.Flush()
	}

	tc.Log().Info("data stream closed, dropping endpoint", "name", e.name)
	e.setMode(ModeNone)
}
