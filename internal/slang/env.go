package slang

import "github.com/xynqdb/xynq/internal/xio"

// PayloadHandler processes a custom `!tag[...]` payload block. Run
// hands it the shared stream positioned just after the opening '[';
// the handler must leave it positioned at the closing ']'. Mirrors
// env.h's PayloadHandler abstract class.
type PayloadHandler interface {
	ProcessPayload(r *xio.Reader) error
}

// MakePayloadHandlerToken packs up to 4 tag bytes the same way Lexer's
// '!' case accumulates them while scanning a `!tag[` sequence - so a
// handler registered under MakePayloadHandlerToken("json") matches
// the source text `!json[...]`. Mirrors env.h's
// MakePayloadHandlerToken, generalized from a fixed 4-byte array to
// any string since Go has no char[4] literal to overload on.
func MakePayloadHandlerToken(tag string) uint32 {
	var token uint32
	n := len(tag)
	if n > 4 {
		n = 4
	}
	for i := 0; i < n; i++ {
		token = token<<8 | uint32(tag[i])
	}
	return token
}

// Env is the read-only call/payload-handler environment a Compiler
// resolves names against. Mirrors env.{h,cc}.
type Env struct {
	functions       map[string]Call
	payloadHandlers map[uint32]PayloadHandler
}

// NewEnv builds an Env from its function and payload-handler tables.
func NewEnv(functions map[string]Call, payloadHandlers map[uint32]PayloadHandler) *Env {
	return &Env{functions: functions, payloadHandlers: payloadHandlers}
}

// FindCall looks up a host function by its S-expression operator name.
func (e *Env) FindCall(name string) (Call, bool) {
	fn, ok := e.functions[name]
	return fn, ok
}

// FindPayloadHandler looks up a custom-data handler by its packed tag.
func (e *Env) FindPayloadHandler(token uint32) (PayloadHandler, bool) {
	h, ok := e.payloadHandlers[token]
	return h, ok
}
