package slang

import (
	"fmt"

	"github.com/xynqdb/xynq/internal/types"
	"github.com/xynqdb/xynq/internal/xio"
)

// Compiler is a Lexer Handler that assembles a Program by walking the
// token stream once, emitting a Push or Call instruction per callback.
// Grounded on compiler.{h,cc}.
//
// Unlike Compiler in the original, this port holds no arena of its
// own for string literals: Go's string(term) conversion in the lexer
// already copies the bytes into a fresh, GC-owned allocation, so there
// is nothing left for a compile-time arena to usefully own. No
// request-scoped arena exists either: the endpoint's arena backs only
// its connection-lifetime I/O buffers and is not purged between
// requests.
type Compiler struct {
	env     *Env
	program *Program
}

// NewCompiler binds a compiler to the function/payload-handler
// environment its Call instructions resolve against.
func NewCompiler(env *Env) *Compiler {
	return &Compiler{env: env}
}

// Build lexes and compiles a single S-expression from r into a
// Program, reversing the emitted instructions per compiler.cc's Build
// (Call precedes its arguments in source order; the VM wants them
// reversed so it can push arguments before calling).
func (c *Compiler) Build(r *xio.Reader) (*Program, error) {
	c.program = &Program{}
	lx := NewLexer(c, true)
	if err := lx.Run(r); err != nil {
		return nil, err
	}

	code := c.program.code
	for i, j := 0, len(code)-1; i < j; i, j = i+1, j-1 {
		code[i], code[j] = code[j], code[i]
	}

	p := c.program
	c.program = nil
	return p, nil
}

func (c *Compiler) push(v types.TypedValue) {
	c.program.code = append(c.program.code, Instruction{Code: OpPush, Value: v})
}

// LexerBeginOp resolves name against the environment's function table
// and emits a placeholder Call instruction carrying the resolved
// function. Mirrors compiler.cc's LexerBeginOp.
func (c *Compiler) LexerBeginOp(name string) error {
	fn, ok := c.env.FindCall(name)
	if !ok {
		return fmt.Errorf("Unknown function '%s'", name)
	}
	c.program.code = append(c.program.code, Instruction{Code: OpCall, Fn: fn})
	return nil
}

// LexerEndOp emits the FrameBarrier marking the base of the call frame
// that's about to close. Mirrors compiler.cc's LexerEndOp.
func (c *Compiler) LexerEndOp() error {
	c.push(types.FrameBarrier)
	return nil
}

// LexerStrValue emits a Push of a string literal.
func (c *Compiler) LexerStrValue(s string) error {
	c.push(types.TypedString(s))
	return nil
}

// LexerIntValue emits a Push of an int64 literal.
func (c *Compiler) LexerIntValue(v int64) error {
	c.push(types.TypedInt64(v))
	return nil
}

// LexerDoubleValue emits a Push of a float64 literal.
func (c *Compiler) LexerDoubleValue(v float64) error {
	c.push(types.TypedFloat64(v))
	return nil
}

// LexerUnhandledValue handles a bare term that parsed as neither an
// int nor a double: a leading ':' marks a field-name value (`:foo`
// compiles to the field "foo"), anything else is treated as an
// identifier string. Mirrors compiler.cc's LexerUnhandledValue.
func (c *Compiler) LexerUnhandledValue(s string) error {
	if len(s) > 1 && s[0] == ':' {
		c.push(types.TypedField(s[1:]))
		return nil
	}
	return c.LexerStrValue(s)
}

// LexerCustomData resolves token against the environment's
// payload-handler table and delegates the opaque byte span to it.
// Mirrors compiler.cc's LexerCustomData.
func (c *Compiler) LexerCustomData(token uint32, r *xio.Reader) error {
	h, ok := c.env.FindPayloadHandler(token)
	if !ok {
		return fmt.Errorf("Unknown payload type: %d", token)
	}
	return h.ProcessPayload(r)
}
