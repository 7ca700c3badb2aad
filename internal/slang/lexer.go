// Package slang implements the streaming S-expression lexer, compiler,
// and stack-machine VM described in spec.md §4.I-L, grounded on
// original_source/source/slang/{lexer.{h,cc},compiler.{h,cc},
// compiler_def.h,program.{h,cc},call.{h,cc},env.{h,cc},math_funcs.cc}
// and source/main/slang_env.{h,cc}.
package slang

import (
	"fmt"
	"strconv"

	"github.com/xynqdb/xynq/internal/xio"
)

// TermType classifies the token currently being assembled, mirroring
// detail::TermType in lexer.h.
type TermType int

const (
	TermValue TermType = iota // a bare int/float/identifier term
	TermOp                    // the operator name right after '('
	TermStr                   // inside a "..." string literal
)

// Failure reports a lexing error together with its source position,
// the Go analog of lexer.h's LexerFailure.
type Failure struct {
	Line, Col int
	Msg       string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%d:%d: %s", f.Line, f.Col, f.Msg)
}

// Handler receives lexer callbacks as the token stream is parsed. It
// is the Go analog of the templated Handler parameter lexer.h expects
// (begin_op/end_op/str_value/int_value/double_value/unhandled_value/
// custom_data in spec.md §4.I).
type Handler interface {
	LexerBeginOp(name string) error
	LexerEndOp() error
	LexerStrValue(s string) error
	LexerIntValue(v int64) error
	LexerDoubleValue(v float64) error
	LexerUnhandledValue(s string) error
	LexerCustomData(token uint32, r *xio.Reader) error
}

// lexState is the streaming lexer's mutable cursor, the Go analog of
// detail::LexerState. Unlike the original, which keeps a raw pointer
// span into the StreamReader's buffer and only copies it into an
// overflow buffer when a refill would invalidate it, this port always
// accumulates the in-progress term into a plain []byte as each byte is
// consumed. That trades the original's zero-copy trick (which depends
// on pointer arithmetic into a buffer this package has no access to
// across xio.Reader's refill boundary) for an implementation that is
// refill-safe by construction, with no special-casing needed at all.
type lexState struct {
	r          *xio.Reader
	line       int
	lineOffset int
	opDepth    int
	isEscaped  bool
	wasEscaped bool
	termType   TermType
	hasTerm    bool
	term       []byte
}

func newLexState(r *xio.Reader) *lexState {
	return &lexState{r: r, line: 1}
}

func (s *lexState) fail(msg string) error {
	return &Failure{Line: s.line, Col: s.lineOffset, Msg: msg}
}

func (s *lexState) nextChar() (byte, bool) {
	if len(s.r.AvailableOrRead()) == 0 {
		return 0, false
	}
	s.lineOffset++
	return s.r.ReadOneCharUnchecked(), true
}

func (s *lexState) newLine()      { s.line++; s.lineOffset = 0 }
func (s *lexState) escape()       { s.isEscaped = true; s.wasEscaped = true }
func (s *lexState) resetEscape()  { s.isEscaped = false }
func (s *lexState) appendTerm(c byte) { s.term = append(s.term, c) }

func (s *lexState) startTerm(t TermType) {
	s.termType = t
	s.hasTerm = true
	s.term = s.term[:0]
}

func (s *lexState) finishTerm() {
	s.termType = TermValue
	s.hasTerm = false
	s.term = s.term[:0]
	s.wasEscaped = false
}

// isOpChar mirrors lexer.cc's IsOpChar: any byte that isn't whitespace,
// a digit, bracketing punctuation, a quote, or a colon/semicolon.
func isOpChar(ch byte) bool {
	return ch > 0x20 &&
		!(ch >= '0' && ch <= '9') &&
		ch != '(' && ch != ')' && ch != '{' && ch != '}' && ch != '[' && ch != ']' &&
		ch != '"' && ch != '\'' &&
		ch != ':' && ch != ';'
}

// checkOpName mirrors lexer.cc's LexerCheckOpName.
func checkOpName(term []byte) bool {
	if len(term) == 0 {
		return true
	}
	if !isOpChar(term[0]) {
		return false
	}
	for _, ch := range term[1:] {
		if !isOpChar(ch) && !(ch >= '0' && ch <= '9') {
			return false
		}
	}
	return true
}

// parseInt64 mirrors lexer.cc's LexerParseInt64 (strtoll semantics:
// the whole term must be consumed, or it isn't an int).
func parseInt64(term []byte) (int64, bool) {
	v, err := strconv.ParseInt(string(term), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseFloat64 mirrors lexer.cc's LexerParseDouble (strtod semantics).
func parseFloat64(term []byte) (float64, bool) {
	v, err := strconv.ParseFloat(string(term), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// unescapeString mirrors lexer.cc's LexerParseString: strips the
// escaping backslash out of a raw string term, in place conceptually
// (here, into a fresh copy since term aliases lexState's reusable
// buffer).
func unescapeString(term []byte, wasEscaped bool) string {
	if !wasEscaped {
		return string(term)
	}
	out := make([]byte, 0, len(term))
	escaped := false
	for _, ch := range term {
		if ch == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		out = append(out, ch)
	}
	return string(out)
}

// Lexer drives Handler callbacks from a byte stream of prefix
// S-expressions, per spec.md §4.I's grammar.
type Lexer struct {
	Handler    Handler
	SingleExpr bool
}

// NewLexer binds a Lexer to handler. When singleExpr is true, Run
// returns as soon as the outermost ')' closes back to depth zero,
// rather than consuming the whole stream.
func NewLexer(handler Handler, singleExpr bool) *Lexer {
	return &Lexer{Handler: handler, SingleExpr: singleExpr}
}

// Run parses r's byte stream, dispatching Handler callbacks as terms
// finalize. It mirrors lexer.h's Lexer<Handler>::Run character
// dispatch loop exactly, with two deliberate exceptions documented
// inline at the '!' and ';' cases below.
func (lx *Lexer) Run(r *xio.Reader) error {
	s := newLexState(r)

	for {
		c, ok := s.nextChar()
		if !ok {
			break
		}

		curEscaped := s.isEscaped
		s.resetEscape()

		if s.termType == TermStr {
			if c != '"' || curEscaped {
				s.appendTerm(c)
				if c == '\\' && !curEscaped {
					s.escape()
				}
				if c == '\n' {
					s.newLine()
				}
				continue
			}
		}

		switch c {
		case '(':
			if err := lx.finalizeTerm(s); err != nil {
				return err
			}
			s.opDepth++
			s.startTerm(TermOp)

		case ')':
			finalizeErr := lx.finalizeTerm(s)
			var endErr error
			if finalizeErr == nil {
				if herr := lx.Handler.LexerEndOp(); herr != nil {
					endErr = s.fail(herr.Error())
				}
			}
			s.opDepth--
			if s.opDepth < 0 {
				return s.fail("Redundant closing parenthesis")
			}
			if finalizeErr != nil {
				return finalizeErr
			}
			if endErr != nil {
				return endErr
			}
			if lx.SingleExpr && s.opDepth == 0 {
				return nil
			}

		case '"':
			if s.termType == TermStr {
				if err := lx.finalizeTerm(s); err != nil {
					return err
				}
			} else {
				if err := lx.finalizeTerm(s); err != nil {
					return err
				}
				s.startTerm(TermStr)
			}

		case '!':
			// Deliberate deviation from lexer.h: the original does not
			// finalize apending term before a custom-data tag, which
			// would (if one were somehow in progress) silently fold the
			// tag and payload bytes into that term's span. Finalizing
			// first avoids that corner case without changing behavior
			// for any syntactically valid program, where '!' always
			// appears where a value is expected.
			if err := lx.finalizeTerm(s); err != nil {
				return err
			}
			if err := lx.readCustomData(s, r); err != nil {
				return err
			}

		case ';':
			// Deliberate deviation from lexer.h, for the same reason as
			// the '!' case above: finalize first so a comment can never
			// be absorbed into a preceding term's span.
			if err := lx.finalizeTerm(s); err != nil {
				return err
			}
			for {
				ch, ok := s.nextChar()
				if !ok || ch == '\n' {
					break
				}
			}
			s.newLine()

		case '\n':
			s.newLine()
			if err := lx.finalizeTerm(s); err != nil {
				return err
			}
		case ' ', '\t', '\r':
			if err := lx.finalizeTerm(s); err != nil {
				return err
			}

		default:
			if !s.hasTerm {
				s.startTerm(TermValue)
			}
			s.appendTerm(c)
		}
	}

	if s.opDepth > 0 {
		return s.fail("Missing closing parenthesis")
	}
	if s.termType == TermStr {
		return s.fail("Invalid string literal - not closed")
	}
	return nil
}

// readCustomData handles the `!tag[...]` payload syntax: it packs up
// to 4 tag bytes the same way the loop in lexer.h's '!' case does,
// and passes the packed tag and the reader to Handler.LexerCustomData,
// which resolves the tag's handler and consumes the opaque byte span.
func (lx *Lexer) readCustomData(s *lexState, r *xio.Reader) error {
	var token uint32
	size := 0
	for {
		ch, ok := s.nextChar()
		if !ok {
			return s.fail("Invalid opening tag for custom data")
		}
		if ch == '[' || size >= 4 {
			if ch != '[' {
				return s.fail("Invalid opening tag for custom data")
			}
			break
		}
		token = token<<8 | uint32(ch)
		size++
	}

	if err := lx.Handler.LexerCustomData(token, r); err != nil {
		return s.fail(err.Error())
	}

	closeCh, ok := s.nextChar()
	if !ok || closeCh != ']' {
		return s.fail("No closing ] for custom data")
	}
	s.finishTerm()
	return nil
}

// finalizeTerm dispatches the in-progress term to the matching
// Handler callback, mirroring lexer.h's Lexer<Handler>::FinalizeTerm.
func (lx *Lexer) finalizeTerm(s *lexState) error {
	if !s.hasTerm {
		return nil
	}
	if s.opDepth <= 0 {
		return s.fail("Expected opening bracket")
	}

	term := s.term
	termType := s.termType
	wasEscaped := s.wasEscaped
	s.finishTerm()

	switch termType {
	case TermOp:
		if len(term) == 0 {
			return nil
		}
		if !checkOpName(term) {
			return s.fail("Invalid op name: " + string(term))
		}
		if err := lx.Handler.LexerBeginOp(string(term)); err != nil {
			return s.fail(err.Error())
		}

	case TermValue:
		if len(term) == 0 {
			return nil
		}
		if v, ok := parseInt64(term); ok {
			if err := lx.Handler.LexerIntValue(v); err != nil {
				return s.fail(err.Error())
			}
		} else if v, ok := parseFloat64(term); ok {
			if err := lx.Handler.LexerDoubleValue(v); err != nil {
				return s.fail(err.Error())
			}
		} else {
			if err := lx.Handler.LexerUnhandledValue(string(term)); err != nil {
				return s.fail(err.Error())
			}
		}

	case TermStr:
		str := unescapeString(term, wasEscaped)
		if err := lx.Handler.LexerStrValue(str); err != nil {
			return s.fail(err.Error())
		}
	}
	return nil
}
