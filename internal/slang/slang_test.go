package slang

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xynqdb/xynq/internal/storage"
	"github.com/xynqdb/xynq/internal/types"
	"github.com/xynqdb/xynq/internal/wire"
	"github.com/xynqdb/xynq/internal/xio"
)

func newTestEnv() (*Env, *Deps) {
	s := storage.NewStorage()
	tm := types.NewTypeManager(types.Int64Schema, types.Uint64Schema, types.Float64Schema, types.StringSchema)
	deps := &Deps{
		Storage:     s,
		Types:       tm.CreateVault(),
		TypeManager: tm,
		NopCount:    NewNopCounter(),
	}
	env := NewDefaultEnv(NewJSONPayloadHandler(s))
	return env, deps
}

// runOne runs a single S-expression against r and returns the raw
// wire output (including its trailing newline).
func runOne(t *testing.T, env *Env, deps *Deps, r *xio.Reader) string {
	t.Helper()
	var out bytes.Buffer
	w := xio.NewWriter(make([]byte, 64), &out)
	ser := wire.NewSerializer(w)
	err := Execute(env, r, &ExecuteContext{Serializer: ser, UserData: deps})
	require.NoError(t, err)
	return out.String()
}

func newTestReader(src string) *xio.Reader {
	return xio.NewReader(make([]byte, 16), strings.NewReader(src))
}

// TestArithmeticScenario mirrors spec.md §8 scenario 1.
func TestArithmeticScenario(t *testing.T) {
	env, deps := newTestEnv()
	r := newTestReader("(+ 100 -1000 900 -9223372036854775808 9223372036854775807 25)")
	assert.Equal(t, "24\n", runOne(t, env, deps, r))
}

// TestNestingScenario mirrors spec.md §8 scenario 2.
func TestNestingScenario(t *testing.T) {
	env, deps := newTestEnv()
	r := newTestReader("(+ (- 3 4) 5)")
	assert.Equal(t, "4\n", runOne(t, env, deps, r))
}

// TestTypeErrorScenario mirrors spec.md §8 scenario 3.
func TestTypeErrorScenario(t *testing.T) {
	env, deps := newTestEnv()
	r := newTestReader(`(+ 1 "two")`)
	out := runOne(t, env, deps, r)
	assert.True(t, strings.HasPrefix(out, `"Operation expects numeric type`), "got %q", out)
}

// TestStreamedReplScenario mirrors spec.md §8 scenario 4: three `nop`
// calls over one stream produce three empty-array results, and a
// side-channel counter observes exactly three invocations.
func TestStreamedReplScenario(t *testing.T) {
	env, deps := newTestEnv()
	r := newTestReader("(nop) (nop) (nop)")

	for i := 0; i < 3; i++ {
		assert.Equal(t, "[]\n", runOne(t, env, deps, r))
	}
	assert.Equal(t, int64(3), deps.NopCount.Load())
}

func TestDivisionByReciprocal(t *testing.T) {
	env, deps := newTestEnv()
	r := newTestReader("(/ 4.0)")
	assert.Equal(t, "0.25\n", runOne(t, env, deps, r))
}

func TestListPropagatesArgsUnchanged(t *testing.T) {
	env, deps := newTestEnv()
	r := newTestReader(`(list 1 2.5 "three")`)
	assert.Equal(t, `[1, 2.5, "three"]`+"\n", runOne(t, env, deps, r))
}

// TestDefstructCreateSelectRoundTrip exercises the domain host
// functions together: define a type, create an instance, then select
// it back out.
func TestDefstructCreateSelectRoundTrip(t *testing.T) {
	env, deps := newTestEnv()

	defineReader := newTestReader(`(defstruct "widget" :count "int64" :weight "double")`)
	assert.Equal(t, "[]\n", runOne(t, env, deps, defineReader))

	createReader := newTestReader(`(create "widget" :count 3 :weight 1.5)`)
	createOut := runOne(t, env, deps, createReader)
	assert.Equal(t, `{"count":3, "weight":1.5}`+"\n", createOut)

	selectReader := newTestReader(`(select "widget")`)
	selectOut := runOne(t, env, deps, selectReader)
	assert.Equal(t, `{"count":3, "weight":1.5}`+"\n", selectOut)
}

func TestDefstructRejectsDuplicateTypeName(t *testing.T) {
	env, deps := newTestEnv()
	r1 := newTestReader(`(defstruct "gizmo")`)
	assert.Equal(t, "[]\n", runOne(t, env, deps, r1))

	r2 := newTestReader(`(defstruct "gizmo")`)
	out := runOne(t, env, deps, r2)
	assert.True(t, strings.HasPrefix(out, `"Type 'gizmo' already exists.`), "got %q", out)
}

func TestLexerRejectsUnmatchedParenthesis(t *testing.T) {
	l := &collectHandler{}
	err := NewLexer(l, false).Run(newTestReader("(+ 1 2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing closing parenthesis")
}

func TestLexerSingleExprStopsAtOuterClose(t *testing.T) {
	l := &collectHandler{}
	r := newTestReader("(nop) (nop)")
	require.NoError(t, NewLexer(l, true).Run(r))
	assert.Equal(t, []string{"begin:nop", "end"}, l.events)

	l2 := &collectHandler{}
	require.NoError(t, NewLexer(l2, true).Run(r))
	assert.Equal(t, []string{"begin:nop", "end"}, l2.events)
}

func TestLexerStringEscapes(t *testing.T) {
	l := &collectHandler{}
	require.NoError(t, NewLexer(l, true).Run(newTestReader(`(nop "a\"b\\c")`)))
	require.Len(t, l.strs, 1)
	assert.Equal(t, `a"b\c`, l.strs[0])
}

func TestLexerFieldNameValue(t *testing.T) {
	l := &collectHandler{}
	require.NoError(t, NewLexer(l, true).Run(newTestReader(`(nop :count)`)))
	assert.Equal(t, []string{":count"}, l.unhandled)
}

// collectHandler is a minimal Handler used to test the lexer in
// isolation from the compiler.
type collectHandler struct {
	events    []string
	strs      []string
	unhandled []string
}

func (h *collectHandler) LexerBeginOp(name string) error {
	h.events = append(h.events, "begin:"+name)
	return nil
}
func (h *collectHandler) LexerEndOp() error {
	h.events = append(h.events, "end")
	return nil
}
func (h *collectHandler) LexerStrValue(s string) error {
	h.strs = append(h.strs, s)
	return nil
}
func (h *collectHandler) LexerIntValue(v int64) error    { return nil }
func (h *collectHandler) LexerDoubleValue(v float64) error { return nil }
func (h *collectHandler) LexerUnhandledValue(s string) error {
	h.unhandled = append(h.unhandled, s)
	return nil
}
func (h *collectHandler) LexerCustomData(token uint32, r *xio.Reader) error { return nil }

var _ = atomic.Int64{}
