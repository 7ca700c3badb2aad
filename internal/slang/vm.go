package slang

import (
	"fmt"

	"github.com/xynqdb/xynq/internal/types"
	"github.com/xynqdb/xynq/internal/wire"
)

// OpCode is one of the VM's two instructions, mirroring call.h's
// OpCode enum (its Invalid member has no Go analog - a zero-value
// Instruction simply never appears in a compiled Program).
type OpCode uint8

const (
	OpPush OpCode = iota
	OpCall
)

// Instruction is one compiled VM step. For OpPush, Value carries the
// literal to push; for OpCall, Fn carries the resolved host function
// (the Go analog of call.h's Instruction.data.value.ptr).
type Instruction struct {
	Code  OpCode
	Value types.TypedValue
	Fn    Call
}

// Program is an immutable, reversed instruction sequence ready to
// execute, mirroring program.{h,cc}.
type Program struct {
	code []Instruction
}

// CallArgs is a read-only view over the VM stack a Call function was
// invoked with. Begin returns a fresh top-to-bottom iterator each
// time, matching call.h's CallArgs::Begin() semantics: CheckOperationType
// and the actual arithmetic both walk the same argument list
// independently, each from the top.
type CallArgs struct {
	stack []types.TypedValue
}

func newCallArgs(stack []types.TypedValue) *CallArgs {
	return &CallArgs{stack: stack}
}

// Begin returns an iterator positioned at the argument nearest the
// Call instruction (the top of the stack).
func (a *CallArgs) Begin() ArgsIter {
	return ArgsIter{stack: a.stack, idx: len(a.stack) - 1}
}

// ArgsIter walks a call frame's arguments top-to-bottom, stopping at
// the FrameBarrier beneath them. It is a value type so callers can
// freely copy one to re-scan from the same starting point.
type ArgsIter struct {
	stack []types.TypedValue
	idx   int
}

// IsEnd reports whether the iterator has reached the frame's barrier
// (or run off the bottom of the stack, which should never happen for
// a well-formed program).
func (it ArgsIter) IsEnd() bool {
	return it.idx < 0 || it.stack[it.idx].Schema == types.FrameBarrierSchema
}

// Next moves to the argument just below the current one.
func (it *ArgsIter) Next() { it.idx-- }

// Value returns the current argument. Precondition: !IsEnd().
func (it ArgsIter) Value() types.TypedValue { return it.stack[it.idx] }

// Type returns the current argument's schema.
func (it ArgsIter) Type() *types.Schema { return it.stack[it.idx].Schema }

// AsInt64 numerically coerces the current argument, as call.h's
// Iterator::Get<T> does for any numeric schema.
func (it ArgsIter) AsInt64() (int64, bool) { return it.Value().AsInt64() }

// AsFloat64 numerically coerces the current argument.
func (it ArgsIter) AsFloat64() (float64, bool) { return it.Value().AsFloat64() }

// AsString returns the current argument's string, only if its schema
// is exactly the basic string type.
func (it ArgsIter) AsString() (string, bool) {
	v := it.Value()
	if v.Schema != types.StringSchema {
		return "", false
	}
	return v.Value.Str, true
}

// AsField returns the current argument's field name, only if its
// schema is exactly the `:name` field type.
func (it ArgsIter) AsField() (string, bool) {
	v := it.Value()
	if v.Schema != types.FieldSchema_ {
		return "", false
	}
	return v.Value.Str, true
}

// CallOutput collects a host function's return values on a stack kept
// separate from its arguments, so a function can write results without
// racing the frame about to be purged underneath it. Mirrors call.h's
// CallOutput.
type CallOutput struct {
	values []types.TypedValue
}

// AddTyped appends an explicitly-schemad value.
func (o *CallOutput) AddTyped(schema *types.Schema, v types.Value) {
	o.values = append(o.values, types.TypedValue{Schema: schema, Value: v})
}

// AddInt64 appends an int64 result.
func (o *CallOutput) AddInt64(v int64) { o.AddTyped(types.Int64Schema, types.Int64(v)) }

// AddFloat64 appends a float64 result.
func (o *CallOutput) AddFloat64(v float64) { o.AddTyped(types.Float64Schema, types.Float64(v)) }

// AddString appends a string result.
func (o *CallOutput) AddString(v string) { o.AddTyped(types.StringSchema, types.String(v)) }

// AddObject appends a composite result backed by raw object bytes, the
// same shape wire.ObjectValue builds for the serializer to recurse into.
func (o *CallOutput) AddObject(schema *types.Schema, data []byte) {
	o.AddTyped(schema, types.Value{Ptr: data})
}

// CallContext is what a host Call function receives: its arguments, a
// place to write results, and ambient user data (the shared storage/
// type dependencies installed by whatever embeds the VM). Mirrors
// call.h's CallContext, minus the error_text StrBuilder - Fail plays
// that role here.
type CallContext struct {
	Args     *CallArgs
	Output   *CallOutput
	UserData any

	errorText string
}

// Fail records a formatted error message and returns false, so host
// functions can write `return c.Fail("...")`.
func (c *CallContext) Fail(format string, args ...any) bool {
	c.errorText = fmt.Sprintf(format, args...)
	return false
}

// Call is a host function: it reads CallContext.Args and writes to
// CallContext.Output, returning false (after calling Fail) to abort
// the enclosing program.
type Call func(*CallContext) bool

// ExecuteContext carries what Program.Execute needs for one run: the
// serializer for the final (or error) result, and user data made
// available to every host function invoked during the run. Mirrors
// program.h's ProgramExecuteContext, minus the separate stack
// allocators - this port uses plain Go slices for the VM stacks.
type ExecuteContext struct {
	Serializer *wire.Serializer
	UserData   any
}

// purgeFrame pops stack back to (and including) the nearest preceding
// FrameBarrier, mirroring program.cc's PurgeStackFrame.
func purgeFrame(stack []types.TypedValue) []types.TypedValue {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].Schema == types.FrameBarrierSchema {
			return stack[:i]
		}
	}
	return stack
}

// Execute runs the program's instructions against a fresh VM stack,
// then serializes the residual stack - or, if a host function fails,
// its error text - via ctx.Serializer. Mirrors program.cc's
// Program::Execute instruction loop.
func (p *Program) Execute(ctx *ExecuteContext) error {
	var stack []types.TypedValue

	for _, instr := range p.code {
		switch instr.Code {
		case OpPush:
			stack = append(stack, instr.Value)

		case OpCall:
			if instr.Fn == nil {
				return fmt.Errorf("slang: nil function pointer in compiled program")
			}
			output := &CallOutput{}
			callCtx := &CallContext{
				Args:     newCallArgs(stack),
				Output:   output,
				UserData: ctx.UserData,
			}
			if !instr.Fn(callCtx) {
				return ctx.Serializer.SerializeString(callCtx.errorText)
			}
			stack = purgeFrame(stack)
			stack = append(stack, output.values...)
		}
	}

	return serializeResidual(ctx.Serializer, stack)
}

// serializeResidual emits the program's residual stack per spec.md
// §6.1: zero values serialize as an empty JSON array, one as a bare
// value, two or more as a JSON array - SerializeMany already produces
// "[]" for a nil/empty slice, so the zero case falls out for free.
func serializeResidual(s *wire.Serializer, stack []types.TypedValue) error {
	if len(stack) == 1 {
		return s.SerializeOne(stack[0])
	}
	return s.SerializeMany(stack)
}
