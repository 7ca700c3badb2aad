package slang

import (
	"math"
	"sync/atomic"
)

// mathOpKind classifies whether an arithmetic op should run in the
// integer or floating-point domain, mirroring math_funcs.cc's
// CheckOperationType: a single floating-point argument contaminates
// the whole operation to double.
type mathOpKind int

const (
	mathInvalid mathOpKind = iota
	mathSignedInt
	mathDouble
)

const errNumericType = "Operation expects numeric type"

func checkOperationType(it ArgsIter) mathOpKind {
	isFloat := false
	for !it.IsEnd() {
		if !it.Type().IsNumeric() {
			return mathInvalid
		}
		isFloat = isFloat || it.Type().IsFloatingPoint()
		it.Next()
	}
	if isFloat {
		return mathDouble
	}
	return mathSignedInt
}

func sumInt(it ArgsIter) int64 {
	var result int64
	for !it.IsEnd() {
		v, _ := it.AsInt64()
		result += v
		it.Next()
	}
	return result
}

func sumFloat(it ArgsIter) float64 {
	var result float64
	for !it.IsEnd() {
		v, _ := it.AsFloat64()
		result += v
		it.Next()
	}
	return result
}

// subInt and the other binary ops below use int64 throughout the
// integer path. math_funcs.cc's sub<T>/mul<T> are instantiated with
// int16_t for the integer case, so e.g. `(* 300 300)` silently overflows
// and wraps through a 16-bit result in the original. DESIGN.md records
// this as a deliberate Open Question resolution: this rewrite uses
// int64 uniformly for + - * / rather than reproducing that truncation.
func subInt(it ArgsIter) int64 {
	if it.IsEnd() {
		return 0
	}
	res, _ := it.AsInt64()
	it.Next()
	for !it.IsEnd() {
		v, _ := it.AsInt64()
		res -= v
		it.Next()
	}
	return res
}

func subFloat(it ArgsIter) float64 {
	if it.IsEnd() {
		return 0
	}
	res, _ := it.AsFloat64()
	it.Next()
	for !it.IsEnd() {
		v, _ := it.AsFloat64()
		res -= v
		it.Next()
	}
	return res
}

func mulInt(it ArgsIter) int64 {
	res := int64(1)
	for !it.IsEnd() {
		v, _ := it.AsInt64()
		res *= v
		it.Next()
	}
	return res
}

func mulFloat(it ArgsIter) float64 {
	res := 1.0
	for !it.IsEnd() {
		v, _ := it.AsFloat64()
		res *= v
		it.Next()
	}
	return res
}

func divFloat(it ArgsIter) float64 {
	if it.IsEnd() {
		return math.NaN()
	}
	d0, _ := it.AsFloat64()
	it.Next()
	if it.IsEnd() {
		return 1.0 / d0
	}
	d1 := 1.0
	for !it.IsEnd() {
		v, _ := it.AsFloat64()
		d1 *= v
		it.Next()
	}
	return d0 / d1
}

// RegisterMathFunctions installs `+ - * /` into functions, mirroring
// math_funcs.cc's RegisterMathFunctions.
func RegisterMathFunctions(functions map[string]Call) {
	functions["+"] = func(c *CallContext) bool {
		switch checkOperationType(c.Args.Begin()) {
		case mathInvalid:
			return c.Fail(errNumericType)
		case mathDouble:
			c.Output.AddFloat64(sumFloat(c.Args.Begin()))
		default:
			c.Output.AddInt64(sumInt(c.Args.Begin()))
		}
		return true
	}

	functions["-"] = func(c *CallContext) bool {
		switch checkOperationType(c.Args.Begin()) {
		case mathInvalid:
			return c.Fail(errNumericType)
		case mathDouble:
			c.Output.AddFloat64(subFloat(c.Args.Begin()))
		default:
			c.Output.AddInt64(subInt(c.Args.Begin()))
		}
		return true
	}

	functions["*"] = func(c *CallContext) bool {
		switch checkOperationType(c.Args.Begin()) {
		case mathInvalid:
			return c.Fail(errNumericType)
		case mathDouble:
			c.Output.AddFloat64(mulFloat(c.Args.Begin()))
		default:
			c.Output.AddInt64(mulInt(c.Args.Begin()))
		}
		return true
	}

	functions["/"] = func(c *CallContext) bool {
		switch checkOperationType(c.Args.Begin()) {
		case mathInvalid:
			return c.Fail(errNumericType)
		default:
			c.Output.AddFloat64(divFloat(c.Args.Begin()))
		}
		return true
	}
}

// registerList installs `list`, which propagates its arguments to the
// output unchanged. Mirrors slang_env.cc's "list" registration.
func registerList(functions map[string]Call) {
	functions["list"] = func(c *CallContext) bool {
		it := c.Args.Begin()
		for !it.IsEnd() {
			v := it.Value()
			c.Output.AddTyped(v.Schema, v.Value)
			it.Next()
		}
		return true
	}
}

// registerNop installs `nop`, a function that does nothing and
// returns no values - used by spec.md §8 scenario 4 to exercise a
// streamed multi-request REPL round-trip. If the call's UserData is a
// *Deps with a non-nil NopCount, every invocation increments it so a
// test (or an operator) can probe how many times it ran.
func registerNop(functions map[string]Call) {
	functions["nop"] = func(c *CallContext) bool {
		if deps, ok := c.UserData.(*Deps); ok && deps.NopCount != nil {
			deps.NopCount.Add(1)
		}
		return true
	}
}

// NewNopCounter is a convenience for wiring a fresh counter into Deps.
func NewNopCounter() *atomic.Int64 { return new(atomic.Int64) }
