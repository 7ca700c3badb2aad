// Package wire implements the JSON wire-format serializer described
// in spec.md §6.1, grounded line-for-line on
// original_source/source/json/json_serializer.cc.
package wire

import (
	"fmt"
	"math"
	"strconv"

	"github.com/xynqdb/xynq/internal/types"
)

// Writer is the minimal sink the serializer needs: a byte-oriented
// writer that tracks its own error state, matching the original's
// StreamWriter contract (Write/IsGood/Flush).
type Writer interface {
	WriteString(s string) error
	IsGood() bool
	Flush()
}

// Serializer writes TypedValues and composite objects as JSON,
// following json_serializer.cc's WriteObject/WriteBasicValue/
// WriteEscapedString rules exactly.
type Serializer struct {
	w Writer
}

// NewSerializer binds a serializer to a Writer.
func NewSerializer(w Writer) *Serializer {
	return &Serializer{w: w}
}

// ObjectValue wraps a composite object's raw field bytes (as produced
// by internal/storage.Object.Data) into a TypedValue the serializer
// can recurse into. Value.Ptr carries the []byte — the Go analog of
// the original's void* pointer into the object's storage.
func ObjectValue(schema *types.Schema, data []byte) types.TypedValue {
	return types.TypedValue{Schema: schema, Value: types.Value{Ptr: data}}
}

// SerializeOne writes a single TypedValue followed by a trailing
// newline and flush, matching FinalizeWrite.
func (s *Serializer) SerializeOne(v types.TypedValue) error {
	s.writeValue(v)
	return s.finalize()
}

// SerializeMany writes a residual VM-stack as a JSON array per
// spec.md §6.1, including "[]" for an empty slice. Emitting a single
// value bare is left to the caller (see slang/vm.go's serializer
// adapter), since "for one, emits the single value" is a call-site
// decision, not this function's.
func (s *Serializer) SerializeMany(values []types.TypedValue) error {
	s.w.WriteString("[")
	for i, v := range values {
		s.writeValue(v)
		if i != len(values)-1 {
			s.w.WriteString(", ")
		}
	}
	s.w.WriteString("]")
	return s.finalize()
}

// SerializeString writes a bare escaped JSON string — used for error
// diagnostics ("for error, emits a bare JSON string").
func (s *Serializer) SerializeString(str string) error {
	s.writeEscapedString(str)
	return s.finalize()
}

func (s *Serializer) finalize() error {
	s.w.WriteString("\n")
	s.w.Flush()
	if !s.w.IsGood() {
		return fmt.Errorf("wire: failed to serialize - I/O error")
	}
	return nil
}

func (s *Serializer) writeValue(v types.TypedValue) {
	if v.Schema.IsBasic() {
		s.writeBasicValue(v)
		return
	}
	data, _ := v.Value.Ptr.([]byte)
	s.writeObject(data, v.Schema)
}

func (s *Serializer) writeObject(data []byte, schema *types.Schema) {
	s.w.WriteString("{")
	for i, field := range schema.Fields {
		s.w.WriteString("\"")
		s.w.WriteString(field.Name)
		s.w.WriteString("\":")

		end := field.Offset + field.Schema.Size
		var fieldData []byte
		if end <= len(data) {
			fieldData = data[field.Offset:end]
		}

		if field.Schema.IsBasic() {
			s.writeBasicBytes(field.Schema, fieldData)
		} else {
			s.writeObject(fieldData, field.Schema)
		}

		if i != len(schema.Fields)-1 {
			s.w.WriteString(", ")
		}
	}
	s.w.WriteString("}")
}

func (s *Serializer) writeBasicBytes(schema *types.Schema, data []byte) {
	switch schema.Kind {
	case types.KindFloat:
		var bits uint64
		for i := 0; i < 8 && i < len(data); i++ {
			bits |= uint64(data[i]) << (8 * i)
		}
		s.writeBasicValue(types.TypedValue{Schema: schema, Value: types.Float64(math.Float64frombits(bits))})
	case types.KindSignedInt:
		var v int64
		for i := 0; i < 8 && i < len(data); i++ {
			v |= int64(data[i]) << (8 * i)
		}
		s.writeBasicValue(types.TypedValue{Schema: schema, Value: types.Int64(v)})
	case types.KindUnsignedInt:
		var v uint64
		for i := 0; i < 8 && i < len(data); i++ {
			v |= uint64(data[i]) << (8 * i)
		}
		s.writeBasicValue(types.TypedValue{Schema: schema, Value: types.Uint64(v)})
	default:
		s.writeEscapedString(string(data))
	}
}

func (s *Serializer) writeBasicValue(v types.TypedValue) {
	switch {
	case v.Schema.IsUnsignedInt():
		s.w.WriteString(strconv.FormatUint(v.Value.U64, 10))
	case v.Schema.IsSignedInt():
		s.w.WriteString(strconv.FormatInt(v.Value.I64, 10))
	case v.Schema.IsFloatingPoint():
		// strconv's shortest round-trip formatter is the idiomatic Go
		// analog of the original's high-precision %.24g printf format:
		// both guarantee the float round-trips exactly through text.
		s.w.WriteString(strconv.FormatFloat(v.Value.F64, 'g', -1, 64))
	case v.Schema == types.StringSchema || v.Schema == types.FieldSchema_:
		s.writeEscapedString(v.Value.Str)
	default:
		s.w.WriteString("null")
	}
}

func (s *Serializer) writeEscapedString(str string) {
	s.w.WriteString("\"")
	for i := 0; i < len(str); i++ {
		c := str[i]
		switch c {
		case '\\', '"':
			s.w.WriteString("\\")
			s.w.WriteString(string(c))
		case '\b':
			s.w.WriteString("\\b")
		case '\t':
			s.w.WriteString("\\t")
		case '\n':
			s.w.WriteString("\\n")
		case '\f':
			s.w.WriteString("\\f")
		case '\r':
			s.w.WriteString("\\r")
		default:
			if c < 0x20 {
				s.w.WriteString(fmt.Sprintf("\\u%04x", c))
			} else {
				s.w.WriteString(string(c))
			}
		}
	}
	s.w.WriteString("\"")
}
