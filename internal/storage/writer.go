package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xynqdb/xynq/internal/types"
)

// ObjectWriter writes typed field values into an object's backing
// buffer at the field's schema-computed offset, mirroring
// object_writer.{h,cc}'s FindDataStore + WriteTyped.
type ObjectWriter struct {
	object *Object
}

// NewObjectWriter binds a writer to a specific object.
func NewObjectWriter(object *Object) *ObjectWriter {
	return &ObjectWriter{object: object}
}

// WriteTyped writes value into the field named fieldName, validating
// that fieldType matches the field's declared schema.
func (w *ObjectWriter) WriteTyped(fieldName string, fieldType *types.Schema, value types.Value) error {
	field, data, err := w.findDataStore(fieldName)
	if err != nil {
		return err
	}
	if field.Schema != fieldType {
		return fmt.Errorf("storage: field %q has type %q, got %q", fieldName, field.Schema.Name, fieldType.Name)
	}

	switch field.Schema.Kind {
	case types.KindSignedInt:
		binary.LittleEndian.PutUint64(data, uint64(value.I64))
	case types.KindUnsignedInt:
		binary.LittleEndian.PutUint64(data, value.U64)
	case types.KindFloat:
		binary.LittleEndian.PutUint64(data, math.Float64bits(value.F64))
	case types.KindString:
		return fmt.Errorf("storage: string fields are not fixed-size; unsupported in this object layout")
	default:
		return fmt.Errorf("storage: unsupported field kind for %q", fieldName)
	}
	return nil
}

// findDataStore locates field's byte range within the object's buffer.
func (w *ObjectWriter) findDataStore(fieldName string) (types.Field, []byte, error) {
	field, ok := w.object.Schema.FieldByName(fieldName)
	if !ok {
		return types.Field{}, nil, fmt.Errorf("storage: no such field %q on type %q", fieldName, w.object.Schema.Name)
	}
	end := field.Offset + field.Schema.Size
	if end > len(w.object.Data) {
		return types.Field{}, nil, fmt.Errorf("storage: field %q out of bounds for object", fieldName)
	}
	return field, w.object.Data[field.Offset:end], nil
}

// ReadTyped reads the current value of field fieldName back out.
func (w *ObjectWriter) ReadTyped(fieldName string) (types.TypedValue, error) {
	field, data, err := w.findDataStore(fieldName)
	if err != nil {
		return types.TypedValue{}, err
	}

	switch field.Schema.Kind {
	case types.KindSignedInt:
		return types.TypedValue{Schema: field.Schema, Value: types.Int64(int64(binary.LittleEndian.Uint64(data)))}, nil
	case types.KindUnsignedInt:
		return types.TypedValue{Schema: field.Schema, Value: types.Uint64(binary.LittleEndian.Uint64(data))}, nil
	case types.KindFloat:
		return types.TypedValue{Schema: field.Schema, Value: types.Float64(math.Float64frombits(binary.LittleEndian.Uint64(data)))}, nil
	default:
		return types.TypedValue{}, fmt.Errorf("storage: unsupported field kind for %q", fieldName)
	}
}
