package types

// Field describes one member of a composite Schema.
type Field struct {
	Name   string
	Schema *Schema
	Offset int // byte offset within the owning object's data, computed at creation
}

// Schema describes a type: name, alignment, size, family flags, and —
// for composite types — its fields in declared order. Schemas are
// immutable once published and are referred to by pointer equality,
// matching the original's TypeSchema contract.
type Schema struct {
	Name      string
	Alignment int
	Size      int
	Kind      Kind
	Fields    []Field
}

// alignUp rounds off up to the next multiple of alignment (a power of two).
func alignUp(off, alignment int) int {
	return (off + alignment - 1) &^ (alignment - 1)
}

// layoutFields computes field byte offsets and the composite's overall
// size/alignment using the standard "max alignment of members, sum of
// padded sizes, tail pad" rule named in spec.md §4.O.
func layoutFields(fields []Field) (size, alignment int) {
	alignment = 1
	off := 0
	for i := range fields {
		f := &fields[i]
		if f.Schema.Alignment > alignment {
			alignment = f.Schema.Alignment
		}
		off = alignUp(off, f.Schema.Alignment)
		f.Offset = off
		off += f.Schema.Size
	}
	size = alignUp(off, alignment)
	return size, alignment
}

// NewStructSchema builds a composite Schema from a name and ordered
// field list, computing layout via layoutFields. The handler pattern
// named in the original ("Handler is expected to be callable with
// bool callable(TypeSchemaPtr, str_buf)") collapses in Go to simply
// constructing the field slice up front and returning it — there is
// no flexible-array-member allocation trick to hide behind a callback.
func NewStructSchema(name string, fields []Field) *Schema {
	size, alignment := layoutFields(fields)
	return &Schema{
		Name:      name,
		Alignment: alignment,
		Size:      size,
		Kind:      KindObject,
		Fields:    fields,
	}
}

// FieldByName returns the field named n, or ok=false if absent.
func (s *Schema) FieldByName(n string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == n {
			return f, true
		}
	}
	return Field{}, false
}
