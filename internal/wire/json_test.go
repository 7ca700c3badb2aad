package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xynqdb/xynq/internal/types"
	"github.com/xynqdb/xynq/internal/xio"
)

func newSerializer(buf *bytes.Buffer) *Serializer {
	w := xio.NewWriter(make([]byte, 256), buf)
	return NewSerializer(w)
}

func TestSerializeScalarInt(t *testing.T) {
	var buf bytes.Buffer
	s := newSerializer(&buf)
	require.NoError(t, s.SerializeOne(types.TypedInt64(25)))
	assert.Equal(t, "25\n", buf.String())
}

func TestSerializeScalarString(t *testing.T) {
	var buf bytes.Buffer
	s := newSerializer(&buf)
	require.NoError(t, s.SerializeOne(types.TypedString("hi\n\"there\"")))
	assert.Equal(t, "\"hi\\n\\\"there\\\"\"\n", buf.String())
}

func TestSerializeManyWrapsInArray(t *testing.T) {
	var buf bytes.Buffer
	s := newSerializer(&buf)
	require.NoError(t, s.SerializeMany([]types.TypedValue{types.TypedInt64(1), types.TypedInt64(2)}))
	assert.Equal(t, "[1, 2]\n", buf.String())
}

func TestSerializeErrorString(t *testing.T) {
	var buf bytes.Buffer
	s := newSerializer(&buf)
	require.NoError(t, s.SerializeString("Operation expects numeric type"))
	assert.Equal(t, "\"Operation expects numeric type\"\n", buf.String())
}

func TestSerializeObjectFieldOrder(t *testing.T) {
	schema := types.NewStructSchema("point", []types.Field{
		{Name: "x", Schema: types.Int64Schema},
		{Name: "y", Schema: types.Int64Schema},
	})
	data := make([]byte, schema.Size)
	data[0] = 5  // x = 5 (little endian low byte)
	data[8] = 9  // y = 9

	var buf bytes.Buffer
	s := newSerializer(&buf)
	require.NoError(t, s.SerializeOne(ObjectValue(schema, data)))
	assert.Equal(t, "{\"x\":5, \"y\":9}\n", buf.String())
}

func TestSerializeEscapesControlBytes(t *testing.T) {
	var buf bytes.Buffer
	s := newSerializer(&buf)
	require.NoError(t, s.SerializeOne(types.TypedString("\x01\x1f")))
	assert.Equal(t, "\"\\u0001\\u001f\"\n", buf.String())
}
