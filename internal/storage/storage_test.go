package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xynqdb/xynq/internal/types"
)

func pointSchema(t *testing.T) *types.Schema {
	t.Helper()
	tm := types.NewTypeManager()
	s, err := tm.CreateSchema("point", func() *types.Schema {
		return types.NewStructSchema("point", []types.Field{
			{Name: "x", Schema: types.Int64Schema},
			{Name: "y", Schema: types.Int64Schema},
		})
	})
	require.NoError(t, err)
	return s
}

func TestObjectVaultCreateAndLookup(t *testing.T) {
	v := NewObjectVault(pointSchema(t))
	obj := v.CreateObject()
	assert.EqualValues(t, 1, obj.Guid)
	assert.Len(t, obj.Data, 16)

	found, ok := v.Lookup(obj.Guid)
	require.True(t, ok)
	assert.Same(t, obj, found)
}

func TestObjectVaultGuidNeverReused(t *testing.T) {
	v := NewObjectVault(pointSchema(t))
	a := v.CreateObject()
	v.Delete(a.Guid)
	b := v.CreateObject()
	assert.NotEqual(t, a.Guid, b.Guid)
	assert.Greater(t, uint64(b.Guid), uint64(a.Guid))
}

func TestObjectVaultDelete(t *testing.T) {
	v := NewObjectVault(pointSchema(t))
	obj := v.CreateObject()
	assert.True(t, v.Delete(obj.Guid))
	_, ok := v.Lookup(obj.Guid)
	assert.False(t, ok)
	assert.False(t, v.Delete(obj.Guid))
}

func TestObjectWriterRoundTrip(t *testing.T) {
	schema := pointSchema(t)
	v := NewObjectVault(schema)
	obj := v.CreateObject()

	w := NewObjectWriter(obj)
	require.NoError(t, w.WriteTyped("x", types.Int64Schema, types.Int64(42)))
	require.NoError(t, w.WriteTyped("y", types.Int64Schema, types.Int64(-7)))

	x, err := w.ReadTyped("x")
	require.NoError(t, err)
	assert.EqualValues(t, 42, x.Value.I64)

	y, err := w.ReadTyped("y")
	require.NoError(t, err)
	assert.EqualValues(t, -7, y.Value.I64)
}

func TestStorageEnsureVaultWithType(t *testing.T) {
	tm := types.NewTypeManager()
	vault := tm.CreateVault()
	_, err := tm.CreateSchema("widget", func() *types.Schema {
		return types.NewStructSchema("widget", []types.Field{{Name: "n", Schema: types.Int64Schema}})
	})
	require.NoError(t, err)

	st := NewStorage()
	obj, err := st.CreateObject(vault, "widget")
	require.NoError(t, err)
	assert.NotNil(t, obj)

	_, err = st.CreateObject(vault, "missing")
	assert.Error(t, err)
}
