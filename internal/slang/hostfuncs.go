package slang

import (
	"sync/atomic"

	"github.com/xynqdb/xynq/internal/storage"
	"github.com/xynqdb/xynq/internal/types"
)

// Deps bundles the process-wide dependencies the domain host functions
// (create/select/defstruct) and nop need at call time, reached through
// CallContext.UserData. Mirrors slang_env.cc's SharedDeps bundle;
// NopCount has no original analog - it exists purely so tests (and
// operators) can observe how many times `nop` ran, per spec.md §8
// scenario 4.
type Deps struct {
	Storage     *storage.Storage
	Types       *types.TypeVault
	TypeManager *types.TypeManager
	NopCount    *atomic.Int64
}

func (c *CallContext) deps() (*Deps, bool) {
	d, ok := c.UserData.(*Deps)
	return d, ok
}

// registerCreate installs `create`: (create type_name field value...).
// It creates a new object of type_name, writes each (field, value)
// pair into it, and returns the new object. Mirrors slang_env.cc's
// "create" registration.
func registerCreate(functions map[string]Call) {
	functions["create"] = func(c *CallContext) bool {
		deps, ok := c.deps()
		if !ok {
			return c.Fail("create requires storage dependencies")
		}

		it := c.Args.Begin()
		if it.IsEnd() {
			return c.Fail("Not enough arguments for a function. Expected (create type_name [fields]).")
		}

		typeName, ok := it.AsString()
		if !ok {
			return c.Fail("Expected a type name.")
		}
		it.Next()

		obj, err := deps.Storage.CreateObject(deps.Types, typeName)
		if err != nil {
			return c.Fail("Failed to create new object of type '%s': %s", typeName, err)
		}

		writer := storage.NewObjectWriter(obj)
		for !it.IsEnd() {
			fieldName, ok := it.AsField()
			if !ok {
				return c.Fail("Expected field name for type '%s'", typeName)
			}
			it.Next()
			if it.IsEnd() {
				return c.Fail("Expected value for field '%s'", fieldName)
			}

			fieldVal := it.Value()
			if err := writer.WriteTyped(fieldName, fieldVal.Schema, fieldVal.Value); err != nil {
				return c.Fail("Failed to write a field '%s': %s", fieldName, err)
			}
			it.Next()
		}

		c.Output.AddObject(obj.Schema, obj.Data)
		return true
	}
}

// registerSelect installs `select`: (select type_name). It ignores
// any further arguments, exactly as slang_env.cc's "select" does
// (the doc comment there promises filter/modifier arguments that the
// original never actually implemented).
func registerSelect(functions map[string]Call) {
	functions["select"] = func(c *CallContext) bool {
		deps, ok := c.deps()
		if !ok {
			return c.Fail("select requires storage dependencies")
		}

		it := c.Args.Begin()
		if it.IsEnd() {
			return c.Fail("Expected type name.")
		}
		typeName, ok := it.AsString()
		if !ok {
			return c.Fail("Expected type name.")
		}

		deps.Storage.Enumerate(typeName, func(obj *storage.Object, schema *types.Schema) {
			c.Output.AddObject(schema, obj.Data)
		})
		return true
	}
}

// registerDefstruct installs `defstruct`: (defstruct type_name
// :field1 type1 :field2 type2 ...). Field layout (offsets, overall
// size/alignment) is delegated to types.NewStructSchema, which already
// implements the "max alignment of members, sum of padded sizes, tail
// pad" rule spec.md §4.O calls for - so unlike slang_env.cc's
// defstruct, which hand-rolls that layout pass inline, this version
// just gathers the (name, schema) pairs and hands them to it.
func registerDefstruct(functions map[string]Call) {
	functions["defstruct"] = func(c *CallContext) bool {
		deps, ok := c.deps()
		if !ok {
			return c.Fail("defstruct requires storage dependencies")
		}

		it := c.Args.Begin()
		if it.IsEnd() {
			return c.Fail("Expected type name.")
		}
		typeName, ok := it.AsString()
		if !ok {
			return c.Fail("Expected type name.")
		}
		if deps.Types.HasType(typeName) {
			return c.Fail("Type '%s' already exists.", typeName)
		}
		it.Next()

		var fields []types.Field
		for !it.IsEnd() {
			fieldName, ok := it.AsField()
			if !ok {
				return c.Fail("Expected field name but got '%s'", it.Type().Name)
			}
			it.Next()

			if it.IsEnd() {
				return c.Fail("Expected type name, but got 'none'")
			}
			fieldTypeName, ok := it.AsString()
			if !ok {
				return c.Fail("Expected type name, but got '%s'", it.Type().Name)
			}
			fieldSchema := deps.Types.FindSchema(fieldTypeName)
			if fieldSchema == nil {
				return c.Fail("Unknown type name '%s'", fieldTypeName)
			}
			fields = append(fields, types.Field{Name: fieldName, Schema: fieldSchema})
			it.Next()
		}

		_, err := deps.TypeManager.CreateSchema(typeName, func() *types.Schema {
			return types.NewStructSchema(typeName, fields)
		})
		if err != nil {
			return c.Fail("%s", err)
		}
		return true
	}
}
