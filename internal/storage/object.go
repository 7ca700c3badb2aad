// Package storage implements the typed object store: per-type vaults
// of objects whose backing buffer is sized by the owning schema,
// grounded on original_source/source/storage/{object.h,object_vault.*,
// storage.h,object_writer.h}.
package storage

import (
	"fmt"
	"sync"

	"github.com/xynqdb/xynq/internal/types"
)

// ObjectGuid identifies an object uniquely within its ObjectVault for
// its lifetime; each vault numbers its objects independently. Guids are never reused (spec.md §9 Open Question: the
// original's counter never removes; this rewrite keeps the
// never-reused-counter semantics but adds deletion).
type ObjectGuid uint64

// Object is one stored instance of a composite Schema. Data is sized
// to schema.Size at creation, replacing the original's fixed 256-byte
// TEMP buffer per spec.md §9's Open Question resolution.
type Object struct {
	Guid   ObjectGuid
	Schema *types.Schema
	Data   []byte
}

// ObjectVault is per-type columnar storage: a mutex-guarded slice of
// objects plus a guid index, mirroring object_vault.{h,cc}.
type ObjectVault struct {
	mu     sync.Mutex
	schema *types.Schema
	nextID uint64
	store  []*Object
	byGuid map[ObjectGuid]*Object
}

// NewObjectVault creates a vault for objects of the given schema.
func NewObjectVault(schema *types.Schema) *ObjectVault {
	if schema == nil {
		panic("storage: NewObjectVault requires a non-nil schema")
	}
	return &ObjectVault{
		schema: schema,
		byGuid: make(map[ObjectGuid]*Object),
	}
}

// Schema returns the vault's object schema.
func (v *ObjectVault) Schema() *types.Schema { return v.schema }

// CreateObject allocates a new, zeroed object and registers it.
func (v *ObjectVault) CreateObject() *Object {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.nextID++
	obj := &Object{
		Guid:   ObjectGuid(v.nextID),
		Schema: v.schema,
		Data:   make([]byte, v.schema.Size),
	}
	v.store = append(v.store, obj)
	v.byGuid[obj.Guid] = obj
	return obj
}

// Lookup finds an object by guid.
func (v *ObjectVault) Lookup(guid ObjectGuid) (*Object, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	obj, ok := v.byGuid[guid]
	return obj, ok
}

// Delete removes an object by guid. Added per spec.md §9's Open
// Question ("a real implementation should at minimum provide
// deletion"); the guid counter itself is never reused.
func (v *ObjectVault) Delete(guid ObjectGuid) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	obj, ok := v.byGuid[guid]
	if !ok {
		return false
	}
	delete(v.byGuid, guid)
	for i, o := range v.store {
		if o == obj {
			v.store = append(v.store[:i], v.store[i+1:]...)
			break
		}
	}
	return true
}

// Enumerate calls handler for every live object, under the vault's lock.
func (v *ObjectVault) Enumerate(handler func(*Object, *types.Schema)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, obj := range v.store {
		handler(obj, v.schema)
	}
}

// Storage maps type name to its ObjectVault, lazily creating vaults
// on first use, mirroring storage.{h,cc}'s EnsureVaultWithType.
type Storage struct {
	mu     sync.Mutex
	vaults map[string]*ObjectVault
}

// NewStorage creates an empty object store.
func NewStorage() *Storage {
	return &Storage{vaults: make(map[string]*ObjectVault)}
}

// EnsureVaultWithType returns the vault for typeName, creating it from
// the schema found via vault if it doesn't yet exist.
func (s *Storage) EnsureVaultWithType(vault *types.TypeVault, typeName string) (*ObjectVault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.vaults[typeName]; ok {
		return v, nil
	}

	schema := vault.FindSchema(typeName)
	if schema == nil {
		return nil, fmt.Errorf("storage: unknown type %q", typeName)
	}

	v := NewObjectVault(schema)
	s.vaults[typeName] = v
	return v, nil
}

// CreateObject creates a new object of the named type, creating its
// vault first if necessary.
func (s *Storage) CreateObject(vault *types.TypeVault, typeName string) (*Object, error) {
	v, err := s.EnsureVaultWithType(vault, typeName)
	if err != nil {
		return nil, err
	}
	return v.CreateObject(), nil
}

// findVault returns the vault for typeName without creating one.
func (s *Storage) findVault(typeName string) *ObjectVault {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vaults[typeName]
}

// Enumerate calls handler for every object of typeName. Returns false
// if no vault (and thus no objects) exists for typeName.
func (s *Storage) Enumerate(typeName string, handler func(*Object, *types.Schema)) bool {
	v := s.findVault(typeName)
	if v == nil {
		return false
	}
	v.Enumerate(handler)
	return true
}
