package types

import (
	"fmt"
	"sync"
)

// node is one link in TypeManager's master schema list.
type node struct {
	schema *Schema
	next   *node
}

// TypeManager owns the master list of published schemas and the set
// of TypeVaults that cache lookups over it. Grounded on
// original_source/source/types/type_vault.{h,cc}: an exclusive lock
// guards publication (duplicate-name rejection must happen under the
// same lock as the insert, to avoid a race between two concurrent
// CreateSchema calls for the same name), and every publication
// invalidates all vault caches.
type TypeManager struct {
	mu     sync.RWMutex
	head   *node
	tail   *node
	vaults []*TypeVault
}

// NewTypeManager creates a manager pre-seeded with the given initial
// (already-built) schemas — the analog of the original's
// initial_types initializer-list constructor argument.
func NewTypeManager(initial ...*Schema) *TypeManager {
	tm := &TypeManager{}
	for _, s := range initial {
		tm.enqueueLocked(s)
	}
	return tm
}

// CreateSchema publishes a new composite schema built by build(), under
// the manager's exclusive lock, after checking for a duplicate name.
// Returns an error if the name already exists.
func (tm *TypeManager) CreateSchema(name string, build func() *Schema) (*Schema, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.findLocked(name) != nil {
		return nil, fmt.Errorf("types: duplicate type name %q", name)
	}

	schema := build()
	if schema == nil {
		return nil, fmt.Errorf("types: failed to build schema %q", name)
	}
	tm.enqueueLocked(schema)
	return schema, nil
}

func (tm *TypeManager) enqueueLocked(s *Schema) {
	n := &node{schema: s}
	if tm.tail == nil {
		tm.head = n
	} else {
		tm.tail.next = n
	}
	tm.tail = n
	tm.invalidateCachesLocked()
}

func (tm *TypeManager) findLocked(name string) *Schema {
	for n := tm.head; n != nil; n = n.next {
		if n.schema.Name == name {
			return n.schema
		}
	}
	return nil
}

func (tm *TypeManager) invalidateCachesLocked() {
	for _, v := range tm.vaults {
		v.invalidate()
	}
}

// CreateVault allocates a new per-worker lookup cache over this manager.
func (tm *TypeManager) CreateVault() *TypeVault {
	v := &TypeVault{manager: tm}
	tm.mu.Lock()
	tm.vaults = append(tm.vaults, v)
	tm.mu.Unlock()
	return v
}

// TypeVault is a thread-local (per-worker) cache that lazily ingests
// newly-published schemas from its TypeManager. Not safe for
// concurrent use — each worker owns exactly one vault, matching
// spec.md §4.O.
type TypeVault struct {
	manager *TypeManager
	cache   map[string]*Schema
	cursor  *node // last node folded into cache
	dirty   bool
}

// invalidate is called by the manager (under its write lock) whenever
// a new schema is published; it marks this vault's cache stale without
// touching the cache itself (the rebuild is deferred to the next
// FindSchema call, avoiding cross-thread cache mutation).
func (v *TypeVault) invalidate() {
	v.dirty = true
}

// FindSchema looks up a schema by name, lazily folding in any schemas
// published since the last call. Not thread-safe; callers must only
// use a TypeVault from its owning worker.
func (v *TypeVault) FindSchema(name string) *Schema {
	if v.cache == nil {
		v.cache = make(map[string]*Schema)
		v.dirty = true
	}
	if v.dirty {
		v.manager.mu.RLock()
		start := v.manager.head
		if v.cursor != nil {
			start = v.cursor.next
		}
		for n := start; n != nil; n = n.next {
			v.cache[n.schema.Name] = n.schema
			v.cursor = n
		}
		v.manager.mu.RUnlock()
		v.dirty = false
	}
	return v.cache[name]
}

// HasType reports whether name is registered.
func (v *TypeVault) HasType(name string) bool {
	return v.FindSchema(name) != nil
}
