package kb

import (
	"slices"

	"github.com/roach88/akl/internal/ir"
)

// AttributeStore holds single-valued attributes per entity and the reverse
// index from key to holders.
//
// INVARIANT: id appears in reverse[key] exactly when values[id] has key,
// and at most once. Attributes are never removed, so the index only grows.
type AttributeStore struct {
	values  map[ir.EntityID]map[string]string
	keys    map[ir.EntityID][]string // first-assignment order, oldest first
	reverse map[string][]ir.EntityID // first-assignment order, oldest first
}

// NewAttributeStore creates an empty store.
func NewAttributeStore() *AttributeStore {
	return &AttributeStore{
		values:  make(map[ir.EntityID]map[string]string),
		keys:    make(map[ir.EntityID][]string),
		reverse: make(map[string][]ir.EntityID),
	}
}

// Set assigns key on id, overwriting any previous value. It reports whether
// this was the first assignment of key to id.
func (s *AttributeStore) Set(id ir.EntityID, key, value string) (first bool) {
	m, ok := s.values[id]
	if !ok {
		m = make(map[string]string)
		s.values[id] = m
	}
	if _, exists := m[key]; !exists {
		first = true
		s.keys[id] = append(s.keys[id], key)
		s.reverse[key] = append(s.reverse[key], id)
	}
	m[key] = value
	return first
}

// Get returns the value of key on id.
func (s *AttributeStore) Get(id ir.EntityID, key string) (string, bool) {
	v, ok := s.values[id][key]
	return v, ok
}

// Keys returns the keys set on id, most recently first-assigned first.
func (s *AttributeStore) Keys(id ir.EntityID) []string {
	keys := slices.Clone(s.keys[id])
	slices.Reverse(keys)
	if keys == nil {
		keys = []string{}
	}
	return keys
}

// Holders returns the entities holding key, most recently first-assigned
// first. Never nil.
func (s *AttributeStore) Holders(key string) []ir.EntityID {
	ids := slices.Clone(s.reverse[key])
	slices.Reverse(ids)
	if ids == nil {
		ids = []ir.EntityID{}
	}
	return ids
}

// AllKeys returns every key that has at least one holder, sorted.
func (s *AttributeStore) AllKeys() []string {
	keys := make([]string, 0, len(s.reverse))
	for k := range s.reverse {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
