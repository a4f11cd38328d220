package kb

import (
	"slices"

	"github.com/roach88/akl/internal/ir"
)

// RebindPolicy decides what happens when a name that already resolves is
// registered again by CreateEntity, CreateSynonym or Define.
type RebindPolicy string

const (
	// RebindOverwrite silently moves the name to the new entity. This is
	// what document authors historically relied on.
	RebindOverwrite RebindPolicy = "overwrite"

	// RebindReject refuses the registration with DuplicateNameError.
	RebindReject RebindPolicy = "reject"
)

// ParseRebindPolicy validates a policy name. Empty means RebindOverwrite.
func ParseRebindPolicy(s string) (RebindPolicy, bool) {
	switch RebindPolicy(s) {
	case "", RebindOverwrite:
		return RebindOverwrite, true
	case RebindReject:
		return RebindReject, true
	}
	return "", false
}

// Entity is a read-only view of one entity.
type Entity struct {
	ID ir.EntityID `json:"id"`

	// Names that currently resolve to this entity, newest first.
	Names []string `json:"names"`

	// Attributes holds the current value of every key.
	Attributes map[string]string `json:"attributes"`
}

// Store is the single source of truth for one pass.
type Store struct {
	alloc  *Allocator
	names  *NameRegistry
	attrs  *AttributeStore
	owned  map[ir.EntityID][]string // names per entity, oldest first
	policy RebindPolicy
}

// Option configures a Store.
type Option func(*Store)

// WithRebindPolicy sets the rebind policy. Default: RebindOverwrite.
func WithRebindPolicy(p RebindPolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		alloc:  NewAllocator(),
		names:  NewNameRegistry(),
		attrs:  NewAttributeStore(),
		owned:  make(map[ir.EntityID][]string),
		policy: RebindOverwrite,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the store's rebind policy.
func (s *Store) Policy() RebindPolicy {
	return s.policy
}

// CreateEntity allocates a fresh entity named name. Under RebindOverwrite
// it never fails.
func (s *Store) CreateEntity(name string) (ir.EntityID, error) {
	if existing, ok := s.names.Lookup(name); ok && s.policy == RebindReject {
		return 0, &DuplicateNameError{Name: name, Existing: existing}
	}
	id := s.alloc.Next()
	s.owned[id] = nil
	s.register(name, id)
	return id, nil
}

// CreateSynonym binds newName to the entity existing resolves to and makes
// it that entity's newest name. No id is allocated.
func (s *Store) CreateSynonym(existing, newName string) (ir.EntityID, error) {
	id, err := s.Resolve(existing)
	if err != nil {
		return 0, err
	}
	if cur, ok := s.names.Lookup(newName); ok {
		if cur == id {
			return id, nil
		}
		if s.policy == RebindReject {
			return 0, &DuplicateNameError{Name: newName, Existing: cur}
		}
	}
	s.register(newName, id)
	return id, nil
}

// register binds name to id and detaches it from any previous owner.
func (s *Store) register(name string, id ir.EntityID) {
	name = NormalizeName(name)
	if prev, existed := s.names.Bind(name, id); existed && prev != id {
		s.owned[prev] = slices.DeleteFunc(s.owned[prev], func(n string) bool { return n == name })
	}
	if !slices.Contains(s.owned[id], name) {
		s.owned[id] = append(s.owned[id], name)
	}
}

// Resolve returns the entity name currently points to.
func (s *Store) Resolve(name string) (ir.EntityID, error) {
	id, ok := s.names.Lookup(name)
	if !ok {
		return 0, &NameNotFoundError{Name: name, Suggestion: suggestName(NormalizeName(name), s.names.Names())}
	}
	return id, nil
}

// SetAttribute resolves name and sets key to value, overwriting any
// previous value. The first assignment of key puts the entity at the front
// of key's reverse index; later overwrites leave the index alone.
func (s *Store) SetAttribute(name, key, value string) error {
	id, err := s.Resolve(name)
	if err != nil {
		return err
	}
	s.attrs.Set(id, key, value)
	return nil
}

// SetAttributeByID is SetAttribute for an already resolved entity.
func (s *Store) SetAttributeByID(id ir.EntityID, key, value string) {
	s.attrs.Set(id, key, value)
}

// GetAttribute resolves name and returns the value of key. A missing name
// and a missing key are reported with different error types.
func (s *Store) GetAttribute(name, key string) (string, error) {
	id, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	v, ok := s.attrs.Get(id, key)
	if !ok {
		return "", &AttributeNotFoundError{Name: name, Entity: id, Key: key}
	}
	return v, nil
}

// GetAttributeByID is GetAttribute for an already resolved entity.
func (s *Store) GetAttributeByID(id ir.EntityID, key string) (string, error) {
	v, ok := s.attrs.Get(id, key)
	if !ok {
		return "", &AttributeNotFoundError{Name: id.String(), Entity: id, Key: key}
	}
	return v, nil
}

// ListAttributeKeys returns the keys set on the resolved entity, most
// recently first-assigned first.
func (s *Store) ListAttributeKeys(name string) ([]string, error) {
	id, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	return s.attrs.Keys(id), nil
}

// ListEntitiesWithAttribute returns the reverse index for key, most
// recently first-assigned first. Unknown keys give an empty slice.
func (s *Store) ListEntitiesWithAttribute(key string) []ir.EntityID {
	return s.attrs.Holders(key)
}

// Exists reports whether id was allocated by this store.
func (s *Store) Exists(id ir.EntityID) bool {
	return id > 0 && id <= s.alloc.Last()
}

// Entity returns a copy of the entity with the given id.
func (s *Store) Entity(id ir.EntityID) (Entity, bool) {
	if !s.Exists(id) {
		return Entity{}, false
	}
	attrs := make(map[string]string)
	for _, k := range s.attrs.Keys(id) {
		v, _ := s.attrs.Get(id, k)
		attrs[k] = v
	}
	return Entity{ID: id, Names: s.Names(id), Attributes: attrs}, true
}

// Names returns the names resolving to id, newest first.
func (s *Store) Names(id ir.EntityID) []string {
	names := slices.Clone(s.owned[id])
	slices.Reverse(names)
	if names == nil {
		names = []string{}
	}
	return names
}

// Len returns the number of entities allocated so far.
func (s *Store) Len() int {
	return int(s.alloc.Last())
}
