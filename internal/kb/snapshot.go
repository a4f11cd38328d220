package kb

import (
	"github.com/roach88/akl/internal/ir"
)

// Attribute is one key/value pair in a snapshot.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EntitySnapshot is the serialisable form of one entity.
type EntitySnapshot struct {
	ID         ir.EntityID `json:"id"`
	Names      []string    `json:"names"`
	Attributes []Attribute `json:"attributes"`
}

// Snapshot is the serialisable state of a Store, ordered by entity id.
type Snapshot struct {
	Entities []EntitySnapshot `json:"entities"`
}

// NameEntry is one row of the name table.
type NameEntry struct {
	Name   string      `json:"name"`
	Entity ir.EntityID `json:"entity"`
}

// Snapshot captures the store. Attributes keep ListAttributeKeys order.
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{Entities: make([]EntitySnapshot, 0, s.Len())}
	for id := ir.EntityID(1); id <= s.alloc.Last(); id++ {
		es := EntitySnapshot{ID: id, Names: s.Names(id), Attributes: []Attribute{}}
		for _, k := range s.attrs.Keys(id) {
			v, _ := s.attrs.Get(id, k)
			es.Attributes = append(es.Attributes, Attribute{Key: k, Value: v})
		}
		snap.Entities = append(snap.Entities, es)
	}
	return snap
}

// NameTable returns every registered name with its entity, sorted by name.
// Two passes over the same stream must produce identical tables.
func (s *Store) NameTable() []NameEntry {
	names := s.names.Names()
	table := make([]NameEntry, 0, len(names))
	for _, n := range names {
		id, _ := s.names.Lookup(n)
		table = append(table, NameEntry{Name: n, Entity: id})
	}
	return table
}

// NameTableHash fingerprints NameTable.
func (s *Store) NameTableHash() (string, error) {
	obj := make(ir.IRObject)
	for _, e := range s.NameTable() {
		obj[e.Name] = ir.IRInt(e.Entity)
	}
	return ir.Fingerprint(ir.DomainNameTable, obj)
}

// Args converts the snapshot for canonical hashing.
func (snap Snapshot) Args() ir.IRArray {
	arr := make(ir.IRArray, len(snap.Entities))
	for i, e := range snap.Entities {
		attrs := make(ir.IRArray, len(e.Attributes))
		for j, a := range e.Attributes {
			attrs[j] = ir.IRArray{ir.IRString(a.Key), ir.IRString(a.Value)}
		}
		arr[i] = ir.IRObject{
			"id":         ir.IRInt(e.ID),
			"names":      ir.Strings(e.Names),
			"attributes": attrs,
		}
	}
	return arr
}
