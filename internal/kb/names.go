package kb

import (
	"slices"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/akl/internal/ir"
)

// NormalizeName returns the registry form of a name (NFC).
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// NameRegistry maps names to entity ids. A name resolves to at most one
// entity at any time: the most recently bound one.
type NameRegistry struct {
	byName map[string]ir.EntityID
}

// NewNameRegistry creates an empty registry.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{byName: make(map[string]ir.EntityID)}
}

// Bind points name at id and returns the previous owner, if any.
func (r *NameRegistry) Bind(name string, id ir.EntityID) (prev ir.EntityID, existed bool) {
	name = NormalizeName(name)
	prev, existed = r.byName[name]
	r.byName[name] = id
	return prev, existed
}

// Lookup resolves name.
func (r *NameRegistry) Lookup(name string) (ir.EntityID, bool) {
	id, ok := r.byName[NormalizeName(name)]
	return id, ok
}

// Names returns every registered name in sorted order.
func (r *NameRegistry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered names.
func (r *NameRegistry) Len() int {
	return len(r.byName)
}
