package engine

import (
	"slices"
	"strconv"

	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/kb"
)

// LabelTarget is an anchor established by IntroduceLabel.
type LabelTarget struct {
	// Name is the name the label was introduced with.
	Name string `json:"name"`

	Entity ir.EntityID `json:"entity"`

	// Text is the entity's "label" attribute at introduction time.
	Text string `json:"text"`

	// Ordinal is the 1-based introduction order within the pass.
	Ordinal int `json:"ordinal"`
}

// Anchor is the stable anchor id renderers link to.
func (t LabelTarget) Anchor() string {
	return "akl-" + strconv.FormatInt(int64(t.Entity), 10)
}

// Args converts the target for canonical hashing.
func (t LabelTarget) Args() ir.IRObject {
	return ir.IRObject{
		"name":    ir.IRString(t.Name),
		"entity":  ir.IRInt(t.Entity),
		"text":    ir.IRString(t.Text),
		"ordinal": ir.IRInt(t.Ordinal),
	}
}

// LabelTable collects the anchors of one pass. During the pass targets are
// found by entity id; once sealed, by any name of the labelled entity.
type LabelTable struct {
	byEntity map[ir.EntityID]LabelTarget
	byName   map[string]LabelTarget
	next     int
}

// NewLabelTable creates an empty table.
func NewLabelTable() *LabelTable {
	return &LabelTable{
		byEntity: make(map[ir.EntityID]LabelTarget),
		byName:   make(map[string]LabelTarget),
	}
}

// Introduce records an anchor for id. Introducing the same entity again
// replaces its target with a fresh ordinal.
func (t *LabelTable) Introduce(name string, id ir.EntityID, text string) LabelTarget {
	t.next++
	target := LabelTarget{Name: name, Entity: id, Text: text, Ordinal: t.next}
	t.byEntity[id] = target
	return target
}

// Lookup finds the target of an entity introduced in this pass.
func (t *LabelTable) Lookup(id ir.EntityID) (LabelTarget, bool) {
	target, ok := t.byEntity[id]
	return target, ok
}

// Seal indexes every target under all names its entity has at the end of
// the pass. A sealed table is what seeds the next pass.
func (t *LabelTable) Seal(names func(ir.EntityID) []string) {
	for id, target := range t.byEntity {
		for _, n := range names(id) {
			t.byName[n] = target
		}
	}
}

// LookupName finds a target by name in a sealed table.
func (t *LabelTable) LookupName(name string) (LabelTarget, bool) {
	if t == nil {
		return LabelTarget{}, false
	}
	target, ok := t.byName[kb.NormalizeName(name)]
	return target, ok
}

// Targets returns every target in introduction order.
func (t *LabelTable) Targets() []LabelTarget {
	out := make([]LabelTarget, 0, len(t.byEntity))
	for _, target := range t.byEntity {
		out = append(out, target)
	}
	slices.SortFunc(out, func(a, b LabelTarget) int { return a.Ordinal - b.Ordinal })
	return out
}

// Len returns the number of labelled entities.
func (t *LabelTable) Len() int {
	return len(t.byEntity)
}
