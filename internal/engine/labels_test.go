package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/akl/internal/ir"
)

func TestLabelTable_IntroduceAndLookup(t *testing.T) {
	lt := NewLabelTable()

	a := lt.Introduce("Lemma", 3, "Lemma 1")
	b := lt.Introduce("Theorem", 1, "Theorem 2")

	assert.Equal(t, LabelTarget{Name: "Lemma", Entity: 3, Text: "Lemma 1", Ordinal: 1}, a)
	assert.Equal(t, 2, b.Ordinal)
	assert.Equal(t, "akl-3", a.Anchor())

	got, ok := lt.Lookup(3)
	require.True(t, ok)
	assert.Equal(t, a, got)

	_, ok = lt.Lookup(7)
	assert.False(t, ok)

	assert.Equal(t, []LabelTarget{a, b}, lt.Targets())
	assert.Equal(t, 2, lt.Len())
}

func TestLabelTable_ReintroduceReplaces(t *testing.T) {
	lt := NewLabelTable()
	lt.Introduce("x", 1, "first")
	second := lt.Introduce("x", 1, "second")

	got, _ := lt.Lookup(1)
	assert.Equal(t, second, got)
	assert.Equal(t, 2, got.Ordinal)
	assert.Equal(t, 1, lt.Len())
}

func TestLabelTable_SealIndexesAllNames(t *testing.T) {
	lt := NewLabelTable()
	target := lt.Introduce("Thomas Colcombet", 1, "TC")

	_, ok := lt.LookupName("Colcombet")
	assert.False(t, ok, "unsealed tables have no name index")

	lt.Seal(func(id ir.EntityID) []string {
		if id == 1 {
			return []string{"Colcombet", "Thomas Colcombet"}
		}
		return nil
	})

	for _, n := range []string{"Colcombet", "Thomas Colcombet"} {
		got, ok := lt.LookupName(n)
		require.True(t, ok, n)
		assert.Equal(t, target, got)
	}
}

func TestLabelTable_NilLookupName(t *testing.T) {
	var lt *LabelTable
	_, ok := lt.LookupName("anything")
	assert.False(t, ok)
}
