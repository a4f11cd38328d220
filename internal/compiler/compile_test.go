package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/akl/internal/ir"
)

func expectedColcombetOps() []ir.Op {
	return []ir.Op{
		ir.Create("Thomas Colcombet"),
		ir.Synonym("Thomas Colcombet", "Colcombet"),
		ir.Set("Colcombet", "salut", "x+1"),
		ir.Push("Colcombet", "akl://cite/col09"),
		ir.Get("", "salut"),
		ir.SetDerived("3", "", "label", "Lemma 2"),
		ir.Pop(),
		ir.Define("col09", []string{"Colcombet 2009", "cost functions"}, map[string]string{"url": "https://example.org/col09"}),
		ir.Text("done"),
	}
}

const colcombetCUE = `
document: [
	{create: "Thomas Colcombet"},
	{synonym: {name: "Thomas Colcombet", alias: "Colcombet"}},
	{set: {name: "Colcombet", key: "salut", value: "x+1"}},
	{scope: {
		ref:  "Colcombet"
		base: "akl://cite/col09"
		body: [
			{get: {key: "salut"}},
			{set: {page: "3", key: "label", value: "Lemma 2"}},
		]
	}},
	{define: {
		name: "col09"
		aliases: ["Colcombet 2009", "cost functions"]
		attributes: url: "https://example.org/col09"
	}},
	{text: "done"},
]
`

const colcombetYAML = `document:
  - create: Thomas Colcombet
  - synonym: {name: Thomas Colcombet, alias: Colcombet}
  - set: {name: Colcombet, key: salut, value: x+1}
  - scope:
      ref: Colcombet
      base: akl://cite/col09
      body:
        - get: {key: salut}
        - set: {page: "3", key: label, value: Lemma 2}
  - define:
      name: col09
      aliases: [Colcombet 2009, cost functions]
      attributes:
        url: https://example.org/col09
  - text: done
`

func TestCompileCUE(t *testing.T) {
	doc, err := CompileCUE("colcombet.cue", []byte(colcombetCUE))
	require.NoError(t, err)

	assert.Equal(t, "colcombet.cue", doc.Source)
	assert.Equal(t, expectedColcombetOps(), doc.Ops)
	require.Len(t, doc.Lines, len(doc.Ops))
	for i, line := range doc.Lines {
		assert.Greater(t, line, 0, "op %d", i)
	}
	assert.Less(t, doc.Lines[0], doc.Lines[4])
	assert.Equal(t, doc.Lines[3], doc.Lines[6], "pop carries the scope line")
}

func TestCompileYAML(t *testing.T) {
	doc, err := CompileYAML("colcombet.yaml", []byte(colcombetYAML))
	require.NoError(t, err)

	assert.Equal(t, expectedColcombetOps(), doc.Ops)
	assert.Equal(t, []int{2, 3, 4, 5, 9, 10, 5, 11, 16}, doc.Lines)
}

func TestCompile_FormatsAgree(t *testing.T) {
	a, err := Compile("doc.cue", []byte(colcombetCUE))
	require.NoError(t, err)
	b, err := Compile("doc.YML", []byte(colcombetYAML))
	require.NoError(t, err)

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestCompile_UnsupportedExtension(t *testing.T) {
	_, err := Compile("doc.json", []byte(`{}`))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "source", ce.Field)
}

func TestCompileValue(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		document: [
			{push: "paper"},
			{ref: "main theorem"},
			{pop: null},
			{recall: "year"},
		]
	`)
	require.NoError(t, v.Err())

	doc, err := CompileValue(v)
	require.NoError(t, err)
	assert.Equal(t, []ir.Op{ir.Push("paper", ""), ir.Ref("main theorem"), ir.Pop(), ir.Recall("year")}, doc.Ops)
}

func TestCompileCUE_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		field   string
		message string
	}{
		{"missing document", `other: 1`, "document", "document list is required"},
		{"two keys", `document: [{create: "a", text: "b"}]`, "document[0]", "exactly one op key"},
		{"unknown field", `document: [{set: {name: "a", key: "k", colour: "red"}}]`, "document[0]", `unknown field "colour"`},
		{"missing name", `document: [{create: {}}]`, "document[0]", "name is required"},
		{"unknown kind", `document: [{frobnicate: "x"}]`, "document[0]", "takes an object"},
		{"body outside scope", `document: [{create: {name: "a", body: [{text: "x"}]}}]`, "document[0]", "only allowed on scope"},
		{"scope without ref", `document: [{scope: {body: [{text: "x"}]}}]`, "document[0]", "ref is required"},
		{"nested error path", `document: [{scope: {ref: "a", body: [{get: {}}]}}]`, "document[0].body[0]", "key is required"},
		{"short form on object op", `document: [{synonym: "a"}]`, "document[0]", "takes an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileCUE("bad.cue", []byte(tt.src))
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.message)
		})
	}
}

func TestCompileCUE_SyntaxErrorHasPosition(t *testing.T) {
	_, err := CompileCUE("broken.cue", []byte("document: [\n\t{create: \n"))
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cue", ce.Field)
	assert.Greater(t, ce.Line, 0)
	assert.Contains(t, err.Error(), "broken.cue:")
}

func TestCompileYAML_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		field   string
		line    int
		message string
	}{
		{"no document", "title: x\n", "document", 1, "required"},
		{"not a list", "document: {create: a}\n", "document", 1, "must be a list"},
		{"two keys", "document:\n  - create: a\n    text: b\n", "document[0]", 2, "exactly one op key"},
		{"list field", "document:\n  - set: {name: a, key: [k], value: v}\n", "document[0]", 2, "key must be a string"},
		{"missing key", "document:\n  - text: x\n  - get: {name: a}\n", "document[1]", 3, "key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileYAML("bad.yaml", []byte(tt.src))
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, tt.line, ce.Line)
			assert.Contains(t, ce.Message, tt.message)
		})
	}
}

func TestCompileYAML_PopShortForms(t *testing.T) {
	doc, err := CompileYAML("pop.yaml", []byte("document:\n  - push: a\n  - pop:\n  - push: a\n  - pop: true\n"))
	require.NoError(t, err)
	assert.Equal(t, []ir.Op{ir.Push("a", ""), ir.Pop(), ir.Push("a", ""), ir.Pop()}, doc.Ops)
}

func TestCompileError_Error(t *testing.T) {
	e := &CompileError{Field: "document[2]", Message: "bad", Filename: "x.cue", Line: 4, Column: 2}
	assert.Equal(t, "x.cue:4:2: document[2]: bad", e.Error())

	e = &CompileError{Field: "source", Message: "bad"}
	assert.Equal(t, "source: bad", e.Error())
}
