package engine

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/kb"
)

func forwardReferenceDoc() []ir.Op {
	return []ir.Op{
		ir.Text("As shown in "),
		ir.Ref("main theorem"),
		ir.Text(", cost functions are closed under min.\n"),
		ir.Create("main theorem"),
		ir.Set("main theorem", "label", "Theorem 1"),
		ir.Label("main theorem"),
	}
}

func TestCoordinator_ForwardReferenceConvergesInTwoPasses(t *testing.T) {
	c := NewCoordinator(WithRunIDGenerator(NewFixedGenerator("run-1")))

	res, err := c.Run(context.Background(), forwardReferenceDoc())
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.True(t, res.Converged)
	require.Len(t, res.Passes, 2)

	assert.Equal(t, []string{"main theorem"}, res.Passes[0].Unresolved)
	assert.Equal(t, []string{"main theorem"}, res.Passes[0].Changed)
	assert.False(t, res.Passes[0].Stable)

	assert.Empty(t, res.Passes[1].Unresolved)
	assert.True(t, res.Passes[1].Stable)
	assert.Equal(t, res.Passes[0].NameTableHash, res.Passes[1].NameTableHash)
	assert.NotEqual(t, res.Passes[0].Fingerprint, res.Passes[1].Fingerprint)

	ref := res.Fragments[1]
	assert.Equal(t, FragmentReference, ref.Kind)
	assert.Equal(t, "Theorem 1", ref.Text)

	anchor := res.Fragments[3]
	assert.Equal(t, FragmentAnchor, anchor.Kind)
	assert.Equal(t, anchor.Anchor, ref.Anchor, "reference lands on the introduced anchor")

	require.Len(t, res.Labels, 1)
	assert.Equal(t, LabelTarget{Name: "main theorem", Entity: 1, Text: "Theorem 1", Ordinal: 1}, res.Labels[0])
	require.NotNil(t, res.Store)
	assert.Len(t, res.Snapshot.Entities, 1)
}

func TestCoordinator_NoReferencesSinglePass(t *testing.T) {
	c := NewCoordinator(WithRunIDGenerator(NewFixedGenerator("run-1")))

	res, err := c.Run(context.Background(), []ir.Op{
		ir.Create("a"),
		ir.Set("a", "k", "v"),
		ir.Get("a", "k"),
	})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Len(t, res.Passes, 1)
	assert.Equal(t, 0, res.Passes[0].References)
}

func TestCoordinator_BudgetExhausted(t *testing.T) {
	c := NewCoordinator(WithMaxPasses(1), WithRunIDGenerator(NewFixedGenerator("run-1")))

	res, err := c.Run(context.Background(), forwardReferenceDoc())
	require.Error(t, err)
	assert.True(t, IsDidNotConverge(err))

	require.NotNil(t, res, "last output is returned with the error")
	assert.False(t, res.Converged)
	assert.Len(t, res.Passes, 1)
	assert.Equal(t, UnresolvedText, res.Fragments[1].Text)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "main theorem", re.Details["changed"])
}

func TestCoordinator_RedefinedLabelNeverSettles(t *testing.T) {
	c := NewCoordinator(WithRunIDGenerator(NewFixedGenerator("run-1")))

	res, err := c.Run(context.Background(), []ir.Op{
		ir.Create("x"),
		ir.Set("x", "label", "A"),
		ir.Label("x"),
		ir.Ref("x"),
		ir.Set("x", "label", "B"),
		ir.Label("x"),
	})
	require.Error(t, err)
	assert.True(t, IsDidNotConverge(err))
	assert.Len(t, res.Passes, DefaultMaxPasses)
	for _, p := range res.Passes {
		assert.Equal(t, []string{"x"}, p.Changed)
	}
}

func TestCoordinator_StructuralErrorAbortsRun(t *testing.T) {
	c := NewCoordinator(WithRunIDGenerator(NewFixedGenerator("run-1")))

	res, err := c.Run(context.Background(), []ir.Op{ir.Text("a"), ir.Pop()})
	require.Error(t, err)
	assert.True(t, IsEmptyScope(err))
	assert.Contains(t, err.Error(), "pass 1")
	assert.Empty(t, res.Passes)
	assert.False(t, res.Converged)
	assert.Len(t, res.Fragments, 1)
}

func TestCoordinator_StrictLookupPolicy(t *testing.T) {
	c := NewCoordinator(
		WithLookupPolicy(LookupStrict),
		WithRunIDGenerator(NewFixedGenerator("run-1")),
	)

	_, err := c.Run(context.Background(), []ir.Op{ir.Get("unknownName", "k")})
	require.Error(t, err)
	assert.True(t, kb.IsNameNotFound(err))
}

func TestCoordinator_RebindReject(t *testing.T) {
	c := NewCoordinator(
		WithRebindPolicy(kb.RebindReject),
		WithRunIDGenerator(NewFixedGenerator("run-1")),
	)

	_, err := c.Run(context.Background(), []ir.Op{ir.Create("a"), ir.Create("a")})
	require.Error(t, err)
	assert.True(t, kb.IsDuplicateName(err))
}

func TestCoordinator_InvalidOp(t *testing.T) {
	c := NewCoordinator()

	res, err := c.Run(context.Background(), []ir.Op{ir.Text("x"), {Kind: "bogus"}})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "op 1")
}

func TestCoordinator_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCoordinator(WithRunIDGenerator(NewFixedGenerator("run-1")))
	_, err := c.Run(ctx, forwardReferenceDoc())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCoordinator_Deterministic(t *testing.T) {
	c := NewCoordinator(WithRunIDGenerator(NewFixedGenerator("run-1", "run-2")))

	a, err := c.Run(context.Background(), forwardReferenceDoc())
	require.NoError(t, err)
	b, err := c.Run(context.Background(), forwardReferenceDoc())
	require.NoError(t, err)

	assert.Equal(t, a.Passes, b.Passes)
	assert.Equal(t, a.Fragments, b.Fragments)
}

func TestCoordinator_Logs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := NewCoordinator(WithLogger(logger), WithRunIDGenerator(NewFixedGenerator("run-1")))
	_, err := c.Run(context.Background(), forwardReferenceDoc())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "pass complete")
	assert.Contains(t, out, "converged")
	assert.Contains(t, out, "run=run-1")
}

func TestCoordinator_MaxPassesDefault(t *testing.T) {
	assert.Equal(t, DefaultMaxPasses, NewCoordinator().MaxPasses())
	assert.Equal(t, DefaultMaxPasses, NewCoordinator(WithMaxPasses(0)).MaxPasses())
	assert.Equal(t, 3, NewCoordinator(WithMaxPasses(3)).MaxPasses())
}

func TestCheckReplay(t *testing.T) {
	require.NoError(t, checkReplay(2, "abc", "abc"))

	err := checkReplay(3, "abc", "def")
	require.Error(t, err)
	assert.True(t, IsNonDeterministicReplay(err))
	assert.True(t, IsStructural(err))
	assert.Contains(t, err.Error(), "pass=3")
}
