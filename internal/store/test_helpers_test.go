package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// forwardRefOps is a document whose first ref precedes its label.
func forwardRefOps() []ir.Op {
	return []ir.Op{
		ir.Text("see "),
		ir.Ref("thm"),
		ir.Define("thm", []string{"Main Theorem"}, map[string]string{"label": "Theorem 1"}),
		ir.Label("thm"),
		ir.Get("Main Theorem", "label"),
		ir.Get("nobody", "label"),
	}
}

// createTestRun runs ops with a fixed run id and builds its log record.
func createTestRun(t *testing.T, id string, ops []ir.Op) Run {
	t.Helper()
	c := engine.NewCoordinator(engine.WithRunIDGenerator(engine.NewFixedGenerator(id)))
	res, err := c.Run(context.Background(), ops)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	run, err := NewRun("doc.yaml", ops, nil, RunConfig{MaxPasses: 5, Rebind: "overwrite", Lookups: "placeholder"}, res, nil)
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}
	return run
}
