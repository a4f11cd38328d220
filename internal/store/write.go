package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrMissingRunID is returned by WriteRun for a run without an id.
var ErrMissingRunID = errors.New("run id is required")

// WriteRun stores a run and all of its child rows in one transaction and
// returns the run's seq.
//
// Seq is MAX(seq)+1 inside the transaction, so the log order is the write
// order. Writing a run id that already exists is a no-op that returns the
// stored seq.
func (s *Store) WriteRun(ctx context.Context, run Run) (int64, error) {
	if run.ID == "" {
		return 0, fmt.Errorf("write run: %w", ErrMissingRunID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&existing)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("write run %s: next seq: %w", run.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, source, document_hash, converged, pass_count, error_code, error,
		 output_fingerprint, max_passes, rebind, lookups, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		seq,
		run.Source,
		run.DocumentHash,
		boolToInt(run.Converged),
		len(run.Passes),
		run.ErrorCode,
		run.Error,
		run.OutputFingerprint,
		run.Config.MaxPasses,
		run.Config.Rebind,
		run.Config.Lookups,
		run.EngineVersion,
		run.IRVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("write run %s: %w", run.ID, err)
	}

	writers := []func(context.Context, *sql.Tx, Run) error{
		writeOperations,
		writePasses,
		writeLabels,
		writeFragments,
		writeEntities,
	}
	for _, w := range writers {
		if err := w(ctx, tx, run); err != nil {
			return 0, fmt.Errorf("write run %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("write run %s: commit: %w", run.ID, err)
	}
	return seq, nil
}

func writeOperations(ctx context.Context, tx *sql.Tx, run Run) error {
	for i, op := range run.Ops {
		args, err := marshalOp(op)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		line := 0
		if i < len(run.Lines) {
			line = run.Lines[i]
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO operations (run_id, idx, kind, args, line)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, i, string(op.Kind), args, line)
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

func writePasses(ctx context.Context, tx *sql.Tx, run Run) error {
	for _, p := range run.Passes {
		unresolved, err := marshalStrings(p.Unresolved)
		if err != nil {
			return fmt.Errorf("pass %d: %w", p.Pass, err)
		}
		changed, err := marshalStrings(p.Changed)
		if err != nil {
			return fmt.Errorf("pass %d: %w", p.Pass, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO passes
			(run_id, pass, fingerprint, name_table_hash, reference_count, unresolved, changed, stable)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, p.Pass, p.Fingerprint, p.NameTableHash, p.References, unresolved, changed, boolToInt(p.Stable))
		if err != nil {
			return fmt.Errorf("pass %d: %w", p.Pass, err)
		}
	}
	return nil
}

func writeLabels(ctx context.Context, tx *sql.Tx, run Run) error {
	for _, l := range run.Labels {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO labels (run_id, ordinal, name, entity, text)
			VALUES (?, ?, ?, ?, ?)
		`, run.ID, l.Ordinal, l.Name, int64(l.Entity), l.Text)
		if err != nil {
			return fmt.Errorf("label %q: %w", l.Name, err)
		}
	}
	return nil
}

func writeFragments(ctx context.Context, tx *sql.Tx, run Run) error {
	for i, f := range run.Fragments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fragments (run_id, idx, kind, text, name, entity, anchor, code)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i, string(f.Kind), f.Text, f.Name, int64(f.Entity), f.Anchor, f.Code)
		if err != nil {
			return fmt.Errorf("fragment %d: %w", i, err)
		}
	}
	return nil
}

func writeEntities(ctx context.Context, tx *sql.Tx, run Run) error {
	for _, e := range run.Entities {
		names, err := marshalStrings(e.Names)
		if err != nil {
			return fmt.Errorf("entity %s: %w", e.ID, err)
		}
		attrs, err := marshalAttributes(e.Attributes)
		if err != nil {
			return fmt.Errorf("entity %s: %w", e.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO entities (run_id, id, names, attributes)
			VALUES (?, ?, ?, ?)
		`, run.ID, int64(e.ID), names, attrs)
		if err != nil {
			return fmt.Errorf("entity %s: %w", e.ID, err)
		}
	}
	return nil
}
