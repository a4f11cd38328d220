package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/kb"
)

// ErrRunNotFound is returned when no run matches the requested id.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `
	id, seq, source, document_hash, converged, pass_count, error_code, error,
	output_fingerprint, max_passes, rebind, lookups, engine_version, ir_version
`

// ReadRun returns a run with all of its child rows.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	if err := s.readChildren(ctx, &run); err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the run with the highest seq.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY seq DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return s.ReadRun(ctx, id)
}

// ListRuns returns run headers (no child rows) ordered by seq ascending.
//
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadOperations returns the recorded op stream of a run and the source
// line of each op, in document order.
func (s *Store) ReadOperations(ctx context.Context, runID string) ([]ir.Op, []int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT args, line FROM operations
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []ir.Op{}
	lines := []int{}
	for rows.Next() {
		var args string
		var line int
		if err := rows.Scan(&args, &line); err != nil {
			return nil, nil, fmt.Errorf("scan operation: %w", err)
		}
		op, err := unmarshalOp(args)
		if err != nil {
			return nil, nil, err
		}
		ops = append(ops, op)
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, lines, nil
}

// ReadPasses returns the pass summaries of a run ordered by pass number.
func (s *Store) ReadPasses(ctx context.Context, runID string) ([]engine.PassSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pass, fingerprint, name_table_hash, reference_count, unresolved, changed, stable
		FROM passes
		WHERE run_id = ?
		ORDER BY pass ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []engine.PassSummary{}
	for rows.Next() {
		var p engine.PassSummary
		var unresolved, changed string
		var stable int
		if err := rows.Scan(&p.Pass, &p.Fingerprint, &p.NameTableHash, &p.References, &unresolved, &changed, &stable); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		if p.Unresolved, err = unmarshalStrings(unresolved); err != nil {
			return nil, err
		}
		if p.Changed, err = unmarshalStrings(changed); err != nil {
			return nil, err
		}
		p.Stable = stable != 0
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return passes, nil
}

func (s *Store) readLabels(ctx context.Context, runID string) ([]engine.LabelTarget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, name, entity, text FROM labels
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	labels := []engine.LabelTarget{}
	for rows.Next() {
		var l engine.LabelTarget
		var entity int64
		if err := rows.Scan(&l.Ordinal, &l.Name, &entity, &l.Text); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		l.Entity = ir.EntityID(entity)
		labels = append(labels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return labels, nil
}

func (s *Store) readFragments(ctx context.Context, runID string) ([]engine.Fragment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, text, name, entity, anchor, code FROM fragments
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query fragments: %w", err)
	}
	defer rows.Close()

	frags := []engine.Fragment{}
	for rows.Next() {
		var f engine.Fragment
		var kind string
		var entity int64
		if err := rows.Scan(&kind, &f.Text, &f.Name, &entity, &f.Anchor, &f.Code); err != nil {
			return nil, fmt.Errorf("scan fragment: %w", err)
		}
		f.Kind = engine.FragmentKind(kind)
		f.Entity = ir.EntityID(entity)
		frags = append(frags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fragments: %w", err)
	}
	return frags, nil
}

func (s *Store) readEntities(ctx context.Context, runID string) ([]kb.EntitySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, names, attributes FROM entities
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entities := []kb.EntitySnapshot{}
	for rows.Next() {
		var id int64
		var names, attrs string
		if err := rows.Scan(&id, &names, &attrs); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e := kb.EntitySnapshot{ID: ir.EntityID(id)}
		if e.Names, err = unmarshalStrings(names); err != nil {
			return nil, err
		}
		if e.Attributes, err = unmarshalAttributes(attrs); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

func (s *Store) readChildren(ctx context.Context, run *Run) error {
	var err error
	if run.Ops, run.Lines, err = s.ReadOperations(ctx, run.ID); err != nil {
		return err
	}
	if run.Passes, err = s.ReadPasses(ctx, run.ID); err != nil {
		return err
	}
	if run.Labels, err = s.readLabels(ctx, run.ID); err != nil {
		return err
	}
	if run.Fragments, err = s.readFragments(ctx, run.ID); err != nil {
		return err
	}
	if run.Entities, err = s.readEntities(ctx, run.ID); err != nil {
		return err
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun scans the columns listed in runColumns.
func scanRun(row rowScanner) (Run, error) {
	var run Run
	var converged int
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.Source,
		&run.DocumentHash,
		&converged,
		&run.PassCount,
		&run.ErrorCode,
		&run.Error,
		&run.OutputFingerprint,
		&run.Config.MaxPasses,
		&run.Config.Rebind,
		&run.Config.Lookups,
		&run.EngineVersion,
		&run.IRVersion,
	)
	if err != nil {
		return Run{}, err
	}
	run.Converged = converged != 0
	return run, nil
}
