package store

import (
	"fmt"

	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/kb"
)

// RunConfig is the engine configuration a run executed with.
type RunConfig struct {
	MaxPasses int    `json:"max_passes"`
	Rebind    string `json:"rebind"`
	Lookups   string `json:"lookups"`
}

// Run is one logged Coordinator.Run.
//
// Seq is assigned by WriteRun; the value passed in is ignored.
type Run struct {
	ID     string `json:"id"`
	Seq    int64  `json:"seq"`
	Source string `json:"source"`

	DocumentHash      string `json:"document_hash"`
	OutputFingerprint string `json:"output_fingerprint"`

	Converged bool `json:"converged"`
	PassCount int  `json:"pass_count"`

	// ErrorCode and Error describe a failed run; both empty on success.
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`

	Config        RunConfig `json:"config"`
	EngineVersion string    `json:"engine_version"`
	IRVersion     string    `json:"ir_version"`

	Ops   []ir.Op `json:"ops"`
	Lines []int   `json:"lines,omitempty"`

	Passes    []engine.PassSummary `json:"passes"`
	Labels    []engine.LabelTarget `json:"labels"`
	Fragments []engine.Fragment    `json:"fragments"`
	Entities  []kb.EntitySnapshot  `json:"entities"`
}

// NewRun builds a log record from a run's outcome. res may be nil when
// the run failed before its first pass; runErr is the error Run returned.
func NewRun(source string, ops []ir.Op, lines []int, cfg RunConfig, res *engine.Result, runErr error) (Run, error) {
	hash, err := ir.DocumentHash(ops)
	if err != nil {
		return Run{}, fmt.Errorf("new run: %w", err)
	}

	run := Run{
		Source:        source,
		DocumentHash:  hash,
		Config:        cfg,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		Ops:           ops,
		Lines:         lines,
		Passes:        []engine.PassSummary{},
		Labels:        []engine.LabelTarget{},
		Fragments:     []engine.Fragment{},
		Entities:      []kb.EntitySnapshot{},
	}
	if runErr != nil {
		run.ErrorCode = engine.ErrorCode(runErr)
		run.Error = runErr.Error()
	}
	if res == nil {
		return run, nil
	}

	run.ID = res.RunID
	run.Converged = res.Converged
	run.PassCount = len(res.Passes)
	run.Passes = append(run.Passes, res.Passes...)
	run.Labels = append(run.Labels, res.Labels...)
	run.Fragments = append(run.Fragments, res.Fragments...)
	run.Entities = append(run.Entities, res.Snapshot.Entities...)

	fp, err := engine.OutputFingerprint(res.Fragments)
	if err != nil {
		return Run{}, fmt.Errorf("new run: %w", err)
	}
	run.OutputFingerprint = fp
	return run, nil
}
