package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/kb"
)

// DefaultMaxPasses bounds the convergence loop. Two passes settle any
// forward reference; the slack covers documents whose label text depends
// on earlier references.
const DefaultMaxPasses = 5

// PassSummary describes one completed pass.
type PassSummary struct {
	Pass int `json:"pass"`

	// Fingerprint hashes the pass output.
	Fingerprint string `json:"fingerprint"`

	// NameTableHash hashes name -> id; equal for every pass of a run.
	NameTableHash string `json:"name_table_hash"`

	References int      `json:"references"`
	Unresolved []string `json:"unresolved"`

	// Changed lists references whose target differs from the pass's own
	// final label table.
	Changed []string `json:"changed"`

	// Stable is true when Changed is empty.
	Stable bool `json:"stable"`
}

// Result is the outcome of a run. On error it holds whatever the last
// pass produced.
type Result struct {
	RunID     string        `json:"run_id"`
	Passes    []PassSummary `json:"passes"`
	Fragments []Fragment    `json:"fragments"`
	Labels    []LabelTarget `json:"labels"`
	Bindings  []Binding     `json:"bindings"`
	Snapshot  kb.Snapshot   `json:"snapshot"`
	Converged bool          `json:"converged"`

	// Store is the last pass's knowledge base, for queries.
	Store *kb.Store `json:"-"`
}

// Coordinator re-executes an op stream until label references stabilize.
//
// Each pass starts from an empty store; the only state threaded from pass
// k to pass k+1 is pass k's sealed label table.
type Coordinator struct {
	maxPasses int
	rebind    kb.RebindPolicy
	lookups   LookupPolicy
	runIDs    RunIDGenerator
	logger    *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMaxPasses sets the pass budget. Values below 1 keep the default.
func WithMaxPasses(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxPasses = n
		}
	}
}

// WithRebindPolicy sets the store rebind policy for every pass.
func WithRebindPolicy(p kb.RebindPolicy) Option {
	return func(c *Coordinator) {
		c.rebind = p
	}
}

// WithLookupPolicy sets how lookup misses are handled.
func WithLookupPolicy(p LookupPolicy) Option {
	return func(c *Coordinator) {
		c.lookups = p
	}
}

// WithRunIDGenerator replaces the UUIDv7 run id generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(c *Coordinator) {
		c.runIDs = g
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// NewCoordinator creates a coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		maxPasses: DefaultMaxPasses,
		rebind:    kb.RebindOverwrite,
		lookups:   LookupPlaceholder,
		runIDs:    UUIDv7Generator{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxPasses returns the pass budget.
func (c *Coordinator) MaxPasses() int { return c.maxPasses }

// Run validates ops and executes passes until every reference of a pass
// agrees with that pass's final label table.
//
// Errors:
//   - op validation failure: nil Result
//   - structural error or strict lookup miss: aborts the run
//   - DID_NOT_CONVERGE: budget exhausted, Result holds the last pass
//   - NON_DETERMINISTIC_REPLAY: a pass assigned different ids than pass 1
func (c *Coordinator) Run(ctx context.Context, ops []ir.Op) (*Result, error) {
	for i, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
	}

	res := &Result{RunID: c.runIDs.Generate(), Passes: []PassSummary{}}
	logger := c.logger.With("run", res.RunID)
	logger.Debug("run starting", "ops", len(ops), "max_passes", c.maxPasses)

	var seed *LabelTable
	var first string
	for n := 1; n <= c.maxPasses; n++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		p := NewPass(n, seed, c.rebind, c.lookups)
		err := p.Execute(ctx, ops)
		res.absorb(p)
		if err != nil {
			logger.Warn("pass aborted", "pass", n, "error", err)
			return res, fmt.Errorf("pass %d: %w", n, err)
		}

		summary, err := summarize(p)
		if err != nil {
			return res, err
		}
		res.Passes = append(res.Passes, summary)

		if n == 1 {
			first = summary.NameTableHash
		} else if err := checkReplay(n, first, summary.NameTableHash); err != nil {
			return res, err
		}

		logger.Debug("pass complete",
			"pass", n,
			"fragments", len(res.Fragments),
			"references", summary.References,
			"unresolved", len(summary.Unresolved),
			"stable", summary.Stable,
		)
		if summary.Stable {
			res.Converged = true
			logger.Info("converged", "passes", n)
			return res, nil
		}
		seed = p.Labels()
	}

	last := res.Passes[len(res.Passes)-1]
	logger.Warn("did not converge", "passes", c.maxPasses, "changed", last.Changed)
	return res, NewDidNotConvergeError(c.maxPasses, last.Changed)
}

func (r *Result) absorb(p *Pass) {
	r.Fragments = p.Fragments()
	r.Labels = p.Labels().Targets()
	r.Bindings = p.Bindings().All()
	r.Snapshot = p.Store().Snapshot()
	r.Store = p.Store()
}

func summarize(p *Pass) (PassSummary, error) {
	fp, err := OutputFingerprint(p.Fragments())
	if err != nil {
		return PassSummary{}, fmt.Errorf("pass %d: %w", p.Number(), err)
	}
	names, err := p.Store().NameTableHash()
	if err != nil {
		return PassSummary{}, fmt.Errorf("pass %d: %w", p.Number(), err)
	}
	changed := p.Changed()
	return PassSummary{
		Pass:          p.Number(),
		Fingerprint:   fp,
		NameTableHash: names,
		References:    len(p.References()),
		Unresolved:    p.Unresolved(),
		Changed:       changed,
		Stable:        len(changed) == 0,
	}, nil
}

// checkReplay enforces that pass n reproduced pass 1's id assignment.
func checkReplay(n int, want, got string) error {
	if want != got {
		return NewNonDeterministicReplayError(n, want, got)
	}
	return nil
}
