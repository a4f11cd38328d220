package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/kb"
	"github.com/roach88/akl/internal/render"
)

// Harness is the scenario execution engine.
// It runs documents with a fixed run id and a discarding logger.
type Harness struct {
	coordinator *engine.Coordinator
	renderer    render.Renderer
	logger      *slog.Logger
}

// newHarness builds the coordinator and renderer a scenario asks for.
// Settings were checked by validateScenario.
func newHarness(s *Scenario) (*Harness, error) {
	runID := s.RunID
	if runID == "" {
		runID = "scenario-" + s.Name
	}
	rebind, _ := kb.ParseRebindPolicy(s.Config.Rebind)
	lookups, _ := engine.ParseLookupPolicy(s.Config.Lookups)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	r, err := render.ForStyle(s.Config.Style)
	if err != nil {
		return nil, err
	}
	return &Harness{
		coordinator: engine.NewCoordinator(
			engine.WithMaxPasses(s.Config.MaxPasses),
			engine.WithRebindPolicy(rebind),
			engine.WithLookupPolicy(lookups),
			engine.WithRunIDGenerator(engine.NewFixedGenerator(runID)),
			engine.WithLogger(logger),
		),
		renderer: r,
		logger:   logger,
	}, nil
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Compile the embedded document or source file
// 2. Run the coordinator to convergence
// 3. Render the last pass with the scenario's style
// 4. Evaluate assertions against output and final knowledge base
//
// The returned error covers scenario problems (compile failures); a
// failing document is reported through Result.Pass.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	doc, err := scenario.compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile document: %w", err)
	}

	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	res, runErr := h.coordinator.Run(ctx, doc.Ops)
	result.Run = res
	if runErr != nil {
		result.RunError = runErr.Error()
		result.RunErrorCode = engine.ErrorCode(runErr)
	}
	if res != nil {
		result.Passes = res.Passes
		result.Converged = res.Converged
		out, err := render.String(h.renderer, res.Fragments)
		if err != nil {
			return nil, fmt.Errorf("failed to render output: %w", err)
		}
		result.Output = out
	}

	if runErr != nil && !expectsRunError(scenario.Assertions) {
		result.AddError(fmt.Sprintf("unexpected run error: %v", runErr))
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func expectsRunError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertRunError {
			return true
		}
	}
	return false
}
