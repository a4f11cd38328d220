package harness

import (
	"github.com/roach88/akl/internal/engine"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion matched and no unexpected run error occurred.
	Pass bool `json:"pass"`

	// Output is the rendered document.
	Output string `json:"output"`

	// Passes are the pass summaries of the run.
	Passes []engine.PassSummary `json:"passes"`

	Converged bool `json:"converged"`

	// RunError and RunErrorCode describe a failed run.
	RunError     string `json:"run_error,omitempty"`
	RunErrorCode string `json:"run_error_code,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Run is the coordinator result; nil if the run failed validation.
	Run *engine.Result `json:"-"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Passes: []engine.PassSummary{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
