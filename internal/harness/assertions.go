package harness

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/kb"
)

// AssertionError is returned when an assertion fails.
// It includes the rendered output to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Output   string // Rendered document for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Output != "" {
		fmt.Fprintf(&buf, "\nOutput:\n%s\n", e.Output)
	}

	return buf.String()
}

func assertOutputEquals(result *Result, a Assertion) error {
	if result.Output == a.Expect {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutputEquals,
		Expected: strconv.Quote(a.Expect),
		Actual:   strconv.Quote(result.Output),
	}
}

func assertOutputContains(result *Result, a Assertion) error {
	if strings.Contains(result.Output, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutputContains,
		Expected: fmt.Sprintf("output containing %q", a.Text),
		Actual:   "not found",
		Output:   result.Output,
	}
}

func assertResolve(st *kb.Store, a Assertion) error {
	id, err := st.Resolve(a.Name)
	switch {
	case a.Missing && kb.IsNameNotFound(err):
		return nil
	case a.Missing && err == nil:
		return &AssertionError{
			Type:     AssertResolve,
			Expected: fmt.Sprintf("%q unresolved", a.Name),
			Actual:   fmt.Sprintf("resolves to %s", id),
		}
	case err != nil:
		return &AssertionError{
			Type:     AssertResolve,
			Expected: fmt.Sprintf("%q -> %s", a.Name, ir.EntityID(a.Entity)),
			Actual:   err.Error(),
		}
	case id != ir.EntityID(a.Entity):
		return &AssertionError{
			Type:     AssertResolve,
			Expected: fmt.Sprintf("%q -> %s", a.Name, ir.EntityID(a.Entity)),
			Actual:   fmt.Sprintf("%q -> %s", a.Name, id),
		}
	}
	return nil
}

func assertAttribute(st *kb.Store, a Assertion) error {
	v, err := st.GetAttribute(a.Name, a.Key)
	if a.Missing {
		if kb.IsAttributeNotFound(err) {
			return nil
		}
		actual := fmt.Sprintf("%q", v)
		if err != nil {
			actual = err.Error()
		}
		return &AssertionError{
			Type:     AssertAttribute,
			Expected: fmt.Sprintf("%q has no %q", a.Name, a.Key),
			Actual:   actual,
		}
	}
	if err != nil {
		return &AssertionError{
			Type:     AssertAttribute,
			Expected: fmt.Sprintf("%q.%s = %q", a.Name, a.Key, *a.Value),
			Actual:   err.Error(),
		}
	}
	if v != *a.Value {
		return &AssertionError{
			Type:     AssertAttribute,
			Expected: fmt.Sprintf("%q.%s = %q", a.Name, a.Key, *a.Value),
			Actual:   fmt.Sprintf("%q", v),
		}
	}
	return nil
}

func assertEntitiesWith(st *kb.Store, a Assertion) error {
	got := st.ListEntitiesWithAttribute(a.Key)
	want := make([]ir.EntityID, len(a.Entities))
	for i, id := range a.Entities {
		want[i] = ir.EntityID(id)
	}
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEntitiesWith,
		Expected: fmt.Sprintf("%s held by %v", a.Key, want),
		Actual:   fmt.Sprintf("%v", got),
	}
}

func assertPasses(result *Result, a Assertion) error {
	if len(result.Passes) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertPasses,
		Expected: fmt.Sprintf("%d passes", a.Count),
		Actual:   fmt.Sprintf("%d passes", len(result.Passes)),
	}
}

func assertConverged(result *Result, a Assertion) error {
	want := *a.Value == "true"
	if result.Converged == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertConverged,
		Expected: fmt.Sprintf("converged=%t", want),
		Actual:   fmt.Sprintf("converged=%t", result.Converged),
	}
}

func assertFragmentError(frags []engine.Fragment, a Assertion) error {
	var codes []string
	for _, f := range frags {
		if f.Kind != engine.FragmentPlaceholder || f.Name != a.Name {
			continue
		}
		if f.Code == a.Code {
			return nil
		}
		codes = append(codes, f.Code)
	}
	actual := "no placeholder"
	if len(codes) > 0 {
		actual = "codes " + strings.Join(codes, ", ")
	}
	return &AssertionError{
		Type:     AssertFragmentError,
		Expected: fmt.Sprintf("placeholder %q with %s", a.Name, a.Code),
		Actual:   actual,
	}
}

func assertRunError(result *Result, a Assertion) error {
	if result.RunErrorCode == a.Code {
		return nil
	}
	actual := "run succeeded"
	if result.RunError != "" {
		actual = result.RunError
	}
	return &AssertionError{
		Type:     AssertRunError,
		Expected: a.Code,
		Actual:   actual,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a list of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	var st *kb.Store
	var frags []engine.Fragment
	if result.Run != nil {
		st = result.Run.Store
		frags = result.Run.Fragments
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutputEquals:
			err = assertOutputEquals(result, assertion)
		case AssertOutputContains:
			err = assertOutputContains(result, assertion)
		case AssertResolve, AssertAttribute, AssertEntitiesWith:
			if st == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a completed pass", i, assertion.Type)
				break
			}
			switch assertion.Type {
			case AssertResolve:
				err = assertResolve(st, assertion)
			case AssertAttribute:
				err = assertAttribute(st, assertion)
			default:
				err = assertEntitiesWith(st, assertion)
			}
		case AssertPasses:
			err = assertPasses(result, assertion)
		case AssertConverged:
			err = assertConverged(result, assertion)
		case AssertFragmentError:
			err = assertFragmentError(frags, assertion)
		case AssertRunError:
			err = assertRunError(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
