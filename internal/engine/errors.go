package engine

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/akl/internal/kb"
)

// RuntimeError represents a structural error detected while executing a
// pass.
//
// Runtime errors include:
//   - Scope misuse: pop on an empty stack, unqualified lookup without a scope
//   - Unbalanced scope: push without a matching pop at end of stream
//   - Binding misuse: rebinding or recalling an unknown permanent name
//   - Convergence: pass budget exhausted, or passes disagree on entity ids
//
// Every RuntimeError aborts the current pass. Lookup misses are reported
// with kb.NameNotFoundError and kb.AttributeNotFoundError instead.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeEmptyScope indicates a pop with no active scope.
	ErrCodeEmptyScope RuntimeErrorCode = "EMPTY_SCOPE"

	// ErrCodeNoActiveScope indicates an unqualified lookup outside any scope.
	ErrCodeNoActiveScope RuntimeErrorCode = "NO_ACTIVE_SCOPE"

	// ErrCodeUnbalancedScope indicates pushes left open at end of stream.
	ErrCodeUnbalancedScope RuntimeErrorCode = "UNBALANCED_SCOPE"

	// ErrCodeBindingExists indicates a permanent name bound twice.
	ErrCodeBindingExists RuntimeErrorCode = "BINDING_EXISTS"

	// ErrCodeUnknownBinding indicates a recall of a name never bound.
	ErrCodeUnknownBinding RuntimeErrorCode = "UNKNOWN_BINDING"

	// ErrCodeDidNotConverge indicates the pass budget ran out before labels
	// stabilized.
	ErrCodeDidNotConverge RuntimeErrorCode = "DID_NOT_CONVERGE"

	// ErrCodeNonDeterministicReplay indicates two passes over the same
	// stream assigned different entity ids.
	ErrCodeNonDeterministicReplay RuntimeErrorCode = "NON_DETERMINISTIC_REPLAY"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + e.Details[k]
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, ", "))
}

// HasCode reports whether err wraps a RuntimeError with the given code.
func HasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsEmptyScope returns true if err is an EMPTY_SCOPE error.
func IsEmptyScope(err error) bool { return HasCode(err, ErrCodeEmptyScope) }

// IsNoActiveScope returns true if err is a NO_ACTIVE_SCOPE error.
func IsNoActiveScope(err error) bool { return HasCode(err, ErrCodeNoActiveScope) }

// IsUnbalancedScope returns true if err is an UNBALANCED_SCOPE error.
func IsUnbalancedScope(err error) bool { return HasCode(err, ErrCodeUnbalancedScope) }

// IsDidNotConverge returns true if err is a DID_NOT_CONVERGE error.
func IsDidNotConverge(err error) bool { return HasCode(err, ErrCodeDidNotConverge) }

// IsNonDeterministicReplay returns true if err is a NON_DETERMINISTIC_REPLAY error.
func IsNonDeterministicReplay(err error) bool { return HasCode(err, ErrCodeNonDeterministicReplay) }

// IsStructural reports whether err must abort the pass regardless of the
// lookup policy. DuplicateNameError counts: under RebindReject a second
// registration is a document bug, not a lookup miss.
func IsStructural(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) || kb.IsDuplicateName(err)
}

// ErrorCode returns the code of the first coded error in err's chain, or ""
// for errors without one.
func ErrorCode(err error) string {
	var re *RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	var coded interface{ Code() kb.ErrorCode }
	if errors.As(err, &coded) {
		return string(coded.Code())
	}
	return ""
}

// NewEmptyScopeError creates an EMPTY_SCOPE error.
func NewEmptyScopeError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeEmptyScope,
		Message: "pop without an active scope",
	}
}

// NewNoActiveScopeError creates a NO_ACTIVE_SCOPE error.
func NewNoActiveScopeError() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNoActiveScope,
		Message: "unqualified lookup outside any scope",
	}
}

// NewUnbalancedScopeError creates an UNBALANCED_SCOPE error.
func NewUnbalancedScopeError(open int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnbalancedScope,
		Message: fmt.Sprintf("%d scope(s) still open at end of stream", open),
		Details: map[string]string{"open": strconv.Itoa(open)},
	}
}

// NewBindingExistsError creates a BINDING_EXISTS error.
func NewBindingExistsError(name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBindingExists,
		Message: fmt.Sprintf("permanent name %q is already bound", name),
		Details: map[string]string{"name": name},
	}
}

// NewUnknownBindingError creates an UNKNOWN_BINDING error.
func NewUnknownBindingError(name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownBinding,
		Message: fmt.Sprintf("permanent name %q was never bound", name),
		Details: map[string]string{"name": name},
	}
}

// NewDidNotConvergeError creates a DID_NOT_CONVERGE error. changed lists the
// labels whose references were still moving in the last pass.
func NewDidNotConvergeError(passes int, changed []string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDidNotConverge,
		Message: fmt.Sprintf("labels still changing after %d pass(es)", passes),
		Details: map[string]string{
			"passes":  strconv.Itoa(passes),
			"changed": strings.Join(changed, ","),
		},
	}
}

// NewNonDeterministicReplayError creates a NON_DETERMINISTIC_REPLAY error.
func NewNonDeterministicReplayError(pass int, want, got string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNonDeterministicReplay,
		Message: fmt.Sprintf("pass %d produced a different name table than pass 1", pass),
		Details: map[string]string{
			"pass": strconv.Itoa(pass),
			"want": want,
			"got":  got,
		},
	}
}
