package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/akl/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Op shape errors (E101-E102)
	ErrUnknownOp    = "E101" // op kind not recognized
	ErrMissingField = "E102" // required field empty

	// Scope balance errors (E103-E105)
	ErrUnmatchedPop   = "E103" // pop with no open scope
	ErrUnclosedPush   = "E104" // push still open at end of document
	ErrUnscopedLookup = "E105" // unqualified set/get/bind outside any scope

	// Binding errors (E106-E107)
	ErrDuplicateBinding = "E106" // permanent name bound twice
	ErrRecallBeforeBind = "E107" // recall of a name not bound earlier
)

// ValidationError represents a static document error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a document without executing it.
// Returns all errors found (does not fail-fast).
//
// Every error reported here would abort a pass at run time; Validate
// finds them with line numbers before any pass runs.
func Validate(doc *Document) []ValidationError {
	var errs []ValidationError
	add := func(i int, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("ops[%d]", i),
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    doc.Line(i),
		})
	}

	var open []int // indices of unclosed pushes
	bound := make(map[string]bool)

	for i, op := range doc.Ops {
		if err := op.Validate(); err != nil {
			code := ErrMissingField
			if !slices.Contains(ir.ValidOpKinds, op.Kind) {
				code = ErrUnknownOp
			}
			add(i, code, "%v", err)
			continue
		}

		switch op.Kind {
		case ir.OpPush:
			open = append(open, i)
		case ir.OpPop:
			if len(open) == 0 {
				add(i, ErrUnmatchedPop, "pop without an open scope")
				continue
			}
			open = open[:len(open)-1]
		case ir.OpSet, ir.OpGet:
			if op.Name == "" && len(open) == 0 {
				add(i, ErrUnscopedLookup, "%s without a name needs an enclosing scope", op.Kind)
			}
		case ir.OpBind:
			if op.Entity == "" && len(open) == 0 {
				add(i, ErrUnscopedLookup, "bind without an entity needs an enclosing scope")
			}
			if bound[op.Name] {
				add(i, ErrDuplicateBinding, "permanent name %q is already bound", op.Name)
			}
			bound[op.Name] = true
		case ir.OpRecall:
			if !bound[op.Name] {
				add(i, ErrRecallBeforeBind, "permanent name %q is not bound before this point", op.Name)
			}
		}
	}

	for _, i := range open {
		add(i, ErrUnclosedPush, "push of %q is never closed", doc.Ops[i].Ref)
	}
	return errs
}
