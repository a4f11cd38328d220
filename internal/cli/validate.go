package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/akl/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Ops    int                        `json:"ops"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Check a document without running it",
		Long: `Check a document for errors that would abort a pass.

Reports unknown ops, missing fields, unbalanced scopes, unscoped lookups,
duplicate bindings and recalls before bind, all with source lines.
Lookup misses are not reported; they only become placeholders at run time.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	doc, err := LoadDocument(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && isDocumentError(loadErr.Code) {
			return outputValidationErrors(formatter, []compiler.ValidationError{{
				Field:   "document",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    loadErr.Line,
			}}, 0)
		}
		return outputLoadError(formatter, err)
	}

	formatter.VerboseLog("Validating %d op(s) from %s", len(doc.Ops), path)

	if errs := compiler.Validate(doc); len(errs) > 0 {
		return outputValidationErrors(formatter, errs, len(doc.Ops))
	}

	return outputValidateSuccess(formatter, len(doc.Ops))
}

// isDocumentError reports whether a load error code describes the
// document's content rather than its location.
func isDocumentError(code string) bool {
	switch code {
	case ErrCodeBuildFailed, ErrCodeUnsupported, ErrCodeInvalidEntry:
		return true
	}
	return false
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, ops int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Ops: ops})
	}

	fmt.Fprintf(formatter.Writer, "%s Document valid (%d op(s))\n", markOK, ops)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError, ops int) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Ops:    ops,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintf(formatter.Writer, "%s Validation failed\n", markFail)
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
