package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/akl/internal/compiler"
	"github.com/roach88/akl/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled op stream.
type CompilationResult struct {
	Source       string  `json:"source"`
	DocumentHash string  `json:"document_hash"`
	IRVersion    string  `json:"ir_version"`
	Ops          []ir.Op `json:"ops"`
	Lines        []int   `json:"lines,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <document>",
		Short: "Compile a document to canonical IR",
		Long: `Compile a CUE or YAML document to its canonical op stream.

Scope blocks are lowered to push/pop pairs and short forms are expanded.
The document hash identifies the op stream; replay uses it to detect a
changed document.

Examples:
  akl compile ./paper.cue
  akl compile ./paper.yaml -o paper.ir.json
  akl compile ./chapters --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write canonical IR to file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	doc, err := LoadDocument(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Compiled %d op(s) from %s", len(doc.Ops), path)

	hash, err := doc.Hash()
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing document: %v", err))
	}

	result := &CompilationResult{
		Source:       path,
		DocumentHash: hash,
		IRVersion:    ir.IRVersion,
		Ops:          doc.Ops,
		Lines:        doc.Lines,
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, doc, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, doc *compiler.Document, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "%s Compiled %d op(s)\n\n", markOK, len(result.Ops))
	fmt.Fprintf(w, "Document hash: %s\n", result.DocumentHash)
	if formatter.Verbose {
		fmt.Fprintln(w)
		for i, op := range result.Ops {
			if line := doc.Line(i); line > 0 {
				fmt.Fprintf(w, "  %4d  %s\n", line, op)
			} else {
				fmt.Fprintf(w, "     -  %s\n", op)
			}
		}
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote canonical IR to %s\n", outputFile)
	}

	return nil
}

// outputLoadError reports a LoadDocument failure. Document errors are
// command-level errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	code := errorCode(err)
	if formatter.Format == "json" {
		_ = formatter.Error(code, err.Error(), nil)
	} else {
		fmt.Fprintf(formatter.Writer, "%s Loading document failed\n\n", markFail)
		fmt.Fprintf(formatter.Writer, "  %v\n", err)
	}
	return WrapExitError(ExitCommandError, "loading document failed", err)
}

// outputCommandError outputs a single command-level error.
func outputCommandError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// writeIRToFile writes the op stream in canonical JSON, the form that
// DocumentHash is computed over.
func writeIRToFile(result *CompilationResult, filename string) error {
	ops := make(ir.IRArray, len(result.Ops))
	for i, op := range result.Ops {
		ops[i] = op.Args()
	}
	data, err := ir.MarshalCanonical(ir.IRObject{
		"document_hash": ir.IRString(result.DocumentHash),
		"ir_version":    ir.IRString(result.IRVersion),
		"ops":           ops,
	})
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
