package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	List     bool
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID             string               `json:"run_id"`
	Seq               int64                `json:"seq"`
	Source            string               `json:"source"`
	DocumentHash      string               `json:"document_hash"`
	OutputFingerprint string               `json:"output_fingerprint"`
	Config            store.RunConfig      `json:"config"`
	Converged         bool                 `json:"converged"`
	ErrorCode         string               `json:"error_code,omitempty"`
	Error             string               `json:"error,omitempty"`
	Passes            []engine.PassSummary `json:"passes"`
	Labels            []engine.LabelTarget `json:"labels"`
	Misses            []engine.Fragment    `json:"misses"`
	Stats             TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Ops       int `json:"ops"`
	Passes    int `json:"passes"`
	Labels    int `json:"labels"`
	Fragments int `json:"fragments"`
	Misses    int `json:"misses"`
	Entities  int `json:"entities"`
}

// RunHeader is one line of trace --list.
type RunHeader struct {
	Seq       int64  `json:"seq"`
	RunID     string `json:"run_id"`
	Source    string `json:"source"`
	Converged bool   `json:"converged"`
	PassCount int    `json:"pass_count"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the pass history of a logged run",
		Long: `Show how a logged run converged.

The output includes:
- Passes: output fingerprint, reference counts and the labels whose
  targets changed in each pass
- Labels: the final label table
- Misses: placeholder and unresolved fragments of the final pass

Without --run the latest run is shown; --list prints every run instead.

Examples:
  akl trace --db ./akl.db
  akl trace --db ./akl.db --run 0190a4c2-...
  akl trace --db ./akl.db --list --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (default database.path)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id (default latest)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list logged runs")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := opts.formatter(cmd)

	st, err := openRunLog(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.List {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return outputRunList(formatter, runs)
	}

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		msg := "no runs in database"
		if opts.RunID != "" {
			msg = fmt.Sprintf("run not found: %s", opts.RunID)
		}
		return outputCommandError(formatter, ErrCodeNotFound, msg)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result := buildTrace(run)
	if formatter.Format == "json" {
		return writeJSON(formatter.Writer, CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}
	outputTraceText(formatter, result, run)
	return nil
}

// buildTrace summarizes a run read with its child rows.
func buildTrace(run store.Run) TraceResult {
	misses := []engine.Fragment{}
	for _, f := range run.Fragments {
		if !f.Resolved() || f.Kind == engine.FragmentPlaceholder {
			misses = append(misses, f)
		}
	}

	return TraceResult{
		RunID:             run.ID,
		Seq:               run.Seq,
		Source:            run.Source,
		DocumentHash:      run.DocumentHash,
		OutputFingerprint: run.OutputFingerprint,
		Config:            run.Config,
		Converged:         run.Converged,
		ErrorCode:         run.ErrorCode,
		Error:             run.Error,
		Passes:            run.Passes,
		Labels:            run.Labels,
		Misses:            misses,
		Stats: TraceStats{
			Ops:       len(run.Ops),
			Passes:    len(run.Passes),
			Labels:    len(run.Labels),
			Fragments: len(run.Fragments),
			Misses:    len(misses),
			Entities:  len(run.Entities),
		},
	}
}

func outputTraceText(formatter *OutputFormatter, t TraceResult, run store.Run) {
	w := formatter.Writer

	fmt.Fprintf(w, "Run %d: %s\n", t.Seq, t.RunID)
	fmt.Fprintf(w, "  Source: %s (%d op(s))\n", t.Source, t.Stats.Ops)
	fmt.Fprintf(w, "  Settings: max_passes=%d rebind=%s lookups=%s\n",
		t.Config.MaxPasses, t.Config.Rebind, t.Config.Lookups)
	switch {
	case t.Converged:
		fmt.Fprintf(w, "  %s Converged after %d pass(es)\n", markOK, t.Stats.Passes)
	case t.ErrorCode != "":
		fmt.Fprintf(w, "  %s %s: %s\n", markFail, t.ErrorCode, t.Error)
	default:
		fmt.Fprintf(w, "  %s Did not converge\n", markFail)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Passes:")
	for _, p := range t.Passes {
		state := "changed " + strings.Join(p.Changed, ", ")
		if p.Stable {
			state = "stable"
		}
		fmt.Fprintf(w, "  %d  %s  refs %d  unresolved %d  %s\n",
			p.Pass, short(p.Fingerprint), p.References, len(p.Unresolved), state)
	}
	fmt.Fprintln(w)

	if len(t.Labels) > 0 {
		fmt.Fprintln(w, "Labels:")
		for _, l := range t.Labels {
			fmt.Fprintf(w, "  %s -> entity %s %q\n", l.Name, l.Entity, l.Text)
		}
		fmt.Fprintln(w)
	}

	if len(t.Misses) > 0 {
		fmt.Fprintln(w, "Misses:")
		for _, f := range t.Misses {
			fmt.Fprintf(w, "  %s %q %s\n", f.Kind, f.Text, f.Code)
		}
		fmt.Fprintln(w)
	}

	if formatter.Verbose {
		fmt.Fprintln(w, "Fragments:")
		for i, f := range run.Fragments {
			fmt.Fprintf(w, "  %3d  %-11s %q\n", i, f.Kind, f.Text)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Stats: %d fragment(s), %d miss(es), %d entity(ies)\n",
		t.Stats.Fragments, t.Stats.Misses, t.Stats.Entities)
}

func outputRunList(formatter *OutputFormatter, runs []store.Run) error {
	headers := make([]RunHeader, len(runs))
	for i, r := range runs {
		headers[i] = RunHeader{
			Seq:       r.Seq,
			RunID:     r.ID,
			Source:    r.Source,
			Converged: r.Converged,
			PassCount: r.PassCount,
			ErrorCode: r.ErrorCode,
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(headers)
	}

	w := formatter.Writer
	if len(headers) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}
	for _, h := range headers {
		status := markOK
		if !h.Converged {
			status = markFail
		}
		fmt.Fprintf(w, "%s %4d  %s  %s  %d pass(es)", status, h.Seq, h.RunID, h.Source, h.PassCount)
		if h.ErrorCode != "" {
			fmt.Fprintf(w, "  %s", h.ErrorCode)
		}
		fmt.Fprintln(w)
	}
	return nil
}
