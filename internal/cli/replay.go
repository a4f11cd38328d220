package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/akl/internal/config"
	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID     string `json:"run_id"`
	Seq       int64  `json:"seq"`
	Source    string `json:"source"`
	Ops       int    `json:"ops"`
	PassCount int    `json:"pass_count"`

	// DocumentMatch reports whether the logged ops still hash to the
	// logged document hash.
	DocumentMatch bool `json:"document_match"`

	// OutputMatch reports whether re-running the ops reproduced the logged
	// output fingerprint, pass count, convergence and error code.
	OutputMatch bool `json:"output_match"`

	Deterministic bool   `json:"deterministic"`
	Mismatch      string `json:"mismatch,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run logged documents and verify determinism",
		Long: `Re-run the op streams in the run log and verify determinism.

Each logged run is executed again from its stored ops with its stored
engine settings. The replay must reproduce the document hash, the output
fingerprint, the pass count, convergence and the error code.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  akl replay --db ./akl.db
  akl replay --db ./akl.db --run 0190a4c2-...
  akl replay --db ./akl.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (default database.path)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")

	return cmd
}

// openRunLog opens the run log named by db, falling back to the
// configured database.path.
func openRunLog(opts *RootOptions, db string) (*store.Store, error) {
	if db == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return nil, err
		}
		db = cfg.Database.Path
	}
	if db == "" {
		return nil, NewExitError(ExitCommandError, "no run log: pass --db or set database.path")
	}
	st, err := store.Open(db)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	st, err := openRunLog(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	// Get runs to process
	var runs []store.Run
	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrRunNotFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		runs = []store.Run{run}
	} else {
		runs, err = st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	if len(runs) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{Runs: []ReplayRunResult{}, AllDeterministic: true})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found in database.")
		return nil
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}

	for _, run := range runs {
		runResult, err := replayRun(ctx, st, run, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", run.ID), err)
		}

		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayRun re-executes one logged run and compares the outcome.
func replayRun(ctx context.Context, st *store.Store, run store.Run, logger *slog.Logger) (ReplayRunResult, error) {
	ops, _, err := st.ReadOperations(ctx, run.ID)
	if err != nil {
		return ReplayRunResult{}, err
	}

	result := ReplayRunResult{
		RunID:     run.ID,
		Seq:       run.Seq,
		Source:    run.Source,
		Ops:       len(ops),
		PassCount: run.PassCount,
	}

	hash, err := ir.DocumentHash(ops)
	if err != nil {
		return ReplayRunResult{}, fmt.Errorf("hashing ops: %w", err)
	}
	result.DocumentMatch = hash == run.DocumentHash
	if !result.DocumentMatch {
		result.Mismatch = fmt.Sprintf("document hash: logged %s, replayed %s", short(run.DocumentHash), short(hash))
		return result, nil
	}

	cfg := &config.Config{Engine: config.EngineConfig{
		MaxPasses: run.Config.MaxPasses,
		Rebind:    run.Config.Rebind,
		Lookups:   run.Config.Lookups,
	}}
	coordinator := engine.NewCoordinator(append(cfg.CoordinatorOptions(),
		engine.WithLogger(logger.With("replay", run.ID)),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(run.ID)),
	)...)

	res, runErr := coordinator.Run(ctx, ops)
	result.Mismatch = compareReplay(run, res, runErr)
	result.OutputMatch = result.Mismatch == ""
	result.Deterministic = result.DocumentMatch && result.OutputMatch
	return result, nil
}

// compareReplay describes the first difference between a logged run and
// its replay, or returns "".
func compareReplay(run store.Run, res *engine.Result, runErr error) string {
	if code := engine.ErrorCode(runErr); code != run.ErrorCode {
		return fmt.Sprintf("error code: logged %q, replayed %q", run.ErrorCode, code)
	}
	if res == nil {
		if run.OutputFingerprint != "" {
			return "replay produced no passes"
		}
		return ""
	}
	if len(res.Passes) != run.PassCount {
		return fmt.Sprintf("pass count: logged %d, replayed %d", run.PassCount, len(res.Passes))
	}
	if res.Converged != run.Converged {
		return fmt.Sprintf("converged: logged %t, replayed %t", run.Converged, res.Converged)
	}
	fp, err := engine.OutputFingerprint(res.Fragments)
	if err != nil {
		return fmt.Sprintf("fingerprint: %v", err)
	}
	if fp != run.OutputFingerprint {
		return fmt.Sprintf("output fingerprint: logged %s, replayed %s", short(run.OutputFingerprint), short(fp))
	}
	return ""
}

// short truncates a hash for display.
func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    string(engine.ErrCodeNonDeterministicReplay),
			Message: "determinism verification failed",
		}
	}

	if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := markOK
		if !run.Deterministic {
			status = markFail
		}

		fmt.Fprintf(w, "%s Run %d: %s\n", status, run.Seq, run.RunID)
		fmt.Fprintf(w, "  Source: %s, %d op(s), %d pass(es)\n", run.Source, run.Ops, run.PassCount)
		if verbose {
			fmt.Fprintf(w, "  Document match: %v\n", run.DocumentMatch)
			fmt.Fprintf(w, "  Output match: %v\n", run.OutputMatch)
		}

		if !run.Deterministic {
			fmt.Fprintf(w, "  Warning: Non-deterministic replay detected! (%s)\n", run.Mismatch)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintf(w, "%s All runs verified deterministic\n", markOK)
		return nil
	}

	fmt.Fprintf(w, "%s Determinism verification failed\n", markFail)
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
