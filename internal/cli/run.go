package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/akl/internal/compiler"
	"github.com/roach88/akl/internal/config"
	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/render"
	"github.com/roach88/akl/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database  string
	Style     string
	MaxPasses int
	Output    string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, the coordinator's UUIDv7 generator is used.
	RunIDs engine.RunIDGenerator
}

// RunSummary is the JSON payload of the run command.
type RunSummary struct {
	RunID             string               `json:"run_id"`
	Seq               int64                `json:"seq,omitempty"`
	Converged         bool                 `json:"converged"`
	Passes            []engine.PassSummary `json:"passes"`
	Output            string               `json:"output"`
	OutputFingerprint string               `json:"output_fingerprint"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <document>",
		Short: "Run a document to convergence and render it",
		Long: `Run a document: repeat passes until every reference agrees with the
label table, then render the final pass.

Settings come from defaults, the --config file and AKL_* environment
variables; flags given here override them. With --db (or database.path)
the run is appended to a SQLite run log for trace and replay.

Exit codes:
  0 - Converged
  1 - Run failed (did not converge, structural error, strict lookup miss)
  2 - Command error (bad document, config or database)

Examples:
  akl run ./paper.cue
  akl run ./paper.yaml --style latex -o paper.tex
  akl run ./paper.cue --db ./akl.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocument(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "append the run to this SQLite run log")
	cmd.Flags().StringVar(&opts.Style, "style", "", "output style (markdown|latex)")
	cmd.Flags().IntVar(&opts.MaxPasses, "max-passes", 0, "pass budget")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write rendered output to file")

	return cmd
}

// settings loads config and applies the flags that were set on cmd.
func (o *RunOptions) settings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("max-passes") {
		cfg.Engine.MaxPasses = o.MaxPasses
	}
	if o.Style != "" {
		cfg.Render.Style = o.Style
	}
	if o.Database != "" {
		cfg.Database.Path = o.Database
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid settings", err)
	}
	return cfg, nil
}

func runDocument(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	cfg, err := opts.settings(cmd)
	if err != nil {
		return err
	}

	doc, err := LoadDocument(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec, err := execute(ctx, cfg, doc, logger, opts.RunIDs)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}

	var seq int64
	if cfg.Database.Path != "" && exec.Result != nil {
		seq, err = logRun(ctx, cfg, path, doc, exec, logger)
		if err != nil {
			return outputCommandError(formatter, ErrCodeStoreFailed, err.Error())
		}
	}

	if exec.Result == nil {
		_ = formatter.Error(engine.ErrorCode(exec.RunErr), exec.RunErr.Error(), nil)
		return WrapExitError(ExitCommandError, "run rejected document", exec.RunErr)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(exec.Output), 0644); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	summary := RunSummary{
		RunID:             exec.Result.RunID,
		Seq:               seq,
		Converged:         exec.Result.Converged,
		Passes:            exec.Result.Passes,
		Output:            exec.Output,
		OutputFingerprint: exec.Fingerprint,
	}
	return outputRunResult(formatter, summary, exec.RunErr, opts.Output)
}

// execution is one coordinator run plus its rendering.
type execution struct {
	Result      *engine.Result
	RunErr      error
	Output      string
	Fingerprint string
}

// execute runs doc with cfg's engine and render settings. The returned
// error covers setup and rendering; the run's own outcome is RunErr.
func execute(ctx context.Context, cfg *config.Config, doc *compiler.Document, logger *slog.Logger, ids engine.RunIDGenerator) (*execution, error) {
	renderer, err := render.ForStyle(cfg.Render.Style)
	if err != nil {
		return nil, err
	}

	coordOpts := append(cfg.CoordinatorOptions(), engine.WithLogger(logger))
	if ids != nil {
		coordOpts = append(coordOpts, engine.WithRunIDGenerator(ids))
	}
	coordinator := engine.NewCoordinator(coordOpts...)

	res, runErr := coordinator.Run(ctx, doc.Ops)
	exec := &execution{Result: res, RunErr: runErr}
	if res == nil {
		return exec, nil
	}

	exec.Output, err = render.String(renderer, res.Fragments)
	if err != nil {
		return nil, fmt.Errorf("rendering output: %w", err)
	}
	exec.Fingerprint, err = engine.OutputFingerprint(res.Fragments)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting output: %w", err)
	}
	return exec, nil
}

// logRun appends the run to the log at cfg.Database.Path.
func logRun(ctx context.Context, cfg *config.Config, source string, doc *compiler.Document, exec *execution, logger *slog.Logger) (int64, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	run, err := store.NewRun(source, doc.Ops, doc.Lines, runConfig(cfg), exec.Result, exec.RunErr)
	if err != nil {
		return 0, err
	}
	seq, err := st.WriteRun(ctx, run)
	if err != nil {
		return 0, err
	}
	logger.Info("run logged", "run", run.ID, "seq", seq, "db", cfg.Database.Path)
	return seq, nil
}

func runConfig(cfg *config.Config) store.RunConfig {
	return store.RunConfig{
		MaxPasses: cfg.Engine.MaxPasses,
		Rebind:    cfg.Engine.Rebind,
		Lookups:   cfg.Engine.Lookups,
	}
}

// outputRunResult prints the rendered output, then reports runErr as a
// failure (exit code 1). DID_NOT_CONVERGE still carries the last pass.
func outputRunResult(formatter *OutputFormatter, summary RunSummary, runErr error, outputFile string) error {
	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: summary, RunID: summary.RunID}
		if runErr != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: engine.ErrorCode(runErr), Message: runErr.Error()}
		}
		if err := writeJSON(formatter.Writer, resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if outputFile == "" {
			fmt.Fprintln(w, summary.Output)
		} else {
			fmt.Fprintf(w, "Wrote output to %s\n", outputFile)
		}
		formatter.VerboseLog("run %s: %d pass(es), converged=%t", summary.RunID, len(summary.Passes), summary.Converged)
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "run failed", runErr)
	}
	return nil
}

// commandContext returns cmd's context, or Background when it has none.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
