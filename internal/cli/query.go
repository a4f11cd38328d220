package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/akl/internal/engine"
	"github.com/roach88/akl/internal/ir"
	"github.com/roach88/akl/internal/kb"
)

// QueryOptions holds flags for the query commands.
type QueryOptions struct {
	*RootOptions
}

// EntityResult describes one entity of the final knowledge base.
type EntityResult struct {
	Entity     ir.EntityID       `json:"entity"`
	Names      []string          `json:"names"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// AttributeResult is the payload of query get.
type AttributeResult struct {
	Name   string      `json:"name"`
	Entity ir.EntityID `json:"entity"`
	Key    string      `json:"key"`
	Value  string      `json:"value"`
}

// KeysResult is the payload of query keys.
type KeysResult struct {
	Name   string      `json:"name"`
	Entity ir.EntityID `json:"entity"`
	Keys   []string    `json:"keys"`
}

// HoldersResult is the payload of query holders.
type HoldersResult struct {
	Key      string         `json:"key"`
	Entities []EntityResult `json:"entities"`
}

// NewQueryCommand creates the query command and its subcommands.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the knowledge base a document builds",
		Long: `Run a document and query the knowledge base of its final pass.

A run that did not converge is still queried; its last pass is used.

Examples:
  akl query resolve ./paper.cue Colcombet
  akl query get ./paper.cue "Thomas Colcombet" salut
  akl query keys ./paper.cue Colcombet
  akl query holders ./paper.cue salut --format json`,
	}

	cmd.AddCommand(newQuerySubcommand(opts, "resolve <document> <name>", "Resolve a name to its entity", 2, queryResolve))
	cmd.AddCommand(newQuerySubcommand(opts, "get <document> <name> <key>", "Read one attribute", 3, queryGet))
	cmd.AddCommand(newQuerySubcommand(opts, "keys <document> <name>", "List an entity's attribute keys", 2, queryKeys))
	cmd.AddCommand(newQuerySubcommand(opts, "holders <document> <key>", "List entities holding an attribute", 2, queryHolders))

	return cmd
}

// queryFunc answers one query against the final store. args excludes the
// document path.
type queryFunc func(st *kb.Store, args []string) (any, string, error)

func newQuerySubcommand(opts *QueryOptions, use, short string, nargs int, q queryFunc) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.ExactArgs(nargs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd, args[0], args[1:], q)
		},
	}
}

func runQuery(opts *QueryOptions, cmd *cobra.Command, path string, args []string, q queryFunc) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	doc, err := LoadDocument(path)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	exec, err := execute(commandContext(cmd), cfg, doc, logger, nil)
	if err != nil {
		return outputCommandError(formatter, ErrCodeGeneric, err.Error())
	}
	if exec.Result == nil || exec.Result.Store == nil {
		_ = formatter.Error(engine.ErrorCode(exec.RunErr), exec.RunErr.Error(), nil)
		return WrapExitError(ExitFailure, "run failed", exec.RunErr)
	}
	if exec.RunErr != nil {
		logger.Warn("querying an incomplete run", "error", exec.RunErr)
	}

	data, text, err := q(exec.Result.Store, args)
	if err != nil {
		code := engine.ErrorCode(err)
		if code == "" {
			code = ErrCodeGeneric
		}
		_ = formatter.Error(code, err.Error(), nil)
		// Lookup misses = exit code 1
		return WrapExitError(ExitFailure, "query failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(data)
	}
	fmt.Fprint(formatter.Writer, text)
	return nil
}

func queryResolve(st *kb.Store, args []string) (any, string, error) {
	id, err := st.Resolve(args[0])
	if err != nil {
		return nil, "", err
	}
	res := entityResult(st, id)

	var b strings.Builder
	fmt.Fprintf(&b, "%s -> entity %s\n", args[0], id)
	fmt.Fprintf(&b, "  names: %s\n", strings.Join(res.Names, ", "))
	for _, k := range slices.Sorted(maps.Keys(res.Attributes)) {
		fmt.Fprintf(&b, "  %s = %s\n", k, res.Attributes[k])
	}
	return res, b.String(), nil
}

func queryGet(st *kb.Store, args []string) (any, string, error) {
	name, key := args[0], args[1]
	id, err := st.Resolve(name)
	if err != nil {
		return nil, "", err
	}
	value, err := st.GetAttribute(name, key)
	if err != nil {
		return nil, "", err
	}
	return AttributeResult{Name: name, Entity: id, Key: key, Value: value}, value + "\n", nil
}

func queryKeys(st *kb.Store, args []string) (any, string, error) {
	id, err := st.Resolve(args[0])
	if err != nil {
		return nil, "", err
	}
	keys, err := st.ListAttributeKeys(args[0])
	if err != nil {
		return nil, "", err
	}

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintln(&b, k)
	}
	return KeysResult{Name: args[0], Entity: id, Keys: keys}, b.String(), nil
}

func queryHolders(st *kb.Store, args []string) (any, string, error) {
	ids := st.ListEntitiesWithAttribute(args[0])
	res := HoldersResult{Key: args[0], Entities: make([]EntityResult, 0, len(ids))}

	var b strings.Builder
	for _, id := range ids {
		e := entityResult(st, id)
		e.Attributes = nil
		res.Entities = append(res.Entities, e)
		fmt.Fprintf(&b, "%s\t%s\n", id, strings.Join(e.Names, ", "))
	}
	return res, b.String(), nil
}

func entityResult(st *kb.Store, id ir.EntityID) EntityResult {
	res := EntityResult{Entity: id, Names: st.Names(id)}
	if e, ok := st.Entity(id); ok {
		res.Attributes = e.Attributes
	}
	return res
}
