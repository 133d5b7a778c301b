package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/lstar/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Machine  string
	Status   string
	Limit    int
	Delete   []string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded learning runs",
		Long: `List the runs in a run log, oldest first.

Examples:
  lstar runs --db runs.db
  lstar runs --db runs.db --machine turnstile --status aborted
  lstar runs --db runs.db --limit 10 --format json
  lstar runs --db runs.db --delete 01926f3e-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Machine, "machine", "", "only runs of this machine")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs in this status (running|done|aborted)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "at most this many runs (0: all)")
	cmd.Flags().StringArrayVar(&opts.Delete, "delete", nil, "delete this run and its rounds (repeatable)")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	switch store.RunStatus(opts.Status) {
	case "", store.StatusRunning, store.StatusDone, store.StatusAborted:
	default:
		_ = formatter.Error(ErrCodeStore, fmt.Sprintf("unknown status %q", opts.Status), nil)
		return NewExitError(ExitCommandError, "invalid --status")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if len(opts.Delete) > 0 {
		return deleteRuns(formatter, st, opts.Delete, cmd)
	}

	runs, err := st.ListRuns(commandContext(cmd), store.RunFilter{
		Machine: opts.Machine,
		Status:  store.RunStatus(opts.Status),
		Limit:   opts.Limit,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if formatter.JSON() {
		if runs == nil {
			runs = []store.Run{}
		}
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs found.")
		return nil
	}

	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID,
			r.Machine,
			string(r.Status),
			r.Closing + "/" + r.Handler + "/" + r.Equivalence,
			strconv.Itoa(r.Rounds),
			strconv.Itoa(r.States),
			strconv.Itoa(r.Queries),
			r.StartedAt.Format("2006-01-02 15:04:05"),
		}
	}
	return writeGrid(formatter.Writer,
		[]string{"id", "machine", "status", "policies", "rounds", "states", "queries", "started"}, rows)
}

// DeleteResult lists the runs removed by runs --delete.
type DeleteResult struct {
	Deleted []string `json:"deleted"`
}

func deleteRuns(f *OutputFormatter, st *store.Store, ids []string, cmd *cobra.Command) error {
	result := DeleteResult{Deleted: []string{}}
	for _, id := range ids {
		if err := st.DeleteRun(commandContext(cmd), id); err != nil {
			code := ErrCodeStore
			if errors.Is(err, store.ErrRunNotFound) {
				code = ErrCodeRunNotFound
			}
			_ = f.Error(code, err.Error(), DeleteResult{Deleted: result.Deleted})
			return WrapExitError(ExitCommandError, "failed to delete run", err)
		}
		result.Deleted = append(result.Deleted, id)
	}

	if f.JSON() {
		return f.Success(result)
	}
	for _, id := range result.Deleted {
		fmt.Fprintf(f.Writer, "✓ deleted %s\n", id)
	}
	return nil
}
