package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/lstar/internal/store"
	"github.com/roach88/lstar/internal/word"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	Hypotheses bool
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <run-id>",
		Short: "Show the rounds of a recorded run",
		Long: `Show a recorded run round by round: the size of each hypothesis and
table, and the counterexample that refuted it.

Examples:
  lstar trace --db runs.db 01926f3e-...
  lstar trace --db runs.db 01926f3e-... --hypotheses
  lstar trace --db runs.db 01926f3e-... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite run log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().BoolVar(&opts.Hypotheses, "hypotheses", false, "print every hypothesis as DOT")

	return cmd
}

func runTrace(opts *TraceOptions, id string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	log, err := st.ReadRunLog(commandContext(cmd), id)
	if err != nil {
		code := ErrCodeStore
		if errors.Is(err, store.ErrRunNotFound) {
			code = ErrCodeRunNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if formatter.JSON() {
		if opts.Hypotheses {
			return formatter.Success(log)
		}
		return formatter.Success(newTraceView(log))
	}
	return outputTraceText(formatter, log, opts.Hypotheses)
}

func outputTraceText(f *OutputFormatter, log store.RunLog, hypotheses bool) error {
	w := f.Writer
	r := log.Run
	fmt.Fprintf(w, "Run %s: %s (%s) %s\n", r.ID, r.Machine, r.Kind, r.Status)
	fmt.Fprintf(w, "  source:   %s\n", r.Source)
	fmt.Fprintf(w, "  policies: closing=%s cex=%s equivalence=%s seed=%d\n", r.Closing, r.Handler, r.Equivalence, r.Seed)
	fmt.Fprintf(w, "  result:   %d states in %d rounds, %d queries\n", r.States, r.Rounds, r.Queries)
	if r.Error != "" {
		fmt.Fprintf(w, "  error:    %s\n", r.Error)
	}
	fmt.Fprintln(w)

	ces := make(map[int]store.Counterexample, len(log.Counterexamples))
	for _, ce := range log.Counterexamples {
		ces[ce.Round] = ce
	}

	rows := make([][]string, len(log.Rounds))
	for i, rd := range log.Rounds {
		ce := "-"
		if c, ok := ces[rd.Round]; ok {
			ce = fmt.Sprintf("%s -> %s", word.Of(c.Input...), c.Output)
		}
		rows[i] = []string{
			strconv.Itoa(rd.Round),
			strconv.Itoa(rd.States),
			strconv.Itoa(rd.Suffixes),
			strconv.Itoa(rd.ShortPrefixes),
			strconv.Itoa(rd.Rows),
			strconv.Itoa(rd.Queries),
			shortFingerprint(rd.Fingerprint),
			ce,
		}
	}
	if err := writeGrid(w, []string{"round", "states", "suffixes", "short", "rows", "queries", "fingerprint", "counterexample"}, rows); err != nil {
		return err
	}

	if hypotheses {
		for _, rd := range log.Rounds {
			fmt.Fprintf(w, "\n// round %d\n", rd.Round)
			if err := rd.Hypothesis.WriteDOT(w); err != nil {
				return err
			}
		}
	}
	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// TraceView is a run log without the per-round hypotheses.
type TraceView struct {
	Run             store.Run              `json:"run"`
	Rounds          []RoundView            `json:"rounds"`
	Counterexamples []store.Counterexample `json:"counterexamples"`
}

// RoundView is a store.Round without its hypothesis.
type RoundView struct {
	Round         int    `json:"round"`
	States        int    `json:"states"`
	Suffixes      int    `json:"suffixes"`
	ShortPrefixes int    `json:"short_prefixes"`
	Rows          int    `json:"rows"`
	Queries       int    `json:"queries"`
	Fingerprint   string `json:"fingerprint"`
}

func newTraceView(log store.RunLog) TraceView {
	view := TraceView{
		Run:             log.Run,
		Rounds:          make([]RoundView, len(log.Rounds)),
		Counterexamples: log.Counterexamples,
	}
	if view.Counterexamples == nil {
		view.Counterexamples = []store.Counterexample{}
	}
	for i, r := range log.Rounds {
		view.Rounds[i] = RoundView{
			Round:         r.Round,
			States:        r.States,
			Suffixes:      r.Suffixes,
			ShortPrefixes: r.ShortPrefixes,
			Rows:          r.Rows,
			Queries:       r.Queries,
			Fingerprint:   r.Fingerprint,
		}
	}
	return view
}
