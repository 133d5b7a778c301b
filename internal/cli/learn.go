package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/harness"
	"github.com/roach88/lstar/internal/learner"
	"github.com/roach88/lstar/internal/machine"
	"github.com/roach88/lstar/internal/store"
)

// Hypothesis renderings accepted by --emit.
const (
	EmitCUE  = "cue"
	EmitDOT  = "dot"
	EmitJSON = "json"
)

// LearnOptions holds flags for the learn command.
type LearnOptions struct {
	*RootOptions
	Machine  string
	Database string

	Learner     harness.LearnerConfig
	Equivalence harness.EquivalenceConfig

	// Suffixes are the initial columns, one word per flag, symbols
	// separated by spaces. An empty value is the empty word.
	Suffixes []string

	ShowTable bool
	Emit      string
	Out       string
}

// LearnResult is the payload of a successful learn.
type LearnResult struct {
	RunID       string             `json:"run_id"`
	Machine     string             `json:"machine"`
	Kind        string             `json:"kind"`
	Closing     string             `json:"closing"`
	Handler     string             `json:"handler"`
	Equivalence string             `json:"equivalence"`
	Stats       learner.Stats      `json:"stats"`
	QueriesSent int64              `json:"queries_sent"`
	Fingerprint string             `json:"fingerprint"`
	Hypothesis  automaton.Snapshot `json:"hypothesis"`
	Table       *TableView         `json:"table,omitempty"`
	Rendered    string             `json:"rendered,omitempty"`
}

// NewLearnCommand creates the learn command.
func NewLearnCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LearnOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "learn <machine.cue|dir>",
		Short: "Learn a machine from its CUE definition",
		Long: `Learn a minimal machine by querying a simulated target.

The target is compiled from a CUE definition and answers membership
queries. Equivalence queries are answered exactly against the target, by
random words, or from a script. The run is recorded in the run log.

Exit codes:
  0 - Learning finished with an accepted hypothesis
  1 - Learning aborted (round limit, no progress, oracle failure)
  2 - Command error (bad definition, unknown policy, database error)

Examples:
  lstar learn machines/turnstile.cue
  lstar learn machines/ --machine ends_ab --cex rivest-schapire --show-table
  lstar learn machines/ --machine ends_ab --equivalence random --eq-seed 7
  lstar learn machines/turnstile.cue --db runs.db --emit dot -o turnstile.dot`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLearn(opts, args[0], cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Machine, "machine", "m", "", "machine to learn when the definition holds several")
	f.StringVar(&opts.Database, "db", "", "path to SQLite run log (default: in-memory)")
	f.StringVar(&opts.Learner.Closing, "closing", "first", "closing strategy (first|random|shortest|lexmin)")
	f.StringVar(&opts.Learner.Handler, "cex", "classic", "counterexample handler (classic|maler-pnueli|shahbaz|rivest-schapire)")
	f.Uint64Var(&opts.Learner.Seed, "seed", 0, "seed for the random closing strategy (0: draw one and record it)")
	f.StringArrayVar(&opts.Suffixes, "suffix", nil, "initial suffix, symbols separated by spaces (repeatable)")
	f.IntVar(&opts.Learner.MaxRounds, "max-rounds", 0, "abort after this many rounds (0: no limit)")
	f.BoolVar(&opts.Learner.Cache, "cache", false, "deduplicate membership queries with a prefix cache")
	f.IntVar(&opts.Learner.Workers, "workers", 1, "answer membership batches with this many workers")
	f.StringVar(&opts.Equivalence.Type, "equivalence", harness.EquivalenceExact, "equivalence procedure (exact|random)")
	f.Uint64Var(&opts.Equivalence.Seed, "eq-seed", 1, "seed for random equivalence words")
	f.IntVar(&opts.Equivalence.Count, "eq-count", 0, "random words per equivalence query (0: default)")
	f.IntVar(&opts.Equivalence.MinLength, "eq-min-length", 0, "minimum random word length (0: default)")
	f.IntVar(&opts.Equivalence.MaxLength, "eq-max-length", 0, "maximum random word length (0: default)")
	f.BoolVar(&opts.ShowTable, "show-table", false, "print the final observation table")
	f.StringVar(&opts.Emit, "emit", "", "render the hypothesis (cue|dot|json)")
	f.StringVarP(&opts.Out, "out", "o", "", "write the rendered hypothesis to this file")

	return cmd
}

func runLearn(opts *LearnOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := formatter.Logger()

	switch opts.Emit {
	case "", EmitCUE, EmitDOT, EmitJSON:
	default:
		_ = formatter.Error(machine.ErrCodeGeneric, fmt.Sprintf("unknown --emit %q (want cue, dot or json)", opts.Emit), nil)
		return NewExitError(ExitCommandError, "invalid --emit")
	}
	if opts.Equivalence.Type == harness.EquivalenceScripted {
		_ = formatter.Error(machine.ErrCodeGeneric, "scripted equivalence is only available to scenarios and replay", nil)
		return NewExitError(ExitCommandError, "invalid --equivalence")
	}
	if opts.Suffixes != nil {
		opts.Learner.InitialSuffixes = parseSuffixes(opts.Suffixes)
	}

	m, err := loadMachine(path, opts.Machine)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Learning %s (%s, %d symbols)", m.Name, m.Automaton.Kind(), m.Automaton.Alphabet().Size())

	st, err := openStore(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open run log", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts.Learner = opts.Learner.PinSeed(logger)
	run, err := st.CreateRun(ctx, store.Run{
		Machine:     m.Name,
		Source:      path,
		Kind:        m.Automaton.Kind().String(),
		Closing:     opts.Learner.Closing,
		Handler:     opts.Learner.Handler,
		Equivalence: opts.Equivalence.Name(),
		Seed:        opts.Learner.Seed,
		MaxRounds:   opts.Learner.MaxRounds,
	})
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to create run", err)
	}
	rec := st.NewRecorder(ctx, run.ID, logger)

	sess, err := harness.NewSession(m, opts.Learner, opts.Equivalence, logger, rec)
	if err != nil {
		_ = st.FinishRun(ctx, run.ID, 0, 0, 0, "", err)
		code := string(learner.CodeOf(err))
		if code == "" {
			code = string(learner.ErrCodeInvalidConfig)
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid learner configuration", err)
	}

	hyp, learnErr := sess.Learner.Run(ctx, sess.Equivalence)
	if err := rec.Err(); err != nil {
		logger.Warn("run log is incomplete", "run_id", run.ID, "error", err)
	}
	if learnErr != nil {
		return outputLearnError(formatter, run.ID, learnErr, sess.Learner.Stats())
	}

	result := LearnResult{
		RunID:       run.ID,
		Machine:     m.Name,
		Kind:        hyp.Kind().String(),
		Closing:     string(sess.Closing),
		Handler:     string(sess.Handler),
		Equivalence: opts.Equivalence.Name(),
		Stats:       sess.Learner.Stats(),
		QueriesSent: sess.Counter.Queries(),
		Fingerprint: hyp.Fingerprint(),
		Hypothesis:  hyp.Snapshot(),
	}
	if opts.ShowTable {
		view := newTableView(sess.Learner.Table())
		result.Table = &view
	}

	var rendered []byte
	if opts.Emit != "" {
		rendered, err = renderHypothesis(m.Name, hyp, opts.Emit)
		if err != nil {
			_ = formatter.Error(machine.ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to render hypothesis", err)
		}
		if opts.Out != "" {
			if err := os.WriteFile(opts.Out, rendered, 0o644); err != nil {
				_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to write hypothesis", err)
			}
			formatter.VerboseLog("Wrote %s hypothesis to %s", opts.Emit, opts.Out)
			rendered = nil
		} else if formatter.JSON() {
			result.Rendered = string(rendered)
		}
	}

	if formatter.JSON() {
		return formatter.Encode(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	return outputLearnText(formatter, result, rendered)
}

func outputLearnText(f *OutputFormatter, r LearnResult, rendered []byte) error {
	w := f.Writer
	rounds := "rounds"
	if r.Stats.Rounds == 1 {
		rounds = "round"
	}
	fmt.Fprintf(w, "✓ learned %s (%s): %d states in %d %s\n", r.Machine, r.Kind, r.Stats.States, r.Stats.Rounds, rounds)
	fmt.Fprintf(w, "  run:             %s\n", r.RunID)
	fmt.Fprintf(w, "  policies:        closing=%s cex=%s equivalence=%s\n", r.Closing, r.Handler, r.Equivalence)
	fmt.Fprintf(w, "  table:           %d short prefixes, %d rows, %d suffixes\n", r.Stats.ShortPrefixes, r.Stats.Rows, r.Stats.Suffixes)
	fmt.Fprintf(w, "  queries:         %d distinct, %d sent\n", r.Stats.Queries, r.QueriesSent)
	fmt.Fprintf(w, "  counterexamples: %d\n", r.Stats.Counterexamples)
	fmt.Fprintf(w, "  fingerprint:     %s\n", r.Fingerprint)

	if r.Table != nil {
		fmt.Fprintln(w)
		if err := writeTable(w, *r.Table); err != nil {
			return err
		}
	}
	if len(rendered) > 0 {
		fmt.Fprintln(w)
		if _, err := w.Write(rendered); err != nil {
			return err
		}
	}
	return nil
}

func outputLearnError(f *OutputFormatter, runID string, err error, stats learner.Stats) error {
	code := string(learner.CodeOf(err))
	if code == "" {
		code = "E_LEARN"
	}
	if f.JSON() {
		if encErr := f.Encode(CLIResponse{
			Status: "error",
			RunID:  runID,
			Error:  &CLIError{Code: code, Message: err.Error(), Details: stats},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ learning aborted after %d rounds\n", stats.Rounds)
		fmt.Fprintf(f.Writer, "  run:   %s\n", runID)
		fmt.Fprintf(f.Writer, "  error: [%s] %v\n", code, err)
	}
	return WrapExitError(ExitFailure, "learning aborted", err)
}

// renderHypothesis renders hyp in one of the --emit formats.
func renderHypothesis(name string, hyp *automaton.Automaton[string, string], emit string) ([]byte, error) {
	switch emit {
	case EmitCUE:
		return machine.Format(name, hyp)
	case EmitDOT:
		var buf bytes.Buffer
		if err := hyp.WriteDOT(&buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case EmitJSON:
		data, err := json.MarshalIndent(hyp.Snapshot(), "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unknown rendering %q", emit)
	}
}

// parseSuffixes turns "a b" flag values into symbol lists. Empty values are
// the empty word.
func parseSuffixes(values []string) [][]string {
	out := make([][]string, len(values))
	for i, v := range values {
		out[i] = strings.Fields(v)
	}
	return out
}

// openStore opens the run log at path, or an in-memory one for "".
func openStore(path string) (*store.Store, error) {
	if path == "" {
		path = ":memory:"
	}
	return store.Open(path)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
