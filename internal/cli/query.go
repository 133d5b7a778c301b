package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/lstar/internal/machine"
	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/word"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Machine string
}

// QueryStepView is the output after one prefix of the queried word.
type QueryStepView struct {
	Prefix string `json:"prefix"`
	Output string `json:"output"`
}

// QueryResult is the answer to a membership query.
type QueryResult struct {
	Machine string          `json:"machine"`
	Input   []string        `json:"input"`
	Output  string          `json:"output"`
	Steps   []QueryStepView `json:"steps"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <machine.cue|dir> [symbol...]",
		Short: "Ask a target machine one membership query",
		Long: `Run a word on a target machine and print its output, with the output
after every prefix. No symbols asks the empty word.

Example:
  lstar query machines/turnstile.cue coin push push`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Machine, "machine", "m", "", "machine to query when the definition holds several")

	return cmd
}

func runQuery(opts *QueryOptions, path string, symbols []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	m, err := loadMachine(path, opts.Machine)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	input := make([]string, len(symbols))
	for i, s := range symbols {
		input[i] = norm.NFC.String(s)
	}
	w := word.Of(input...)
	if !m.Automaton.Alphabet().Contains(w) {
		msg := fmt.Sprintf("word %s is not over the alphabet %v of %s", w, m.Automaton.Alphabet().Symbols(), m.Name)
		_ = formatter.Error(machine.ErrCodeTransition, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	prefixes := w.Prefixes(true)
	outputs, err := oracle.NewSimulator[string, string](m.Automaton).Answer(commandContext(cmd), prefixes)
	if err != nil {
		_ = formatter.Error(machine.ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "query failed", err)
	}

	result := QueryResult{
		Machine: m.Name,
		Input:   input,
		Output:  outputs[len(outputs)-1],
		Steps:   make([]QueryStepView, len(prefixes)),
	}
	for i, p := range prefixes {
		result.Steps[i] = QueryStepView{Prefix: p.String(), Output: outputs[i]}
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s(%s) = %q\n", m.Name, w, result.Output)
	if opts.Verbose {
		for _, s := range result.Steps {
			fmt.Fprintf(formatter.Writer, "  %-20s %q\n", s.Prefix, s.Output)
		}
	}
	return nil
}
