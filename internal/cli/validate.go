package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/machine"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Machines []MachineSummary  `json:"machines,omitempty"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
}

// MachineSummary describes one compiled machine.
type MachineSummary struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Alphabet []string `json:"alphabet"`
	States   int      `json:"states"`

	// MinimalStates is the state count after minimisation. Learning a
	// machine always yields this many states.
	MinimalStates int `json:"minimal_states"`
}

// ValidationIssue is one problem found in a definition.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <machine.cue|dir>",
		Short: "Check machine definitions without learning",
		Long: `Compile CUE machine definitions and report every problem found:
unknown kinds, duplicate symbols, missing outputs, dangling targets and
incomplete transition functions.

Exit codes:
  0 - All machines valid
  1 - One or more definitions are invalid
  2 - Command error (path not found, CUE syntax error)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, loadErrors := machine.LoadFile(path, machine.LoadModeCollectAll)

	// Nothing compiled at all: the path or the CUE itself is broken.
	if result == nil && len(loadErrors) > 0 {
		return outputLoadError(formatter, loadErrors[0])
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, path)

	var summaries []MachineSummary
	for _, m := range result.Machines {
		formatter.VerboseLog("Compiled machine: %s", m.Name)
		summaries = append(summaries, summarizeMachine(m))
	}

	if len(loadErrors) > 0 {
		issues := make([]ValidationIssue, len(loadErrors))
		for i, err := range loadErrors {
			issues[i] = toIssue(err)
		}
		return outputValidationErrors(formatter, summaries, issues)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Machines: summaries})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d machine(s) valid\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(formatter.Writer, "  %s (%s, %d states, alphabet %v)\n", s.Name, s.Kind, s.States, s.Alphabet)
		if s.MinimalStates < s.States {
			fmt.Fprintf(formatter.Writer, "    not minimal: %d states after minimisation\n", s.MinimalStates)
		}
	}
	return nil
}

func summarizeMachine(m *machine.Machine) MachineSummary {
	return MachineSummary{
		Name:     m.Name,
		Kind:     m.Automaton.Kind().String(),
		Alphabet: m.Automaton.Alphabet().Symbols(),
		States:   m.Automaton.NumStates(),

		MinimalStates: automaton.Minimize(m.Automaton).NumStates(),
	}
}

func toIssue(err error) ValidationIssue {
	var loadErr *machine.LoadError
	if errors.As(err, &loadErr) {
		issue := ValidationIssue{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			issue.File = loadErr.Pos.Filename()
			issue.Line = loadErr.Pos.Line()
		}
		return issue
	}
	return ValidationIssue{Code: machine.ErrCodeGeneric, Message: err.Error()}
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, machines []MachineSummary, issues []ValidationIssue) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))

	if formatter.JSON() {
		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Machines: machines, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return failure
}
