package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/machine"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Emit     string // cue | dot | json
	Output   string // output directory
	Minimize bool
}

// CompiledMachine describes one rendered machine.
type CompiledMachine struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	States      int    `json:"states"`
	Fingerprint string `json:"fingerprint"`
	File        string `json:"file,omitempty"`
}

// CompilationResult lists the rendered machines.
type CompilationResult struct {
	Emit     string            `json:"emit"`
	Machines []CompiledMachine `json:"machines"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <machine.cue|dir>",
		Short: "Render machine definitions in canonical form",
		Long: `Compile CUE machine definitions and render each machine as canonical
CUE (states renamed s0, s1, ... in id order), Graphviz DOT or a JSON
snapshot.

With --minimize each machine is minimised first.

Without --output the renderings are written to stdout; with it, one file
per machine is written to the directory.

Examples:
  lstar compile machines/
  lstar compile machines/ --emit dot -o out/`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Emit, "emit", EmitCUE, "rendering (cue|dot|json)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&opts.Minimize, "minimize", false, "minimise each machine before rendering")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	ext, ok := map[string]string{EmitCUE: ".cue", EmitDOT: ".dot", EmitJSON: ".json"}[opts.Emit]
	if !ok {
		_ = formatter.Error(machine.ErrCodeGeneric, fmt.Sprintf("unknown --emit %q (want cue, dot or json)", opts.Emit), nil)
		return NewExitError(ExitCommandError, "invalid --emit")
	}

	loaded, loadErrors := machine.LoadFile(path, machine.LoadModeFailFast)
	if len(loadErrors) > 0 {
		return outputLoadError(formatter, loadErrors[0])
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, path)

	if opts.Output != "" {
		if err := os.MkdirAll(opts.Output, 0o755); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to create output directory", err)
		}
	}

	result := CompilationResult{Emit: opts.Emit, Machines: []CompiledMachine{}}
	for _, m := range loaded.Machines {
		formatter.VerboseLog("Rendering machine: %s", m.Name)
		a := m.Automaton
		if opts.Minimize {
			a = automaton.Minimize(a)
		}
		data, err := renderHypothesis(m.Name, a, opts.Emit)
		if err != nil {
			_ = formatter.Error(machine.ErrCodeGeneric, fmt.Sprintf("%s: %v", m.Name, err), nil)
			return WrapExitError(ExitCommandError, "failed to render machine", err)
		}

		cm := CompiledMachine{
			Name:        m.Name,
			Kind:        a.Kind().String(),
			States:      a.NumStates(),
			Fingerprint: a.Fingerprint(),
		}
		switch {
		case opts.Output != "":
			cm.File = filepath.Join(opts.Output, m.Name+ext)
			if err := os.WriteFile(cm.File, data, 0o644); err != nil {
				_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to write output file", err)
			}
		case !formatter.JSON():
			if _, err := formatter.Writer.Write(data); err != nil {
				return err
			}
		}
		result.Machines = append(result.Machines, cm)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	if opts.Output != "" {
		for _, cm := range result.Machines {
			fmt.Fprintf(formatter.Writer, "✓ %s -> %s\n", cm.Name, cm.File)
		}
	}
	return nil
}
