package machine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled while loading definitions.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error codes shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeKind        = "E101" // Unknown machine kind
	ErrCodeAlphabet    = "E102" // Missing, empty or duplicate alphabet
	ErrCodeStates      = "E103" // Missing states or incomplete transitions
	ErrCodeInitial     = "E104" // Missing or unknown initial state
	ErrCodeOutput      = "E105" // Missing or ill-typed output
	ErrCodeTransition  = "E106" // Unknown symbol or target
	ErrCodeNoMachines  = "E107" // No machine definitions
	ErrCodeNotAMachine = "E108" // Requested name is not defined
)

// LoadResult contains the machines compiled from a directory or file.
type LoadResult struct {
	Machines  []*Machine
	CUEValue  cue.Value
	FileCount int
}

// Lookup returns the machine with the given name.
func (r *LoadResult) Lookup(name string) (*Machine, error) {
	for _, m := range r.Machines {
		if m.Name == name {
			return m, nil
		}
	}
	names := make([]string, len(r.Machines))
	for i, m := range r.Machines {
		names[i] = m.Name
	}
	return nil, &LoadError{Code: ErrCodeNotAMachine, Message: fmt.Sprintf("machine %q not found (have %v)", name, names)}
}

// LoadError represents an error that occurred while loading definitions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDir loads every machine defined by the CUE package in dir.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("machines directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing machines directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, loadErr := buildInstance([]string{"."}, &load.Config{Dir: dir})
	if loadErr != nil {
		return nil, []error{loadErr}
	}
	return compileAll(value, len(cueFiles), mode)
}

// LoadFile loads every machine defined in a single CUE file. A directory
// path is handed to LoadDir.
func LoadFile(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("machine file not found: %s", path)}}
	}
	if info.IsDir() {
		return LoadDir(path, mode)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: err.Error()}}
	}
	value, loadErr := buildInstance([]string{filepath.Base(abs)}, &load.Config{Dir: filepath.Dir(abs)})
	if loadErr != nil {
		return nil, []error{loadErr}
	}
	return compileAll(value, 1, mode)
}

// CompileString compiles machines from CUE source. filename is used in
// error positions.
func CompileString(src, filename string) (*LoadResult, []error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}
	return compileAll(value, 1, LoadModeCollectAll)
}

func buildInstance(args []string, cfg *load.Config) (cue.Value, *LoadError) {
	ctx := cuecontext.New()
	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return value, nil
}

func compileAll(value cue.Value, fileCount int, mode LoadMode) (*LoadResult, []error) {
	var errs []error
	result := &LoadResult{CUEValue: value, FileCount: fileCount}

	machinesVal := value.LookupPath(cue.ParsePath("machine"))
	if machinesVal.Exists() {
		iter, err := machinesVal.Fields()
		if err != nil {
			return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating machines: %v", err)}}
		}
		for iter.Next() {
			m, err := Compile(iter.Value())
			if err != nil {
				errs = append(errs, convertCompileError(err, "machine."+iter.Label()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Machines = append(result.Machines, m)
		}
	}

	if len(result.Machines) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoMachines, Message: "no machines found"})
	}
	sort.SliceStable(result.Machines, func(i, j int) bool { return result.Machines[i].Name < result.Machines[j].Name })
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, context string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compile error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "kind":
		return ErrCodeKind
	case field == "alphabet":
		return ErrCodeAlphabet
	case field == "initial":
		return ErrCodeInitial
	case field == "states":
		return ErrCodeStates
	case strings.HasSuffix(field, ".output"):
		return ErrCodeOutput
	case strings.Contains(field, ".on"):
		return ErrCodeTransition
	case strings.HasPrefix(field, "states."):
		return ErrCodeStates
	default:
		return ErrCodeGeneric
	}
}
