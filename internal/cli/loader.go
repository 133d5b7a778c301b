package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/lstar/internal/machine"
)

// CLI error codes not raised by the machine loader.
const (
	ErrCodeWriteFailed      = "E007" // File write error
	ErrCodeStore            = "E201" // Run log open/read/write error
	ErrCodeRunNotFound      = "E202" // Unknown run id
	ErrCodeTestFailed       = "E_TEST_FAILED"
	ErrCodeNondeterministic = "E_NONDETERMINISTIC"
)

// loadErrorCode returns the machine load code of err, or E001.
func loadErrorCode(err error) string {
	var loadErr *machine.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return machine.ErrCodeGeneric
}

// loadMachine compiles the definitions at path and picks the machine called
// name. An empty name is allowed when path defines exactly one machine.
func loadMachine(path, name string) (*machine.Machine, error) {
	result, errs := machine.LoadFile(path, machine.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if name != "" {
		return result.Lookup(name)
	}
	if len(result.Machines) == 1 {
		return result.Machines[0], nil
	}
	names := make([]string, len(result.Machines))
	for i, m := range result.Machines {
		names[i] = m.Name
	}
	return nil, &machine.LoadError{
		Code:    machine.ErrCodeNotAMachine,
		Message: fmt.Sprintf("%s defines %d machines (%s); pick one with --machine", path, len(names), strings.Join(names, ", ")),
	}
}

// outputLoadError reports a load failure and returns the command error.
func outputLoadError(f *OutputFormatter, err error) error {
	code := loadErrorCode(err)
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to load machine", err)
}
