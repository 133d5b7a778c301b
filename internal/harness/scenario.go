package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lstar/internal/learner"
)

// Scenario defines one learning run and what it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Machine is the CUE file or directory holding the target definition.
	// Relative paths are resolved against the scenario file's directory.
	Machine string `yaml:"machine"`

	// Target names the machine to learn within Machine.
	Target string `yaml:"target"`

	Learner     LearnerConfig     `yaml:"learner"`
	Equivalence EquivalenceConfig `yaml:"equivalence"`

	// Assertions validate the learned hypothesis and the run.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "states": the hypothesis has exactly Count states
	// - "rounds": learning took exactly Count rounds
	// - "max_rounds": learning took at most Count rounds
	// - "max_queries": at most Count distinct membership queries
	// - "equivalent": the hypothesis is equivalent to the target
	// - "output": the hypothesis outputs Expect on Input
	// - "error": learning failed with error code Code
	Type string `yaml:"type"`

	Count  int      `yaml:"count,omitempty"`
	Input  []string `yaml:"input,omitempty"`
	Expect string   `yaml:"expect,omitempty"`
	Code   string   `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertStates     = "states"
	AssertRounds     = "rounds"
	AssertMaxRounds  = "max_rounds"
	AssertMaxQueries = "max_queries"
	AssertEquivalent = "equivalent"
	AssertOutput     = "output"
	AssertError      = "error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The machine path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the machine path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Machine != "" && !filepath.IsAbs(scenario.Machine) && basePath != "" {
		scenario.Machine = filepath.Join(basePath, scenario.Machine)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ext := filepath.Ext(path); !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Machine == "" {
		return fmt.Errorf("machine is required")
	}
	if s.Target == "" {
		return fmt.Errorf("target is required")
	}
	if s.Learner.MaxRounds < 0 {
		return fmt.Errorf("learner.max_rounds must be non-negative")
	}

	switch strings.ToLower(s.Equivalence.Name()) {
	case EquivalenceExact:
	case EquivalenceRandom:
		if s.Equivalence.Seed == 0 {
			return fmt.Errorf("equivalence.seed is required for random equivalence")
		}
	case EquivalenceScripted:
		if len(s.Equivalence.Counterexamples) == 0 {
			return fmt.Errorf("equivalence.counterexamples is required for scripted equivalence")
		}
	default:
		return fmt.Errorf("unknown equivalence type %q", s.Equivalence.Type)
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("at least one assertion is required")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStates, AssertRounds, AssertMaxRounds, AssertMaxQueries:
		if a.Count <= 0 {
			return fmt.Errorf("assertions[%d]: count must be positive for %s", index, a.Type)
		}
	case AssertEquivalent:
	case AssertOutput:
		if a.Input == nil {
			return fmt.Errorf("assertions[%d]: input is required for output", index)
		}
	case AssertError:
		if !knownCode(a.Code) {
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Code)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func knownCode(code string) bool {
	switch learner.ErrorCode(code) {
	case learner.ErrCodeInvalidConfig,
		learner.ErrCodeNotCounterexample,
		learner.ErrCodeNoProgress,
		learner.ErrCodeInvalidSelection,
		learner.ErrCodeWrongPhase,
		learner.ErrCodeRoundLimit:
		return true
	}
	return false
}
