package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/incr/internal/changes"
	"github.com/roach88/incr/internal/config"
	"github.com/roach88/incr/internal/work"
)

// Scenario is one replayable change scenario. Exactly one of Unit and
// Diff is set.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Unit is run once per step.
	Unit *config.UnitDecl `yaml:"unit,omitempty"`

	// Cache enables a build cache: "" (none) or "memory".
	Cache string `yaml:"cache,omitempty"`

	// History selects the history store: "memory" (default) or "sqlite".
	History string `yaml:"history,omitempty"`

	Steps []Step `yaml:"steps,omitempty"`

	Diff *DiffCase `yaml:"diff,omitempty"`
}

// Step edits the workspace and runs the unit once.
type Step struct {
	// Write maps workspace paths to file contents.
	Write map[string]string `yaml:"write,omitempty"`

	// Remove lists workspace paths (files or directories) to delete.
	Remove []string `yaml:"remove,omitempty"`

	// Forget drops the unit's history before running.
	Forget bool `yaml:"forget,omitempty"`

	// Version, when set, replaces the unit's version.
	Version string `yaml:"version,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists what a step must observe. Unset fields are not checked.
type Expect struct {
	Outcome     string            `yaml:"outcome,omitempty"`
	Incremental *bool             `yaml:"incremental,omitempty"`
	Reasons     []string          `yaml:"reasons,omitempty"`
	Changes     []ExpectedChange  `yaml:"changes,omitempty"`
	NoChanges   bool              `yaml:"no_changes,omitempty"`
	Files       map[string]string `yaml:"files,omitempty"`
	Absent      []string          `yaml:"absent,omitempty"`

	// Error is a substring of the expected execution error.
	Error string `yaml:"error,omitempty"`
}

// ExpectedChange is a change record as written in YAML.
type ExpectedChange struct {
	Property string `yaml:"property"`
	Path     string `yaml:"path"`
	Kind     string `yaml:"kind"`
}

// DiffCase compares two snapshots given as property -> path -> signature.
type DiffCase struct {
	Previous map[string]map[string]string `yaml:"previous"`
	Current  map[string]map[string]string `yaml:"current"`

	// Output switches to output semantics: title "Output" and, unless
	// IncludeAdded is set, added files are not reported.
	Output       bool `yaml:"output,omitempty"`
	IncludeAdded bool `yaml:"include_added,omitempty"`

	// Incremental restricts the report to the other properties.
	Incremental []string `yaml:"incremental,omitempty"`

	Expect  []ExpectedChange `yaml:"expect"`
	Reasons []string         `yaml:"reasons,omitempty"`
}

// Store kinds.
const (
	HistoryMemory = "memory"
	HistorySQLite = "sqlite"
	CacheMemory   = "memory"
)

// LoadScenario reads, parses and validates a scenario YAML file. Unknown
// fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Unit == nil && s.Diff == nil:
		return fmt.Errorf("one of unit or diff is required")
	case s.Unit != nil && s.Diff != nil:
		return fmt.Errorf("unit and diff are exclusive")
	case s.Diff != nil:
		return validateExpectedChanges("diff.expect", s.Diff.Expect)
	}

	wf := config.Workfile{Units: []config.UnitDecl{*s.Unit}}
	if err := wf.Validate(); err != nil {
		return fmt.Errorf("unit: %w", err)
	}
	switch s.History {
	case "", HistoryMemory, HistorySQLite:
	default:
		return fmt.Errorf("unknown history %q", s.History)
	}
	switch s.Cache {
	case "", CacheMemory:
	default:
		return fmt.Errorf("unknown cache %q", s.Cache)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if step.Expect == nil {
			continue
		}
		if step.Expect.Outcome != "" && !knownOutcome(step.Expect.Outcome) {
			return fmt.Errorf("steps[%d].expect: unknown outcome %q", i, step.Expect.Outcome)
		}
		if step.Expect.NoChanges && len(step.Expect.Changes) > 0 {
			return fmt.Errorf("steps[%d].expect: changes and no_changes are exclusive", i)
		}
		if err := validateExpectedChanges(fmt.Sprintf("steps[%d].expect.changes", i), step.Expect.Changes); err != nil {
			return err
		}
	}
	return nil
}

func validateExpectedChanges(where string, expected []ExpectedChange) error {
	for i, c := range expected {
		if c.Property == "" || c.Path == "" {
			return fmt.Errorf("%s[%d]: property and path are required", where, i)
		}
		if _, err := parseKind(c.Kind); err != nil {
			return fmt.Errorf("%s[%d]: %w", where, i, err)
		}
	}
	return nil
}

func parseKind(s string) (changes.ChangeKind, error) {
	for _, k := range []changes.ChangeKind{changes.Added, changes.Removed, changes.Modified} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown change kind %q", s)
}

// FailedOutcome is the trace outcome of a step whose execution failed.
const FailedOutcome = "FAILED"

func knownOutcome(o string) bool {
	switch work.ExecutionOutcome(o) {
	case work.UpToDate, work.FromCache, work.ExecutedIncrementally, work.ExecutedNonIncrementally:
		return true
	}
	return o == FailedOutcome
}
