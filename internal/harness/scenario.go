package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/reactor/internal/demo"
)

// Scenario defines one harness run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the starting state. Zero value if omitted.
	Initial demo.Tally `yaml:"initial,omitempty"`

	// DefaultExpiry overrides reactor.DefaultExpiry for this run.
	DefaultExpiry string `yaml:"default_expiry,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Expect is checked after the final flush.
	Expect Expect `yaml:"expect"`
}

// EventSpec names an event and its arguments.
type EventSpec struct {
	Fire string `yaml:"fire"`
	By   int    `yaml:"by,omitempty"`
	ID   string `yaml:"id,omitempty"`
}

// Event builds the demo event.
func (e EventSpec) Event() (demo.Event, error) {
	return demo.NewEvent(e.Fire, e.By, e.ID)
}

// Step is exactly one of: fire an event, fire a command, advance the
// clock, or flush.
type Step struct {
	EventSpec `yaml:",inline"`

	// Command fires a demo.Threshold with this ID.
	Command string     `yaml:"command,omitempty"`
	AtLeast int        `yaml:"at_least,omitempty"`
	Then    *EventSpec `yaml:"then,omitempty"`
	TTL     string     `yaml:"ttl,omitempty"`

	// Advance moves the manual clock forward by a duration.
	Advance string `yaml:"advance,omitempty"`

	// Flush waits for the Core to go idle.
	Flush bool `yaml:"flush,omitempty"`
}

// Step kinds.
const (
	StepFire    = "fire"
	StepCommand = "command"
	StepAdvance = "advance"
	StepFlush   = "flush"
)

// Kind reports which kind of step this is, or "" if none or several are set.
func (s Step) Kind() string {
	kinds := make([]string, 0, 1)
	if s.Fire != "" {
		kinds = append(kinds, StepFire)
	}
	if s.Command != "" {
		kinds = append(kinds, StepCommand)
	}
	if s.Advance != "" {
		kinds = append(kinds, StepAdvance)
	}
	if s.Flush {
		kinds = append(kinds, StepFlush)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Expect is the expected outcome. Nil fields are not checked.
type Expect struct {
	State    *demo.Tally `yaml:"state,omitempty"`
	Pending  *int        `yaml:"pending,omitempty"`
	Executed []string    `yaml:"executed,omitempty"`
	Version  *uint64     `yaml:"version,omitempty"`
}

// LoadScenario reads, validates and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, violates the
// schema or contains unknown fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario validates and parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	// Strict decode catches typos the schema would also reject, with YAML
	// line numbers in the message.
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

// LoadDir loads every *.yaml and *.yml file in dir, sorted by file name.
// It stops at the first file that fails to load.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks what the schema cannot: durations parse and
// events build.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.DefaultExpiry != "" {
		if _, err := time.ParseDuration(s.DefaultExpiry); err != nil {
			return fmt.Errorf("default_expiry: %w", err)
		}
	}

	for i, step := range s.Steps {
		switch step.Kind() {
		case StepFire:
			if _, err := step.EventSpec.Event(); err != nil {
				return fmt.Errorf("steps[%d]: %w", i, err)
			}
		case StepCommand:
			if step.Then != nil {
				if _, err := step.Then.Event(); err != nil {
					return fmt.Errorf("steps[%d].then: %w", i, err)
				}
			}
			if step.TTL != "" {
				if _, err := time.ParseDuration(step.TTL); err != nil {
					return fmt.Errorf("steps[%d].ttl: %w", i, err)
				}
			}
		case StepAdvance:
			if _, err := time.ParseDuration(step.Advance); err != nil {
				return fmt.Errorf("steps[%d].advance: %w", i, err)
			}
		case StepFlush:
		default:
			return fmt.Errorf("steps[%d]: exactly one of fire, command, advance, flush is required", i)
		}
	}
	return nil
}
