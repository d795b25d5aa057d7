package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/loopswap/internal/assets"
	"github.com/roach88/loopswap/internal/instruction"
	"github.com/roach88/loopswap/internal/state"
	"github.com/roach88/loopswap/internal/swaperr"
)

// Scenario is one scripted sequence of invocations plus the state expected
// afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Clock is the start time in unix seconds. Zero means DefaultClock.
	Clock uint64 `yaml:"clock,omitempty"`

	// Verification is the asset verification mode. Empty means standard.
	Verification string `yaml:"verification,omitempty"`

	// Loop is the default loop name for steps and assertions.
	Loop string `yaml:"loop,omitempty"`

	// Assets are minted before the first step.
	Assets []AssetSetup `yaml:"assets,omitempty"`

	// Steps are processed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// AssetSetup mints one asset to its first holder.
type AssetSetup struct {
	Name     string `yaml:"name"`
	Holder   string `yaml:"holder"`
	Supply   uint64 `yaml:"supply,omitempty"`   // default 1
	Decimals uint8  `yaml:"decimals,omitempty"` // default 0
	Label    string `yaml:"label,omitempty"`    // metadata name, default Name
}

// Step is one invocation.
type Step struct {
	// Caller names the submitting party.
	Caller string `yaml:"caller"`

	// Command is the snake_case command name.
	Command string `yaml:"command"`

	// Loop overrides the scenario's default loop.
	Loop string `yaml:"loop,omitempty"`

	// Args are the command fields, as in the versioned wire format.
	Args map[string]any `yaml:"args,omitempty"`

	// Accounts are extra participants (execute_trade_step wants sender
	// and recipient).
	Accounts []string `yaml:"accounts,omitempty"`

	// Advance moves the clock forward by this many seconds first.
	Advance uint64 `yaml:"advance,omitempty"`

	// Format selects the wire format: versioned (default) or legacy.
	Format string `yaml:"format,omitempty"`

	// ExpectError is the expected error code. Empty means the step must
	// succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of step_status, balance, loop_exists, journal_count.
	Type string `yaml:"type"`

	// Loop overrides the scenario's default loop (step_status, loop_exists).
	Loop string `yaml:"loop,omitempty"`

	// Step and Status are used by step_status.
	Step   *int   `yaml:"step,omitempty"`
	Status string `yaml:"status,omitempty"`

	// Asset, Holder and Balance are used by balance. Balance defaults to 1.
	Asset   string  `yaml:"asset,omitempty"`
	Holder  string  `yaml:"holder,omitempty"`
	Balance *uint64 `yaml:"balance,omitempty"`

	// Exists is used by loop_exists.
	Exists *bool `yaml:"exists,omitempty"`

	// Outcome and Count are used by journal_count. An empty outcome counts
	// every entry.
	Outcome string `yaml:"outcome,omitempty"`
	Count   *int   `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStepStatus   = "step_status"
	AssertBalance      = "balance"
	AssertLoopExists   = "loop_exists"
	AssertJournalCount = "journal_count"
)

// Wire format names accepted by Step.Format.
const (
	FormatVersioned = "versioned"
	FormatLegacy    = "legacy"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must not be empty")
	}
	if s.Verification != "" {
		if _, err := assets.ParseMode(s.Verification); err != nil {
			return err
		}
	}

	for i, a := range s.Assets {
		if a.Name == "" || a.Holder == "" {
			return fmt.Errorf("assets[%d]: name and holder are required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, s.Loop); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, s.Loop); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step, defaultLoop string) error {
	if step.Caller == "" {
		return fmt.Errorf("steps[%d]: caller is required", index)
	}
	tag, ok := instruction.ParseTag(step.Command)
	if !ok {
		return fmt.Errorf("steps[%d]: unknown command %q", index, step.Command)
	}
	_, hasTradeID := step.Args["trade_id"]
	namesLoop := step.Loop != "" || defaultLoop != "" || (tag == instruction.TagInitializeTradeLoop && hasTradeID)
	if tag <= instruction.TagCancelTradeLoop && !namesLoop {
		return fmt.Errorf("steps[%d]: loop is required for %s", index, step.Command)
	}
	switch step.Format {
	case "", FormatVersioned, FormatLegacy:
	default:
		return fmt.Errorf("steps[%d]: unknown format %q", index, step.Format)
	}
	if step.ExpectError != "" {
		if _, ok := swaperr.ParseCode(step.ExpectError); !ok {
			return fmt.Errorf("steps[%d]: unknown error code %q", index, step.ExpectError)
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, defaultLoop string) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStepStatus:
		if a.Step == nil {
			return fmt.Errorf("assertions[%d]: step is required for step_status", index)
		}
		if _, ok := state.ParseStepStatus(a.Status); !ok {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
		if a.Loop == "" && defaultLoop == "" {
			return fmt.Errorf("assertions[%d]: loop is required for step_status", index)
		}
	case AssertBalance:
		if a.Asset == "" || a.Holder == "" {
			return fmt.Errorf("assertions[%d]: asset and holder are required for balance", index)
		}
	case AssertLoopExists:
		if a.Exists == nil {
			return fmt.Errorf("assertions[%d]: exists is required for loop_exists", index)
		}
		if a.Loop == "" && defaultLoop == "" {
			return fmt.Errorf("assertions[%d]: loop is required for loop_exists", index)
		}
	case AssertJournalCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for journal_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
