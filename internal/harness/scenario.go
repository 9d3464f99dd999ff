package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recon/internal/changes"
	"github.com/roach88/recon/internal/ir"
)

// DefaultIDPrefix prefixes the sequential record identifiers of a run.
const DefaultIDPrefix = "rec-"

// Scenario defines a reconciliation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// IDPrefix prefixes the record identifiers the store assigns.
	// Defaults to DefaultIDPrefix.
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// MaxClauses caps the per-instance clauses of one lookup query.
	// Zero keeps the builder default.
	MaxClauses int `yaml:"max_clauses,omitempty"`

	// Setup changes seed the store. They are assumed to succeed.
	Setup []changes.Entry `yaml:"setup,omitempty"`

	// Flow contains the deploy steps under test.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

func (s *Scenario) idPrefix() string {
	if s.IDPrefix == "" {
		return DefaultIDPrefix
	}
	return s.IDPrefix
}

// FlowStep deploys one change list.
type FlowStep struct {
	// Deploy is the change list, deployed group by group.
	Deploy []changes.Entry `yaml:"deploy"`

	// Expect specifies the expected outcome.
	// If nil, every change must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Applied lists the applied changes as "action name (id)", in order.
	Applied []string `yaml:"applied"`

	// Errors lists one substring per expected error message, in order.
	Errors []string `yaml:"errors"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Check an action appears in the trace
	// - "trace_order": Check actions appear in order
	// - "trace_count": Check an action appears exactly N times
	// - "final_state": Check the one row matching where
	// - "row_count": Check how many rows match where
	Type string `yaml:"type"`

	// Action is Type.operation (used by trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Record is the expected record id (used by trace_contains).
	Record string `yaml:"record,omitempty"`

	// Success filters on the mutation outcome (trace_contains, trace_count).
	Success *bool `yaml:"success,omitempty"`

	// Actions is the expected action order (used by trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Table is the record type to query (used by final_state, row_count).
	Table string `yaml:"table,omitempty"`

	// Where holds column equality filters. A null value matches unset
	// columns.
	Where *ir.IRObject `yaml:"where,omitempty"`

	// Expect contains expected column values (used by final_state).
	// Subset match - only specified columns are validated.
	Expect *ir.IRObject `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences or rows.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertRowCount      = "row_count"
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

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.MaxClauses < 0 {
		return fmt.Errorf("max_clauses must be non-negative")
	}

	for i, entry := range s.Setup {
		if err := validateEntry(entry); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if len(step.Deploy) == 0 {
			return fmt.Errorf("flow[%d]: deploy list is required and must be non-empty", i)
		}
		for j, entry := range step.Deploy {
			if err := validateEntry(entry); err != nil {
				return fmt.Errorf("flow[%d].deploy[%d]: %w", i, j, err)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateEntry(e changes.Entry) error {
	if e.Action == "" {
		return fmt.Errorf("action is required")
	}
	if e.Type == "" {
		return fmt.Errorf("type is required")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if a.Expect == nil || a.Expect.Len() == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertRowCount:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for row_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
