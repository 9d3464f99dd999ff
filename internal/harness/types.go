package harness

import (
	"context"
	"fmt"

	"github.com/roach88/recon/internal/changes"
	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/store"
)

// Phases of a scenario run.
const (
	PhaseSetup = "setup"
	PhaseFlow  = "flow"
)

// Schema is the compiled schema a scenario runs against.
type Schema struct {
	RecordTypes    []*ir.RecordType
	DataManagement *ir.DataManagement
}

// RecordType returns the record type named name.
func (s *Schema) RecordType(name string) (*ir.RecordType, bool) {
	return changes.Types(s.RecordTypes).RecordType(name)
}

// TraceEvent is one journaled remote mutation.
type TraceEvent struct {
	Seq     int    `json:"seq"` // Position in the trace, from 1
	Phase   string `json:"phase"`
	Step    int    `json:"step"`
	Action  string `json:"action"` // Type.operation, e.g. Account.insert
	Record  string `json:"record,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func actionOf(e store.JournalEntry) string {
	return fmt.Sprintf("%s.%s", e.TypeName, e.Operation)
}

// StepOutcome is what one flow step deployed.
type StepOutcome struct {
	Step    int      `json:"step"`
	Applied []string `json:"applied"` // "action name (id)", in change order
	Errors  []string `json:"errors"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace lists every remote mutation, setup included.
	Trace []TraceEvent `json:"trace"`

	// Steps holds one outcome per flow step.
	Steps []StepOutcome `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Steps:  []StepOutcome{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AssertionContext provides store access for state assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}
