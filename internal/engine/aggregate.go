package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/metrics"
)

// DeployOutcome is the report of one Deploy call.
//
// Applied lists the changes that took effect, in change-group order, tagged
// with the action actually performed: an Add that matched an existing
// remote record is reported as a modify. Errors lists one readable message
// per failed change, prefixed by the instance's display name.
type DeployOutcome struct {
	Applied []ir.Change `json:"applied_changes"`
	Errors  []string    `json:"errors"`
}

// HasErrors reports whether any change failed.
func (o *DeployOutcome) HasErrors() bool {
	return len(o.Errors) > 0
}

// fatalOutcome is the outcome of a call aborted by err.
func fatalOutcome(err error) *DeployOutcome {
	return &DeployOutcome{Applied: []ir.Change{}, Errors: []string{err.Error()}}
}

// aggregator collects one result per change of a group and folds them into
// a DeployOutcome in change order.
type aggregator struct {
	typeName string
	changes  []ir.Change
	applied  []*ir.Change
	failures []string
}

func newAggregator(typeName string, changes []ir.Change) *aggregator {
	return &aggregator{
		typeName: typeName,
		changes:  changes,
		applied:  make([]*ir.Change, len(changes)),
		failures: make([]string, len(changes)),
	}
}

// apply records change i as applied with the given action.
func (a *aggregator) apply(i int, action ir.Action) {
	c := a.changes[i]
	applied := ir.Change{Action: action, Before: c.Before, After: c.After}
	if c.Action == ir.ActionAdd && action == ir.ActionModify {
		applied.Before = c.After
	}
	a.applied[i] = &applied
	a.failures[i] = ""
}

// fail records change i as failed with the given messages.
func (a *aggregator) fail(i int, messages ...string) {
	a.applied[i] = nil
	a.failures[i] = formatError(a.changes[i].Data(), messages)
}

// failErr records change i as failed by err.
func (a *aggregator) failErr(i int, err error) {
	a.fail(i, err.Error())
}

// results folds bulk results of the changes at indexes into the aggregate.
// Successful changes are applied with action; failed ones keep the remote
// error messages.
func (a *aggregator) results(indexes []int, results []OperationResult, action ir.Action) {
	for j, res := range results {
		if res.Success {
			a.apply(indexes[j], action)
			continue
		}
		a.fail(indexes[j], res.Errors...)
	}
}

// outcome builds the DeployOutcome and records per-change metrics.
func (a *aggregator) outcome() *DeployOutcome {
	out := &DeployOutcome{Applied: []ir.Change{}, Errors: []string{}}
	for i := range a.changes {
		if a.applied[i] != nil {
			out.Applied = append(out.Applied, *a.applied[i])
			metrics.RecordChange(a.typeName, string(a.changes[i].Action), true)
			continue
		}
		msg := a.failures[i]
		if msg == "" {
			msg = formatError(a.changes[i].Data(), []string{"change was not processed"})
		}
		out.Errors = append(out.Errors, msg)
		metrics.RecordChange(a.typeName, string(a.changes[i].Action), false)
	}
	return out
}

func formatError(inst *ir.Instance, messages []string) string {
	name := "<unknown>"
	if inst != nil {
		name = inst.DisplayName()
	}
	if len(messages) == 0 {
		return fmt.Sprintf("%s: operation failed without an error message", name)
	}
	return fmt.Sprintf("%s: %s", name, strings.Join(messages, "; "))
}
