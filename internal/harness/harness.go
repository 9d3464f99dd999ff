package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/recon/internal/changes"
	"github.com/roach88/recon/internal/engine"
	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/querysql"
	"github.com/roach88/recon/internal/store"
	"github.com/roach88/recon/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios against a private store with sequential identifiers.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	schema  *Schema
	logger  *slog.Logger
	lastSeq int64 // Highest journal sequence already traced
}

// Run executes a scenario against schema and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and materialize every record type
// 2. Deploy the setup changes
// 3. Deploy each flow step and check its expect clause
// 4. Evaluate assertions against the trace and the final tables
func Run(ctx context.Context, scenario *Scenario, schema *Schema) (*Result, error) {
	if schema == nil {
		return nil, fmt.Errorf("scenario %s: no schema", scenario.Name)
	}

	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDs(scenario.idPrefix())))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	for _, rt := range schema.RecordTypes {
		if err := st.EnsureTable(ctx, rt); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	builder := querysql.NewBuilder(querysql.SQLiteDialect{})
	if scenario.MaxClauses > 0 {
		builder.MaxClauses = scenario.MaxClauses
	}

	h := &Harness{
		store:  st,
		engine: engine.New(st, schema.DataManagement, engine.WithBuilder(builder)),
		schema: schema,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSetup deploys the setup changes. Any failed change aborts the run.
func (h *Harness) executeSetup(ctx context.Context, setup []changes.Entry, result *Result) error {
	if len(setup) == 0 {
		return nil
	}
	outcome, err := h.deploy(ctx, setup)
	if err != nil {
		return err
	}
	if len(outcome.Errors) > 0 {
		return fmt.Errorf("setup changes failed: %s", strings.Join(outcome.Errors, "; "))
	}
	if err := h.collectTrace(ctx, PhaseSetup, 0, result); err != nil {
		return err
	}
	h.logger.Info("setup completed", "applied", len(outcome.Applied))
	return nil
}

// executeFlow deploys every flow step and validates its expect clause.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		outcome, err := h.deploy(ctx, step.Deploy)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}
		outcome.Step = i
		result.Steps = append(result.Steps, *outcome)

		if err := h.collectTrace(ctx, PhaseFlow, i, result); err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		for _, msg := range checkExpect(i, step.Expect, outcome) {
			result.AddError(msg)
		}

		h.logger.Info("flow step completed",
			"step", i,
			"applied", len(outcome.Applied),
			"errors", len(outcome.Errors),
		)
	}
	return nil
}

// deploy binds entries and deploys them one (type, action) group at a time.
// A group that fails as a whole contributes its error and the remaining
// groups still run.
func (h *Harness) deploy(ctx context.Context, entries []changes.Entry) (*StepOutcome, error) {
	list, err := changes.Bind(entries, h.schema)
	if err != nil {
		return nil, err
	}

	out := &StepOutcome{Applied: []string{}, Errors: []string{}}
	for _, g := range changes.Partition(list) {
		outcome, err := h.engine.Deploy(ctx, g.Changes)
		if err != nil {
			h.logger.Warn("deploy group failed", "type", g.TypeName, "action", g.Action, "error", err)
		}
		for _, c := range outcome.Applied {
			out.Applied = append(out.Applied, describe(c))
		}
		out.Errors = append(out.Errors, outcome.Errors...)
	}
	return out, nil
}

// describe renders an applied change as "action name (id)".
func describe(c ir.Change) string {
	inst := c.Data()
	return fmt.Sprintf("%s %s (%s)", c.Action, inst.DisplayName(), inst.ID)
}

// collectTrace appends the journal entries written since the last call.
func (h *Harness) collectTrace(ctx context.Context, phase string, step int, result *Result) error {
	entries, err := h.store.Journal(ctx, "")
	if err != nil {
		return err
	}

	var fresh []TraceEvent
	for _, e := range entries {
		if e.Seq <= h.lastSeq {
			continue
		}
		h.lastSeq = e.Seq
		fresh = append(fresh, TraceEvent{
			Phase:   phase,
			Step:    step,
			Action:  actionOf(e),
			Record:  e.RecordID,
			Success: e.Success,
			Error:   e.Error,
		})
	}

	// Insert and update calls of one group race; journal order within a
	// step is not stable.
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Action < fresh[j].Action
	})
	for _, ev := range fresh {
		ev.Seq = len(result.Trace) + 1
		result.Trace = append(result.Trace, ev)
	}
	return nil
}

// checkExpect compares a step outcome with its expect clause.
func checkExpect(step int, expect *ExpectClause, got *StepOutcome) []string {
	var errs []string
	if expect == nil {
		for _, e := range got.Errors {
			errs = append(errs, fmt.Sprintf("flow[%d]: unexpected error: %s", step, e))
		}
		return errs
	}

	if !slices.Equal(expect.Applied, got.Applied) {
		errs = append(errs, fmt.Sprintf("flow[%d]: applied = %q, expected %q", step, got.Applied, expect.Applied))
	}

	if len(expect.Errors) != len(got.Errors) {
		errs = append(errs, fmt.Sprintf("flow[%d]: %d error(s) %q, expected %d", step, len(got.Errors), got.Errors, len(expect.Errors)))
		return errs
	}
	for i, want := range expect.Errors {
		if !strings.Contains(got.Errors[i], want) {
			errs = append(errs, fmt.Sprintf("flow[%d]: error %d = %q, expected it to contain %q", step, i, got.Errors[i], want))
		}
	}
	return errs
}
