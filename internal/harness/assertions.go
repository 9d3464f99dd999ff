package harness

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/queryir"
	"github.com/roach88/recon/internal/querysql"
	"github.com/roach88/recon/internal/remote"
	"github.com/roach88/recon/internal/store"
)

// stateCompiler renders state assertions for the SQLite store. Identifiers
// are quoted and literals escaped by the dialect.
var stateCompiler = querysql.NewCompiler(querysql.SQLiteDialect{})

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			status := "ok"
			if !event.Success {
				status = "failed: " + event.Error
			}
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.Seq, event.Action, event.Record, status)
		}
	}

	return buf.String()
}

// matchEvent reports whether event satisfies the action, record and
// success filters of assertion.
func matchEvent(event TraceEvent, assertion Assertion) bool {
	if event.Action != assertion.Action {
		return false
	}
	if assertion.Record != "" && event.Record != assertion.Record {
		return false
	}
	if assertion.Success != nil && event.Success != *assertion.Success {
		return false
	}
	return true
}

func describeFilter(assertion Assertion) string {
	desc := assertion.Action
	if assertion.Record != "" {
		desc += " on " + assertion.Record
	}
	if assertion.Success != nil {
		desc += fmt.Sprintf(" with success=%t", *assertion.Success)
	}
	return desc
}

// assertTraceContains checks that some event matches the assertion.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchEvent(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeFilter(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected action
	positions := make(map[string]int)

	for i, event := range trace {
		for _, expectedAction := range assertion.Actions {
			if event.Action == expectedAction && positions[expectedAction] == 0 {
				positions[expectedAction] = i + 1 // 1-indexed for readability
			}
		}
	}

	// Step 2: Verify all actions found
	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchEvent(event, assertion) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, describeFilter(assertion)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// stateQuery compiles the lookup of the rows matching where. The id column
// is always selected, followed by the expected columns.
func stateQuery(table string, where, expect *ir.IRObject) (string, error) {
	columns := []string{ir.IDField}
	for _, key := range expect.Keys() {
		if key != ir.IDField {
			columns = append(columns, key)
		}
	}

	var filter queryir.Predicate
	if where.Len() > 0 {
		keys := where.Keys()
		values := make([]ir.IRValue, len(keys))
		for i, key := range keys {
			values[i], _ = where.Get(key)
		}
		filter = queryir.Clause(keys, values)
	}

	return stateCompiler.Compile(queryir.Select{
		From:    table,
		Columns: columns,
		Filter:  filter,
		OrderBy: ir.IDField,
	})
}

func queryState(ctx context.Context, st *store.Store, assertion Assertion) ([]remote.Record, error) {
	query, err := stateQuery(assertion.Table, assertion.Where, assertion.Expect)
	if err != nil {
		return nil, err
	}
	return st.Query(ctx, query)
}

// assertFinalState checks that exactly one row matches where and that it
// carries the expected values (subset semantics).
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	rows, err := queryState(ctx, st, assertion)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	whereDesc := formatWhereClause(assertion.Where)
	switch len(rows) {
	case 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, whereDesc),
			Actual:   "row not found",
		}
	case 1:
	default:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, whereDesc),
			Actual:   fmt.Sprintf("%d rows matched (assertion is ambiguous)", len(rows)),
		}
	}

	row := rows[0]
	for _, key := range assertion.Expect.Keys() {
		expectedValue, _ := assertion.Expect.Get(key)
		actualValue := row.Columns[key]
		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("column %q = %s", key, formatValue(expectedValue)),
				Actual:   fmt.Sprintf("column %q = %v (type %T) in row %s", key, actualValue, actualValue, row.ID),
			}
		}
	}

	return nil
}

// assertRowCount checks how many rows match where.
func assertRowCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	rows, err := queryState(ctx, st, assertion)
	if err != nil {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if len(rows) != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d row(s) in %s where %s", assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d row(s)", len(rows)),
		}
	}
	return nil
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where *ir.IRObject) string {
	if where.Len() == 0 {
		return "(no conditions)"
	}

	parts := make([]string, 0, where.Len())
	for _, k := range where.Keys() {
		v, _ := where.Get(k)
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(v)))
	}
	return strings.Join(parts, " AND ")
}

func formatValue(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// stateValuesEqual compares an expected value with a raw column value.
// Both sides are compared as canonical JSON after coercing the column value
// to its IR form, so an integral NUMERIC equals an integer literal.
func stateValuesEqual(expected ir.IRValue, actual any) bool {
	actualIR, err := ir.FromRaw(actual)
	if err != nil {
		return false
	}
	want, err := ir.MarshalCanonical(expected)
	if err != nil {
		return false
	}
	got, err := ir.MarshalCanonical(actualIR)
	if err != nil {
		return false
	}
	return bytes.Equal(want, got)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState, AssertRowCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertFinalState {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			} else {
				err = assertRowCount(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
