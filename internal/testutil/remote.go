package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/recon/internal/remote"
)

// BulkCall records one BulkOperation call made against a FakeClient.
type BulkCall struct {
	TypeName string
	Op       remote.Operation
	Records  []remote.Record
}

// FakeClient is an in-memory remote.Client.
//
// It keeps one table of rows per record type. Query does not evaluate the
// WHERE clause: it returns every row of the type named after FROM, ordered
// by id, which is a valid (maximal) over-fetch. Bulk calls mutate the
// tables and are recorded for assertions.
type FakeClient struct {
	mu     sync.Mutex
	ids    *SequentialIDs
	tables map[string]map[string]map[string]any

	queries []string
	calls   []BulkCall

	// QueryErr and BulkErr, when set, fail the respective call at the
	// transport level.
	QueryErr error
	BulkErr  error

	// Reject, when set, is consulted per submitted record; a non-empty
	// message fails that record without touching the table.
	Reject func(op remote.Operation, index int, rec remote.Record) string

	// Truncate drops the last result of every bulk call to simulate a
	// misaligned response.
	Truncate bool
}

// NewFakeClient creates an empty fake store assigning identifiers from ids.
// A nil ids uses NewSequentialIDs("id-").
func NewFakeClient(ids *SequentialIDs) *FakeClient {
	if ids == nil {
		ids = NewSequentialIDs("id-")
	}
	return &FakeClient{ids: ids, tables: make(map[string]map[string]map[string]any)}
}

// Seed stores a row under id and returns id.
func (c *FakeClient) Seed(typeName, id string, columns map[string]any) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	row := copyColumns(columns)
	row["Id"] = id
	c.table(typeName)[id] = row
	return id
}

// Rows returns a copy of the rows of typeName ordered by id.
func (c *FakeClient) Rows(typeName string) []remote.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows(typeName)
}

// Queries returns the lookup queries received so far.
func (c *FakeClient) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queries...)
}

// Calls returns the bulk calls received so far, sorted by operation so
// concurrent insert and update calls compare deterministically.
func (c *FakeClient) Calls() []BulkCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]BulkCall(nil), c.calls...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}

// CallsFor returns the bulk calls of one operation.
func (c *FakeClient) CallsFor(op remote.Operation) []BulkCall {
	var out []BulkCall
	for _, call := range c.Calls() {
		if call.Op == op {
			out = append(out, call)
		}
	}
	return out
}

// Query implements remote.Client.
func (c *FakeClient) Query(ctx context.Context, query string) ([]remote.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	if c.QueryErr != nil {
		return nil, c.QueryErr
	}
	typeName, err := fromClause(query)
	if err != nil {
		return nil, err
	}
	return c.rows(typeName), nil
}

// BulkOperation implements remote.Client.
func (c *FakeClient) BulkOperation(ctx context.Context, typeName string, op remote.Operation, records []remote.Record) ([]remote.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	submitted := make([]remote.Record, len(records))
	for i, rec := range records {
		submitted[i] = remote.Record{ID: rec.ID, Columns: copyColumns(rec.Columns)}
	}
	c.calls = append(c.calls, BulkCall{TypeName: typeName, Op: op, Records: submitted})
	if c.BulkErr != nil {
		return nil, c.BulkErr
	}

	table := c.table(typeName)
	results := make([]remote.Result, len(records))
	for i, rec := range records {
		if c.Reject != nil {
			if msg := c.Reject(op, i, rec); msg != "" {
				results[i] = remote.Result{Errors: []string{msg}}
				continue
			}
		}
		switch op {
		case remote.OpInsert:
			id := c.ids.Generate()
			row := copyColumns(rec.Columns)
			row["Id"] = id
			table[id] = row
			results[i] = remote.Result{Success: true, ID: id}
		case remote.OpUpdate:
			row, ok := table[rec.ID]
			if !ok {
				results[i] = remote.Result{ID: rec.ID, Errors: []string{"entity is deleted"}}
				continue
			}
			for k, v := range rec.Columns {
				row[k] = v
			}
			results[i] = remote.Result{Success: true, ID: rec.ID}
		case remote.OpDelete:
			if _, ok := table[rec.ID]; !ok {
				results[i] = remote.Result{ID: rec.ID, Errors: []string{"entity is deleted"}}
				continue
			}
			delete(table, rec.ID)
			results[i] = remote.Result{Success: true, ID: rec.ID}
		default:
			return nil, fmt.Errorf("unknown operation %q", op)
		}
	}
	if c.Truncate && len(results) > 0 {
		results = results[:len(results)-1]
	}
	return results, nil
}

func (c *FakeClient) table(typeName string) map[string]map[string]any {
	t, ok := c.tables[typeName]
	if !ok {
		t = make(map[string]map[string]any)
		c.tables[typeName] = t
	}
	return t
}

func (c *FakeClient) rows(typeName string) []remote.Record {
	table := c.tables[typeName]
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]remote.Record, len(ids))
	for i, id := range ids {
		out[i] = remote.Record{ID: id, Columns: copyColumns(table[id])}
	}
	return out
}

// fromClause extracts the record type name following FROM.
func fromClause(query string) (string, error) {
	_, rest, ok := strings.Cut(query, " FROM ")
	if !ok {
		return "", fmt.Errorf("query has no FROM clause: %q", query)
	}
	name, _, _ := strings.Cut(rest, " ")
	return strings.Trim(name, `"`), nil
}

func copyColumns(columns map[string]any) map[string]any {
	out := make(map[string]any, len(columns))
	for k, v := range columns {
		out[k] = v
	}
	return out
}
