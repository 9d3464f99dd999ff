// Package remote defines the contract between the reconciliation engine and
// the remote record store it reconciles against.
//
// The engine never talks to a concrete store. Anything that can run a
// lookup query and accept positionally aligned bulk mutations satisfies
// Client; internal/store provides a SQLite-backed implementation.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// Operation is a bulk mutation kind.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Record is one row exchanged with the remote store: its identifier plus a
// flat mapping of column name to raw value (string, int64, float64, bool or
// nil).
//
// ID is empty for insert payloads. Rows returned by Query carry the id both
// in ID and in Columns["Id"].
type Record struct {
	ID      string
	Columns map[string]any
}

// Result is the outcome of one record in a bulk call.
type Result struct {
	Success bool
	ID      string   // Assigned identifier (insert) or the targeted one
	Errors  []string // Remote validation or conflict messages
}

// Client is the remote store collaborator.
//
// Query may paginate internally; the returned slice is the full result.
// BulkOperation returns exactly one Result per submitted record, in
// submission order. A non-nil error from either method is a transport
// failure that applies to the whole call.
type Client interface {
	Query(ctx context.Context, query string) ([]Record, error)
	BulkOperation(ctx context.Context, typeName string, op Operation, records []Record) ([]Result, error)
}

// ErrMisaligned marks a bulk call whose results are not one per record.
var ErrMisaligned = errors.New("bulk results misaligned")

// CheckAligned returns an error wrapping ErrMisaligned unless results has
// one entry per record.
func CheckAligned(records []Record, results []Result) error {
	if len(records) != len(results) {
		return fmt.Errorf("%w: bulk call returned %d results for %d records", ErrMisaligned, len(results), len(records))
	}
	return nil
}
