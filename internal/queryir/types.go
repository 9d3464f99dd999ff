package queryir

import "github.com/roach88/recon/internal/ir"

// Query represents an abstract query in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal_value
//   - IsNull: field has no value
//   - And: all predicates must be true
//   - Or: at least one predicate must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select represents a table access with an explicit, ordered column list.
//
// Semantics:
//
//	SELECT <columns> FROM <from> WHERE <filter> [ORDER BY <order_by>]
//
// Columns are rendered in slice order; the remote id column is expected
// first so every returned row carries an identifier.
type Select struct {
	From    string    // Record type name
	Columns []string  // Remote column names, in order
	Filter  Predicate // WHERE conditions (nil = no filter)
	OrderBy string    // Optional column for a stable row order
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
// A null Value is rendered by compilers the same way as IsNull.
type Equals struct {
	Field string     // Remote column name
	Value ir.IRValue // Literal value
}

func (Equals) predicateNode() {}

// IsNull matches rows where Field is unset.
type IsNull struct {
	Field string
}

func (IsNull) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// Empty Predicates is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction of predicates (at least one must be true).
// Empty Predicates is false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Clause builds the per-instance conjunction of a lookup query. columns and
// values are positionally aligned.
func Clause(columns []string, values []ir.IRValue) Predicate {
	preds := make([]Predicate, len(columns))
	for i, col := range columns {
		if ir.IsNull(values[i]) {
			preds[i] = IsNull{Field: col}
		} else {
			preds[i] = Equals{Field: col, Value: values[i]}
		}
	}
	return And{Predicates: preds}
}
