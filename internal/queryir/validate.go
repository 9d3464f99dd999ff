package queryir

import (
	"errors"
	"fmt"

	"github.com/roach88/recon/internal/ir"
)

// ValidationResult lists every problem found in a query.
type ValidationResult struct {
	// Problems is empty when the query can be compiled.
	Problems []string
}

// Valid reports whether no problems were found.
func (r ValidationResult) Valid() bool {
	return len(r.Problems) == 0
}

// Err joins the problems into one error, or returns nil.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	errs := make([]error, len(r.Problems))
	for i, p := range r.Problems {
		errs[i] = errors.New(p)
	}
	return errors.Join(errs...)
}

// Validate checks that a query is well formed for lookup:
//  1. Select names a source and at least one column, without duplicates
//  2. Predicates reference a field
//  3. Literal values are scalars (no arrays or objects)
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{}
	v.validateQuery(query)
	return ValidationResult{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addProblem("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		v.validateSelect(*query)
	default:
		v.addProblem("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if sel.From == "" {
		v.addProblem("select has no source")
	}
	if len(sel.Columns) == 0 {
		v.addProblem("select on %q has no columns", sel.From)
	}
	seen := make(map[string]bool, len(sel.Columns))
	for _, c := range sel.Columns {
		if c == "" {
			v.addProblem("select on %q has an empty column name", sel.From)
			continue
		}
		if seen[c] {
			v.addProblem("select on %q lists column %q twice", sel.From, c)
		}
		seen[c] = true
	}
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(pred)
	case *Equals:
		v.validateEquals(*pred)
	case IsNull:
		if pred.Field == "" {
			v.addProblem("null comparison has no field")
		}
	case *IsNull:
		v.validatePredicate(*pred)
	case And:
		for _, child := range pred.Predicates {
			v.validatePredicate(child)
		}
	case *And:
		v.validatePredicate(*pred)
	case Or:
		for _, child := range pred.Predicates {
			v.validatePredicate(child)
		}
	case *Or:
		v.validatePredicate(*pred)
	default:
		v.addProblem("unknown predicate type: %T", p)
	}
}

func (v *validator) validateEquals(eq Equals) {
	if eq.Field == "" {
		v.addProblem("comparison has no field")
	}
	switch eq.Value.(type) {
	case ir.IRArray, *ir.IRObject:
		v.addProblem("field %q compared to non-scalar %T", eq.Field, eq.Value)
	}
}
