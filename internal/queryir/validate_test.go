package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/recon/internal/ir"
)

func TestValidate_WellFormedLookup(t *testing.T) {
	q := Select{
		From:    "Account",
		Columns: []string{"Id", "Name", "Street"},
		Filter: Or{Predicates: []Predicate{
			And{Predicates: []Predicate{
				Equals{Field: "Name", Value: ir.IRString("Acme")},
				IsNull{Field: "Street"},
			}},
		}},
	}

	result := Validate(q)
	assert.True(t, result.Valid(), "problems: %v", result.Problems)
	assert.NoError(t, result.Err())
}

func TestValidate_PointerVariants(t *testing.T) {
	q := &Select{
		From:    "Account",
		Columns: []string{"Id"},
		Filter:  &Or{Predicates: []Predicate{&And{Predicates: []Predicate{&Equals{Field: "Id", Value: ir.IRString("1")}, &IsNull{Field: "Name"}}}}},
	}

	assert.True(t, Validate(q).Valid())
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		problem string
	}{
		{"nil query", nil, "nil query"},
		{"no source", Select{Columns: []string{"Id"}}, "select has no source"},
		{"no columns", Select{From: "Account"}, "has no columns"},
		{"duplicate column", Select{From: "Account", Columns: []string{"Id", "Id"}}, "lists column \"Id\" twice"},
		{
			"object literal",
			Select{From: "Account", Columns: []string{"Id"}, Filter: Equals{Field: "Name", Value: ir.NewIRObject()}},
			"compared to non-scalar",
		},
		{
			"null without field",
			Select{From: "Account", Columns: []string{"Id"}, Filter: And{Predicates: []Predicate{IsNull{}}}},
			"null comparison has no field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.query)
			assert.False(t, result.Valid())
			assert.ErrorContains(t, result.Err(), tt.problem)
		})
	}
}

func TestClause_NullBecomesIsNull(t *testing.T) {
	pred := Clause([]string{"Name", "Street"}, []ir.IRValue{ir.IRString("Acme"), ir.IRNull{}})

	assert.Equal(t, And{Predicates: []Predicate{
		Equals{Field: "Name", Value: ir.IRString("Acme")},
		IsNull{Field: "Street"},
	}}, pred)
}
