package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/queryir"
)

func lookupQuery() queryir.Select {
	return queryir.Select{
		From:    "Account",
		Columns: []string{"Id", "Name"},
		Filter: queryir.Or{Predicates: []queryir.Predicate{
			queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: "Name", Value: ir.IRString("Acme")},
				queryir.IsNull{Field: "Street"},
			}},
			queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: "Name", Value: ir.IRString(`O'Brien\`)},
			}},
		}},
		OrderBy: "Id",
	}
}

func TestCompile_BackslashDialect(t *testing.T) {
	sql, err := NewCompiler(nil).Compile(lookupQuery())
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT Id, Name FROM Account WHERE (Name = 'Acme' AND Street = null) OR (Name = 'O\'Brien\\') ORDER BY Id`,
		sql)
}

func TestCompile_SQLiteDialect(t *testing.T) {
	sql, err := NewCompiler(SQLiteDialect{}).Compile(lookupQuery())
	require.NoError(t, err)

	assert.Equal(t,
		`SELECT "Id", "Name" FROM "Account" WHERE ("Name" = 'Acme' AND "Street" IS NULL) OR ("Name" = 'O''Brien\') ORDER BY "Id"`,
		sql)
}

func TestCompile_Pointer(t *testing.T) {
	q := lookupQuery()
	sql, err := NewCompiler(nil).Compile(&q)
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM Account")
}

func TestCompile_NoFilter(t *testing.T) {
	sql, err := NewCompiler(nil).Compile(queryir.Select{From: "Account", Columns: []string{"Id"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT Id FROM Account", sql)
}

func TestCompile_EqualsNullValue(t *testing.T) {
	sql, err := NewCompiler(nil).CompilePredicate(queryir.Equals{Field: "City", Value: ir.IRNull{}})
	require.NoError(t, err)
	assert.Equal(t, "City = null", sql)
}

func TestCompile_EmptyJunctions(t *testing.T) {
	c := NewCompiler(nil)

	and, err := c.CompilePredicate(queryir.And{})
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", and)

	or, err := c.CompilePredicate(queryir.Or{})
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", or)
}

func TestCompile_InvalidQuery(t *testing.T) {
	_, err := NewCompiler(nil).Compile(queryir.Select{From: "Account"})
	assert.ErrorContains(t, err, "invalid query")
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		value    ir.IRValue
		expected string
	}{
		{"int", BackslashDialect{}, ir.IRInt(-3), "-3"},
		{"float", BackslashDialect{}, ir.IRFloat(1.5), "1.5"},
		{"bool backslash", BackslashDialect{}, ir.IRBool(true), "true"},
		{"bool sqlite", SQLiteDialect{}, ir.IRBool(false), "0"},
		{"string", BackslashDialect{}, ir.IRString(`a'b\c`), `'a\'b\\c'`},
		{"sqlite string", SQLiteDialect{}, ir.IRString(`a'b\c`), `'a''b\c'`},
		{"decomposed string composed", SQLiteDialect{}, ir.IRString("Cafe\u0301"), "'Caf\u00e9'"},
		{"null", BackslashDialect{}, ir.IRNull{}, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lit, err := NewCompiler(tt.dialect).Literal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, lit)
		})
	}
}

func TestLiteral_RejectsNonScalar(t *testing.T) {
	_, err := NewCompiler(nil).Literal(ir.IRArray{})
	assert.Error(t, err)
}

func TestDialectByName(t *testing.T) {
	d, err := DialectByName("")
	require.NoError(t, err)
	assert.Equal(t, DialectBackslash, d.Name())

	d, err = DialectByName("sqlite")
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, d.Name())

	_, err = DialectByName("oracle")
	assert.Error(t, err)
}
