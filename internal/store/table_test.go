package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ir"
)

func TestEnsureTable_CreatesColumns(t *testing.T) {
	s := createTestStore(t)
	createAccountTable(t, s)

	assert.Equal(t,
		[]string{"Id", "Name", "Code__c", "Active", "Street", "City"},
		tableColumnNames(t, s, "Account"))

	var columns string
	require.NoError(t, s.db.QueryRow("SELECT columns FROM record_types WHERE name = 'Account'").Scan(&columns))
	assert.Equal(t, `["Id","Name","Code__c","Active","Street","City"]`, columns)
}

func TestEnsureTable_Idempotent(t *testing.T) {
	s := createTestStore(t)
	createAccountTable(t, s)
	createAccountTable(t, s)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM record_types").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestEnsureTable_AddsNewColumns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createAccountTable(t, s)

	rt := accountType()
	rt.Fields = append(rt.Fields, &ir.PrimitiveField{Name: "Rating", Kind: ir.KindNumber, Createable: true})
	require.NoError(t, s.EnsureTable(ctx, rt))

	assert.Equal(t,
		[]string{"Id", "Name", "Code__c", "Active", "Street", "City", "Rating"},
		tableColumnNames(t, s, "Account"))
}

func TestEnsureTable_QuotesNames(t *testing.T) {
	s := createTestStore(t)
	rt := &ir.RecordType{Name: `Odd "Type"`, Fields: []ir.Field{
		&ir.PrimitiveField{Name: "Id", Kind: ir.KindString},
		&ir.PrimitiveField{Name: "select", Kind: ir.KindString},
	}}
	require.NoError(t, s.EnsureTable(context.Background(), rt))

	assert.Equal(t, []string{"Id", "select"}, tableColumnNames(t, s, `Odd "Type"`))
}
