package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/testutil"
)

// createTestStore creates a new file-backed store with sequential ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDs("acc-")))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createAccountTable materializes accountType in s.
func createAccountTable(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.EnsureTable(context.Background(), accountType()))
}

func accountType() *ir.RecordType {
	return &ir.RecordType{
		Name: "Account",
		Fields: []ir.Field{
			&ir.PrimitiveField{Name: "Id", Kind: ir.KindString},
			&ir.PrimitiveField{Name: "Name", Kind: ir.KindString, Createable: true, Updateable: true},
			&ir.PrimitiveField{Name: "code", ExternalName: "Code__c", Kind: ir.KindNumber, Createable: true, Updateable: true},
			&ir.PrimitiveField{Name: "Active", Kind: ir.KindBoolean, Createable: true, Updateable: true},
			&ir.CompoundField{Name: "address", SubFields: []ir.PrimitiveField{
				{Name: "street", Kind: ir.KindString, Createable: true, Updateable: true},
				{Name: "city", Kind: ir.KindString, Createable: true, Updateable: true},
			}},
		},
	}
}

// tableColumnNames lists the physical columns of a table in order.
func tableColumnNames(t *testing.T, s *Store, table string) []string {
	t.Helper()
	rows, err := s.db.Query("SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

// getTableIndexes returns all index names for a table.
func getTableIndexes(t *testing.T, s *Store, table string) []string {
	t.Helper()
	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	require.NoError(t, err)
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		indexes = append(indexes, name)
	}
	require.NoError(t, rows.Err())
	return indexes
}
