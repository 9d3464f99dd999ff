package harness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ir"
)

// testSchema manages Account by name and address; AuditLog is unmanaged.
func testSchema(t *testing.T) *Schema {
	t.Helper()
	dm := &ir.DataManagement{
		IdentityFields: []string{"Name", "address"},
		Include:        []string{"Account"},
	}
	require.NoError(t, dm.Compile())

	return &Schema{
		RecordTypes: []*ir.RecordType{
			{
				Name: "Account",
				Fields: []ir.Field{
					&ir.PrimitiveField{Name: "Id", Kind: ir.KindString},
					&ir.PrimitiveField{Name: "Name", Kind: ir.KindString, Createable: true, Updateable: true},
					&ir.PrimitiveField{Name: "code", ExternalName: "Code__c", Kind: ir.KindNumber, Createable: true, Updateable: true},
					&ir.CompoundField{Name: "address", SubFields: []ir.PrimitiveField{
						{Name: "street", Kind: ir.KindString, Createable: true, Updateable: true},
						{Name: "city", Kind: ir.KindString, Createable: true, Updateable: true},
					}},
				},
			},
			{
				Name: "AuditLog",
				Fields: []ir.Field{
					&ir.PrimitiveField{Name: "Id", Kind: ir.KindString},
					&ir.PrimitiveField{Name: "Message", Kind: ir.KindString, Createable: true},
				},
			},
		},
		DataManagement: dm,
	}
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return s
}
