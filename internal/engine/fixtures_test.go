package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/testutil"
)

// accountType has a read-only Id, writable primitives, a create-only
// Owner, an update-only Status and a compound address.
func accountType() *ir.RecordType {
	return &ir.RecordType{
		Name: "Account",
		Fields: []ir.Field{
			&ir.PrimitiveField{Name: "Id", Kind: ir.KindString},
			&ir.PrimitiveField{Name: "Name", Kind: ir.KindString, Createable: true, Updateable: true},
			&ir.PrimitiveField{Name: "code", ExternalName: "Code__c", Kind: ir.KindNumber, Createable: true, Updateable: true},
			&ir.PrimitiveField{Name: "Owner", Kind: ir.KindString, Createable: true},
			&ir.PrimitiveField{Name: "Status", Kind: ir.KindString, Updateable: true},
			&ir.CompoundField{Name: "address", SubFields: []ir.PrimitiveField{
				{Name: "street", Kind: ir.KindString, Createable: true, Updateable: true},
				{Name: "city", Kind: ir.KindString, Createable: true, Updateable: true},
			}},
		},
	}
}

func contactType() *ir.RecordType {
	return &ir.RecordType{
		Name: "Contact",
		Fields: []ir.Field{
			&ir.PrimitiveField{Name: "Id", Kind: ir.KindString},
			&ir.PrimitiveField{Name: "Name", Kind: ir.KindString, Createable: true, Updateable: true},
		},
	}
}

func dataManagement(t *testing.T) *ir.DataManagement {
	t.Helper()
	dm := &ir.DataManagement{
		IdentityFields: []string{"Name", "address"},
		Include:        []string{"Account", "Contact", "Lead"},
		Exclude:        []string{"Contact"},
		Overrides:      map[string][]string{"Lead": {"Nope"}},
	}
	require.NoError(t, dm.Compile())
	return dm
}

func account(rt *ir.RecordType, name, street, city string) *ir.Instance {
	return ir.NewInstance(rt, name, ir.NewIRObject(
		ir.O("Name", ir.IRString(name)),
		ir.O("address", ir.NewIRObject(
			ir.O("street", ir.IRString(street)),
			ir.O("city", ir.IRString(city)),
		)),
	))
}

func newClient() *testutil.FakeClient {
	return testutil.NewFakeClient(testutil.NewSequentialIDs("new-"))
}

func newTestEngine(t *testing.T) (*Engine, *testutil.FakeClient) {
	t.Helper()
	client := newClient()
	return New(client, dataManagement(t)), client
}

func adds(instances ...*ir.Instance) []ir.Change {
	out := make([]ir.Change, len(instances))
	for i, inst := range instances {
		out[i] = ir.Add(inst)
	}
	return out
}
