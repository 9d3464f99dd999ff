package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/querysql"
	"github.com/roach88/recon/internal/remote"
)

func TestDeploy_EmptyGroup(t *testing.T) {
	e, client := newTestEngine(t)

	out, err := e.Deploy(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, out.Applied)
	assert.Empty(t, out.Errors)
	assert.Empty(t, client.Queries())
	assert.Empty(t, client.Calls())
}

func TestDeploy_AddInsertsNewInstances(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	a := account(rt, "Acme", "1 Main", "Springfield")
	b := account(rt, "Beta", "2 Elm", "Shelbyville")

	out, err := e.Deploy(context.Background(), adds(a, b))
	require.NoError(t, err)

	require.Len(t, out.Applied, 2)
	assert.Empty(t, out.Errors)
	assert.Equal(t, ir.ActionAdd, out.Applied[0].Action)
	assert.Same(t, a, out.Applied[0].After)
	assert.Equal(t, "new-0001", a.ID)
	assert.Equal(t, "new-0002", b.ID)

	require.Len(t, client.CallsFor(remote.OpInsert), 1, "one bulk call per operation")
	assert.Len(t, client.CallsFor(remote.OpInsert)[0].Records, 2)
	assert.Empty(t, client.CallsFor(remote.OpUpdate))
	assert.Len(t, client.Queries(), 1)
}

func TestDeploy_IdempotentRedeploy(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	client.Seed("Account", "existing-1", map[string]any{"Name": "Acme", "Street": "1 Main", "City": "Springfield"})

	inst := account(rt, "Acme", "1 Main", "Springfield")
	out, err := e.Deploy(context.Background(), adds(inst))
	require.NoError(t, err)

	require.Len(t, out.Applied, 1)
	assert.Equal(t, ir.ActionModify, out.Applied[0].Action, "an Add matching a remote record is an upsert")
	assert.Same(t, inst, out.Applied[0].Before)
	assert.Same(t, inst, out.Applied[0].After)
	assert.Equal(t, "existing-1", inst.ID)
	assert.Empty(t, client.CallsFor(remote.OpInsert))
	require.Len(t, client.CallsFor(remote.OpUpdate), 1)
	assert.Equal(t, "existing-1", client.CallsFor(remote.OpUpdate)[0].Records[0].ID)

	again := account(rt, "Acme", "1 Main", "Springfield")
	_, err = e.Deploy(context.Background(), adds(again))
	require.NoError(t, err)
	assert.Equal(t, "existing-1", again.ID)
	assert.Len(t, client.Rows("Account"), 1)
}

func TestDeploy_InsertThenRedeployUpdates(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()

	first := account(rt, "Acme", "1 Main", "Springfield")
	_, err := e.Deploy(context.Background(), adds(first))
	require.NoError(t, err)
	require.Equal(t, "new-0001", first.ID)

	second := account(rt, "Acme", "1 Main", "Springfield")
	out, err := e.Deploy(context.Background(), adds(second))
	require.NoError(t, err)

	assert.Equal(t, ir.ActionModify, out.Applied[0].Action)
	assert.Equal(t, "new-0001", second.ID)
	assert.Len(t, client.Rows("Account"), 1)
}

func TestDeploy_PartialFailureIsolation(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	client.Reject = func(op remote.Operation, index int, rec remote.Record) string {
		if op == remote.OpInsert && index == 1 {
			return "REQUIRED_FIELD_MISSING: Code__c"
		}
		return ""
	}

	a := account(rt, "A", "s", "c")
	b := account(rt, "B", "s", "c")
	c := account(rt, "C", "s", "c")

	out, err := e.Deploy(context.Background(), adds(a, b, c))
	require.NoError(t, err)

	require.Len(t, out.Applied, 2)
	assert.Equal(t, ir.ActionAdd, out.Applied[0].Action)
	assert.Equal(t, ir.ActionAdd, out.Applied[1].Action)
	assert.Same(t, a, out.Applied[0].After)
	assert.Same(t, c, out.Applied[1].After)
	assert.Equal(t, []string{"B: REQUIRED_FIELD_MISSING: Code__c"}, out.Errors)
	assert.NotEmpty(t, a.ID)
	assert.Empty(t, b.ID)
	assert.NotEmpty(t, c.ID)
}

func TestDeploy_CompoundIdentityRoundTrip(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	client.Seed("Account", "hq", map[string]any{"Name": "Acme", "Street": "A", "City": "B"})
	client.Seed("Account", "other", map[string]any{"Name": "Acme", "Street": "A", "City": "C"})

	inst := account(rt, "Acme", "A", "B")
	out, err := e.Deploy(context.Background(), adds(inst))
	require.NoError(t, err)

	assert.Equal(t, "hq", inst.ID)
	assert.Equal(t, ir.ActionModify, out.Applied[0].Action)
}

func TestDeploy_LocalDuplicateIdentity(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	first := account(rt, "Acme", "A", "B")
	second := account(rt, "Acme", "A", "B")
	second.Name = "acme-copy"

	out, err := e.Deploy(context.Background(), adds(first, second))
	require.NoError(t, err)

	require.Len(t, out.Applied, 1)
	assert.Same(t, first, out.Applied[0].After)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "acme-copy: duplicate identity in deploy group (same as Acme)")
	assert.Empty(t, second.ID)

	require.Len(t, client.CallsFor(remote.OpInsert), 1)
	assert.Len(t, client.CallsFor(remote.OpInsert)[0].Records, 1, "duplicate is never inserted")
}

func TestDeploy_RemoteDuplicateKeepsLaterRecord(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	client.Seed("Account", "r1", map[string]any{"Name": "Acme", "Street": "A", "City": "B"})
	client.Seed("Account", "r2", map[string]any{"Name": "Acme", "Street": "A", "City": "B"})

	inst := account(rt, "Acme", "A", "B")
	_, err := e.Deploy(context.Background(), adds(inst))
	require.NoError(t, err)

	assert.Equal(t, "r2", inst.ID)
}

func TestDeploy_MixedUpsertAndInsert(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	client.Seed("Account", "existing-1", map[string]any{"Name": "Acme", "Street": "A", "City": "B"})

	matched := account(rt, "Acme", "A", "B")
	fresh := account(rt, "Beta", "A", "B")

	out, err := e.Deploy(context.Background(), adds(fresh, matched))
	require.NoError(t, err)

	require.Len(t, out.Applied, 2)
	assert.Equal(t, ir.ActionAdd, out.Applied[0].Action, "applied changes keep group order")
	assert.Equal(t, ir.ActionModify, out.Applied[1].Action)
	assert.Len(t, client.CallsFor(remote.OpInsert), 1)
	assert.Len(t, client.CallsFor(remote.OpUpdate), 1)
}

func TestDeploy_SplitLookupQueries(t *testing.T) {
	client := newClient()
	b := querysql.NewBuilder(nil)
	b.MaxClauses = 1
	e := New(client, dataManagement(t), WithBuilder(b))
	rt := accountType()

	out, err := e.Deploy(context.Background(), adds(
		account(rt, "A", "s", "c"),
		account(rt, "B", "s", "c"),
		account(rt, "C", "s", "c"),
	))
	require.NoError(t, err)

	assert.Len(t, out.Applied, 3)
	assert.Len(t, client.Queries(), 3)
}

func TestDeploy_Preconditions(t *testing.T) {
	acc := accountType()
	lead := &ir.RecordType{Name: "Lead", Fields: []ir.Field{&ir.PrimitiveField{Name: "Id", Kind: ir.KindString}}}
	noIdentity := &ir.RecordType{Name: "Account", Fields: []ir.Field{&ir.PrimitiveField{Name: "Id", Kind: ir.KindString}}}

	tests := []struct {
		name    string
		changes []ir.Change
		code    DeployErrorCode
	}{
		{
			name:    "mixed record types",
			changes: []ir.Change{ir.Add(account(acc, "A", "s", "c")), ir.Add(ir.NewInstance(contactType(), "C", nil))},
			code:    ErrCodeMixedTypes,
		},
		{
			name:    "mixed actions",
			changes: []ir.Change{ir.Add(account(acc, "A", "s", "c")), ir.Remove(account(acc, "B", "s", "c"))},
			code:    ErrCodeMixedActions,
		},
		{
			name:    "unmanaged type",
			changes: []ir.Change{ir.Add(ir.NewInstance(contactType(), "C", nil))},
			code:    ErrCodeUnmanagedType,
		},
		{
			name:    "identity field missing from schema",
			changes: []ir.Change{ir.Add(ir.NewInstance(noIdentity, "A", nil))},
			code:    ErrCodeMissingIdentity,
		},
		{
			name:    "override names unknown field",
			changes: []ir.Change{ir.Add(ir.NewInstance(lead, "L", nil))},
			code:    ErrCodeMissingIdentity,
		},
		{
			name:    "change without instance",
			changes: []ir.Change{{Action: ir.ActionAdd}},
			code:    ErrCodeInvalidChange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, client := newTestEngine(t)

			out, err := e.Deploy(context.Background(), tt.changes)
			require.Error(t, err)

			var de *DeployError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.code, de.Code)
			assert.True(t, IsPreconditionError(err))

			require.NotNil(t, out)
			assert.Empty(t, out.Applied)
			assert.Equal(t, []string{err.Error()}, out.Errors)
			assert.Empty(t, client.Calls())
		})
	}
}

func TestDeploy_UnresolvedIdentityWrapsSchemaError(t *testing.T) {
	e, _ := newTestEngine(t)
	rt := &ir.RecordType{Name: "Account", Fields: []ir.Field{&ir.PrimitiveField{Name: "Name", Kind: ir.KindString}}}

	_, err := e.Deploy(context.Background(), adds(ir.NewInstance(rt, "A", nil)))

	var se *ir.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "address", se.Field)
}

func TestDeploy_MissingDataManagement(t *testing.T) {
	e := New(newClient(), nil)

	_, err := e.Deploy(context.Background(), adds(account(accountType(), "A", "s", "c")))

	var de *DeployError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ErrCodeMissingIdentity, de.Code)
}

func TestDeploy_QueryTransportFailure(t *testing.T) {
	e, client := newTestEngine(t)
	client.QueryErr = errors.New("connection refused")

	inst := account(accountType(), "Acme", "A", "B")
	out, err := e.Deploy(context.Background(), adds(inst))

	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, out.Applied)
	assert.Len(t, out.Errors, 1)
	assert.Empty(t, client.Calls(), "no bulk call after a failed lookup")
	assert.Empty(t, inst.ID)
}

func TestDeploy_BulkTransportFailure(t *testing.T) {
	e, client := newTestEngine(t)
	client.BulkErr = errors.New("503 service unavailable")

	out, err := e.Deploy(context.Background(), adds(account(accountType(), "Acme", "A", "B")))

	require.Error(t, err)
	assert.True(t, IsTransportError(err))
	assert.Empty(t, out.Applied)
	assert.Equal(t, []string{err.Error()}, out.Errors)
}

func TestDeploy_ResultMismatchIsFatal(t *testing.T) {
	e, client := newTestEngine(t)
	client.Truncate = true

	out, err := e.Deploy(context.Background(), adds(account(accountType(), "Acme", "A", "B")))

	var de *DeployError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ErrCodeResultMismatch, de.Code)
	assert.True(t, IsTransportError(err))
	assert.Len(t, out.Errors, 1)
}

func TestDeploy_RemoveByID(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	client.Seed("Account", "a1", map[string]any{"Name": "A"})
	client.Seed("Account", "a2", map[string]any{"Name": "B"})

	a := account(rt, "A", "", "")
	a.ID = "a1"
	gone := account(rt, "Gone", "", "")
	gone.ID = "missing"

	out, err := e.Deploy(context.Background(), []ir.Change{ir.Remove(a), ir.Remove(gone)})
	require.NoError(t, err)

	require.Len(t, out.Applied, 1)
	assert.Equal(t, ir.ActionRemove, out.Applied[0].Action)
	assert.Same(t, a, out.Applied[0].Before)
	assert.Equal(t, []string{"Gone: entity is deleted"}, out.Errors)
	assert.Empty(t, client.Queries(), "removals with identifiers need no lookup")

	deletes := client.CallsFor(remote.OpDelete)
	require.Len(t, deletes, 1)
	assert.Equal(t, map[string]any{"Id": "a1"}, deletes[0].Records[0].Columns)
	assert.Len(t, client.Rows("Account"), 1)
}

func TestDeploy_RemoveResolvesIdentity(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	client.Seed("Account", "hq", map[string]any{"Name": "Acme", "Street": "A", "City": "B"})

	known := account(rt, "Acme", "A", "B")
	unknown := account(rt, "Nobody", "A", "B")

	out, err := e.Deploy(context.Background(), []ir.Change{ir.Remove(unknown), ir.Remove(known)})
	require.NoError(t, err)

	require.Len(t, out.Applied, 1)
	assert.Same(t, known, out.Applied[0].Before)
	assert.Equal(t, "hq", known.ID)
	assert.Equal(t, []string{"Nobody: no matching remote record"}, out.Errors)
	assert.Empty(t, client.Rows("Account"))
}

func TestDeploy_ModifyRejectsIdentifierChange(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	client.Seed("Account", "a1", map[string]any{"Name": "A"})
	client.Seed("Account", "b1", map[string]any{"Name": "B"})

	beforeA, afterA := account(rt, "A", "", ""), account(rt, "A", "x", "y")
	beforeA.ID, afterA.ID = "a1", "a1"
	beforeB, afterB := account(rt, "B", "", ""), account(rt, "B", "x", "y")
	beforeB.ID, afterB.ID = "b1", "b2"

	out, err := e.Deploy(context.Background(), []ir.Change{ir.Modify(beforeA, afterA), ir.Modify(beforeB, afterB)})
	require.NoError(t, err)

	require.Len(t, out.Applied, 1)
	assert.Equal(t, ir.ActionModify, out.Applied[0].Action)
	assert.Same(t, beforeA, out.Applied[0].Before)
	assert.Same(t, afterA, out.Applied[0].After)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], `changing the remote identifier from "b1" to "b2" is not supported`)

	updates := client.CallsFor(remote.OpUpdate)
	require.Len(t, updates, 1)
	require.Len(t, updates[0].Records, 1, "rejected change is excluded from the bulk call")
	assert.Equal(t, "a1", updates[0].Records[0].ID)
}

func TestDeploy_ModifyInheritsIdentifier(t *testing.T) {
	e, client := newTestEngine(t)
	rt := accountType()
	client.Seed("Account", "a1", map[string]any{"Name": "A"})

	before := account(rt, "A", "", "")
	before.ID = "a1"
	after := account(rt, "A", "new street", "")

	out, err := e.Deploy(context.Background(), []ir.Change{ir.Modify(before, after)})
	require.NoError(t, err)

	assert.Len(t, out.Applied, 1)
	assert.Equal(t, "a1", after.ID)
	assert.Equal(t, "new street", client.Rows("Account")[0].Columns["Street"])
}
