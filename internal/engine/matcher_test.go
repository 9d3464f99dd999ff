package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/identity"
	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/remote"
)

func accountResolver(t *testing.T) *identity.Resolver {
	t.Helper()
	r, err := identity.NewResolver(accountType(), []string{"Name", "address"})
	require.NoError(t, err)
	return r
}

func row(id, name, street, city string) remote.Record {
	return remote.Record{ID: id, Columns: map[string]any{"Id": id, "Name": name, "Street": street, "City": city}}
}

func TestMatch_PartitionsAreDisjointAndComplete(t *testing.T) {
	rt := accountType()
	instances := []*ir.Instance{
		account(rt, "A", "s", "c"),
		account(rt, "B", "s", "c"),
		account(rt, "A", "s", "c"),
		ir.NewInstance(rt, "bad", ir.NewIRObject(ir.O("address", ir.IRString("flat")))),
		account(rt, "C", "s", "c"),
	}
	records := []remote.Record{row("r-a", "A", "s", "c"), row("r-c", "C", "s", "c"), row("r-x", "X", "s", "c")}

	m := Match(accountResolver(t), instances, records)

	require.Len(t, m.Existing, 2)
	assert.Equal(t, 0, m.Existing[0].Index)
	assert.Equal(t, "r-a", m.Existing[0].Record.ID)
	assert.Equal(t, 4, m.Existing[1].Index)
	assert.Equal(t, "r-c", m.Existing[1].Record.ID)

	require.Len(t, m.New, 1)
	assert.Equal(t, 1, m.New[0].Index)

	require.Len(t, m.Duplicates, 1)
	assert.Equal(t, 2, m.Duplicates[0].Index)
	assert.Equal(t, 0, m.Duplicates[0].First)

	require.Len(t, m.Invalid, 1)
	assert.Equal(t, 3, m.Invalid[0].Index)
	assert.ErrorContains(t, m.Invalid[0].Err, "compound value must be a mapping")

	seen := map[int]bool{}
	for _, part := range [][]Classified{m.Existing, m.New, m.Duplicates, m.Invalid} {
		for _, c := range part {
			assert.False(t, seen[c.Index], "index %d in two partitions", c.Index)
			seen[c.Index] = true
			assert.Same(t, instances[c.Index], c.Instance)
		}
	}
	assert.Len(t, seen, len(instances))
}

func TestMatch_DoesNotMutateInputs(t *testing.T) {
	rt := accountType()
	inst := account(rt, "A", "s", "c")
	records := []remote.Record{row("r-a", "A", "s", "c")}

	Match(accountResolver(t), []*ir.Instance{inst}, records)

	assert.Empty(t, inst.ID)
	assert.Equal(t, row("r-a", "A", "s", "c"), records[0])
}

func TestMatch_LaterRemoteDuplicateWins(t *testing.T) {
	records := []remote.Record{row("first", "A", "s", "c"), row("second", "A", "s", "c")}

	m := Match(accountResolver(t), []*ir.Instance{account(accountType(), "A", "s", "c")}, records)

	require.Len(t, m.Existing, 1)
	assert.Equal(t, "second", m.Existing[0].Record.ID)
}

func TestMatch_NullAndAbsenceMatch(t *testing.T) {
	rt := accountType()
	inst := ir.NewInstance(rt, "A", ir.NewIRObject(
		ir.O("Name", ir.IRString("A")),
		ir.O("address", ir.NewIRObject(ir.O("street", ir.IRNull{}))),
	))
	records := []remote.Record{{ID: "r1", Columns: map[string]any{"Id": "r1", "Name": "A", "Street": nil}}}

	m := Match(accountResolver(t), []*ir.Instance{inst}, records)

	assert.Len(t, m.Existing, 1)
}

func TestMatch_SkipsUnreadableRemoteRows(t *testing.T) {
	records := []remote.Record{{ID: "r1", Columns: map[string]any{"Name": []int{1}}}}

	m := Match(accountResolver(t), []*ir.Instance{account(accountType(), "A", "s", "c")}, records)

	assert.Empty(t, m.Existing)
	assert.Len(t, m.New, 1)
}

func TestMatch_PartialOverlapDoesNotMatch(t *testing.T) {
	records := []remote.Record{row("r1", "A", "s", "other")}

	m := Match(accountResolver(t), []*ir.Instance{account(accountType(), "A", "s", "c")}, records)

	assert.Empty(t, m.Existing, "over-fetched rows sharing only some values are ignored")
	assert.Len(t, m.New, 1)
}
