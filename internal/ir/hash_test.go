package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityHashDeterminism(t *testing.T) {
	values := NewIRObject(O("Name", IRString("Acme")), O("Code", IRString("A-1")))

	h1, err := IdentityHash(values)
	require.NoError(t, err)
	h2, err := IdentityHash(values.Clone())
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "IdentityHash must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestIdentityHashStableAcrossProcesses(t *testing.T) {
	// Pinned value: a change here breaks matching against records hashed by
	// earlier releases.
	values := NewIRObject(O("Name", IRString("Acme")))
	assert.Equal(t,
		hashWithDomain(DomainIdentity, []byte(`{"Name":"Acme"}`)),
		MustIdentityHash(values))
}

func TestIdentityHashOrderSensitive(t *testing.T) {
	ab := NewIRObject(O("a", IRString("1")), O("b", IRString("2")))
	ba := NewIRObject(O("b", IRString("2")), O("a", IRString("1")))

	assert.NotEqual(t, MustIdentityHash(ab), MustIdentityHash(ba),
		"reordering identity fields must change the hash")
}

func TestIdentityHashChangesWithValues(t *testing.T) {
	h1 := MustIdentityHash(NewIRObject(O("Name", IRString("Acme"))))
	h2 := MustIdentityHash(NewIRObject(O("Name", IRString("Acme Corp"))))

	assert.NotEqual(t, h1, h2)
}

func TestIdentityHashNullSentinel(t *testing.T) {
	null := MustIdentityHash(NewIRObject(O("a", IRNull{})))
	nilValue := MustIdentityHash(NewIRObject(O("a", nil)))
	nullString := MustIdentityHash(NewIRObject(O("a", IRString("null"))))
	empty := MustIdentityHash(NewIRObject(O("a", IRString(""))))

	assert.Equal(t, null, nilValue, "nil and IRNull are the same sentinel")
	assert.NotEqual(t, null, nullString, "null never collides with the string \"null\"")
	assert.NotEqual(t, null, empty, "null never collides with the empty string")
}

func TestHashWithDomainSeparation(t *testing.T) {
	assert.NotEqual(t,
		hashWithDomain("a", []byte("bc")),
		hashWithDomain("ab", []byte("c")))
}
