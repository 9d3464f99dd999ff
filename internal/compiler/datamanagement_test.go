package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileDataManagement(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		dataManagement: {
			identityFields: ["Name", "address"]
			include: ["Account", "Custom__.*"]
			exclude: ["Custom__Log"]
			overrides: RecordType: ["DeveloperName"]
		}
	`)
	require.NoError(t, v.Err())

	dm, err := CompileDataManagement(v.LookupPath(cue.ParsePath("dataManagement")))
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "address"}, dm.IdentityFields)
	assert.Equal(t, []string{"DeveloperName"}, dm.Overrides["RecordType"])
	assert.True(t, dm.IsManaged("Account"))
	assert.True(t, dm.IsManaged("Custom__Widget"))
	assert.False(t, dm.IsManaged("Custom__Log"))
	assert.False(t, dm.IsManaged("Contact"))
	assert.Equal(t, []string{"DeveloperName"}, dm.IdentityFor("RecordType"))
	assert.Equal(t, []string{"Name", "address"}, dm.IdentityFor("Account"))
}

func TestCompileDataManagementErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing identity", `dataManagement: include: ["A"]`, "identityFields is required"},
		{"bad pattern", `dataManagement: {identityFields: ["Name"], include: ["("]}`, "dataManagement"},
		{"non-string identity", `dataManagement: identityFields: [1]`, "string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileDataManagement(v.LookupPath(cue.ParsePath("dataManagement")))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
