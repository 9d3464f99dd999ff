package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/compiler"
)

func TestValidateValidSchema(t *testing.T) {
	out, err := execute(t, NewValidateCommand(testRootOptions(t, "text")), schemaDir)
	require.NoError(t, err)

	assert.Equal(t, "✓ Schema valid\n  Account identity=[Id, Name, Street, City]\n  AuditLog (unmanaged)\n", out)
}

func TestValidateValidSchemaJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(testRootOptions(t, "json")), schemaDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []RecordTypeSummary{
		{Name: "Account", Managed: true, Identity: []string{"Id", "Name", "Street", "City"}},
		{Name: "AuditLog"},
	}, resp.Data.RecordTypes)
}

func TestValidateInvalidSchema(t *testing.T) {
	out, err := execute(t, NewValidateCommand(testRootOptions(t, "text")), filepath.Join("testdata", "bad_schema"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrMissingIDField)
	assert.Contains(t, out, compiler.ErrUnknownIdentityField)
	assert.Contains(t, out, "Nope")
}

func TestValidateInvalidSchemaJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(testRootOptions(t, "json")), filepath.Join("testdata", "bad_schema"))
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Len(t, resp.Data.Errors, 2)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrMissingIDField, resp.Error.Code)
}

func TestValidateCompileError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.cue"), []byte(`package schema

recordType: Account: fields: {
	Id: "string"
	Name: "date"
}
`), 0o644))

	out, err := execute(t, NewValidateCommand(testRootOptions(t, "text")), dir)
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeCompile)
	assert.Contains(t, out, `unsupported kind "date"`)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(testRootOptions(t, "text")), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := execute(t, NewValidateCommand(testRootOptions(t, "text")), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
}

func TestLoadSchema(t *testing.T) {
	schema, errs := LoadSchema(schemaDir, LoadModeFailFast)
	require.Empty(t, errs)

	assert.Equal(t, 1, schema.FileCount)
	require.Len(t, schema.RecordTypes, 2)
	assert.Equal(t, "Account", schema.RecordTypes[0].Name)
	assert.Equal(t, "AuditLog", schema.RecordTypes[1].Name)
	require.NotNil(t, schema.DataManagement)
	assert.True(t, schema.DataManagement.IsManaged("Account"))

	rt, ok := schema.RecordType("Account")
	require.True(t, ok)
	assert.Len(t, rt.Fields, 4)
	_, ok = schema.RecordType("Missing")
	assert.False(t, ok)
}
