package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "recon", cmd.Use)
	assert.Contains(t, cmd.Long, "identity fields")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"validate", "plan", "deploy", "hash", "test"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestStoreCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"plan", "deploy"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			for _, flag := range []string{"schema", "changes", "db", "metrics-file"} {
				assert.NotNil(t, sub.Flags().Lookup(flag), "missing --%s", flag)
			}
		})
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--format", "xml", "validate", filepath.Join("testdata", "schema")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0o644))

	cmd := NewRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"--config", path, "validate", filepath.Join("testdata", "schema")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootOptions_ConfigCached(t *testing.T) {
	opts := testRootOptions(t, "text")
	first, err := opts.Config()
	require.NoError(t, err)
	second, err := opts.Config()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestRootCommand_ValidateEndToEnd(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--config", quietConfig(t), "validate", filepath.Join("testdata", "schema")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ Schema valid")
}
