package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ir"
	"github.com/roach88/recon/internal/testutil"
)

// quietConfig writes a config file that keeps logs to errors only.
func quietConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o644))
	return path
}

func testRootOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format:      format,
		ConfigPath:  quietConfig(t),
		LogWriter:   io.Discard,
		IDGenerator: testutil.NewSequentialIDs("c-"),
	}
}

// execute runs cmd with args and returns its stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

var schemaDir = filepath.Join("testdata", "schema")

// mustObject returns the nested object stored under key.
func mustObject(t *testing.T, obj *ir.IRObject, key string) *ir.IRObject {
	t.Helper()
	v, ok := obj.Get(key)
	require.True(t, ok, "missing key %q", key)
	out, ok := v.(*ir.IRObject)
	require.True(t, ok, "key %q holds %T", key, v)
	return out
}
