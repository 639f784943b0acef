package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionShort(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("policy:\n  max_queue_size: 7\n"), 0o600))
	out, err := execute(t, "validate", "-c", good)
	require.NoError(t, err)
	assert.Contains(t, out, "max_queue_size:          7")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("policy:\n  max_queue_size: 0\n"), 0o600))
	_, err = execute(t, "validate", "-c", bad)
	assert.ErrorContains(t, err, "policy.max_queue_size")
}

func TestSnapshots_ListAndClear(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "toastd.yaml")
	body := "storage:\n  driver: sqlite\n  path: " + filepath.Join(dir, "toastd.db") + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))

	out, err := execute(t, "snapshots", "list", "-c", cfg)
	require.NoError(t, err)
	assert.Equal(t, "no snapshots\n", out)

	out, err = execute(t, "snapshots", "clear", "-c", cfg)
	require.NoError(t, err)
	assert.Equal(t, "snapshots cleared\n", out)
}

func TestSnapshots_ClearWithoutStorage(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "toastd.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("logging:\n  level: info\n"), 0o600))
	out, err := execute(t, "snapshots", "clear", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "storage disabled")
}
