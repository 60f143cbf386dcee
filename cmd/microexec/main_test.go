package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestUnknownCommand(t *testing.T) {
	_, err := runCLI(t, "train")
	assert.Error(t, err)
}

func TestDemo(t *testing.T) {
	out, err := runCLI(t, "demo")
	require.NoError(t, err)
	assert.Equal(t, "[5]\n", out)
}

func TestBuildInspectRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.mxp")

	_, err := runCLI(t, "build", "-o", path, "-n", "3", "-compress")
	require.NoError(t, err)

	out, err := runCLI(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "forward: 2 inputs, 1 outputs, 1 instructions")
	assert.Contains(t, out, "model = add")
	assert.Contains(t, out, "buffer[0] 12 bytes")

	out, err = runCLI(t, "run", "-a", "1.5", "-b", "2", path)
	require.NoError(t, err)
	assert.Equal(t, "[3.5 3.5 3.5]\n", out)
}

func TestRunMissingFile(t *testing.T) {
	_, err := runCLI(t, "run", filepath.Join(t.TempDir(), "missing.mxp"))
	assert.Error(t, err)
}

func TestRunPoolTooSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.mxp")
	_, err := runCLI(t, "build", "-o", path, "-n", "64")
	require.NoError(t, err)

	_, err = runCLI(t, "run", "-method-pool", "128", path)
	assert.Error(t, err)
}

func TestBuildRequiresOutput(t *testing.T) {
	_, err := runCLI(t, "build")
	assert.Error(t, err)
}

func TestStoreCommands(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "store", "programs.db")
	prog := filepath.Join(dir, "add.mxp")

	_, err := runCLI(t, "build", "-o", prog, "-n", "2")
	require.NoError(t, err)

	out, err := runCLI(t, "store", "-db", db, "put", "add", prog)
	require.NoError(t, err)
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	id := fields[1]

	out, err = runCLI(t, "store", "-db", db, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = runCLI(t, "store", "-db", db, "run", "-a", "4", "-b", "1", "add")
	require.NoError(t, err)
	assert.Equal(t, "[5 5]\n", out)

	_, err = runCLI(t, "store", "-db", db, "run", id)
	require.NoError(t, err)

	exported := filepath.Join(dir, "exported.mxp")
	_, err = runCLI(t, "store", "-db", db, "get", "-o", exported, "add")
	require.NoError(t, err)
	want, err := os.ReadFile(prog)
	require.NoError(t, err)
	got, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = runCLI(t, "store", "-db", db, "rm", "add")
	require.NoError(t, err)
	_, err = runCLI(t, "store", "-db", db, "run", "add")
	assert.Error(t, err)
}
