package instr

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restage/internal/execute"
	"github.com/roach88/restage/internal/ir"
)

// fakeCompiler copies the source to the -o path and reports a version.
const fakeCompiler = `#!/bin/sh
if [ "$1" = "--version" ]; then
	echo "mcstas 3.5.1"
	echo "extra line"
	exit 0
fi
if [ "$1" = "--fail" ]; then
	echo "syntax error" >&2
	exit 1
fi
cp "$1" "$3"
chmod +x "$3"
`

func writeFakeCompiler(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcstas-compile")
	require.NoError(t, os.WriteFile(path, []byte(fakeCompiler), 0o755))
	return path
}

func TestExecCompiler_Compile(t *testing.T) {
	in := loadBifrost(t)
	up, _, err := in.Split("mcpl_split", particleParam)
	require.NoError(t, err)

	c := &ExecCompiler{Command: []string{writeFakeCompiler(t)}, Runner: execute.ExecRunner{}}
	outDir := t.TempDir()

	compiled, err := c.Compile(context.Background(), up, outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "bifrost_upstream.out"), compiled.BinaryPath)
	assert.Equal(t, "mcstas 3.5.1", compiled.ToolchainVersion)

	data, err := os.ReadFile(compiled.BinaryPath)
	require.NoError(t, err)
	assert.Equal(t, up.Source(), string(data))
}

func TestExecCompiler_ConfiguredVersion(t *testing.T) {
	in := loadBifrost(t)
	c := &ExecCompiler{
		Command:          []string{writeFakeCompiler(t)},
		ToolchainVersion: "3.4.0",
		Runner:           execute.ExecRunner{},
	}
	compiled, err := c.Compile(context.Background(), in, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "3.4.0", compiled.ToolchainVersion)
}

func TestExecCompiler_Failure(t *testing.T) {
	in := loadBifrost(t)
	c := &ExecCompiler{
		Command:          []string{writeFakeCompiler(t), "--fail"},
		ToolchainVersion: "3.5.1",
		Runner:           execute.ExecRunner{},
	}
	_, err := c.Compile(context.Background(), in, t.TempDir())
	require.Error(t, err)
	assert.True(t, ir.IsExecution(err))
	assert.Contains(t, err.Error(), "syntax error")
}

func TestExecCompiler_NoCommand(t *testing.T) {
	_, err := (&ExecCompiler{}).Compile(context.Background(), loadBifrost(t), t.TempDir())
	assert.True(t, ir.IsConfiguration(err))
}
