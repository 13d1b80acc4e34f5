package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restage/internal/ir"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "restage", cmd.Use)
	assert.Contains(t, cmd.Long, "upstream")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{{"splitrun"}, {"validate"}, {"cache", "list"}, {"cache", "records"}, {"version"}}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "command %v should exist", path)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestSplitrunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	splitrun, _, err := cmd.Find([]string{"splitrun"})
	require.NoError(t, err)

	shorthands := map[string]string{
		"mesh": "m", "seed": "s", "ncount": "n", "dir": "d", "trace": "t", "gravitation": "g",
	}
	for name, short := range shorthands {
		flag := splitrun.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, short, flag.Shorthand, name)
	}
	for _, name := range []string{"split-at", "bufsiz", "data-format", "parallel", "no-summary", "plot", "metrics-file"} {
		assert.NotNil(t, splitrun.Flags().Lookup(name), name)
	}
	assert.Equal(t, "mcpl_split", splitrun.Flags().Lookup("split-at").DefValue)
}

func TestFormatValidation(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "xml", "version"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVersionCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--format", "json", "version"})
	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string      `json:"status"`
		Data   VersionInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, ir.Version, resp.Data.Version)
	assert.Equal(t, ir.SchemaVersion, resp.Data.SchemaVersion)
}
