package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Text(t *testing.T) {
	w := newWorkspace(t)

	out, err := runCommand(NewValidateCommand(w.rootOptions("text")), w.instrument)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ guide splits at mcpl_split")
	assert.Contains(t, out, "upstream: a\n")
	assert.Contains(t, out, "downstream: b mode\n")
}

func TestValidate_JSONWithScan(t *testing.T) {
	w := newWorkspace(t)

	out, err := runCommand(NewValidateCommand(w.rootOptions("json")), w.instrument, "a=1:2", "b=0,1", "zz=3")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"a"}, resp.Data.Upstream)
	assert.Equal(t, []string{"b", "mode"}, resp.Data.Downstream)
	assert.Empty(t, resp.Data.Shared)
	assert.Equal(t, map[string]string{"a": "upstream", "b": "downstream", "zz": "unused"}, resp.Data.Scan)
}

func TestValidate_EnergyInputs(t *testing.T) {
	w := newWorkspace(t)
	bifrost := filepath.Join("..", "instr", "testdata", "bifrost.cue")

	out, err := runCommand(NewValidateCommand(w.rootOptions("json")), bifrost, "ei=3:5", "sample_angle=0:10:90")
	require.NoError(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "energy", resp.Data.Scan["ei"])
	assert.Equal(t, "downstream", resp.Data.Scan["sample_angle"])
}

func TestValidate_SharedParameter(t *testing.T) {
	w := newWorkspace(t)
	path := filepath.Join(w.root, "shared.cue")
	require.NoError(t, os.WriteFile(path, []byte(`instrument: {
	name: "shared"
	parameters: {l: 1.0}
	components: [
		{name: "guide_in", type: "Guide", uses: ["l"]},
		{name: "mcpl_split", type: "Arm"},
		{name: "guide_out", type: "Guide", uses: ["l"]},
	]
}
`), 0o644))

	out, err := runCommand(NewValidateCommand(w.rootOptions("text")), path, "l=2")
	require.NoError(t, err)
	assert.Contains(t, out, "shared: l")
	assert.Contains(t, out, "l: both")
}

func TestValidate_Errors(t *testing.T) {
	w := newWorkspace(t)
	broken := filepath.Join(w.root, "broken.cue")
	require.NoError(t, os.WriteFile(broken, []byte(`instrument: {name: "x"}`), 0o644))

	tests := []struct {
		name string
		args []string
	}{
		{"unknown split", []string{w.instrument, "--split-at", "nowhere"}},
		{"no components", []string{broken}},
		{"bad assignment", []string{w.instrument, "b"}},
		{"missing file", []string{filepath.Join(w.root, "absent.cue")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCommand(NewValidateCommand(w.rootOptions("json")), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, ErrCodeConfiguration, resp.Error.Code)
		})
	}
}
