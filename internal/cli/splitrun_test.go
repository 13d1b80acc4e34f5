package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSplitrun(t *testing.T, out string) SplitrunResult {
	t.Helper()
	var resp struct {
		Status string         `json:"status"`
		Data   SplitrunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestSplitrun_Text(t *testing.T) {
	w := newWorkspace(t)
	dir := filepath.Join(w.root, "scan")

	out, err := w.splitrun(t, "text", w.instrument, "-d", dir, "b=1,2,3")
	require.NoError(t, err)
	assert.Contains(t, out, "guide -> "+dir)
	assert.Contains(t, out, "points: 3")
	assert.Contains(t, out, "upstream: 1 (1 simulated, 0 reused)")

	assert.FileExists(t, filepath.Join(dir, "mccode.sim"))
	assert.FileExists(t, filepath.Join(dir, "mccode.dat"))
}

func TestSplitrun_ReusesUpstreamAcrossInvocations(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.splitrun(t, "json", w.instrument, "-d", filepath.Join(w.root, "one"), "-n", "1e3", "b=1,2")
	require.NoError(t, err)
	first := decodeSplitrun(t, out)
	assert.Equal(t, 1, first.UpstreamRuns)
	assert.Equal(t, 2, first.Points)

	out, err = w.splitrun(t, "json", w.instrument, "-d", filepath.Join(w.root, "two"), "-n", "1000", "b=5")
	require.NoError(t, err)
	second := decodeSplitrun(t, out)
	assert.Equal(t, 0, second.UpstreamRuns)
	assert.Equal(t, 1, second.Points)

	invocations := w.runner.Invocations()
	require.Len(t, invocations, 4)
	assert.Equal(t, int64(1000), invocations[0].Count)
}

func TestSplitrun_FlagsReachTheSimulation(t *testing.T) {
	w := newWorkspace(t)

	_, err := w.splitrun(t, "json", w.instrument, "-d", filepath.Join(w.root, "scan"),
		"-s", "7", "-g", "--data-format", "NeXus", "--no-summary")
	require.NoError(t, err)

	invocations := w.runner.Invocations()
	require.Len(t, invocations, 2)
	for _, inv := range invocations {
		assert.Equal(t, int64(7), inv.Seed)
		assert.Contains(t, inv.Args, "--gravitation")
		assert.Contains(t, inv.Args, "--format=NeXus")
	}
	assert.NoFileExists(t, filepath.Join(w.root, "scan", "mccode.dat"))
}

func TestSplitrun_MetricsFile(t *testing.T) {
	w := newWorkspace(t)
	metrics := filepath.Join(w.root, "restage.prom")

	_, err := w.splitrun(t, "json", w.instrument, "-d", filepath.Join(w.root, "scan"), "--metrics-file", metrics, "b=1,2")
	require.NoError(t, err)

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "restage_invocations_total")
}

func TestSplitrun_DefaultDirectory(t *testing.T) {
	w := newWorkspace(t)
	t.Chdir(w.root)

	out, err := w.splitrun(t, "json", w.instrument)
	require.NoError(t, err)
	assert.Equal(t, "guide_20261018_093000", decodeSplitrun(t, out).Dir)
	assert.DirExists(t, filepath.Join(w.root, "guide_20261018_093000", "0"))
}

func TestSplitrun_Errors(t *testing.T) {
	tests := []struct {
		name string
		args func(w *workspace) []string
		exit int
		code string
	}{
		{
			name: "unknown split point",
			args: func(w *workspace) []string { return []string{w.instrument, "--split-at", "nowhere"} },
			exit: ExitCommandError,
			code: ErrCodeConfiguration,
		},
		{
			name: "bad range",
			args: func(w *workspace) []string { return []string{w.instrument, "b=1:0:3"} },
			exit: ExitCommandError,
			code: ErrCodeConfiguration,
		},
		{
			name: "bad count",
			args: func(w *workspace) []string { return []string{w.instrument, "-n", "lots"} },
			exit: ExitCommandError,
			code: ErrCodeConfiguration,
		},
		{
			name: "missing instrument",
			args: func(w *workspace) []string { return []string{filepath.Join(w.root, "absent.cue")} },
			exit: ExitCommandError,
			code: ErrCodeConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorkspace(t)
			out, err := w.splitrun(t, "text", tt.args(w)...)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.Contains(t, out, "["+tt.code+"]")
			assert.Empty(t, w.runner.Invocations())
		})
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1000", 1000, false},
		{"1e6", 1000000, false},
		{"2.5e3", 2500, false},
		{"0", 0, false},
		{"1.5", 0, true},
		{"-3", 0, true},
		{"many", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
