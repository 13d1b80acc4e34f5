package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listArtifacts(t *testing.T, w *workspace) []ArtifactInfo {
	t.Helper()
	out, err := runCommand(NewCacheCommand(w.rootOptions("json")), "list")
	require.NoError(t, err)
	var resp struct {
		Data []ArtifactInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestCacheList_Empty(t *testing.T) {
	w := newWorkspace(t)

	out, err := runCommand(NewCacheCommand(w.rootOptions("text")), "list")
	require.NoError(t, err)
	assert.Equal(t, "no compiled instruments\n", out)
	assert.Empty(t, listArtifacts(t, w))
}

func TestCacheListAndRecords(t *testing.T) {
	w := newWorkspace(t)
	_, err := w.splitrun(t, "json", w.instrument, "-d", filepath.Join(w.root, "scan"), "a=1,2", "b=3")
	require.NoError(t, err)

	artifacts := listArtifacts(t, w)
	require.Len(t, artifacts, 2)
	byName := make(map[string]ArtifactInfo)
	for _, a := range artifacts {
		byName[a.Name] = a
	}
	up, ok := byName["guide_upstream"]
	require.True(t, ok)
	assert.Equal(t, 2, up.Records)
	assert.Equal(t, "3.5.1", up.ToolchainVersion)
	assert.Equal(t, 0, byName["guide_downstream"].Records)

	out, err := runCommand(NewCacheCommand(w.rootOptions("json")), "records", up.ID)
	require.NoError(t, err)
	var resp struct {
		Data []RecordInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	values := []string{resp.Data[0].Parameters["a"], resp.Data[1].Parameters["a"]}
	assert.ElementsMatch(t, []string{"1", "2"}, values)
	for _, r := range resp.Data {
		assert.FileExists(t, r.Output)
	}

	out, err = runCommand(NewCacheCommand(w.rootOptions("text")), "records", up.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "PARAMETERS")
	assert.Contains(t, out, "a=2")
}

func TestCacheRecords_UnknownArtifact(t *testing.T) {
	w := newWorkspace(t)

	out, err := runCommand(NewCacheCommand(w.rootOptions("text")), "records", "nope")
	require.NoError(t, err)
	assert.Equal(t, "no records for nope\n", out)
}
