package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restage/internal/cache"
	"github.com/roach88/restage/internal/testutil"
)

const guideCUE = `instrument: {
	name: "guide"
	parameters: {
		a: 1.0
		b: 2.0
		mode: {type: "string", default: "x"}
	}
	components: [
		{name: "source", type: "Source_simple", uses: ["a"]},
		{name: "mcpl_split", type: "Arm"},
		{name: "sample", type: "Incoherent", uses: ["b", "mode"]},
		{name: "monitor", type: "Monitor_nD"},
	]
}
`

type stubCompiler struct{}

func (stubCompiler) Compile(_ context.Context, inst cache.Instrument, outDir string) (cache.Compiled, error) {
	bin := filepath.Join(outDir, inst.Name()+".out")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		return cache.Compiled{}, err
	}
	return cache.Compiled{BinaryPath: bin, ToolchainVersion: "3.5.1"}, nil
}

// workspace is a temporary data directory, configuration file and
// instrument description.
type workspace struct {
	root       string
	config     string
	instrument string
	runner     *testutil.FakeRunner
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	w := &workspace{root: t.TempDir(), runner: &testutil.FakeRunner{}}
	w.config = filepath.Join(w.root, "config.yaml")
	w.instrument = filepath.Join(w.root, "guide.cue")
	cfg := "data_dir: " + filepath.Join(w.root, "data") + "\nparallel: 2\n"
	require.NoError(t, os.WriteFile(w.config, []byte(cfg), 0o644))
	require.NoError(t, os.WriteFile(w.instrument, []byte(guideCUE), 0o644))
	return w
}

func (w *workspace) rootOptions(format string) *RootOptions {
	return &RootOptions{Format: format, ConfigPath: w.config}
}

// splitrun runs the splitrun command with fake collaborators.
func (w *workspace) splitrun(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	cmd := newSplitrunCommand(&SplitrunOptions{
		RootOptions: w.rootOptions(format),
		With: Collaborators{
			Runner:    w.runner,
			Compiler:  stubCompiler{},
			Particles: &testutil.FakeParticles{},
		},
		Clock: testutil.NewDeterministicClock(testutil.FixedTime, 0).Now,
	})
	return runCommand(cmd, args...)
}

func runCommand(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
