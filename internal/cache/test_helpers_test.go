package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/store"
	"github.com/roach88/restage/internal/testutil"
)

// testInstrument is a named source text.
type testInstrument struct {
	name   string
	source string
}

func (i testInstrument) Name() string   { return i.name }
func (i testInstrument) Source() string { return i.source }

// countingCompiler writes a placeholder binary and counts compilations.
type countingCompiler struct {
	calls atomic.Int64
	delay time.Duration
	fail  error
}

func (c *countingCompiler) Compile(ctx context.Context, inst Instrument, outDir string) (Compiled, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return Compiled{}, ctx.Err()
		}
	}
	if c.fail != nil {
		return Compiled{}, c.fail
	}
	bin := filepath.Join(outDir, inst.Name()+".out")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		return Compiled{}, err
	}
	return Compiled{BinaryPath: bin, ToolchainVersion: "3.5.1"}, nil
}

// eachBackend runs fn against a fresh SQLite store and a fresh MemStore.
func eachBackend(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Run("sqlite", func(t *testing.T) {
		s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) { fn(t, store.NewMemStore()) })
}

func newTestArtifactCache(t *testing.T, b Backend, c Compiler) *ArtifactCache {
	t.Helper()
	return NewArtifactCache(b, c, ArtifactOptions{
		BinDir: filepath.Join(t.TempDir(), "bin"),
		IDs:    testutil.NewSequenceIDs("art"),
		Clock:  testutil.NewDeterministicClock(testutil.FixedTime, time.Second).Now,
	})
}

func newTestResultCache(b Backend) *ResultCache {
	return NewResultCache(b, ResultOptions{IDs: testutil.NewSequenceIDs("rec"), Name: "test"})
}

// writeOutput creates a non-empty particle file for record id under dir.
func writeOutput(t *testing.T, dir, id string) string {
	t.Helper()
	path := filepath.Join(dir, id, id+".mcpl.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, testutil.WriteParticleFile(path, 10))
	return path
}

// record builds a committed-looking record with a real output file.
func record(t *testing.T, dir, id string, count int64, p ir.Point) ir.Record {
	t.Helper()
	return ir.Record{
		ID:        id,
		Point:     p,
		Tolerance: ir.Tolerances(p, nil),
		Count:     count,
		Output:    writeOutput(t, dir, id),
	}
}

func point(x float64, mode string) ir.Point {
	return ir.NewPoint(ir.P("x", ir.Float(x)), ir.P("mode", ir.Str(mode)))
}

func names(records []ir.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = fmt.Sprintf("%s@%s", r.ID, r.Point)
	}
	return out
}
