package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/testutil"
)

// testArtifact stores the artifact owning the result tables under test.
// Repeated calls return the stored row.
func testArtifact(t *testing.T, b Backend) ir.Artifact {
	t.Helper()
	source := `{"name":"guide_upstream"}`
	stored, _, err := b.InsertArtifact(context.Background(), ir.Artifact{
		ID:          "art0001",
		Name:        "guide_upstream",
		Fingerprint: ir.Fingerprint(source),
		Source:      source,
		BinaryPath:  "/bin/art0001/guide_upstream.out",
		CreatedAt:   testutil.FixedTime,
	})
	require.NoError(t, err)
	return stored
}

func TestResultCache_EnsureTableUnknownArtifact(t *testing.T) {
	eachBackend(t, func(t *testing.T, b Backend) {
		c := newTestResultCache(b)

		_, err := c.EnsureTable(context.Background(), ir.Artifact{ID: "ghost", Name: "guide_upstream"}, []string{"x"})
		require.Error(t, err)
		assert.True(t, ir.IsCacheIntegrity(err))
	})
}

func TestResultCache_EnsureTable(t *testing.T) {
	eachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		c := newTestResultCache(b)

		first, err := c.EnsureTable(ctx, testArtifact(t, b), []string{"x", "mode"})
		require.NoError(t, err)
		again, err := c.EnsureTable(ctx, testArtifact(t, b), []string{"mode", "x"})
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)

		_, err = c.EnsureTable(ctx, testArtifact(t, b), []string{"x", "mode", "extra"})
		require.Error(t, err)
		assert.True(t, ir.IsConfiguration(err))
	})
}

func TestResultCache_PutThenLookup(t *testing.T) {
	eachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		dir := t.TempDir()
		c := newTestResultCache(b)
		table, err := c.EnsureTable(ctx, testArtifact(t, b), []string{"x", "mode"})
		require.NoError(t, err)

		r := record(t, dir, "run1", 1000, point(2.0, "a"))
		require.NoError(t, c.Put(ctx, table, r))

		q := ir.NewQuery(point(2.0001, "a"), nil, nil, 0, false)
		got, ok, err := c.Lookup(ctx, table, q)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "run1", got.ID)
		assert.Equal(t, r.Output, got.Output)

		far := ir.NewQuery(point(2.5, "a"), nil, nil, 0, false)
		_, ok, err = c.Lookup(ctx, table, far)
		require.NoError(t, err)
		assert.False(t, ok)

		other := ir.NewQuery(point(2.0, "b"), nil, nil, 0, false)
		_, ok, err = c.Lookup(ctx, table, other)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestResultCache_PutRejectsMissingOutput(t *testing.T) {
	eachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		c := newTestResultCache(b)
		table, err := c.EnsureTable(ctx, testArtifact(t, b), []string{"x", "mode"})
		require.NoError(t, err)

		r := ir.Record{ID: "gone", Point: point(1, "a"), Output: filepath.Join(t.TempDir(), "gone.mcpl")}
		err = c.Put(ctx, table, r)
		require.Error(t, err)
		assert.True(t, ir.IsCacheIntegrity(err))

		records, err := c.Records(ctx, table)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestResultCache_GetRejectsWrongNames(t *testing.T) {
	eachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		c := newTestResultCache(b)
		table, err := c.EnsureTable(ctx, testArtifact(t, b), []string{"x", "mode"})
		require.NoError(t, err)

		q := ir.NewQuery(ir.NewPoint(ir.P("x", ir.Float(1))), nil, nil, 0, false)
		_, err = c.Get(ctx, table, q)
		require.Error(t, err)
		assert.True(t, ir.IsConfiguration(err))
	})
}

func TestResultCache_GetOrCreate(t *testing.T) {
	eachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		dir := t.TempDir()
		c := newTestResultCache(b)
		table, err := c.EnsureTable(ctx, testArtifact(t, b), []string{"x", "mode"})
		require.NoError(t, err)

		var creates atomic.Int64
		create := func(_ context.Context, id string) (ir.Record, error) {
			creates.Add(1)
			time.Sleep(10 * time.Millisecond)
			r := record(t, dir, id, 500, point(1.5, "a"))
			return r, nil
		}
		q := ir.NewQuery(point(1.5, "a"), nil, nil, 500, false)

		var wg sync.WaitGroup
		results := make([]ir.Record, 6)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r, _, err := c.GetOrCreate(ctx, table, q, create)
				assert.NoError(t, err)
				results[i] = r
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int64(1), creates.Load())
		for _, r := range results {
			assert.Equal(t, results[0].ID, r.ID)
		}

		r, hit, err := c.GetOrCreate(ctx, table, q, create)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, results[0].ID, r.ID)
		assert.Equal(t, int64(1), creates.Load())
	})
}

func TestResultCache_GetOrCreateZeroYieldNotCommitted(t *testing.T) {
	eachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		c := newTestResultCache(b)
		table, err := c.EnsureTable(ctx, testArtifact(t, b), []string{"x", "mode"})
		require.NoError(t, err)

		q := ir.NewQuery(point(3, "a"), nil, nil, 100, false)
		r, hit, err := c.GetOrCreate(ctx, table, q, func(_ context.Context, id string) (ir.Record, error) {
			return ir.Record{Point: point(3, "a"), Count: 100}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Empty(t, r.Output)
		assert.NotEmpty(t, r.ID)

		records, err := c.Records(ctx, table)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestResultCache_HitWithVanishedOutput(t *testing.T) {
	eachBackend(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		dir := t.TempDir()
		c := newTestResultCache(b)
		table, err := c.EnsureTable(ctx, testArtifact(t, b), []string{"x", "mode"})
		require.NoError(t, err)

		r := record(t, dir, "run1", 1000, point(2.0, "a"))
		require.NoError(t, c.Put(ctx, table, r))
		require.NoError(t, os.Remove(r.Output))

		q := ir.NewQuery(point(2.0, "a"), nil, nil, 0, false)
		_, _, err = c.GetOrCreate(ctx, table, q, func(context.Context, string) (ir.Record, error) {
			t.Fatal("create must not run for a cached point")
			return ir.Record{}, nil
		})
		require.Error(t, err)
		assert.True(t, ir.IsCacheIntegrity(err))
	})
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mcpl")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	tests := []struct {
		name   string
		output string
		ok     bool
	}{
		{"present", writeOutput(t, dir, "ok"), true},
		{"missing", filepath.Join(dir, "missing.mcpl"), false},
		{"empty", empty, false},
		{"directory", dir, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(ir.Record{ID: tt.name, Output: tt.output})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, ir.IsCacheIntegrity(err))
		})
	}
}

func TestBestMatch_TieBreaksOnCount(t *testing.T) {
	pivot := ir.NewPoint(ir.P("x", ir.Float(1.0)))
	at := func(id string, x float64, count int64) ir.Record {
		return ir.Record{ID: id, Point: ir.NewPoint(ir.P("x", ir.Float(x))), Count: count}
	}
	candidates := []ir.Record{
		at("far", 1.2, 100),
		at("near-small", 1.05, 50),
		at("near-large", 0.95, 200),
	}

	best, ok := BestMatch(candidates, pivot)
	require.True(t, ok)
	assert.Equal(t, "near-large", best.ID)

	reversed := []ir.Record{candidates[2], candidates[1], candidates[0]}
	best, ok = BestMatch(reversed, pivot)
	require.True(t, ok)
	assert.Equal(t, "near-large", best.ID)
}

func TestBestMatch_EqualCountsKeepFirst(t *testing.T) {
	pivot := ir.NewPoint(ir.P("x", ir.Int(4)))
	candidates := []ir.Record{
		{ID: "first", Point: ir.NewPoint(ir.P("x", ir.Int(3))), Count: 10},
		{ID: "second", Point: ir.NewPoint(ir.P("x", ir.Int(5))), Count: 10},
	}
	best, ok := BestMatch(candidates, pivot)
	require.True(t, ok)
	assert.Equal(t, "first", best.ID)
}

func TestBestMatch_CategoricalMismatchOutweighsDistance(t *testing.T) {
	pivot := point(1, "a")
	candidates := []ir.Record{
		{ID: "wrong-mode", Point: point(1, "b"), Count: 10},
		{ID: "right-mode", Point: point(5, "a"), Count: 10},
	}
	best, ok := BestMatch(candidates, pivot)
	require.True(t, ok)
	assert.Equal(t, "right-mode", best.ID, "candidates: %v", names(candidates))

	assert.InDelta(t, 20.0, Score(candidates[0].Point, pivot), 1e-12)
	assert.InDelta(t, 4.0, Score(candidates[1].Point, pivot), 1e-12)
}

func TestBestMatch_Empty(t *testing.T) {
	_, ok := BestMatch(nil, point(1, "a"))
	assert.False(t, ok)
}
