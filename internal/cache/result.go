package cache

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/metrics"
)

// scoreEpsilon is the relative difference below which two best-match
// scores count as tied.
const scoreEpsilon = 1e-9

// ResultOptions configures a ResultCache.
type ResultOptions struct {
	IDs     ir.IDGenerator
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	Name    string // label for logs, e.g. "upstream"
}

// ResultCache is the fuzzy-keyed store of completed runs.
type ResultCache struct {
	backend Backend
	opts    ResultOptions
	group   singleflight.Group
}

// NewResultCache creates a cache over backend.
func NewResultCache(backend Backend, opts ResultOptions) *ResultCache {
	if opts.IDs == nil {
		opts.IDs = ir.UUIDv7Generator{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ResultCache{backend: backend, opts: opts}
}

// NewID returns a fresh record id, which is also the run's working
// directory name.
func (c *ResultCache) NewID() string {
	return c.opts.IDs.Generate()
}

// EnsureTable returns the artifact's descriptor, creating it with names on
// first use. An existing descriptor with a different name set is a
// configuration error.
func (c *ResultCache) EnsureTable(ctx context.Context, artifact ir.Artifact, names []string) (ir.ResultTable, error) {
	t, found, err := c.backend.ResultTable(ctx, artifact.ID)
	if err != nil {
		return ir.ResultTable{}, fmt.Errorf("ensure table: %w", err)
	}
	if !found {
		t, err = c.backend.CreateResultTable(ctx, ir.ResultTable{
			ID:             c.opts.IDs.Generate(),
			ArtifactID:     artifact.ID,
			ParameterNames: names,
		})
		if err != nil {
			return ir.ResultTable{}, fmt.Errorf("ensure table: %w", err)
		}
	}
	if !t.SameNames(names) {
		return ir.ResultTable{}, ir.Configuration("result.table",
			"%s expects parameters %v, got %v", artifact.Name, t.ParameterNames, names)
	}
	return t, nil
}

// Get returns every record matching q. An empty result is a miss.
func (c *ResultCache) Get(ctx context.Context, t ir.ResultTable, q ir.Record) ([]ir.Record, error) {
	if !t.SameNames(q.Point.Names()) {
		return nil, ir.Configuration("result.get",
			"query parameters %v do not match table %v", q.Point.Names(), t.ParameterNames)
	}
	found, err := c.backend.FindRecords(ctx, t, q)
	if err != nil {
		return nil, fmt.Errorf("result get: %w", err)
	}
	return found, nil
}

// Lookup returns the best record matching q, if any.
func (c *ResultCache) Lookup(ctx context.Context, t ir.ResultTable, q ir.Record) (ir.Record, bool, error) {
	found, err := c.Get(ctx, t, q)
	if err != nil {
		return ir.Record{}, false, err
	}
	best, ok := BestMatch(found, q.Point)
	if ok {
		c.opts.Metrics.CacheLookup(metrics.CacheResult, metrics.OutcomeHit)
		c.opts.Logger.Debug("result cache hit",
			"cache", c.opts.Name,
			"point", q.Point.String(),
			"record", best.ID,
			"candidates", len(found))
	} else {
		c.opts.Metrics.CacheLookup(metrics.CacheResult, metrics.OutcomeMiss)
	}
	return best, ok, nil
}

// Put commits r after verifying its output exists and is non-empty.
func (c *ResultCache) Put(ctx context.Context, t ir.ResultTable, r ir.Record) error {
	if r.ID == "" {
		return fmt.Errorf("result put: record has no id")
	}
	if err := Verify(r); err != nil {
		return err
	}
	r.TableID = t.ID
	if err := c.backend.InsertRecord(ctx, t, r); err != nil {
		return fmt.Errorf("result put: %w", err)
	}
	c.opts.Metrics.CacheLookup(metrics.CacheResult, metrics.OutcomeCreated)
	return nil
}

// CreateFunc produces a new record for a cache miss. id is the record id
// to use; the returned record must carry it.
type CreateFunc func(ctx context.Context, id string) (ir.Record, error)

// GetOrCreate returns the best cached match for q, or runs create and
// commits its result. Concurrent calls for the same (table, point) share
// one create. hit reports whether the record came from the cache.
//
// A create returning a record with an empty Output is treated as a run
// that produced nothing: it is returned but not committed.
func (c *ResultCache) GetOrCreate(ctx context.Context, t ir.ResultTable, q ir.Record, create CreateFunc) (rec ir.Record, hit bool, err error) {
	key, err := ir.PointKey(t.ID, q)
	if err != nil {
		return ir.Record{}, false, err
	}

	type result struct {
		rec ir.Record
		hit bool
	}
	v, err, shared := c.group.Do(key, func() (any, error) {
		best, ok, err := c.Lookup(ctx, t, q)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := Verify(best); err != nil {
				return nil, err
			}
			return result{rec: best, hit: true}, nil
		}

		id := c.NewID()
		created, err := create(ctx, id)
		if err != nil {
			return nil, err
		}
		created.ID = id
		if created.Output == "" {
			return result{rec: created}, nil
		}
		if err := c.Put(ctx, t, created); err != nil {
			return nil, err
		}
		return result{rec: created}, nil
	})
	if err != nil {
		return ir.Record{}, false, err
	}
	if shared {
		c.opts.Metrics.CacheLookup(metrics.CacheResult, metrics.OutcomeShared)
	}
	res := v.(result)
	return res.rec, res.hit, nil
}

// Table returns the descriptor of an artifact's results, if one exists.
func (c *ResultCache) Table(ctx context.Context, artifactID string) (ir.ResultTable, bool, error) {
	return c.backend.ResultTable(ctx, artifactID)
}

// Records lists every record of t.
func (c *ResultCache) Records(ctx context.Context, t ir.ResultTable) ([]ir.Record, error) {
	return c.backend.ListRecords(ctx, t)
}

// Verify checks that a record's output artifact exists and is non-empty.
// A cached record whose output is gone means the cache and the filesystem
// disagree; that is never repaired silently.
func Verify(r ir.Record) error {
	info, err := os.Stat(r.Output)
	if err != nil {
		return ir.CacheIntegrity("result.verify", "record %s output %q: %v", r.ID, r.Output, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return ir.CacheIntegrity("result.verify", "record %s output %q is empty", r.ID, r.Output)
	}
	return nil
}

// Score is the distance of candidate from pivot: the sum of absolute
// numeric differences plus 10 x len(pivot) for every categorical mismatch,
// so a categorical mismatch always outweighs numeric spread inside a
// tolerance window.
func Score(candidate, pivot ir.Point) float64 {
	penalty := 10 * float64(pivot.Len())
	total := 0.0
	for _, pair := range pivot.Pairs() {
		cv, ok := candidate.Get(pair.Name)
		if !ok {
			total += penalty
			continue
		}
		pn, pNum := ir.Numeric(pair.Value)
		cn, cNum := ir.Numeric(cv)
		if pNum && cNum {
			total += math.Abs(cn - pn)
			continue
		}
		if !ir.Equal(cv, pair.Value) {
			total += penalty
		}
	}
	return total
}

// BestMatch picks the candidate closest to pivot. Ties go to the larger
// requested count, then to the earlier candidate.
func BestMatch(candidates []ir.Record, pivot ir.Point) (ir.Record, bool) {
	if len(candidates) == 0 {
		return ir.Record{}, false
	}
	best := 0
	bestScore := Score(candidates[0].Point, pivot)
	for i := 1; i < len(candidates); i++ {
		s := Score(candidates[i].Point, pivot)
		switch {
		case tied(s, bestScore):
			if candidates[i].Count > candidates[best].Count {
				best, bestScore = i, s
			}
		case s < bestScore:
			best, bestScore = i, s
		}
	}
	return candidates[best], true
}

func tied(a, b float64) bool {
	scale := math.Max(math.Abs(a), math.Abs(b))
	return math.Abs(a-b) <= scoreEpsilon*math.Max(scale, 1)
}
