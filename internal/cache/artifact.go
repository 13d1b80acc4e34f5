package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/metrics"
)

// Instrument is what the artifact cache needs from an instrument model.
type Instrument interface {
	Name() string
	Source() string
}

// Compiled is a compiler's output.
type Compiled struct {
	BinaryPath       string
	ToolchainVersion string
}

// Compiler turns an instrument into an executable inside outDir.
type Compiler interface {
	Compile(ctx context.Context, inst Instrument, outDir string) (Compiled, error)
}

// ArtifactOptions configures an ArtifactCache.
type ArtifactOptions struct {
	BinDir  string // binaries go to <BinDir>/<artifact id>/
	IDs     ir.IDGenerator
	Clock   func() time.Time
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// ArtifactCache is the exact-match instrument cache.
type ArtifactCache struct {
	backend  Backend
	compiler Compiler
	opts     ArtifactOptions
	group    singleflight.Group
}

// NewArtifactCache creates a cache over backend.
func NewArtifactCache(backend Backend, compiler Compiler, opts ArtifactOptions) *ArtifactCache {
	if opts.IDs == nil {
		opts.IDs = ir.UUIDv7Generator{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ArtifactCache{backend: backend, compiler: compiler, opts: opts}
}

// Lookup returns the artifact whose source is byte-identical to source.
// More than one match is a cache integrity error.
func (c *ArtifactCache) Lookup(ctx context.Context, source string) (ir.Artifact, bool, error) {
	found, err := c.backend.FindArtifacts(ctx, ir.Fingerprint(source), source)
	if err != nil {
		return ir.Artifact{}, false, fmt.Errorf("artifact lookup: %w", err)
	}
	switch len(found) {
	case 0:
		return ir.Artifact{}, false, nil
	case 1:
		return found[0], true, nil
	default:
		return ir.Artifact{}, false, ir.CacheIntegrity("artifact.lookup",
			"%d artifacts stored for identical source of %s", len(found), found[0].Name)
	}
}

// Insert returns the cached artifact for inst, compiling and storing it on
// a miss. Concurrent inserts of the same source compile once.
func (c *ArtifactCache) Insert(ctx context.Context, inst Instrument) (ir.Artifact, error) {
	fingerprint := ir.Fingerprint(inst.Source())
	v, err, shared := c.group.Do(fingerprint, func() (any, error) {
		return c.insert(ctx, inst, fingerprint)
	})
	if err != nil {
		return ir.Artifact{}, err
	}
	if shared {
		c.opts.Metrics.CacheLookup(metrics.CacheArtifact, metrics.OutcomeShared)
	}
	return v.(ir.Artifact), nil
}

func (c *ArtifactCache) insert(ctx context.Context, inst Instrument, fingerprint string) (ir.Artifact, error) {
	existing, ok, err := c.Lookup(ctx, inst.Source())
	if err != nil {
		return ir.Artifact{}, err
	}
	if ok {
		c.opts.Metrics.CacheLookup(metrics.CacheArtifact, metrics.OutcomeHit)
		c.opts.Logger.Debug("artifact cache hit", "instrument", inst.Name(), "artifact", existing.ID)
		return existing, nil
	}
	c.opts.Metrics.CacheLookup(metrics.CacheArtifact, metrics.OutcomeMiss)

	id := c.opts.IDs.Generate()
	outDir := filepath.Join(c.opts.BinDir, id)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return ir.Artifact{}, fmt.Errorf("artifact insert: %w", err)
	}

	c.opts.Logger.Info("compiling instrument", "instrument", inst.Name(), "dir", outDir)
	compiled, err := c.compiler.Compile(ctx, inst, outDir)
	if err != nil {
		os.RemoveAll(outDir)
		return ir.Artifact{}, ir.Execution("artifact.compile", err, "compiling %s", inst.Name())
	}

	stored, inserted, err := c.backend.InsertArtifact(ctx, ir.Artifact{
		ID:               id,
		Name:             inst.Name(),
		Fingerprint:      fingerprint,
		Source:           inst.Source(),
		BinaryPath:       compiled.BinaryPath,
		ToolchainVersion: compiled.ToolchainVersion,
		CreatedAt:        c.opts.Clock().UTC(),
	})
	if err != nil {
		os.RemoveAll(outDir)
		return ir.Artifact{}, err
	}
	if !inserted {
		// Another process stored the same source first; use theirs.
		os.RemoveAll(outDir)
		c.opts.Logger.Debug("artifact stored concurrently", "instrument", inst.Name(), "artifact", stored.ID)
		return stored, nil
	}

	c.opts.Metrics.CacheLookup(metrics.CacheArtifact, metrics.OutcomeCreated)
	c.opts.Logger.Info("artifact cached",
		"instrument", inst.Name(),
		"artifact", stored.ID,
		"binary", stored.BinaryPath,
		"toolchain", stored.ToolchainVersion)
	return stored, nil
}

// List returns every cached artifact.
func (c *ArtifactCache) List(ctx context.Context) ([]ir.Artifact, error) {
	return c.backend.ListArtifacts(ctx)
}
