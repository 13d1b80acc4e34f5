package execute

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/mcpl"
	"github.com/roach88/restage/internal/metrics"
	"github.com/roach88/restage/internal/summary"
)

// Defaults for Options.
const (
	DefaultMinBatch          = 10000
	DefaultParticleParameter = "mcpl_filename"
)

// Options configures an Executor.
type Options struct {
	// MinBatch is both the smallest sub-run request and the smallest target
	// worth repeating for.
	MinBatch          int64
	ParticleParameter string
	Runner            Runner
	Particles         mcpl.Tool
	Logger            *slog.Logger
	Metrics           *metrics.Recorder
}

// Executor runs instruments and accumulates particle output.
type Executor struct {
	opts Options
}

// New creates an Executor, filling defaults.
func New(opts Options) *Executor {
	if opts.MinBatch <= 0 {
		opts.MinBatch = DefaultMinBatch
	}
	if opts.ParticleParameter == "" {
		opts.ParticleParameter = DefaultParticleParameter
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{Logger: opts.Logger}
	}
	if opts.Particles == nil {
		opts.Particles = mcpl.ExecTool{Logger: opts.Logger}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Executor{opts: opts}
}

// ParticleParameter returns the name of the particle file parameter.
func (e *Executor) ParticleParameter() string {
	return e.opts.ParticleParameter
}

// Request describes one upstream point.
type Request struct {
	Binary  string
	Params  ir.Point // instrument parameters, without the particle file
	Runtime RuntimeOptions
	// WorkDir receives the merged output. Its parent must exist; WorkDir
	// itself must not.
	WorkDir string
	// Name is the stem of the merged particle file, usually the record id.
	Name string
}

// Outcome is the merged result of a Request.
type Outcome struct {
	// Output is the real path of the merged particle file; empty when the
	// point produced nothing.
	Output      string
	Requested   []int64 // particle count asked of each invocation
	Produced    int64
	ZeroYield   bool
	Invocations int
}

// Execute runs req. Without a count target, or with a target below
// MinBatch, the instrument runs once. Otherwise sub-runs repeat until the
// produced particles reach the target or a sub-run yields nothing.
func (e *Executor) Execute(ctx context.Context, req Request) (Outcome, error) {
	if req.Runtime.Count <= 0 || req.Runtime.Count < e.opts.MinBatch {
		return e.direct(ctx, req)
	}
	return e.repeat(ctx, req)
}

func (e *Executor) direct(ctx context.Context, req Request) (Outcome, error) {
	if err := checkFresh(req.WorkDir); err != nil {
		return Outcome{}, err
	}
	target := filepath.Join(req.WorkDir, req.Name+".mcpl")
	params := withParticleFile(req.Params, e.opts.ParticleParameter, target)

	if err := e.invoke(ctx, metrics.StageUpstream, req.Binary, Args(req.Runtime, req.WorkDir, params), filepath.Dir(req.WorkDir)); err != nil {
		return Outcome{}, err
	}
	real, n, err := e.count(ctx, target)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Requested: []int64{req.Runtime.Count}, Produced: n, Invocations: 1}
	if n == 0 {
		e.zeroYield(req, 1)
		out.ZeroYield = true
		return out, nil
	}
	out.Output = real
	return out, nil
}

func (e *Executor) repeat(ctx context.Context, req Request) (Outcome, error) {
	if err := checkFresh(req.WorkDir); err != nil {
		return Outcome{}, err
	}
	if err := os.MkdirAll(req.WorkDir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("execute: %w", err)
	}

	seeds := NewSeedSource(req.Runtime.Seed)
	var (
		out       Outcome
		parts     []string
		dirs      []string
		remaining = req.Runtime.Count
		request   = req.Runtime.Count
		last      = int64(-1)
	)
	for remaining > 0 {
		if last == 0 {
			e.zeroYield(req, out.Invocations)
			out.ZeroYield = true
			break
		}
		if last > 0 {
			remaining -= last
			if remaining <= 0 {
				break
			}
			request = projectRequest(remaining, request, last)
		}
		request = max(request, e.opts.MinBatch)

		n := out.Invocations
		sub := filepath.Join(req.WorkDir, strconv.Itoa(n))
		part := filepath.Join(req.WorkDir, fmt.Sprintf("part_%d.mcpl", n))
		rt := req.Runtime
		seed := seeds.Next()
		rt.Seed = &seed
		rt.Count = request

		params := withParticleFile(req.Params, e.opts.ParticleParameter, part)
		if err := e.invoke(ctx, metrics.StageUpstream, req.Binary, Args(rt, sub, params), req.WorkDir); err != nil {
			return Outcome{}, err
		}
		real, produced, err := e.count(ctx, part)
		if err != nil {
			return Outcome{}, err
		}
		e.opts.Logger.Debug("sub-run finished",
			"point", req.Name,
			"run", n,
			"requested", request,
			"produced", produced,
			"remaining", remaining-produced)

		out.Invocations++
		out.Requested = append(out.Requested, request)
		out.Produced += produced
		dirs = append(dirs, sub)
		if produced > 0 {
			parts = append(parts, real)
		} else if err := os.Remove(real); err != nil {
			e.opts.Logger.Warn("removing empty part", "file", real, "error", err)
		}
		last = produced
	}

	if len(parts) > 0 {
		merged, err := e.opts.Particles.Merge(ctx, filepath.Join(req.WorkDir, req.Name+".mcpl"), parts)
		if err != nil {
			return Outcome{}, fmt.Errorf("merge particle files: %w", err)
		}
		out.Output = merged
	}
	if _, err := summary.MergeDirectories(dirs, req.WorkDir, e.opts.Logger); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Outcome{}, fmt.Errorf("merge summaries: %w", err)
	}
	for _, d := range dirs {
		if err := os.RemoveAll(d); err != nil {
			e.opts.Logger.Warn("removing sub-run directory", "dir", d, "error", err)
		}
	}
	return out, nil
}

// RunOnce runs binary a single time with its output in dir, which must not
// exist yet. It is used for downstream stages, which consume rather than
// produce particle files.
func (e *Executor) RunOnce(ctx context.Context, binary string, params ir.Point, rt RuntimeOptions, dir string) error {
	if err := checkFresh(dir); err != nil {
		return err
	}
	return e.invoke(ctx, metrics.StageDownstream, binary, Args(rt, dir, params), filepath.Dir(dir))
}

func (e *Executor) invoke(ctx context.Context, stage, binary string, args []string, cwd string) error {
	if err := os.MkdirAll(cwd, 0o755); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	start := time.Now()
	err := e.opts.Runner.Run(ctx, binary, args, cwd)
	e.opts.Metrics.Invocation(stage, time.Since(start))
	if err != nil {
		return ir.Execution("execute.run", err, "running %s", filepath.Base(binary))
	}
	return nil
}

func (e *Executor) count(ctx context.Context, path string) (string, int64, error) {
	real, err := mcpl.RealFilename(path)
	if err != nil {
		return "", 0, ir.Execution("execute.count", err, "run wrote no particle file")
	}
	n, err := e.opts.Particles.Count(ctx, real)
	if err != nil {
		return "", 0, ir.Execution("execute.count", err, "counting %s", real)
	}
	e.opts.Metrics.Particles(metrics.StageUpstream, n)
	return real, n, nil
}

func (e *Executor) zeroYield(req Request, runs int) {
	e.opts.Logger.Warn("run produced no particles, stopping",
		"point", req.Name,
		"params", req.Params.String(),
		"invocations", runs,
		"reason", ir.ErrZeroYield)
}

func withParticleFile(p ir.Point, name, path string) ir.Point {
	out := p.Clone()
	out.Set(name, ir.Str(path))
	return out
}

// checkFresh refuses to reuse an output directory; McCode will not write
// into an existing one.
func checkFresh(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		return ir.Configuration("execute", "output directory %s already exists", dir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}

// projectRequest scales the last request by the remaining count over the
// observed yield. The result saturates at math.MaxInt64.
func projectRequest(remaining, request, yield int64) int64 {
	f := math.Ceil(float64(remaining) * float64(request) / float64(yield))
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}
