package staged

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/restage/internal/cache"
	"github.com/roach88/restage/internal/energy"
	"github.com/roach88/restage/internal/execute"
	"github.com/roach88/restage/internal/instr"
	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/scan"
	"github.com/roach88/restage/internal/summary"
)

// Config is the immutable description of one staged scan.
type Config struct {
	SplitAt    string
	Mode       scan.Mode
	Runtime    execute.RuntimeOptions
	Dir        string // scan output; point n goes to <Dir>/<n>
	DataDir    string // upstream work directories go to <DataDir>/sim/<record id>
	Parallel   int
	Tolerances map[string]float64
	Summary    bool
	Plot       bool

	// Source and Params describe the request in summary headers.
	Source string
	Params []string
}

// Deps are the collaborators a Runner drives.
type Deps struct {
	Artifacts  *cache.ArtifactCache
	Results    *cache.ResultCache
	Executor   *execute.Executor
	Translator *energy.Translator // nil: no energy translation
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Result reports what a scan did.
type Result struct {
	Points       int // downstream points run
	Upstream     int // distinct upstream points
	UpstreamRuns int // upstream points simulated rather than reused
	ZeroYield    int // upstream points that produced no particles
	Summary      *summary.Scan
}

// Runner executes staged scans. A Runner is single-use.
type Runner struct {
	deps Deps

	mu    sync.Mutex
	state State
}

// New creates an idle Runner.
func New(deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Runner{deps: deps}
}

// State returns the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) transition(to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !canTransition(r.state, to) {
		panic(fmt.Sprintf("staged: illegal transition %s -> %s", r.state, to))
	}
	r.deps.Logger.Debug("staged transition", "from", r.state, "to", to)
	r.state = to
}

// fail moves a non-terminal runner to Failed and returns err.
func (r *Runner) fail(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.Terminal() {
		r.deps.Logger.Debug("staged transition", "from", r.state, "to", Failed)
		r.state = Failed
	}
	return err
}

// plan is the partitioned scan.
type plan struct {
	up, down  *instr.Instrument
	combined  *scan.Plan
	upNames   map[string]bool
	downNames map[string]bool
	table     ir.ResultTable // upstream records
}

// Run splits inst at cfg.SplitAt and runs the scan described by axes.
func (r *Runner) Run(ctx context.Context, inst *instr.Instrument, axes *scan.Axes, cfg Config) (Result, error) {
	if r.State() != Idle {
		return Result{}, fmt.Errorf("staged: runner already used (state %s)", r.State())
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	// Runs execute from their parent directory, so relative paths would
	// resolve differently for each invocation.
	for _, dir := range []*string{&cfg.Dir, &cfg.DataDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return Result{}, r.fail(fmt.Errorf("staged: %w", err))
		}
		*dir = abs
	}

	p, err := r.prepare(ctx, inst, axes, cfg)
	if err != nil {
		return Result{}, r.fail(err)
	}

	r.transition(PrimaryPending)
	res, zero, err := r.primary(ctx, p, cfg)
	if err != nil {
		return res, r.fail(err)
	}
	r.transition(PrimaryDone)

	r.transition(SecondaryPending)
	if err := r.secondary(ctx, p, cfg, zero, &res); err != nil {
		return res, r.fail(err)
	}
	r.transition(Complete)

	r.deps.Logger.Info("scan complete",
		"instrument", inst.Name(),
		"points", res.Points,
		"upstream", res.Upstream,
		"upstream_runs", res.UpstreamRuns,
		"zero_yield", res.ZeroYield)
	return res, nil
}

// prepare splits the instrument, translates energies and partitions the
// requested axes between the halves.
func (r *Runner) prepare(ctx context.Context, inst *instr.Instrument, axes *scan.Axes, cfg Config) (*plan, error) {
	particle := r.deps.Executor.ParticleParameter()
	up, down, err := inst.Split(cfg.SplitAt, particle)
	if err != nil {
		return nil, err
	}
	if _, set := axes.Get(particle); set {
		return nil, ir.Configuration("staged.prepare", "%q is set by the runner and cannot be scanned", particle)
	}

	translated := axes
	if r.deps.Translator != nil {
		translated, err = r.deps.Translator.Translate(ctx, inst.Name(), axes, cfg.Mode)
		if err != nil {
			return nil, err
		}
	}

	p := &plan{up: up, down: down, upNames: make(map[string]bool), downNames: make(map[string]bool)}
	for _, n := range translated.Names() {
		inUp, inDown := up.HasParameter(n), down.HasParameter(n)
		p.upNames[n] = inUp
		p.downNames[n] = inDown
		if !inUp && !inDown {
			r.deps.Logger.Debug("dropping parameter used by neither half", "parameter", n)
		}
	}
	kept := translated.Subset(func(n string) bool { return p.upNames[n] || p.downNames[n] })
	p.combined, err = scan.Expand(kept, cfg.Mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// points returns the combined scan points; an empty scan is one point of
// defaults.
func (p *plan) points() []ir.Point {
	if p.combined.Len() == 0 {
		return []ir.Point{ir.NewPoint()}
	}
	out := make([]ir.Point, 0, p.combined.Len())
	for _, pt := range p.combined.Points() {
		out = append(out, pt)
	}
	return out
}

func (p *plan) upstreamPoint(pt ir.Point, particle string) (ir.Point, error) {
	return p.up.Complete(pt.Project(func(n string) bool { return p.upNames[n] }), particle)
}

func (r *Runner) query(pt ir.Point, cfg Config) ir.Record {
	return ir.NewQuery(pt, cfg.Tolerances, cfg.Runtime.Seed, cfg.Runtime.Count, cfg.Runtime.Gravitation)
}

// primary simulates every distinct upstream point missing from the cache.
// It returns the keys of points that produced no particles.
func (r *Runner) primary(ctx context.Context, p *plan, cfg Config) (Result, map[string]bool, error) {
	particle := r.deps.Executor.ParticleParameter()
	artifact, err := r.deps.Artifacts.Insert(ctx, p.up)
	if err != nil {
		return Result{}, nil, err
	}
	names := slices.DeleteFunc(p.up.ParameterNames(), func(n string) bool { return n == particle })
	table, err := r.deps.Results.EnsureTable(ctx, artifact, names)
	if err != nil {
		return Result{}, nil, err
	}
	p.table = table

	// Distinct upstream points, in scan order.
	type pending struct {
		key   string
		query ir.Record
	}
	var todo []pending
	seen := make(map[string]bool)
	for _, pt := range p.points() {
		upPt, err := p.upstreamPoint(pt, particle)
		if err != nil {
			return Result{}, nil, err
		}
		q := r.query(upPt, cfg)
		key, err := ir.PointKey(table.ID, q)
		if err != nil {
			return Result{}, nil, err
		}
		if !seen[key] {
			seen[key] = true
			todo = append(todo, pending{key: key, query: q})
		}
	}

	var (
		mu   sync.Mutex
		res  = Result{Upstream: len(todo)}
		zero = make(map[string]bool)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for _, item := range todo {
		g.Go(func() error {
			var outcome execute.Outcome
			rec, hit, err := r.deps.Results.GetOrCreate(gctx, table, item.query, func(ctx context.Context, id string) (ir.Record, error) {
				var err error
				outcome, err = r.deps.Executor.Execute(ctx, execute.Request{
					Binary:  artifact.BinaryPath,
					Params:  item.query.Point,
					Runtime: cfg.Runtime,
					WorkDir: filepath.Join(cfg.DataDir, "sim", id),
					Name:    id,
				})
				if err != nil {
					return ir.Record{}, err
				}
				rec := item.query
				rec.Output = outcome.Output
				return rec, nil
			})
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if !hit {
				res.UpstreamRuns++
			}
			if rec.Output == "" {
				res.ZeroYield++
				zero[item.key] = true
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, nil, err
	}
	return res, zero, nil
}

// secondary runs the downstream half for every combined point.
func (r *Runner) secondary(ctx context.Context, p *plan, cfg Config, zero map[string]bool, res *Result) error {
	downArtifact, err := r.deps.Artifacts.Insert(ctx, p.down)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("staged: %w", err)
	}

	points := p.points()
	var sum *summary.Scan
	if cfg.Summary {
		sum = summary.NewScan(p.down.Name(), cfg.Source, p.combined.Names(), len(points))
		sum.Count = cfg.Runtime.Count
		sum.Params = cfg.Params
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for i, pt := range points {
		g.Go(func() error {
			ran, err := r.secondaryPoint(gctx, p, cfg, downArtifact, zero, i, pt, sum)
			if err != nil {
				return fmt.Errorf("point %d (%s): %w", i, pt, err)
			}
			if ran {
				mu.Lock()
				res.Points++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if sum != nil {
		sum.Date = r.deps.Clock()
		if err := sum.WriteFiles(cfg.Dir); err != nil {
			return err
		}
		if cfg.Plot {
			if len(sum.DetectorNames()) == 0 {
				r.deps.Logger.Warn("no detectors to plot")
			} else if err := sum.Plot(filepath.Join(cfg.Dir, summary.PlotFile), 0); err != nil {
				return err
			}
		}
		res.Summary = sum
	}
	return nil
}

func (r *Runner) secondaryPoint(ctx context.Context, p *plan, cfg Config, downArtifact ir.Artifact,
	zero map[string]bool, i int, pt ir.Point, sum *summary.Scan) (bool, error) {
	particle := r.deps.Executor.ParticleParameter()
	upPt, err := p.upstreamPoint(pt, particle)
	if err != nil {
		return false, err
	}
	q := r.query(upPt, cfg)
	key, err := ir.PointKey(p.table.ID, q)
	if err != nil {
		return false, err
	}

	if sum != nil {
		defer func() {
			// Rows of skipped points keep their scan values with no detectors.
			if sum.Rows[i].Values == nil {
				sum.SetRow(i, rowValues(p.combined.Names(), pt), nil)
			}
		}()
	}

	rec, ok, err := r.deps.Results.Lookup(ctx, p.table, q)
	if err != nil {
		return false, err
	}
	if !ok {
		if zero[key] {
			r.deps.Logger.Warn("skipping point without upstream particles", "point", i, "params", upPt.String())
			return false, nil
		}
		return false, ir.CacheIntegrity("staged.secondary", "upstream record for %s is missing", upPt)
	}
	if err := cache.Verify(rec); err != nil {
		return false, err
	}

	downPt := pt.Project(func(n string) bool { return p.downNames[n] })
	downPt.Set(particle, ir.Str(rec.Output))
	params, err := p.down.Complete(downPt)
	if err != nil {
		return false, err
	}

	dir := filepath.Join(cfg.Dir, strconv.Itoa(i))
	r.deps.Logger.Debug("running downstream point", "point", i, "upstream", rec.ID, "dir", dir)
	if err := r.deps.Executor.RunOnce(ctx, downArtifact.BinaryPath, params, cfg.Runtime, dir); err != nil {
		return false, err
	}

	if sum != nil {
		dets, err := pointDetectors(dir)
		if err != nil {
			return false, err
		}
		sum.SetRow(i, rowValues(p.combined.Names(), pt), dets)
	}
	return true, nil
}

func rowValues(names []string, pt ir.Point) []ir.Value {
	out := make([]ir.Value, len(names))
	for i, n := range names {
		out[i], _ = pt.Get(n)
	}
	return out
}

func pointDetectors(dir string) ([]summary.Detector, error) {
	f, err := summary.ParseFile(filepath.Join(dir, summary.SimFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f.Detectors()
}
