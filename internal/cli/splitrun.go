package cli

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/restage/internal/config"
	"github.com/roach88/restage/internal/execute"
	"github.com/roach88/restage/internal/instr"
	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/scan"
	"github.com/roach88/restage/internal/staged"
)

// SplitrunOptions holds flags for the splitrun command.
type SplitrunOptions struct {
	*RootOptions
	SplitAt     string
	Mesh        bool
	Seed        int64
	Count       string
	Dir         string
	Trace       bool
	Gravitation bool
	BufSize     int64
	DataFormat  string
	Parallel    int
	NoSummary   bool
	Plot        bool
	MetricsFile string

	// With overrides external programs (for testing).
	With Collaborators
	// Clock stamps summaries and default directory names; nil is time.Now.
	Clock func() time.Time
}

// SplitrunResult is the report of a finished scan.
type SplitrunResult struct {
	Instrument   string  `json:"instrument"`
	Dir          string  `json:"dir"`
	Points       int     `json:"points"`
	Upstream     int     `json:"upstream"`
	UpstreamRuns int     `json:"upstream_runs"`
	ZeroYield    int     `json:"zero_yield"`
	Invocations  int64   `json:"invocations"`
	P50Seconds   float64 `json:"p50_seconds"`
	MaxSeconds   float64 `json:"max_seconds"`
}

// NewSplitrunCommand creates the splitrun command.
func NewSplitrunCommand(rootOpts *RootOptions) *cobra.Command {
	return newSplitrunCommand(&SplitrunOptions{RootOptions: rootOpts})
}

func newSplitrunCommand(opts *SplitrunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "splitrun <instrument.cue> [name=spec ...]",
		Short: "Run a scan with a cached upstream half",
		Long: `Split an instrument at a component and run a parameter scan.

Each assignment is name=value, name=start:stop, name=start:step:stop or
name=a,b,c. Assignments advance together unless --mesh is given, in which
case every combination is run. Energy (ei, energy, e) or wavelength
(wavelength, lambda) assignments are translated into chopper settings for
known instrument families.

Example:
  restage splitrun bifrost.cue -n 1e6 -d scan1 sample_angle=0:10:90
  restage splitrun bifrost.cue -m -n 1e7 -d scan2 ei=3:0.5:5 a3=0:45`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplitrun(opts, args[0], args[1:], cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.SplitAt, "split-at", "mcpl_split", "component at which to split the instrument")
	f.BoolVarP(&opts.Mesh, "mesh", "m", false, "run every combination of the scan assignments")
	f.Int64VarP(&opts.Seed, "seed", "s", 0, "random number seed")
	f.StringVarP(&opts.Count, "ncount", "n", "", "number of neutrons to simulate upstream (e.g. 1e6)")
	f.StringVarP(&opts.Dir, "dir", "d", "", "output directory (default <instrument>_<timestamp>)")
	f.BoolVarP(&opts.Trace, "trace", "t", false, "enable trace mode")
	f.BoolVarP(&opts.Gravitation, "gravitation", "g", false, "enable gravitation")
	f.Int64Var(&opts.BufSize, "bufsiz", 0, "monitor buffer size")
	f.StringVar(&opts.DataFormat, "data-format", "", "simulation output data format")
	f.IntVar(&opts.Parallel, "parallel", 0, "points to run at once (default from config)")
	f.BoolVar(&opts.NoSummary, "no-summary", false, "do not write the combined scan summary")
	f.BoolVar(&opts.Plot, "plot", false, "plot the first detector of the scan")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file")

	return cmd
}

func runSplitrun(opts *SplitrunOptions, path string, assignments []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return formatter.Fail("failed to load configuration", err)
	}
	inst, err := instr.Load(path)
	if err != nil {
		return formatter.Fail("failed to load instrument", err)
	}
	axes, err := scan.ParseAssignments(assignments)
	if err != nil {
		return formatter.Fail("invalid scan", err)
	}
	runtime, err := opts.runtime(cmd)
	if err != nil {
		return formatter.Fail("invalid options", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	dir := opts.Dir
	if dir == "" {
		dir = fmt.Sprintf("%s_%s", inst.Name(), clock().Format("20060102_150405"))
	}
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = cfg.Parallel
	}

	a, err := openApp(cfg, logger, opts.With)
	if err != nil {
		return formatter.Fail("failed to open cache", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := staged.New(staged.Deps{
		Artifacts:  a.artifacts,
		Results:    a.results,
		Executor:   a.executor,
		Translator: a.translator,
		Logger:     logger,
		Clock:      clock,
	})
	absPath, _ := filepath.Abs(path)
	res, err := runner.Run(ctx, inst, axes, staged.Config{
		SplitAt:    opts.SplitAt,
		Mode:       scan.ModeOf(opts.Mesh),
		Runtime:    runtime,
		Dir:        dir,
		DataDir:    cfg.DataDir,
		Parallel:   parallel,
		Tolerances: cfg.Tolerances,
		Summary:    !opts.NoSummary,
		Plot:       opts.Plot && !opts.NoSummary,
		Source:     absPath,
		Params:     assignments,
	})
	if opts.MetricsFile != "" {
		if werr := a.metrics.WriteTextfile(opts.MetricsFile); werr != nil {
			logger.Warn("could not write metrics", "path", opts.MetricsFile, "error", werr)
		}
	}
	if err != nil {
		return formatter.Fail(fmt.Sprintf("scan of %s failed in state %s", inst.Name(), runner.State()), err)
	}

	sum := a.metrics.Summary()
	result := SplitrunResult{
		Instrument:   inst.Name(),
		Dir:          dir,
		Points:       res.Points,
		Upstream:     res.Upstream,
		UpstreamRuns: res.UpstreamRuns,
		ZeroYield:    res.ZeroYield,
		Invocations:  sum.Count,
		P50Seconds:   sum.P50.Seconds(),
		MaxSeconds:   sum.Max.Seconds(),
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	printSplitrun(formatter, result)
	return nil
}

func printSplitrun(f *OutputFormatter, r SplitrunResult) {
	c := f.colors()
	fmt.Fprintf(f.Writer, "%s %s -> %s\n", c.Success.Sprint("✓"), c.Heading.Sprint(r.Instrument), r.Dir)
	fmt.Fprintf(f.Writer, "  %s %d\n", c.Key.Sprint("points:"), r.Points)
	fmt.Fprintf(f.Writer, "  %s %d (%d simulated, %d reused)\n", c.Key.Sprint("upstream:"),
		r.Upstream, r.UpstreamRuns, r.Upstream-r.UpstreamRuns)
	if r.ZeroYield > 0 {
		fmt.Fprintf(f.Writer, "  %s %d upstream point(s) produced no particles\n", c.Warn.Sprint("warning:"), r.ZeroYield)
	}
	fmt.Fprintf(f.Writer, "  %s %d (p50 %.1fs, max %.1fs)\n", c.Key.Sprint("invocations:"),
		r.Invocations, r.P50Seconds, r.MaxSeconds)
}

// runtime collects the simulation flags.
func (o *SplitrunOptions) runtime(cmd *cobra.Command) (execute.RuntimeOptions, error) {
	rt := execute.RuntimeOptions{
		Trace:       o.Trace,
		Gravitation: o.Gravitation,
		BufSize:     o.BufSize,
		Format:      o.DataFormat,
	}
	if cmd.Flags().Changed("seed") {
		seed := o.Seed
		rt.Seed = &seed
	}
	if o.Count != "" {
		n, err := parseCount(o.Count)
		if err != nil {
			return execute.RuntimeOptions{}, err
		}
		rt.Count = n
	}
	return rt, nil
}

// parseCount accepts integers and float notation such as 1e6.
func parseCount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > math.MaxInt64 || f != math.Trunc(f) {
		return 0, ir.Configuration("cli.ncount", "invalid particle count %q", s)
	}
	return int64(f), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
