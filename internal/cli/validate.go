package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/restage/internal/config"
	"github.com/roach88/restage/internal/energy"
	"github.com/roach88/restage/internal/instr"
	"github.com/roach88/restage/internal/scan"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	SplitAt string
}

// ValidationResult describes how an instrument splits.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Instrument string   `json:"instrument"`
	SplitAt    string   `json:"split_at"`
	Upstream   []string `json:"upstream"`
	Downstream []string `json:"downstream"`
	Shared     []string `json:"shared,omitempty"`
	// Scan names which half each requested assignment reaches.
	Scan map[string]string `json:"scan,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <instrument.cue> [name=spec ...]",
		Short: "Check an instrument description and its split",
		Long: `Load an instrument description, split it at --split-at and report
which parameters belong to the upstream and downstream halves.

Scan assignments, when given, are parsed and attributed to the half they
would reach; nothing is compiled or run.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], args[1:], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.SplitAt, "split-at", "mcpl_split", "component at which to split the instrument")
	return cmd
}

func runValidate(opts *ValidateOptions, path string, assignments []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return formatter.Fail("failed to load configuration", err)
	}
	inst, err := instr.Load(path)
	if err != nil {
		return formatter.Fail("invalid instrument", err)
	}
	formatter.VerboseLog("loaded %s: %d parameters, %d components",
		inst.Name(), len(inst.Parameters()), len(inst.Components()))

	up, down, err := inst.Split(opts.SplitAt, cfg.ParticleParameter)
	if err != nil {
		return formatter.Fail("invalid split", err)
	}
	axes, err := scan.ParseAssignments(assignments)
	if err != nil {
		return formatter.Fail("invalid scan", err)
	}

	result := ValidationResult{
		Valid:      true,
		Instrument: inst.Name(),
		SplitAt:    opts.SplitAt,
	}
	for _, name := range inst.ParameterNames() {
		inUp, inDown := up.HasParameter(name), down.HasParameter(name)
		switch {
		case inUp && inDown:
			result.Shared = append(result.Shared, name)
			fallthrough
		case inUp:
			result.Upstream = append(result.Upstream, name)
		}
		if inDown {
			result.Downstream = append(result.Downstream, name)
		}
	}
	if axes.Len() > 0 {
		translator := energy.NewTranslator(nil, cfg.EnergyFamilies()...)
		result.Scan = make(map[string]string, axes.Len())
		for _, name := range axes.Names() {
			where := half(up.HasParameter(name), down.HasParameter(name))
			if where == "unused" && translator.Consumes(inst.Name(), name) {
				where = "energy"
			}
			result.Scan[name] = where
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	printValidation(formatter, result, axes.Names())
	return nil
}

func half(up, down bool) string {
	switch {
	case up && down:
		return "both"
	case up:
		return "upstream"
	case down:
		return "downstream"
	default:
		return "unused"
	}
}

func printValidation(f *OutputFormatter, r ValidationResult, order []string) {
	c := f.colors()
	fmt.Fprintf(f.Writer, "%s %s splits at %s\n", c.Success.Sprint("✓"), c.Heading.Sprint(r.Instrument), r.SplitAt)
	fmt.Fprintf(f.Writer, "  %s %s\n", c.Key.Sprint("upstream:"), strings.Join(r.Upstream, " "))
	fmt.Fprintf(f.Writer, "  %s %s\n", c.Key.Sprint("downstream:"), strings.Join(r.Downstream, " "))
	if len(r.Shared) > 0 {
		fmt.Fprintf(f.Writer, "  %s %s\n", c.Warn.Sprint("shared:"), strings.Join(r.Shared, " "))
	}
	for _, name := range order {
		where := r.Scan[name]
		label := c.Key.Sprint(name + ":")
		if where == "unused" {
			label = c.Warn.Sprint(name + ":")
		}
		fmt.Fprintf(f.Writer, "  %s %s\n", label, where)
	}
}
