package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/restage/internal/config"
	"github.com/roach88/restage/internal/ir"
)

// ArtifactInfo is one row of "cache list".
type ArtifactInfo struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Fingerprint      string    `json:"fingerprint"`
	BinaryPath       string    `json:"binary_path"`
	ToolchainVersion string    `json:"toolchain_version"`
	CreatedAt        time.Time `json:"created_at"`
	Records          int       `json:"records"`
}

// RecordInfo is one row of "cache records".
type RecordInfo struct {
	ID          string            `json:"id"`
	Parameters  map[string]string `json:"parameters"`
	Count       int64             `json:"count,omitempty"`
	Seed        *int64            `json:"seed,omitempty"`
	Gravitation bool              `json:"gravitation"`
	Output      string            `json:"output"`
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the instrument and result cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List compiled instruments",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheList(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "records <artifact-id>",
		Short:         "List the cached upstream runs of a compiled instrument",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheRecords(rootOpts, args[0], cmd)
		},
	})
	return cmd
}

func openCache(opts *RootOptions, cmd *cobra.Command, f *OutputFormatter) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, f.Fail("failed to load configuration", err)
	}
	a, err := openApp(cfg, newLogger(opts, cmd.ErrOrStderr()), Collaborators{})
	if err != nil {
		return nil, f.Fail("failed to open cache", err)
	}
	return a, nil
}

func runCacheList(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	a, err := openCache(opts, cmd, f)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := commandContext(cmd)
	artifacts, err := a.artifacts.List(ctx)
	if err != nil {
		return f.Fail("failed to list artifacts", err)
	}
	infos := make([]ArtifactInfo, 0, len(artifacts))
	for _, art := range artifacts {
		info := ArtifactInfo{
			ID:               art.ID,
			Name:             art.Name,
			Fingerprint:      art.Fingerprint,
			BinaryPath:       art.BinaryPath,
			ToolchainVersion: art.ToolchainVersion,
			CreatedAt:        art.CreatedAt,
		}
		if t, ok, err := a.results.Table(ctx, art.ID); err != nil {
			return f.Fail("failed to read result table", err)
		} else if ok {
			recs, err := a.results.Records(ctx, t)
			if err != nil {
				return f.Fail("failed to list records", err)
			}
			info.Records = len(recs)
		}
		infos = append(infos, info)
	}

	if f.Format == "json" {
		return f.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(f.Writer, "no compiled instruments")
		return nil
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, f.colors().Heading.Sprint("ID\tNAME\tRECORDS\tTOOLCHAIN\tCREATED"))
	for _, i := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", i.ID, i.Name, i.Records, i.ToolchainVersion,
			i.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runCacheRecords(opts *RootOptions, artifactID string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	a, err := openCache(opts, cmd, f)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := commandContext(cmd)
	t, ok, err := a.results.Table(ctx, artifactID)
	if err != nil {
		return f.Fail("failed to read result table", err)
	}
	var recs []ir.Record
	if ok {
		if recs, err = a.results.Records(ctx, t); err != nil {
			return f.Fail("failed to list records", err)
		}
	}

	infos := make([]RecordInfo, len(recs))
	for i, r := range recs {
		params := make(map[string]string, r.Point.Len())
		for _, p := range r.Point.Pairs() {
			params[p.Name] = p.Value.String()
		}
		infos[i] = RecordInfo{
			ID:          r.ID,
			Parameters:  params,
			Count:       r.Count,
			Seed:        r.Seed,
			Gravitation: r.Gravitation,
			Output:      r.Output,
		}
	}

	if f.Format == "json" {
		return f.Success(infos)
	}
	if len(recs) == 0 {
		fmt.Fprintf(f.Writer, "no records for %s\n", artifactID)
		return nil
	}
	printRecords(f.Writer, recs)
	return nil
}

func printRecords(w io.Writer, recs []ir.Record) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOUNT\tPARAMETERS\tOUTPUT")
	for _, r := range recs {
		count := "-"
		if r.Count > 0 {
			count = fmt.Sprint(r.Count)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, count, r.Point.String(), r.Output)
	}
	tw.Flush()
}
