package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/restage/internal/ir"
)

// VersionInfo is the version report.
type VersionInfo struct {
	Version       string `json:"version"`
	SchemaVersion string `json:"schema_version"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("restage %s (cache schema %s)", v.Version, v.SchemaVersion)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the restage version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return f.Success(VersionInfo{Version: ir.Version, SchemaVersion: ir.SchemaVersion})
		},
	}
}
