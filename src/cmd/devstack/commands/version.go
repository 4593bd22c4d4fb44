package commands

import (
	"github.com/spf13/cobra"

	"github.com/devstack-cli/devstack/src/internal/output"
	"github.com/devstack-cli/devstack/src/internal/paths"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the devstack version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := struct {
				Version  string `json:"version"`
				Platform string `json:"platform"`
			}{Version: Version, Platform: paths.Platform()}

			return output.Print(info, func() {
				output.Info("devstack %s (%s)", info.Version, info.Platform)
			})
		},
	}
}
