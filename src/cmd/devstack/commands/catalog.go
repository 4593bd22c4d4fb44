package commands

import (
	"github.com/spf13/cobra"

	"github.com/devstack-cli/devstack/src/internal/output"
)

// NewCatalogCommand creates the catalog command with its check and apply
// subcommands.
func NewCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and apply remote catalog updates",
	}
	cmd.AddCommand(newCatalogCheckCommand(), newCatalogApplyCommand())
	return cmd
}

func newCatalogCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the remote catalog for new or changed entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}

			diff, err := app.syncer.CheckForUpdates(cmd.Context())
			if err != nil {
				return err
			}

			return output.Print(diff, func() {
				if !diff.HasUpdate {
					output.Success("Catalog is up to date (version %s)", diff.RemoteVersion)
					return
				}
				output.Section("🔄", "Catalog update available: "+diff.RemoteVersion)
				for _, entry := range diff.New {
					output.ItemSuccess("new: %s %s", entry.Service, entry.Version)
				}
				for _, entry := range diff.Changed {
					output.Item("changed: %s %s (%s)", entry.Service, entry.Version, entry.Detail)
				}
				for _, entry := range diff.Stale {
					output.ItemWarning("stale: %s %s", entry.Service, entry.Version)
				}
				output.Newline()
				output.Info("Run %s to apply.", output.Emphasize("devstack catalog apply"))
			})
		},
	}
}

func newCatalogApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Apply the last checked catalog update",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}

			diff, err := app.syncer.CheckForUpdates(cmd.Context())
			if err != nil {
				return err
			}
			if !diff.HasUpdate {
				return output.Print(diff, func() {
					output.Success("Catalog is already up to date (version %s)", diff.RemoteVersion)
				})
			}

			if err := app.syncer.ApplyUpdates(); err != nil {
				return err
			}
			return output.Print(diff, func() {
				output.Success("Applied catalog version %s (%d new, %d changed)",
					diff.RemoteVersion, len(diff.New), len(diff.Changed))
			})
		},
	}
}
