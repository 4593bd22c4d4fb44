package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/devstack-cli/devstack/src/internal/catalog"
	"github.com/devstack-cli/devstack/src/internal/output"
	"github.com/devstack-cli/devstack/src/internal/paths"
	"github.com/devstack-cli/devstack/src/internal/project"
)

// NewUninstallCommand creates the uninstall command.
func NewUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <service> <version>",
		Short: "Remove an installed service version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, version := args[0], args[1]

			app, err := newAppContext()
			if err != nil {
				return err
			}

			if !app.registry.IsInstalled(service, version) {
				return fmt.Errorf("%s %s is not installed", service, version)
			}

			// Refuse while a running project depends on this exact version,
			// either as its web server or as its PHP gateway.
			running, err := loadRunningState(app.dataRoot)
			if err != nil {
				return err
			}
			for _, entry := range running {
				if entry.ServerType == service && entry.ServerVersion == version {
					return fmt.Errorf("%s %s is in use by project %s; stop it first",
						service, version, entry.ProjectID)
				}
				if service != catalog.ServicePHP {
					continue
				}
				if p, ok := project.Find(app.projects, entry.ProjectID); ok && p.PHPVersion == version {
					return fmt.Errorf("php %s is in use by project %s; stop it first",
						version, entry.ProjectID)
				}
			}

			// Remove the whole version directory, not just the platform
			// subtree, so a later install starts clean.
			versionRoot := filepath.Dir(paths.VersionDir(app.dataRoot, service, version))
			if err := os.RemoveAll(versionRoot); err != nil {
				return fmt.Errorf("failed to remove %s %s: %w", service, version, err)
			}

			result := InstallResult{Service: service, Version: version, Status: "removed"}
			return output.Print(result, func() {
				output.Success("Removed %s %s", service, version)
			})
		},
	}
}
