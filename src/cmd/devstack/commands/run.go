package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devstack-cli/devstack/src/internal/output"
	"github.com/devstack-cli/devstack/src/internal/project"
)

// NewStartCommand creates the start command.
func NewStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start <project-id>",
		Short: "Start a project's web server and PHP gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}

			p, ok := project.Find(app.projects, args[0])
			if !ok {
				return fmt.Errorf("unknown project %q (known projects live in %s)",
					args[0], "projects.yaml")
			}

			sup, err := app.newSupervisor()
			if err != nil {
				return err
			}

			entry, err := sup.StartProject(p)
			if err != nil {
				return err
			}
			if err := saveRunningState(app.dataRoot, sup.Running()); err != nil {
				return err
			}

			return output.Print(entry, func() {
				output.Success("Started %s", p.ID)
				output.Label("server", fmt.Sprintf("%s %s (pid %d)", entry.ServerType, entry.ServerVersion, entry.ServerPID))
				output.Label("gateway", fmt.Sprintf("php %s on 127.0.0.1:%d (pid %d)", p.PHPVersion, entry.GatewayPort, entry.GatewayPID))
			})
		},
	}
}

// NewStopCommand creates the stop command.
func NewStopCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "stop [project-id]",
		Short: "Stop a running project, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("specify a project id or --all")
			}

			app, err := newAppContext()
			if err != nil {
				return err
			}
			sup, err := app.newSupervisor()
			if err != nil {
				return err
			}

			if all {
				sup.StopAll()
			} else if err := sup.StopProject(args[0]); err != nil {
				return err
			}

			if err := saveRunningState(app.dataRoot, sup.Running()); err != nil {
				return err
			}
			return output.Print(StatusResult{Running: sup.Running()}, func() {
				if all {
					output.Success("Stopped all projects")
				} else {
					output.Success("Stopped %s", args[0])
				}
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Stop every running project")
	return cmd
}

// NewReloadCommand creates the reload command.
func NewReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask running web servers to re-read their configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			sup, err := app.newSupervisor()
			if err != nil {
				return err
			}

			sup.ReloadConfig()
			return output.Print(StatusResult{Running: sup.Running()}, func() {
				output.Success("Reload signal sent")
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show running projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			sup, err := app.newSupervisor()
			if err != nil {
				return err
			}

			result := StatusResult{Running: sup.Running()}
			return output.Print(result, func() {
				if len(result.Running) == 0 {
					output.Info("No projects running")
					return
				}
				output.Section("🚀", "Running projects")
				for _, entry := range result.Running {
					output.ItemSuccess("%s  %s %s  gateway 127.0.0.1:%d",
						entry.ProjectID, entry.ServerType, entry.ServerVersion, entry.GatewayPort)
				}
			})
		},
	}
}
