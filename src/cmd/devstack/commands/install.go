package commands

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/devstack-cli/devstack/src/internal/download"
	"github.com/devstack-cli/devstack/src/internal/output"
)

// NewInstallCommand creates the install command.
func NewInstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "install <service> <version>",
		Short: "Download and install a service version",
		Long:  `Downloads the platform archive for a catalog entry, extracts it into the managed resource tree and runs any post-install setup. Interrupting with Ctrl+C cancels the download and removes partial files.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext()
			if err != nil {
				return err
			}
			return runInstall(app, args[0], args[1])
		},
	}
}

func runInstall(app *appContext, service, version string) error {
	if app.registry.IsInstalled(service, version) {
		result := InstallResult{
			Service: service,
			Version: version,
			Status:  "completed",
			Path:    app.registry.InstallDir(service, version),
		}
		return output.Print(result, func() {
			output.Success("%s %s is already installed", service, version)
		})
	}

	manager := app.downloadManager()

	done := make(chan download.Event, 1)
	unsubscribe := manager.Subscribe(func(event download.Event) {
		renderProgress(event)
		if event.Status.Terminal() {
			select {
			case done <- event:
			default:
			}
		}
	})
	defer unsubscribe()

	task, err := manager.StartDownload(service, version)
	if err != nil {
		return err
	}

	// Ctrl+C cancels the task instead of abandoning a half-written install.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	output.PrintDefault(func() {
		output.Info("Installing %s %s...", output.Emphasize(service), output.Emphasize(version))
	})

	var final download.Event
	select {
	case final = <-done:
	case <-interrupt:
		manager.CancelDownload(task.ID)
		final = download.Event{ID: task.ID, Status: download.StatusCancelled}
	}

	result := InstallResult{
		Service: service,
		Version: version,
		Status:  string(final.Status),
		Error:   final.Error,
	}
	if final.Status == download.StatusCompleted {
		result.Path = app.registry.InstallDir(service, version)
	}

	err = nil
	switch final.Status {
	case download.StatusCompleted:
	case download.StatusCancelled:
		err = fmt.Errorf("installation of %s %s was cancelled", service, version)
	default:
		err = fmt.Errorf("%s", final.Error)
	}

	if output.IsJSON() {
		if printErr := output.PrintJSON(result); printErr != nil {
			return printErr
		}
		return err
	}

	switch final.Status {
	case download.StatusCompleted:
		output.Success("Installed %s %s to %s", service, version, result.Path)
	case download.StatusCancelled:
		output.Warning("Installation of %s %s cancelled", service, version)
	default:
		output.Error("Installation failed: %s", final.Error)
	}
	return err
}

// renderProgress prints one line per status change and a coarse percentage
// stream while downloading and extracting.
func renderProgress(event download.Event) {
	if output.IsJSON() {
		return
	}
	switch event.Status {
	case download.StatusDownloading:
		if event.Total > 0 {
			fmt.Printf("\r  downloading... %3d%% (%s / %s)", event.Progress,
				humanBytes(event.Downloaded), humanBytes(event.Total))
		} else {
			fmt.Printf("\r  downloading... %s", humanBytes(event.Downloaded))
		}
	case download.StatusExtracting:
		fmt.Printf("\r  extracting...  %3d%%          ", event.Progress)
	case download.StatusInstalling:
		fmt.Printf("\r  installing...          \n")
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
