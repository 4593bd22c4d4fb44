package main

import (
	"fmt"
	"os"

	"github.com/devstack-cli/devstack/src/cmd/devstack/commands"
	"github.com/devstack-cli/devstack/src/internal/logging"
	"github.com/devstack-cli/devstack/src/internal/output"

	"github.com/spf13/cobra"
)

var (
	outputFormat   string
	debugMode      bool
	structuredLogs bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "devstack",
		Short: "Devstack - Manage local PHP development stacks",
		Long:  `Devstack downloads versioned service binaries (PHP, MySQL, Redis, nginx, Apache and friends), keeps them in a managed resource tree, and runs your projects against them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(debugMode, structuredLogs)
			return output.SetFormat(outputFormat)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "default", "Output format (default, json)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&structuredLogs, "structured-logs", false, "Enable structured JSON logging to stderr")

	rootCmd.AddCommand(
		commands.NewInstallCommand(),
		commands.NewUninstallCommand(),
		commands.NewListCommand(),
		commands.NewCatalogCommand(),
		commands.NewStartCommand(),
		commands.NewStopCommand(),
		commands.NewReloadCommand(),
		commands.NewStatusCommand(),
		commands.NewVersionCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
