package main

import (
	"os"

	"github.com/spf13/cobra"
)

// cfgFile is the --config override, parsed before any subcommand runs.
var cfgFile string

func main() {
	cmd := &cobra.Command{
		Use:   "taskkernel",
		Short: "Event-driven task plan execution engine.",
		Long:  `taskkernel drives a plan of tasks and events against temporal and occurrence constraints.`,
	}

	cmd.PersistentFlags().StringVarP(
		&cfgFile, "config", "c", "",
		"config file (default is $XDG_CONFIG_HOME/taskkernel/config.yaml)",
	)

	cmd.AddCommand(runCmd())
	cmd.AddCommand(validateCmd())
	cmd.AddCommand(versionCmd())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
