package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dagu-org/taskkernel/internal/build"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the taskkernel version",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Printf("%s %s\n", build.AppName, build.Version)
			return nil
		},
	}
}
