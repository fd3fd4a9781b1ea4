package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dagu-org/taskkernel/internal/demoplan"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [plan-file]",
		Short: "load a demo plan file and report structural errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := demoplan.Load(args[0])
			if err != nil {
				return err
			}
			if err := demoplan.Validate(doc); err != nil {
				return fmt.Errorf("invalid plan: %w", err)
			}
			fmt.Printf("ok: %d tasks\n", len(doc.Tasks))
			return nil
		},
	}
	return cmd
}
