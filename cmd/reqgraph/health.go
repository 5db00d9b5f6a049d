package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/ui"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the reqgraph server",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		status, err := graphClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status, "transport": transport}); err != nil {
				return err
			}
		} else if status == "ok" {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s (%s)\n", ui.RenderPass(status), transport)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s (%s)\n", ui.RenderFail(status), transport)
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}
