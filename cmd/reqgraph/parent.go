package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alfredjeanlab/reqgraph/internal/ui"
	"github.com/spf13/cobra"
)

var parentCmd = &cobra.Command{
	Use:     "parent",
	Short:   "Manage a requirement's parent",
	GroupID: "graph",
}

var parentSetCmd = &cobra.Command{
	Use:   "set <child> <parent>",
	Short: "Make parent the parent of child",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := graphClient.SetParent(context.Background(), args[0], args[1]); err != nil {
			return fmt.Errorf("setting parent: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now a subtask of %s\n", args[0], args[1])
		return nil
	},
}

var parentClearCmd = &cobra.Command{
	Use:   "clear <child>",
	Short: "Detach child from its parent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := graphClient.ClearParent(context.Background(), args[0]); err != nil {
			return fmt.Errorf("clearing parent: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared parent of %s\n", args[0])
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:     "progress <parent> <child> <percent>",
	Short:   "Update the progress of a subtask",
	GroupID: "graph",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pct, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid progress %q: %w", args[2], err)
		}
		if err := graphClient.UpdateSubtaskProgress(context.Background(), args[0], args[1], pct); err != nil {
			return fmt.Errorf("updating progress: %w", err)
		}
		// The server clamps out-of-range values.
		pct = max(0, min(100, pct))
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d%%\n", args[1], ui.ProgressBar(pct, 20), pct)
		return nil
	},
}

func init() {
	parentCmd.AddCommand(parentSetCmd)
	parentCmd.AddCommand(parentClearCmd)
}
