package main

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/reqgraph/internal/client"
	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/alfredjeanlab/reqgraph/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var edgeCmd = &cobra.Command{
	Use:     "edge",
	Short:   "Add or remove dependency edges",
	GroupID: "graph",
}

var edgeAddCmd = &cobra.Command{
	Use:   "add <source> <target>",
	Short: "Add an edge from source to target",
	Long: `Add an edge from source to target.

For a blocking edge the source blocks the target. For a parent edge the
source becomes the parent and the target its subtask. Related and duplicate
edges are symmetric.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		edgeType, err := edgeTypeFlag(cmd)
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")

		edge, err := graphClient.AddEdge(context.Background(), &client.AddEdgeRequest{
			Source:         args[0],
			Target:         args[1],
			Type:           edgeType,
			SourceSnapshot: readSnapshot(cmd.Flags(), "source"),
			TargetSnapshot: readSnapshot(cmd.Flags(), "target"),
			Reason:         reason,
		})
		if err != nil {
			return fmt.Errorf("adding edge: %w", err)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), edge)
		}
		printEdge(cmd.OutOrStdout(), edge)
		return nil
	},
}

var edgeRemoveCmd = &cobra.Command{
	Use:   "remove <source> <target>",
	Short: "Remove an edge between source and target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		edgeType, err := edgeTypeFlag(cmd)
		if err != nil {
			return err
		}
		if err := graphClient.RemoveEdge(context.Background(), args[0], args[1], edgeType); err != nil {
			return fmt.Errorf("removing edge: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s %s %s\n", args[0], ui.RenderRelation(edgeType.String()), args[1])
		return nil
	},
}

func edgeTypeFlag(cmd *cobra.Command) (model.EdgeType, error) {
	s, _ := cmd.Flags().GetString("type")
	t, ok := model.ParseEdgeType(s)
	if !ok {
		return "", fmt.Errorf("invalid edge type %q (must be blocking, related, duplicate or parent)", s)
	}
	return t, nil
}

// addSnapshotFlags registers the --<side>-* flags that describe one endpoint.
func addSnapshotFlags(fs *pflag.FlagSet, side string) {
	fs.String(side+"-title", "", side+" requirement title")
	fs.String(side+"-status", "", side+" requirement status")
	fs.Int(side+"-priority", 0, side+" requirement priority")
	fs.String(side+"-assignee", "", side+" requirement assignee id")
	fs.Int(side+"-progress", -1, side+" requirement progress (0-100)")
}

func readSnapshot(fs *pflag.FlagSet, side string) model.Snapshot {
	var s model.Snapshot
	s.Title, _ = fs.GetString(side + "-title")
	s.Status, _ = fs.GetString(side + "-status")
	s.Priority, _ = fs.GetInt(side + "-priority")
	s.AssigneeID, _ = fs.GetString(side + "-assignee")
	if p, _ := fs.GetInt(side + "-progress"); p >= 0 {
		s.Progress = &p
	}
	return s
}

func init() {
	edgeAddCmd.Flags().StringP("type", "t", "blocking", "edge type (blocking, related, duplicate, parent)")
	edgeAddCmd.Flags().String("reason", "", "reason recorded in history")
	addSnapshotFlags(edgeAddCmd.Flags(), "source")
	addSnapshotFlags(edgeAddCmd.Flags(), "target")

	edgeRemoveCmd.Flags().StringP("type", "t", "blocking", "edge type (blocking, related, duplicate, parent)")

	edgeCmd.AddCommand(edgeAddCmd)
	edgeCmd.AddCommand(edgeRemoveCmd)
}
