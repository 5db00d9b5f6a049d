package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/reqgraph/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var viewCmd = &cobra.Command{
	Use:     "view <id>",
	Short:   "Show the dependency view of a requirement",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := graphClient.GetDependencyView(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("getting view: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), view)
		}
		printView(cmd.OutOrStdout(), view)
		return nil
	},
}

var ensureCmd = &cobra.Command{
	Use:     "ensure <id>",
	Short:   "Create an empty graph record for a requirement if missing",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := graphClient.EnsureGraph(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("ensuring graph: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), resp)
		}
		if resp.Created {
			fmt.Fprintf(cmd.OutOrStdout(), "Created graph for %s\n", args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Graph for %s already exists (v%d)\n", args[0], resp.Graph.Version)
		}
		return nil
	},
}

var criticalPathCmd = &cobra.Command{
	Use:     "critical-path <id>",
	Short:   "Show the longest chain of open blockers",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		refresh, _ := cmd.Flags().GetBool("refresh")

		var path []string
		if refresh {
			p, err := graphClient.RefreshCriticalPath(ctx, args[0])
			if err != nil {
				return fmt.Errorf("refreshing critical path: %w", err)
			}
			path = p
		} else {
			view, err := graphClient.GetDependencyView(ctx, args[0])
			if err != nil {
				return fmt.Errorf("getting view: %w", err)
			}
			path = view.CriticalPath
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"id": args[0], "critical_path": path})
		}
		printCriticalPath(cmd.OutOrStdout(), args[0], path)
		return nil
	},
}

var graphConfigCmd = &cobra.Command{
	Use:     "graph-config <id>",
	Short:   "Update the rendering settings of a requirement's graph",
	GroupID: "graph",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := graphConfigPatch(cmd.Flags())
		if err != nil {
			return err
		}
		cfg, err := graphClient.SetGraphConfig(context.Background(), args[0], patch)
		if err != nil {
			return fmt.Errorf("setting graph config: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), cfg)
		}
		printGraphConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

// graphConfigPatch turns the flags the user actually set into a patch.
func graphConfigPatch(fs *pflag.FlagSet) (model.GraphConfigPatch, error) {
	var p model.GraphConfigPatch
	if fs.Changed("layout") {
		v, _ := fs.GetString("layout")
		p.Layout = &v
	}
	if fs.Changed("direction") {
		v, _ := fs.GetString("direction")
		p.Direction = &v
	}
	if fs.Changed("node-spacing") {
		v, _ := fs.GetInt("node-spacing")
		p.NodeSpacing = &v
	}
	if fs.Changed("level-spacing") {
		v, _ := fs.GetInt("level-spacing")
		p.LevelSpacing = &v
	}
	if fs.Changed("show-labels") {
		v, _ := fs.GetBool("show-labels")
		p.ShowLabels = &v
	}
	if fs.Changed("show-types") {
		v, _ := fs.GetBool("show-types")
		p.ShowTypes = &v
	}
	colors, _ := fs.GetStringSlice("color")
	for _, kv := range colors {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return p, fmt.Errorf("invalid --color %q (want relation=#rrggbb)", kv)
		}
		if p.ColorScheme == nil {
			p.ColorScheme = map[string]string{}
		}
		p.ColorScheme[k] = v
	}
	return p, nil
}

func addGraphConfigFlags(f *pflag.FlagSet) {
	f.String("layout", "", "layout (hierarchical, force, circular, grid)")
	f.String("direction", "", "direction (top-bottom, bottom-top, left-right, right-left)")
	f.Int("node-spacing", 0, "spacing between nodes")
	f.Int("level-spacing", 0, "spacing between levels")
	f.Bool("show-labels", true, "show node labels")
	f.Bool("show-types", true, "show edge types")
	f.StringSlice("color", nil, "relation color, e.g. blocking=#ff0000 (repeatable)")
}

func init() {
	criticalPathCmd.Flags().Bool("refresh", false, "recompute and store the path before printing")
	addGraphConfigFlags(graphConfigCmd.Flags())
}
