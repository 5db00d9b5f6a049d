package main

import (
	"fmt"
	"os"

	"github.com/alfredjeanlab/reqgraph/internal/client"
	"github.com/alfredjeanlab/reqgraph/internal/config"
	"github.com/alfredjeanlab/reqgraph/internal/ui"
	"github.com/spf13/cobra"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	jsonOutput bool
	noColor    bool
	local      bool
	actor      string
	token      string

	graphClient client.GraphClient
)

// clientDefaults reads the [client] section of the config file and the
// REQGRAPH_* environment. A broken config file falls back to built-in
// defaults so that --help still works.
func clientDefaults() config.ClientConfig {
	cfg, err := config.Load()
	if err != nil {
		return config.ClientConfig{URL: "http://localhost:8080", Actor: os.Getenv("USER")}
	}
	return cfg.Client
}

func defaultServer() string {
	if s := os.Getenv("REQGRAPH_SERVER"); s != "" {
		return s
	}
	return "localhost:9090"
}

// newClient builds the GraphClient selected by --transport.
func newClient() (client.GraphClient, error) {
	opts := []client.Option{client.WithToken(token), client.WithActor(actor)}
	if local {
		return newLocalClient(opts...)
	}
	switch transport {
	case "http":
		return client.NewHTTPClient(httpURL, opts...), nil
	case "grpc":
		c, err := client.NewGRPCClient(serverAddr, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to server: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
}

var rootCmd = &cobra.Command{
	Use:           "reqgraph <command>",
	Short:         "CLI for the requirement dependency graph service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor || !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		graphClient = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if graphClient != nil {
			graphClient.Close()
		}
	},
}

func init() {
	defaults := clientDefaults()

	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaults.URL, "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&local, "local", false, "run the service in-process against REQGRAPH_DATABASE_URL")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaults.Actor, "operator recorded in history")
	rootCmd.PersistentFlags().StringVar(&token, "token", defaults.Token, "bearer token for the server")

	rootCmd.AddGroup(
		&cobra.Group{ID: "graph", Title: "Graph:"},
		&cobra.Group{ID: "history", Title: "History:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Graph
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(ensureCmd)
	rootCmd.AddCommand(edgeCmd)
	rootCmd.AddCommand(parentCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(criticalPathCmd)
	rootCmd.AddCommand(graphConfigCmd)

	// History
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderFail("Error:"), err)
		os.Exit(1)
	}
}
