package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/config"
	"github.com/alfredjeanlab/reqgraph/internal/export"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write a JSONL snapshot of every graph and its history",
	GroupID: "system",
	Long: `Write a JSONL snapshot of every graph and its history.

The export reads the configured store directly (REQGRAPH_DATABASE_URL).
With --push the snapshot is also sent to the configured S3 and git
destinations, exactly as the server's export scheduler would.`,
	// Reads the store, not the server.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		verify, _ := cmd.Flags().GetBool("verify")
		push, _ := cmd.Flags().GetBool("push")
		ctx := context.Background()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		if push {
			dests := exportDestinations(cfg, logger)
			if len(dests) == 0 {
				return fmt.Errorf("no export destinations configured (set REQGRAPH_EXPORT_S3_BUCKET or REQGRAPH_EXPORT_GIT_REPO)")
			}
			return export.NewScheduler(st, dests, 0, nil, logger).RunOnce(ctx)
		}

		var buf bytes.Buffer
		summary, err := export.ExportJSONL(ctx, st, &buf, time.Now())
		if err != nil {
			return fmt.Errorf("exporting: %w", err)
		}
		if verify {
			if _, err := export.ReadJSONL(bytes.NewReader(buf.Bytes())); err != nil {
				return fmt.Errorf("verifying export: %w", err)
			}
		}

		if err := writeOutput(cmd.OutOrStdout(), output, buf.Bytes()); err != nil {
			return err
		}
		if output != "" && output != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d graphs and %d history events to %s\n",
				summary.Graphs, summary.Events, output)
		}
		return nil
	},
}

// writeOutput writes data to path, or to stdout when path is empty or "-".
func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	exportCmd.Flags().Bool("verify", true, "re-read the snapshot and check its header counts")
	exportCmd.Flags().Bool("push", false, "send the snapshot to the configured destinations instead")
}
