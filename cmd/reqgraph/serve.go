package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alfredjeanlab/reqgraph/internal/config"
	"github.com/alfredjeanlab/reqgraph/internal/events"
	"github.com/alfredjeanlab/reqgraph/internal/export"
	"github.com/alfredjeanlab/reqgraph/internal/server"
	"github.com/alfredjeanlab/reqgraph/internal/service"
	"github.com/alfredjeanlab/reqgraph/internal/store"
	"github.com/alfredjeanlab/reqgraph/internal/store/memory"
	"github.com/alfredjeanlab/reqgraph/internal/store/postgres"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the reqgraph HTTP and gRPC servers",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}

		// Committed changes go to NATS (when configured) and to SSE clients.
		hub := server.NewEventHub()
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				st.Close()
				return err
			}
			publisher = events.Multi(pub, hub)
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = events.Multi(hub)
			logger.Info("NATS events disabled (REQGRAPH_NATS_URL not set)")
		}

		svc := service.New(st,
			service.WithActorContext(service.ContextActor{Fallback: cfg.DefaultActor}),
			service.WithPublisher(publisher),
			service.WithLogger(logger),
		)
		srv := server.New(svc, hub, logger)
		grpcServer := server.NewGRPCServer(srv, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startExportScheduler(cfg, st, logger)

		if cfg.AuthToken == "" {
			logger.Warn("authentication disabled (REQGRAPH_AUTH_TOKEN not set)")
		}
		logger.Info("reqgraph server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// openStore connects to Postgres, or falls back to an in-memory store when no
// database URL is configured.
func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("using in-memory store (REQGRAPH_DATABASE_URL not set); data is lost on exit")
		return memory.New(), nil
	}
	pg, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return pg, nil
}

// startExportScheduler starts periodic JSONL exports when an interval and at
// least one destination are configured. It returns nil otherwise.
func startExportScheduler(cfg *config.Config, st store.Store, logger *slog.Logger) *export.Scheduler {
	if cfg.ExportInterval <= 0 {
		return nil
	}
	dests := exportDestinations(cfg, logger)
	if len(dests) == 0 {
		return nil
	}
	scheduler := export.NewScheduler(st, dests, cfg.ExportInterval, nil, logger)
	scheduler.Start()
	logger.Info("export scheduler started", "interval", cfg.ExportInterval)
	return scheduler
}

func exportDestinations(cfg *config.Config, logger *slog.Logger) []export.Destination {
	var dests []export.Destination

	if cfg.ExportS3Bucket != "" {
		s3Dest, err := export.NewS3Destination(
			context.Background(),
			cfg.ExportS3Bucket,
			cfg.ExportS3Key,
			cfg.ExportS3Region,
			cfg.ExportS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 export destination", "err", err)
		} else {
			s3Dest.Retain = true
			dests = append(dests, s3Dest)
			logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
		}
	}

	if cfg.ExportGitRepo != "" {
		gitDest := export.NewGitDestination(cfg.ExportGitRepo, cfg.ExportGitFile, cfg.ExportGitBranch)
		dests = append(dests, gitDest)
		logger.Info("export git destination enabled", "repo", cfg.ExportGitRepo, "file", cfg.ExportGitFile)
	}
	return dests
}
