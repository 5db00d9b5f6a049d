// Package config loads server and client settings from an optional TOML
// file and REQGRAPH_* environment variables. The environment wins.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DatabaseURL  string // REQGRAPH_DATABASE_URL (optional, empty = in-memory store)
	GRPCAddr     string // REQGRAPH_GRPC_ADDR (default ":9090")
	HTTPAddr     string // REQGRAPH_HTTP_ADDR (default ":8080")
	NATSURL      string // REQGRAPH_NATS_URL (optional, empty = no events)
	AuthToken    string // REQGRAPH_AUTH_TOKEN (optional, empty = auth disabled)
	DefaultActor string // REQGRAPH_DEFAULT_ACTOR (default "system")

	// Export settings
	ExportInterval   time.Duration // REQGRAPH_EXPORT_INTERVAL (default 10m; 0 = disabled)
	ExportS3Bucket   string        // REQGRAPH_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string        // REQGRAPH_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string        // REQGRAPH_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string        // REQGRAPH_EXPORT_S3_KEY (default "reqgraph/export.jsonl")
	ExportGitRepo    string        // REQGRAPH_EXPORT_GIT_REPO (enables git when set; path to clone)
	ExportGitFile    string        // REQGRAPH_EXPORT_GIT_FILE (default "reqgraph.jsonl")
	ExportGitBranch  string        // REQGRAPH_EXPORT_GIT_BRANCH (default "main")

	Client ClientConfig
}

// ClientConfig holds the settings used by the reqgraph CLI.
type ClientConfig struct {
	URL   string `toml:"url"`   // REQGRAPH_URL (default "http://localhost:8080")
	Token string `toml:"token"` // REQGRAPH_TOKEN
	Actor string `toml:"actor"` // REQGRAPH_ACTOR (default $USER)
}

// fileConfig mirrors the TOML layout. Durations are strings ("10m").
type fileConfig struct {
	DatabaseURL  string `toml:"database_url"`
	GRPCAddr     string `toml:"grpc_addr"`
	HTTPAddr     string `toml:"http_addr"`
	NATSURL      string `toml:"nats_url"`
	AuthToken    string `toml:"auth_token"`
	DefaultActor string `toml:"default_actor"`

	Export struct {
		Interval   string `toml:"interval"`
		S3Bucket   string `toml:"s3_bucket"`
		S3Endpoint string `toml:"s3_endpoint"`
		S3Region   string `toml:"s3_region"`
		S3Key      string `toml:"s3_key"`
		GitRepo    string `toml:"git_repo"`
		GitFile    string `toml:"git_file"`
		GitBranch  string `toml:"git_branch"`
	} `toml:"export"`

	Client ClientConfig `toml:"client"`
}

// Load builds a Config from defaults, then the TOML file named by
// REQGRAPH_CONFIG (if any), then the environment.
func Load() (*Config, error) {
	f, err := readFile(os.Getenv("REQGRAPH_CONFIG"))
	if err != nil {
		return nil, err
	}

	c := &Config{
		DatabaseURL:      envOr("REQGRAPH_DATABASE_URL", f.DatabaseURL, ""),
		GRPCAddr:         envOr("REQGRAPH_GRPC_ADDR", f.GRPCAddr, ":9090"),
		HTTPAddr:         envOr("REQGRAPH_HTTP_ADDR", f.HTTPAddr, ":8080"),
		NATSURL:          envOr("REQGRAPH_NATS_URL", f.NATSURL, ""),
		AuthToken:        envOr("REQGRAPH_AUTH_TOKEN", f.AuthToken, ""),
		DefaultActor:     envOr("REQGRAPH_DEFAULT_ACTOR", f.DefaultActor, "system"),
		ExportS3Bucket:   envOr("REQGRAPH_EXPORT_S3_BUCKET", f.Export.S3Bucket, ""),
		ExportS3Endpoint: envOr("REQGRAPH_EXPORT_S3_ENDPOINT", f.Export.S3Endpoint, ""),
		ExportS3Region:   envOr("REQGRAPH_EXPORT_S3_REGION", f.Export.S3Region, "us-east-1"),
		ExportS3Key:      envOr("REQGRAPH_EXPORT_S3_KEY", f.Export.S3Key, "reqgraph/export.jsonl"),
		ExportGitRepo:    envOr("REQGRAPH_EXPORT_GIT_REPO", f.Export.GitRepo, ""),
		ExportGitFile:    envOr("REQGRAPH_EXPORT_GIT_FILE", f.Export.GitFile, "reqgraph.jsonl"),
		ExportGitBranch:  envOr("REQGRAPH_EXPORT_GIT_BRANCH", f.Export.GitBranch, "main"),
		Client: ClientConfig{
			URL:   envOr("REQGRAPH_URL", f.Client.URL, "http://localhost:8080"),
			Token: envOr("REQGRAPH_TOKEN", f.Client.Token, ""),
			Actor: envOr("REQGRAPH_ACTOR", f.Client.Actor, os.Getenv("USER")),
		},
	}

	intervalStr := envOr("REQGRAPH_EXPORT_INTERVAL", f.Export.Interval, "10m")
	if intervalStr != "" {
		d, err := time.ParseDuration(intervalStr)
		if err != nil {
			return nil, fmt.Errorf("REQGRAPH_EXPORT_INTERVAL: %w", err)
		}
		c.ExportInterval = d
	}

	return c, nil
}

// readFile decodes path. An empty path or a missing file yields zero values.
func readFile(path string) (fileConfig, error) {
	var f fileConfig
	if path == "" {
		return f, nil
	}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileConfig{}, nil
		}
		return fileConfig{}, fmt.Errorf("config file %s: %w", path, err)
	}
	return f, nil
}

// envOr returns the environment value for key, then fileVal, then fallback.
func envOr(key, fileVal, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileVal != "" {
		return fileVal
	}
	return fallback
}
