// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, IPFS) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/taibuivan/koma/internal/platform/constants"
	"github.com/taibuivan/koma/pkg/retry"
)

// # Configuration Schema

// Config holds all runtime configuration for the Koma API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Public key used to verify access tokens issued by the identity service
	JWTPubKeyPath string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// Content-addressed store (IPFS / Kubo RPC)
	IPFSAPIURL     string        `env:"IPFS_API_URL"     envDefault:"http://127.0.0.1:5001"`
	IPFSGatewayURL string        `env:"IPFS_GATEWAY_URL" envDefault:"https://ipfs.io/ipfs/"`
	IPFSTimeout    time.Duration `env:"IPFS_TIMEOUT"     envDefault:"60s"`

	// Local transient storage for pages awaiting upload.
	// Empty means <os temp dir>/koma-staging.
	StagingDir string `env:"STAGING_DIR"`

	// Ingestion pipeline
	UploadMaxRetries  int           `env:"UPLOAD_MAX_RETRIES"  envDefault:"3"`
	UploadRetryDelay  time.Duration `env:"UPLOAD_RETRY_DELAY"  envDefault:"1s"`
	UploadConcurrency int           `env:"UPLOAD_CONCURRENCY"  envDefault:"1"`
	UploadMaxMemory   int64         `env:"UPLOAD_MAX_MEMORY"   envDefault:"33554432"`

	// Reader
	ViewDedupeWindow    time.Duration `env:"VIEW_DEDUPE_WINDOW"     envDefault:"0s"`
	ChapterListCacheTTL time.Duration `env:"CHAPTER_LIST_CACHE_TTL" envDefault:"30s"`

	// Per-IP token bucket
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"100"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"150"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.StagingDir == "" {
		cfg.StagingDir = filepath.Join(os.TempDir(), "koma-staging")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects values the pipeline cannot run with.
func (c *Config) validate() error {
	switch {
	case c.UploadMaxRetries < 0:
		return fmt.Errorf("config: UPLOAD_MAX_RETRIES must not be negative")
	case c.UploadRetryDelay < 0:
		return fmt.Errorf("config: UPLOAD_RETRY_DELAY must not be negative")
	case c.UploadConcurrency < 1:
		return fmt.Errorf("config: UPLOAD_CONCURRENCY must be at least 1")
	case c.UploadMaxMemory < 1:
		return fmt.Errorf("config: UPLOAD_MAX_MEMORY must be positive")
	case c.ViewDedupeWindow < 0:
		return fmt.Errorf("config: VIEW_DEDUPE_WINDOW must not be negative")
	case c.RateLimitRPS <= 0 || c.RateLimitBurst < 1:
		return fmt.Errorf("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	case c.UploadRetryPolicy().TotalWait() >= constants.IngestRequestTimeout:
		return fmt.Errorf("config: UPLOAD_RETRY_DELAY x UPLOAD_MAX_RETRIES waits longer than the %s upload deadline", constants.IngestRequestTimeout)
	}
	return nil
}

// UploadRetryPolicy returns the retry policy applied to each page upload.
func (c *Config) UploadRetryPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries: c.UploadMaxRetries,
		BaseDelay:  c.UploadRetryDelay,
	}
}

// AllowedOrigins returns the comma-separated EXTRA_ORIGINS as a list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
